package expensereport

import "strings"

// AddWalletInput captures ADD_WALLET.
type AddWalletInput struct {
	Wallet string `json:"wallet" validate:"required,eth_addr"`
	Name   string `json:"name,omitempty" validate:"omitempty,max=128"`
}

// Normalize lowercases the address and trims the name.
func (in AddWalletInput) Normalize() AddWalletInput {
	in.Wallet = strings.ToLower(strings.TrimSpace(in.Wallet))
	in.Name = strings.TrimSpace(in.Name)
	return in
}

// RemoveWalletInput captures REMOVE_WALLET.
type RemoveWalletInput struct {
	Wallet string `json:"wallet" validate:"required,eth_addr"`
}

// Normalize lowercases the address.
func (in RemoveWalletInput) Normalize() RemoveWalletInput {
	in.Wallet = strings.ToLower(strings.TrimSpace(in.Wallet))
	return in
}

// AddLineItemInput captures ADD_LINE_ITEM. Amounts are bounded so report
// totals stay finite.
type AddLineItemInput struct {
	Wallet   string  `json:"wallet" validate:"required,eth_addr"`
	ID       string  `json:"id" validate:"required,max=64"`
	Label    string  `json:"label" validate:"required,max=128"`
	Group    string  `json:"group,omitempty" validate:"omitempty,max=64"`
	Budget   float64 `json:"budget" validate:"gte=0,lte=1e15"`
	Actuals  float64 `json:"actuals" validate:"gte=0,lte=1e15"`
	Forecast float64 `json:"forecast" validate:"gte=0,lte=1e15"`
	Payments float64 `json:"payments" validate:"gte=0,lte=1e15"`
	Comments string  `json:"comments,omitempty" validate:"omitempty,max=1024"`
}

// Normalize trims text fields and lowercases the address.
func (in AddLineItemInput) Normalize() AddLineItemInput {
	in.Wallet = strings.ToLower(strings.TrimSpace(in.Wallet))
	in.ID = strings.TrimSpace(in.ID)
	in.Label = strings.TrimSpace(in.Label)
	in.Group = strings.TrimSpace(in.Group)
	return in
}

// UpdateLineItemInput captures UPDATE_LINE_ITEM. Nil fields keep their value.
type UpdateLineItemInput struct {
	Wallet   string   `json:"wallet" validate:"required,eth_addr"`
	ID       string   `json:"id" validate:"required"`
	Label    *string  `json:"label,omitempty" validate:"omitempty,min=1,max=128"`
	Group    *string  `json:"group,omitempty" validate:"omitempty,max=64"`
	Budget   *float64 `json:"budget,omitempty" validate:"omitempty,gte=0,lte=1e15"`
	Actuals  *float64 `json:"actuals,omitempty" validate:"omitempty,gte=0,lte=1e15"`
	Forecast *float64 `json:"forecast,omitempty" validate:"omitempty,gte=0,lte=1e15"`
	Payments *float64 `json:"payments,omitempty" validate:"omitempty,gte=0,lte=1e15"`
	Comments *string  `json:"comments,omitempty" validate:"omitempty,max=1024"`
}

// Normalize lowercases the address.
func (in UpdateLineItemInput) Normalize() UpdateLineItemInput {
	in.Wallet = strings.ToLower(strings.TrimSpace(in.Wallet))
	in.ID = strings.TrimSpace(in.ID)
	return in
}

// RemoveLineItemInput captures REMOVE_LINE_ITEM.
type RemoveLineItemInput struct {
	Wallet string `json:"wallet" validate:"required,eth_addr"`
	ID     string `json:"id" validate:"required"`
}

// Normalize lowercases the address.
func (in RemoveLineItemInput) Normalize() RemoveLineItemInput {
	in.Wallet = strings.ToLower(strings.TrimSpace(in.Wallet))
	in.ID = strings.TrimSpace(in.ID)
	return in
}

// AddBillingStatementInput captures ADD_BILLING_STATEMENT.
type AddBillingStatementInput struct {
	Wallet             string `json:"wallet" validate:"required,eth_addr"`
	BillingStatementID string `json:"billingStatementId" validate:"required,max=64"`
}

// Normalize lowercases the address.
func (in AddBillingStatementInput) Normalize() AddBillingStatementInput {
	in.Wallet = strings.ToLower(strings.TrimSpace(in.Wallet))
	in.BillingStatementID = strings.TrimSpace(in.BillingStatementID)
	return in
}

// SetPeriodInput captures SET_PERIOD.
type SetPeriodInput struct {
	PeriodStart string `json:"periodStart" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string `json:"periodEnd" validate:"required,datetime=2006-01-02"`
}

// SetStatusInput captures SET_STATUS.
type SetStatusInput struct {
	Status Status `json:"status" validate:"required,oneof=DRAFT REVIEW FINAL"`
}

// SetDisplayPreferencesInput captures SET_DISPLAY_PREFERENCES (local scope).
type SetDisplayPreferencesInput struct {
	Currency     string   `json:"currency,omitempty" validate:"omitempty,iso4217"`
	ShowForecast *bool    `json:"showForecast,omitempty"`
	Collapsed    []string `json:"collapsed,omitempty" validate:"omitempty,dive,eth_addr"`
}

// Normalize uppercases the currency and lowercases collapsed wallets.
func (in SetDisplayPreferencesInput) Normalize() SetDisplayPreferencesInput {
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Collapsed != nil {
		collapsed := make([]string, 0, len(in.Collapsed))
		for _, w := range in.Collapsed {
			collapsed = append(collapsed, strings.ToLower(strings.TrimSpace(w)))
		}
		in.Collapsed = collapsed
	}
	return in
}

// BillingStatementLinkedPayload is the expense_report.billing_statement_linked payload.
type BillingStatementLinkedPayload struct {
	Wallet             string `json:"wallet"`
	BillingStatementID string `json:"billingStatementId"`
}

// FinalizedPayload is the expense_report.finalized payload.
type FinalizedPayload struct {
	PeriodStart string  `json:"periodStart"`
	PeriodEnd   string  `json:"periodEnd"`
	Wallets     int     `json:"wallets"`
	Actuals     float64 `json:"actuals"`
}
