package invoice

import "strings"

// EditInvoiceInput captures EDIT_INVOICE. Omitted fields keep their value.
type EditInvoiceInput struct {
	InvoiceNo  string `json:"invoiceNo,omitempty" validate:"omitempty,max=64"`
	DateIssued string `json:"dateIssued,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DateDue    string `json:"dateDue,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Currency   string `json:"currency,omitempty" validate:"omitempty,iso4217"`
}

// Normalize trims fields and uppercases the currency.
func (in EditInvoiceInput) Normalize() EditInvoiceInput {
	in.InvoiceNo = strings.TrimSpace(in.InvoiceNo)
	in.DateIssued = strings.TrimSpace(in.DateIssued)
	in.DateDue = strings.TrimSpace(in.DateDue)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	return in
}

// EditLegalEntityInput captures EDIT_ISSUER and EDIT_PAYER.
type EditLegalEntityInput struct {
	Name    string `json:"name,omitempty" validate:"omitempty,max=128"`
	Address string `json:"address,omitempty" validate:"omitempty,max=256"`
	TaxID   string `json:"taxId,omitempty" validate:"omitempty,max=64"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Wallet  string `json:"wallet,omitempty" validate:"omitempty,eth_addr"`
}

// Normalize trims fields.
func (in EditLegalEntityInput) Normalize() EditLegalEntityInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	in.TaxID = strings.TrimSpace(in.TaxID)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Wallet = strings.ToLower(strings.TrimSpace(in.Wallet))
	return in
}

// EditIssuerInput captures EDIT_ISSUER.
type EditIssuerInput EditLegalEntityInput

// Normalize trims fields.
func (in EditIssuerInput) Normalize() EditIssuerInput {
	return EditIssuerInput(EditLegalEntityInput(in).Normalize())
}

// EditPayerInput captures EDIT_PAYER.
type EditPayerInput EditLegalEntityInput

// Normalize trims fields.
func (in EditPayerInput) Normalize() EditPayerInput {
	return EditPayerInput(EditLegalEntityInput(in).Normalize())
}

// EditStatusInput captures EDIT_STATUS.
type EditStatusInput struct {
	Status Status `json:"status" validate:"required,oneof=DRAFT ISSUED ACCEPTED REJECTED PAID CANCELLED"`
}

// AddLineItemInput captures ADD_LINE_ITEM. Quantity and unit price are
// bounded so totals stay finite.
type AddLineItemInput struct {
	ID               string  `json:"id" validate:"required,max=64"`
	Description      string  `json:"description" validate:"required,max=256"`
	Quantity         float64 `json:"quantity" validate:"gt=0,lte=1e9"`
	UnitPriceTaxExcl float64 `json:"unitPriceTaxExcl" validate:"gte=0,lte=1e15"`
	TaxPercent       float64 `json:"taxPercent" validate:"gte=0,lte=100"`
}

// Normalize trims text fields.
func (in AddLineItemInput) Normalize() AddLineItemInput {
	in.ID = strings.TrimSpace(in.ID)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

// EditLineItemInput captures EDIT_LINE_ITEM. Nil fields keep their value.
type EditLineItemInput struct {
	ID               string   `json:"id" validate:"required"`
	Description      string   `json:"description,omitempty" validate:"omitempty,max=256"`
	Quantity         *float64 `json:"quantity,omitempty" validate:"omitempty,gt=0,lte=1e9"`
	UnitPriceTaxExcl *float64 `json:"unitPriceTaxExcl,omitempty" validate:"omitempty,gte=0,lte=1e15"`
	TaxPercent       *float64 `json:"taxPercent,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// Normalize trims text fields.
func (in EditLineItemInput) Normalize() EditLineItemInput {
	in.ID = strings.TrimSpace(in.ID)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

// DeleteLineItemInput captures DELETE_LINE_ITEM.
type DeleteLineItemInput struct {
	ID string `json:"id" validate:"required"`
}

// StatusChangedPayload is the invoice.status_changed signal payload.
type StatusChangedPayload struct {
	InvoiceNo string  `json:"invoiceNo,omitempty"`
	From      Status  `json:"from"`
	To        Status  `json:"to"`
	Total     float64 `json:"totalPriceTaxIncl"`
	Currency  string  `json:"currency"`
}
