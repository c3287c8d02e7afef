package expensereport

import (
	"strings"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/reducer"
)

// Status is the report workflow status.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusReview Status = "REVIEW"
	StatusFinal  Status = "FINAL"
)

// LineItem is one budget category row of a wallet.
type LineItem struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	Group    string  `json:"group"`
	Budget   float64 `json:"budget"`
	Actuals  float64 `json:"actuals"`
	Forecast float64 `json:"forecast"`
	Payments float64 `json:"payments"`
	Comments string  `json:"comments"`
}

// Wallet groups line items and billing statements for one address.
type Wallet struct {
	Wallet            string     `json:"wallet"`
	Name              string     `json:"name"`
	LineItems         []LineItem `json:"lineItems"`
	BillingStatements []string   `json:"billingStatements"`
}

// State is the global scope of an expense report.
type State struct {
	PeriodStart string   `json:"periodStart"`
	PeriodEnd   string   `json:"periodEnd"`
	Status      Status   `json:"status"`
	Wallets     []Wallet `json:"wallets"`
}

// NewState returns the default global state.
func NewState() reducer.State {
	return &State{Status: StatusDraft, Wallets: []Wallet{}}
}

// Clone implements reducer.State.
func (s *State) Clone() reducer.State {
	cp := *s
	cp.Wallets = make([]Wallet, len(s.Wallets))
	for i, w := range s.Wallets {
		w.LineItems = append([]LineItem{}, w.LineItems...)
		w.BillingStatements = append([]string{}, w.BillingStatements...)
		cp.Wallets[i] = w
	}
	return &cp
}

func (s *State) wallet(address string) int {
	for i, w := range s.Wallets {
		if strings.EqualFold(w.Wallet, address) {
			return i
		}
	}
	return -1
}

func (w *Wallet) lineItem(id string) int {
	for i, item := range w.LineItems {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// Totals sums a wallet's line items.
func (w Wallet) Totals() LineItem {
	var total LineItem
	for _, item := range w.LineItems {
		total.Budget += item.Budget
		total.Actuals += item.Actuals
		total.Forecast += item.Forecast
		total.Payments += item.Payments
	}
	return total
}

// Preferences is the local scope: how one user views the report.
type Preferences struct {
	Currency     string   `json:"currency"`
	ShowForecast bool     `json:"showForecast"`
	Collapsed    []string `json:"collapsed"`
}

// NewPreferences returns the default local state.
func NewPreferences() reducer.State {
	return &Preferences{Currency: "USD", ShowForecast: true, Collapsed: []string{}}
}

// Clone implements reducer.State.
func (p *Preferences) Clone() reducer.State {
	cp := *p
	cp.Collapsed = append([]string{}, p.Collapsed...)
	return &cp
}
