package invoice

import (
	"math"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/reducer"
)

// Status is the invoice workflow status.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusIssued    Status = "ISSUED"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusDraft:    {StatusIssued, StatusCancelled},
	StatusIssued:   {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted: {StatusPaid, StatusCancelled},
	StatusRejected: {StatusDraft},
}

// CanTransition reports whether the workflow allows moving from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LegalEntity is the issuer or payer of an invoice.
type LegalEntity struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	TaxID   string `json:"taxId"`
	Email   string `json:"email"`
	Wallet  string `json:"wallet"`
}

// LineItem is one billed line.
type LineItem struct {
	ID                string  `json:"id"`
	Description       string  `json:"description"`
	Quantity          float64 `json:"quantity"`
	UnitPriceTaxExcl  float64 `json:"unitPriceTaxExcl"`
	TaxPercent        float64 `json:"taxPercent"`
	TotalPriceTaxExcl float64 `json:"totalPriceTaxExcl"`
	TotalPriceTaxIncl float64 `json:"totalPriceTaxIncl"`
}

// State is the global scope of an invoice document.
type State struct {
	InvoiceNo         string      `json:"invoiceNo"`
	DateIssued        string      `json:"dateIssued"`
	DateDue           string      `json:"dateDue"`
	Currency          string      `json:"currency"`
	Status            Status      `json:"status"`
	Issuer            LegalEntity `json:"issuer"`
	Payer             LegalEntity `json:"payer"`
	LineItems         []LineItem  `json:"lineItems"`
	TotalPriceTaxExcl float64     `json:"totalPriceTaxExcl"`
	TotalPriceTaxIncl float64     `json:"totalPriceTaxIncl"`
}

// NewState returns the default global state.
func NewState() reducer.State {
	return &State{Status: StatusDraft, Currency: "USD", LineItems: []LineItem{}}
}

// Clone implements reducer.State.
func (s *State) Clone() reducer.State {
	cp := *s
	cp.LineItems = append([]LineItem{}, s.LineItems...)
	return &cp
}

func (s *State) lineItem(id string) int {
	for i, item := range s.LineItems {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// recompute refreshes line and invoice totals, rounded to cents.
func (s *State) recompute() {
	s.TotalPriceTaxExcl, s.TotalPriceTaxIncl = 0, 0
	for i := range s.LineItems {
		item := &s.LineItems[i]
		item.TotalPriceTaxExcl = roundCents(item.Quantity * item.UnitPriceTaxExcl)
		item.TotalPriceTaxIncl = roundCents(item.TotalPriceTaxExcl * (1 + item.TaxPercent/100))
		s.TotalPriceTaxExcl += item.TotalPriceTaxExcl
		s.TotalPriceTaxIncl += item.TotalPriceTaxIncl
	}
	s.TotalPriceTaxExcl = roundCents(s.TotalPriceTaxExcl)
	s.TotalPriceTaxIncl = roundCents(s.TotalPriceTaxIncl)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
