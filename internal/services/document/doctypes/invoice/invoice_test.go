package invoice

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/document"
)

type harness struct {
	t       *testing.T
	docType *document.Type
	doc     *document.Document
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	docType, err := NewType()
	if err != nil {
		t.Fatalf("new type: %v", err)
	}
	doc, err := document.Create(docType)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return &harness{t: t, docType: docType, doc: doc}
}

func (h *harness) apply(actionType action.Type, input any) document.Result {
	h.t.Helper()
	act, err := h.docType.Actions.Create(actionType, input, "")
	if err != nil {
		h.t.Fatalf("create %s: %v", actionType, err)
	}
	result, err := h.doc.Apply(act)
	if err != nil {
		h.t.Fatalf("apply %s: %v", actionType, err)
	}
	h.doc = result.Document
	return result
}

func (h *harness) state() *State {
	h.t.Helper()
	st, _ := h.doc.State(action.ScopeGlobal)
	return st.(*State)
}

func TestLineItemTotals(t *testing.T) {
	h := newHarness(t)
	h.apply(actionTypeEditInvoice, map[string]any{"invoiceNo": "INV-1", "currency": "eur", "dateIssued": "2026-02-01"})
	h.apply(actionTypeAddLineItem, map[string]any{"id": "a", "description": "Design", "quantity": 10, "unitPriceTaxExcl": 95.5, "taxPercent": 20})
	h.apply(actionTypeAddLineItem, map[string]any{"id": "b", "description": "Hosting", "quantity": 1, "unitPriceTaxExcl": 40})

	state := h.state()
	if state.Currency != "EUR" || state.InvoiceNo != "INV-1" {
		t.Fatalf("unexpected header %+v", state)
	}
	if state.TotalPriceTaxExcl != 995 || state.TotalPriceTaxIncl != 1186 {
		t.Fatalf("totals = %v / %v, want 995 / 1186", state.TotalPriceTaxExcl, state.TotalPriceTaxIncl)
	}

	h.apply(actionTypeEditLineItem, map[string]any{"id": "a", "quantity": 2})
	h.apply(actionTypeDeleteLineItem, map[string]any{"id": "b"})
	state = h.state()
	if len(state.LineItems) != 1 || state.TotalPriceTaxExcl != 191 || state.TotalPriceTaxIncl != 229.2 {
		t.Fatalf("unexpected state after edits %+v", state)
	}
}

func TestLineItemRejections(t *testing.T) {
	h := newHarness(t)
	h.apply(actionTypeAddLineItem, map[string]any{"id": "a", "description": "Design", "quantity": 1, "unitPriceTaxExcl": 1})

	if got := h.apply(actionTypeAddLineItem, map[string]any{"id": "a", "description": "Again", "quantity": 1, "unitPriceTaxExcl": 1}); got.Operation.ErrorCode() != rejectionCodeDuplicateLineItem {
		t.Fatalf("expected duplicate, got %+v", got.Operation.Error)
	}
	if got := h.apply(actionTypeEditLineItem, map[string]any{"id": "zz", "description": "x"}); got.Operation.ErrorCode() != rejectionCodeLineItemNotFound {
		t.Fatalf("expected not found, got %+v", got.Operation.Error)
	}
	if got := h.apply(actionTypeDeleteLineItem, map[string]any{"id": "zz"}); got.Operation.ErrorCode() != rejectionCodeLineItemNotFound {
		t.Fatalf("expected not found, got %+v", got.Operation.Error)
	}
	if len(h.state().LineItems) != 1 {
		t.Fatal("rejections changed state")
	}
}

func TestStatusWorkflow(t *testing.T) {
	h := newHarness(t)
	h.apply(actionTypeAddLineItem, map[string]any{"id": "a", "description": "Design", "quantity": 1, "unitPriceTaxExcl": 100})

	issued := h.apply(actionTypeEditStatus, map[string]any{"status": "ISSUED"})
	if len(issued.Signals) != 1 || issued.Signals[0].Type != signalTypeStatusChanged {
		t.Fatalf("expected status_changed signal, got %+v", issued.Signals)
	}
	var payload StatusChangedPayload
	if err := json.Unmarshal(issued.Signals[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.From != StatusDraft || payload.To != StatusIssued || payload.Total != 100 {
		t.Fatalf("unexpected payload %+v", payload)
	}

	locked := h.apply(actionTypeAddLineItem, map[string]any{"id": "b", "description": "Late", "quantity": 1, "unitPriceTaxExcl": 1})
	if locked.Operation.ErrorCode() != rejectionCodeInvoiceLocked {
		t.Fatalf("expected locked, got %+v", locked.Operation.Error)
	}
	if got := h.apply(actionTypeEditStatus, map[string]any{"status": "PAID"}); got.Operation.ErrorCode() != rejectionCodeInvalidStatusTransition {
		t.Fatalf("expected invalid transition, got %+v", got.Operation.Error)
	}
	h.apply(actionTypeEditStatus, map[string]any{"status": "ACCEPTED"})
	h.apply(actionTypeEditStatus, map[string]any{"status": "PAID"})
	if h.state().Status != StatusPaid {
		t.Fatalf("status = %s, want PAID", h.state().Status)
	}
	if got := h.apply(actionTypeEditStatus, map[string]any{"status": "CANCELLED"}); got.Operation.ErrorCode() != rejectionCodeInvalidStatusTransition {
		t.Fatalf("paid invoices are final, got %+v", got.Operation.Error)
	}

	restored, err := document.Rehydrate(h.docType, h.doc.Log().Map())
	if err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	want, _ := h.doc.StateHash(action.ScopeGlobal)
	got, _ := restored.StateHash(action.ScopeGlobal)
	if want != got {
		t.Fatal("rehydrated invoice diverged")
	}
}

func TestIssuerAndPayerAreSeparate(t *testing.T) {
	h := newHarness(t)
	h.apply(actionTypeEditIssuer, map[string]any{"name": " Powerhouse ", "email": "Billing@Powerhouse.inc"})
	h.apply(actionTypeEditPayer, map[string]any{"name": "Sky", "wallet": "0x1111111111111111111111111111111111111111"})
	state := h.state()
	if state.Issuer.Name != "Powerhouse" || state.Issuer.Email != "billing@powerhouse.inc" {
		t.Fatalf("unexpected issuer %+v", state.Issuer)
	}
	if state.Payer.Name != "Sky" || state.Payer.Email != "" {
		t.Fatalf("unexpected payer %+v", state.Payer)
	}
}

func TestLargestLineItemsKeepTotalsFinite(t *testing.T) {
	h := newHarness(t)
	for _, id := range []string{"a", "b", "c"} {
		result := h.apply(actionTypeAddLineItem, map[string]any{"id": id, "description": "Max", "quantity": 1e9, "unitPriceTaxExcl": 1e15, "taxPercent": 100})
		if result.Operation.Error != nil {
			t.Fatalf("add %s: %+v", id, result.Operation.Error)
		}
	}
	state := h.state()
	if math.IsInf(state.TotalPriceTaxIncl, 0) || math.Abs(state.TotalPriceTaxIncl-6e24) > 1e12 {
		t.Fatalf("total = %v, want about 6e24", state.TotalPriceTaxIncl)
	}
	if _, err := h.doc.StateHash(action.ScopeGlobal); err != nil {
		t.Fatalf("state hash: %v", err)
	}
}

func TestInputValidation(t *testing.T) {
	docType, err := NewType()
	if err != nil {
		t.Fatalf("new type: %v", err)
	}
	tests := []struct {
		name       string
		actionType action.Type
		input      map[string]any
		wantFields []string
	}{
		{"line item", actionTypeAddLineItem, map[string]any{"quantity": 0, "unitPriceTaxExcl": -1, "taxPercent": 120}, []string{"id", "description", "quantity", "unitPriceTaxExcl", "taxPercent"}},
		{"currency", actionTypeEditInvoice, map[string]any{"currency": "DOGE", "dateDue": "31/12/2026"}, []string{"currency", "dateDue"}},
		{"status", actionTypeEditStatus, map[string]any{"status": "LOST"}, []string{"status"}},
		{"issuer", actionTypeEditIssuer, map[string]any{"email": "nope", "wallet": "0x12"}, []string{"email", "wallet"}},
		{"unknown", actionTypeDeleteLineItem, map[string]any{"id": "a", "force": true}, []string{"force"}},
		{"oversized line item", actionTypeAddLineItem, map[string]any{"id": "a", "description": "Big", "quantity": 1e200, "unitPriceTaxExcl": 1e200}, []string{"quantity", "unitPriceTaxExcl"}},
		{"oversized edit", actionTypeEditLineItem, map[string]any{"id": "a", "quantity": 1e200, "unitPriceTaxExcl": 1e200}, []string{"quantity", "unitPriceTaxExcl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := docType.Actions.Create(tt.actionType, tt.input, "")
			var verr *action.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(verr.Fields) != len(tt.wantFields) {
				t.Fatalf("expected %d violations, got %+v", len(tt.wantFields), verr.Fields)
			}
			for _, field := range tt.wantFields {
				if !verr.Has(field) {
					t.Fatalf("missing violation for %s in %+v", field, verr.Fields)
				}
			}
		})
	}
}
