package accounts

import (
	"errors"
	"testing"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/document"
)

const (
	addressA = "0x1111111111111111111111111111111111111111"
	addressB = "0x2222222222222222222222222222222222222222"
)

func newDocument(t *testing.T) (*document.Type, *document.Document) {
	t.Helper()
	docType, err := NewType()
	if err != nil {
		t.Fatalf("new type: %v", err)
	}
	doc, err := document.Create(docType, document.WithID("accounts-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return docType, doc
}

func apply(t *testing.T, docType *document.Type, doc *document.Document, actionType action.Type, input any) document.Result {
	t.Helper()
	act, err := docType.Actions.Create(actionType, input, "")
	if err != nil {
		t.Fatalf("create %s: %v", actionType, err)
	}
	result, err := doc.Apply(act)
	if err != nil {
		t.Fatalf("apply %s: %v", actionType, err)
	}
	return result
}

func accountsOf(t *testing.T, doc *document.Document) []Account {
	t.Helper()
	st, _ := doc.State(action.ScopeGlobal)
	return st.(*State).Accounts
}

func TestSchemasCoverEveryAction(t *testing.T) {
	schemas, err := Schemas()
	if err != nil {
		t.Fatalf("schemas: %v", err)
	}
	for _, actionType := range []action.Type{actionTypeAddAccount, actionTypeUpdateAccount, actionTypeDeleteAccount, actionTypeUpdateKycStatus} {
		if _, ok := schemas[actionType]; !ok {
			t.Fatalf("missing schema for %s", actionType)
		}
	}
}

func TestAddAccount(t *testing.T) {
	docType, doc := newDocument(t)
	result := apply(t, docType, doc, actionTypeAddAccount, map[string]any{
		"id":      "ops",
		"account": "0xABCDEFabcdef0000000000000000000000000000",
		"name":    " Operations ",
		"type":    "Source",
		"owners":  []string{"alice "},
		"chain":   []string{"Base"},
	})
	if result.Rejected() {
		t.Fatalf("unexpected rejection %+v", result.Operation.Error)
	}
	accounts := accountsOf(t, result.Document)
	if len(accounts) != 1 {
		t.Fatalf("expected one account, got %d", len(accounts))
	}
	got := accounts[0]
	if got.Account != "0xabcdefabcdef0000000000000000000000000000" || got.Name != "Operations" || got.Owners[0] != "alice" {
		t.Fatalf("expected normalized account, got %+v", got)
	}
	if len(result.Signals) != 1 || result.Signals[0].Type != signalTypeAccountAdded {
		t.Fatalf("expected account_added signal, got %+v", result.Signals)
	}
}

func TestAddAccountValidation(t *testing.T) {
	docType, _ := newDocument(t)
	_, err := docType.Actions.Create(actionTypeAddAccount, map[string]any{
		"account": "not-an-address",
		"type":    "Savings",
		"color":   "blue",
	}, "")
	var verr *action.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"id", "name", "account", "type", "color"} {
		if !verr.Has(field) {
			t.Fatalf("expected violation for %s, got %+v", field, verr.Fields)
		}
	}
}

func TestDomainRejections(t *testing.T) {
	docType, doc := newDocument(t)
	doc = apply(t, docType, doc, actionTypeAddAccount, map[string]any{"id": "a", "account": addressA, "name": "A"}).Document

	tests := []struct {
		name       string
		actionType action.Type
		input      map[string]any
		wantCode   string
	}{
		{"duplicate id", actionTypeAddAccount, map[string]any{"id": "a", "account": addressB, "name": "A2"}, rejectionCodeDuplicateAccount},
		{"duplicate address", actionTypeAddAccount, map[string]any{"id": "b", "account": addressA, "name": "B"}, rejectionCodeDuplicateAccountAddress},
		{"update missing", actionTypeUpdateAccount, map[string]any{"id": "zz", "name": "Z"}, rejectionCodeAccountNotFound},
		{"delete missing", actionTypeDeleteAccount, map[string]any{"id": "zz"}, rejectionCodeAccountNotFound},
		{"kyc missing", actionTypeUpdateKycStatus, map[string]any{"id": "zz", "kycAmlStatus": "PASSED"}, rejectionCodeAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := apply(t, docType, doc, tt.actionType, tt.input)
			if result.Operation.ErrorCode() != tt.wantCode {
				t.Fatalf("error code = %q, want %q", result.Operation.ErrorCode(), tt.wantCode)
			}
			if len(accountsOf(t, result.Document)) != 1 {
				t.Fatal("state changed on rejection")
			}
		})
	}
}

func TestUpdateDeleteAndKyc(t *testing.T) {
	docType, doc := newDocument(t)
	doc = apply(t, docType, doc, actionTypeAddAccount, map[string]any{"id": "a", "account": addressA, "name": "A", "owners": []string{"x"}}).Document
	doc = apply(t, docType, doc, actionTypeAddAccount, map[string]any{"id": "b", "account": addressB, "name": "B"}).Document

	conflict := apply(t, docType, doc, actionTypeUpdateAccount, map[string]any{"id": "b", "account": addressA})
	if conflict.Operation.ErrorCode() != rejectionCodeDuplicateAccountAddress {
		t.Fatalf("expected address conflict, got %+v", conflict.Operation.Error)
	}

	doc = apply(t, docType, doc, actionTypeUpdateAccount, map[string]any{"id": "a", "name": "Alpha"}).Document
	doc = apply(t, docType, doc, actionTypeUpdateKycStatus, map[string]any{"id": "a", "kycAmlStatus": "PASSED"}).Document
	accounts := accountsOf(t, doc)
	if accounts[0].Name != "Alpha" || accounts[0].KycAmlStatus != "PASSED" || accounts[0].Owners[0] != "x" {
		t.Fatalf("unexpected account after update %+v", accounts[0])
	}

	deleted := apply(t, docType, doc, actionTypeDeleteAccount, map[string]any{"id": "a"})
	accounts = accountsOf(t, deleted.Document)
	if len(accounts) != 1 || accounts[0].ID != "b" {
		t.Fatalf("expected only b to remain, got %+v", accounts)
	}
	if len(deleted.Signals) != 1 || deleted.Signals[0].Type != signalTypeAccountDeleted {
		t.Fatalf("expected account_deleted signal, got %+v", deleted.Signals)
	}

	restored, err := document.Rehydrate(docType, deleted.Document.Log().Map())
	if err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	want, _ := deleted.Document.StateHash(action.ScopeGlobal)
	got, _ := restored.StateHash(action.ScopeGlobal)
	if want != got {
		t.Fatalf("rehydrated state diverged: %s != %s", got, want)
	}
}

func TestUpdateAccountRequiresAChange(t *testing.T) {
	docType, _ := newDocument(t)
	_, err := docType.Actions.Create(actionTypeUpdateAccount, map[string]any{"id": "a"}, "")
	var verr *action.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
