package invoice

import (
	"errors"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/document"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/reducer"
)

// TypeName identifies the invoice document type.
const TypeName = "powerhouse/invoice"

const (
	actionTypeEditInvoice    action.Type = "EDIT_INVOICE"
	actionTypeEditIssuer     action.Type = "EDIT_ISSUER"
	actionTypeEditPayer      action.Type = "EDIT_PAYER"
	actionTypeEditStatus     action.Type = "EDIT_STATUS"
	actionTypeAddLineItem    action.Type = "ADD_LINE_ITEM"
	actionTypeEditLineItem   action.Type = "EDIT_LINE_ITEM"
	actionTypeDeleteLineItem action.Type = "DELETE_LINE_ITEM"
)

// RegisterActions registers the invoice action vocabulary.
func RegisterActions(registry *action.Registry) error {
	if registry == nil {
		return errors.New("action registry is required")
	}
	for _, def := range []action.Definition{
		{Type: actionTypeEditInvoice, Input: action.StructInput[EditInvoiceInput]()},
		{Type: actionTypeEditIssuer, Input: action.StructInput[EditIssuerInput]()},
		{Type: actionTypeEditPayer, Input: action.StructInput[EditPayerInput]()},
		{Type: actionTypeEditStatus, Input: action.StructInput[EditStatusInput]()},
		{Type: actionTypeAddLineItem, Input: action.StructInput[AddLineItemInput]()},
		{Type: actionTypeEditLineItem, Input: action.StructInput[EditLineItemInput]()},
		{Type: actionTypeDeleteLineItem, Input: action.StructInput[DeleteLineItemInput]()},
	} {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// NewType builds the invoice document type.
func NewType() (*document.Type, error) {
	actions := action.NewRegistry()
	if err := RegisterActions(actions); err != nil {
		return nil, err
	}
	return &document.Type{
		Name:    TypeName,
		Actions: actions,
		Reducer: reducer.Func(Reduce),
		Scopes: map[action.Scope]func() reducer.State{
			action.ScopeGlobal: NewState,
		},
	}, nil
}
