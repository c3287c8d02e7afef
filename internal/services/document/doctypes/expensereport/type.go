package expensereport

import (
	"errors"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/document"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/reducer"
)

// TypeName identifies the expense report document type.
const TypeName = "powerhouse/expense-report"

const (
	actionTypeAddWallet             action.Type = "ADD_WALLET"
	actionTypeRemoveWallet          action.Type = "REMOVE_WALLET"
	actionTypeAddLineItem           action.Type = "ADD_LINE_ITEM"
	actionTypeUpdateLineItem        action.Type = "UPDATE_LINE_ITEM"
	actionTypeRemoveLineItem        action.Type = "REMOVE_LINE_ITEM"
	actionTypeAddBillingStatement   action.Type = "ADD_BILLING_STATEMENT"
	actionTypeSetPeriod             action.Type = "SET_PERIOD"
	actionTypeSetStatus             action.Type = "SET_STATUS"
	actionTypeSetDisplayPreferences action.Type = "SET_DISPLAY_PREFERENCES"
)

// RegisterActions registers the expense report action vocabulary.
func RegisterActions(registry *action.Registry) error {
	if registry == nil {
		return errors.New("action registry is required")
	}
	global := []action.Scope{action.ScopeGlobal}
	for _, def := range []action.Definition{
		{Type: actionTypeAddWallet, Scopes: global, Input: action.StructInput[AddWalletInput]()},
		{Type: actionTypeRemoveWallet, Scopes: global, Input: action.StructInput[RemoveWalletInput]()},
		{Type: actionTypeAddLineItem, Scopes: global, Input: action.StructInput[AddLineItemInput]()},
		{Type: actionTypeUpdateLineItem, Scopes: global, Input: action.StructInput[UpdateLineItemInput]()},
		{Type: actionTypeRemoveLineItem, Scopes: global, Input: action.StructInput[RemoveLineItemInput]()},
		{Type: actionTypeAddBillingStatement, Scopes: global, Input: action.StructInput[AddBillingStatementInput]()},
		{Type: actionTypeSetPeriod, Scopes: global, Input: action.StructInput[SetPeriodInput]()},
		{Type: actionTypeSetStatus, Scopes: global, Input: action.StructInput[SetStatusInput]()},
		{Type: actionTypeSetDisplayPreferences, Scopes: []action.Scope{action.ScopeLocal}, Input: action.StructInput[SetDisplayPreferencesInput]()},
	} {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// NewType builds the expense report document type.
func NewType() (*document.Type, error) {
	actions := action.NewRegistry()
	if err := RegisterActions(actions); err != nil {
		return nil, err
	}
	return &document.Type{
		Name:    TypeName,
		Actions: actions,
		Reducer: reducer.Scoped{
			action.ScopeGlobal: reducer.Func(Reduce),
			action.ScopeLocal:  reducer.Func(ReducePreferences),
		},
		Scopes: map[action.Scope]func() reducer.State{
			action.ScopeGlobal: NewState,
			action.ScopeLocal:  NewPreferences,
		},
	}, nil
}
