package accounts

import (
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/document"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/reducer"
)

// TypeName identifies the accounts document type.
const TypeName = "powerhouse/accounts"

// NewType builds the accounts document type.
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
