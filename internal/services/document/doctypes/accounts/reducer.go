package accounts

import (
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/reducer"
)

const (
	rejectionCodeDuplicateAccount        = "DUPLICATE_ACCOUNT"
	rejectionCodeAccountNotFound         = "ACCOUNT_NOT_FOUND"
	rejectionCodeDuplicateAccountAddress = "DUPLICATE_ACCOUNT_ADDRESS"

	signalTypeAccountAdded   = "accounts.account_added"
	signalTypeAccountDeleted = "accounts.account_deleted"
)

// Reduce applies an accounts action to a scratch global state.
func Reduce(_ action.Scope, scratch reducer.State, act action.Action) (reducer.Reduction, error) {
	state, err := reducer.AssertState[*State](scratch)
	if err != nil {
		return reducer.Reduction{}, err
	}

	switch in := act.Payload().(type) {
	case AddAccountInput:
		if state.indexByID(in.ID) >= 0 {
			return reducer.Rejectf(rejectionCodeDuplicateAccount, "account %s already exists", in.ID), nil
		}
		if state.indexByAddress(in.Account) >= 0 {
			return reducer.Rejectf(rejectionCodeDuplicateAccountAddress, "address %s is already registered", in.Account), nil
		}
		state.Accounts = append(state.Accounts, Account{
			ID:           in.ID,
			Account:      in.Account,
			Name:         in.Name,
			Budget:       in.Budget,
			Type:         in.Type,
			KycAmlStatus: in.KycAmlStatus,
			Owners:       append([]string{}, in.Owners...),
			Chain:        append([]string{}, in.Chain...),
		})
		return reducer.Emit(signalTypeAccountAdded, AccountAddedPayload{ID: in.ID, Account: in.Account})

	case UpdateAccountInput:
		idx := state.indexByID(in.ID)
		if idx < 0 {
			return reducer.Rejectf(rejectionCodeAccountNotFound, "account %s not found", in.ID), nil
		}
		if in.Account != "" {
			if other := state.indexByAddress(in.Account); other >= 0 && other != idx {
				return reducer.Rejectf(rejectionCodeDuplicateAccountAddress, "address %s is already registered", in.Account), nil
			}
		}
		acc := &state.Accounts[idx]
		if in.Account != "" {
			acc.Account = in.Account
		}
		if in.Name != "" {
			acc.Name = in.Name
		}
		if in.Budget != "" {
			acc.Budget = in.Budget
		}
		if in.Type != "" {
			acc.Type = in.Type
		}
		if in.Owners != nil {
			acc.Owners = append([]string{}, in.Owners...)
		}
		if in.Chain != nil {
			acc.Chain = append([]string{}, in.Chain...)
		}
		return reducer.Accept(), nil

	case DeleteAccountInput:
		idx := state.indexByID(in.ID)
		if idx < 0 {
			return reducer.Rejectf(rejectionCodeAccountNotFound, "account %s not found", in.ID), nil
		}
		removed := state.Accounts[idx]
		state.Accounts = append(state.Accounts[:idx], state.Accounts[idx+1:]...)
		return reducer.Emit(signalTypeAccountDeleted, AccountDeletedPayload{ID: removed.ID, Account: removed.Account})

	case UpdateKycStatusInput:
		idx := state.indexByID(in.ID)
		if idx < 0 {
			return reducer.Rejectf(rejectionCodeAccountNotFound, "account %s not found", in.ID), nil
		}
		state.Accounts[idx].KycAmlStatus = in.KycAmlStatus
		return reducer.Accept(), nil

	default:
		return reducer.Reduction{}, reducer.Unknown(act)
	}
}
