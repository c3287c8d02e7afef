package expensereport

import (
	"math"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/reducer"
)

const (
	rejectionCodeDuplicateWallet           = "DUPLICATE_WALLET"
	rejectionCodeWalletNotFound            = "WALLET_NOT_FOUND"
	rejectionCodeDuplicateLineItem         = "DUPLICATE_LINE_ITEM"
	rejectionCodeLineItemNotFound          = "LINE_ITEM_NOT_FOUND"
	rejectionCodeDuplicateBillingStatement = "DUPLICATE_BILLING_STATEMENT"
	rejectionCodeInvalidPeriod             = "INVALID_PERIOD"

	signalTypeBillingStatementLinked = "expense_report.billing_statement_linked"
	signalTypeFinalized              = "expense_report.finalized"
)

// Reduce applies a global expense report action.
func Reduce(_ action.Scope, scratch reducer.State, act action.Action) (reducer.Reduction, error) {
	state, err := reducer.AssertState[*State](scratch)
	if err != nil {
		return reducer.Reduction{}, err
	}

	switch in := act.Payload().(type) {
	case AddWalletInput:
		if state.wallet(in.Wallet) >= 0 {
			return reducer.Rejectf(rejectionCodeDuplicateWallet, "wallet %s is already in the report", in.Wallet), nil
		}
		state.Wallets = append(state.Wallets, Wallet{
			Wallet:            in.Wallet,
			Name:              in.Name,
			LineItems:         []LineItem{},
			BillingStatements: []string{},
		})
		return reducer.Accept(), nil

	case RemoveWalletInput:
		idx := state.wallet(in.Wallet)
		if idx < 0 {
			return walletNotFound(in.Wallet), nil
		}
		state.Wallets = append(state.Wallets[:idx], state.Wallets[idx+1:]...)
		return reducer.Accept(), nil

	case AddLineItemInput:
		idx := state.wallet(in.Wallet)
		if idx < 0 {
			return walletNotFound(in.Wallet), nil
		}
		w := &state.Wallets[idx]
		if w.lineItem(in.ID) >= 0 {
			return reducer.Rejectf(rejectionCodeDuplicateLineItem, "line item %s already exists in wallet %s", in.ID, in.Wallet), nil
		}
		w.LineItems = append(w.LineItems, LineItem{
			ID:       in.ID,
			Label:    in.Label,
			Group:    in.Group,
			Budget:   in.Budget,
			Actuals:  in.Actuals,
			Forecast: in.Forecast,
			Payments: in.Payments,
			Comments: in.Comments,
		})
		return reducer.Accept(), nil

	case UpdateLineItemInput:
		item, rejection := findLineItem(state, in.Wallet, in.ID)
		if rejection != nil {
			return *rejection, nil
		}
		if in.Label != nil {
			item.Label = *in.Label
		}
		if in.Group != nil {
			item.Group = *in.Group
		}
		if in.Budget != nil {
			item.Budget = *in.Budget
		}
		if in.Actuals != nil {
			item.Actuals = *in.Actuals
		}
		if in.Forecast != nil {
			item.Forecast = *in.Forecast
		}
		if in.Payments != nil {
			item.Payments = *in.Payments
		}
		if in.Comments != nil {
			item.Comments = *in.Comments
		}
		return reducer.Accept(), nil

	case RemoveLineItemInput:
		idx := state.wallet(in.Wallet)
		if idx < 0 {
			return walletNotFound(in.Wallet), nil
		}
		w := &state.Wallets[idx]
		itemIdx := w.lineItem(in.ID)
		if itemIdx < 0 {
			return lineItemNotFound(in.Wallet, in.ID), nil
		}
		w.LineItems = append(w.LineItems[:itemIdx], w.LineItems[itemIdx+1:]...)
		return reducer.Accept(), nil

	case AddBillingStatementInput:
		idx := state.wallet(in.Wallet)
		if idx < 0 {
			return walletNotFound(in.Wallet), nil
		}
		w := &state.Wallets[idx]
		for _, existing := range w.BillingStatements {
			if existing == in.BillingStatementID {
				return reducer.Rejectf(rejectionCodeDuplicateBillingStatement, "billing statement %s is already linked", in.BillingStatementID), nil
			}
		}
		w.BillingStatements = append(w.BillingStatements, in.BillingStatementID)
		return reducer.Emit(signalTypeBillingStatementLinked, BillingStatementLinkedPayload{
			Wallet:             in.Wallet,
			BillingStatementID: in.BillingStatementID,
		})

	case SetPeriodInput:
		// ISO dates order lexicographically.
		if in.PeriodEnd < in.PeriodStart {
			return reducer.Rejectf(rejectionCodeInvalidPeriod, "period ends %s before it starts %s", in.PeriodEnd, in.PeriodStart), nil
		}
		state.PeriodStart = in.PeriodStart
		state.PeriodEnd = in.PeriodEnd
		return reducer.Accept(), nil

	case SetStatusInput:
		previous := state.Status
		state.Status = in.Status
		if in.Status != StatusFinal || previous == StatusFinal {
			return reducer.Accept(), nil
		}
		var actuals float64
		for _, w := range state.Wallets {
			actuals += w.Totals().Actuals
		}
		return reducer.Emit(signalTypeFinalized, FinalizedPayload{
			PeriodStart: state.PeriodStart,
			PeriodEnd:   state.PeriodEnd,
			Wallets:     len(state.Wallets),
			Actuals:     math.Round(actuals*100) / 100,
		})

	default:
		return reducer.Reduction{}, reducer.Unknown(act)
	}
}

// ReducePreferences applies a local display preferences action.
func ReducePreferences(_ action.Scope, scratch reducer.State, act action.Action) (reducer.Reduction, error) {
	prefs, err := reducer.AssertState[*Preferences](scratch)
	if err != nil {
		return reducer.Reduction{}, err
	}
	switch in := act.Payload().(type) {
	case SetDisplayPreferencesInput:
		if in.Currency != "" {
			prefs.Currency = in.Currency
		}
		if in.ShowForecast != nil {
			prefs.ShowForecast = *in.ShowForecast
		}
		if in.Collapsed != nil {
			prefs.Collapsed = append([]string{}, in.Collapsed...)
		}
		return reducer.Accept(), nil
	default:
		return reducer.Reduction{}, reducer.Unknown(act)
	}
}

func findLineItem(state *State, wallet, id string) (*LineItem, *reducer.Reduction) {
	idx := state.wallet(wallet)
	if idx < 0 {
		r := walletNotFound(wallet)
		return nil, &r
	}
	w := &state.Wallets[idx]
	itemIdx := w.lineItem(id)
	if itemIdx < 0 {
		r := lineItemNotFound(wallet, id)
		return nil, &r
	}
	return &w.LineItems[itemIdx], nil
}

func walletNotFound(wallet string) reducer.Reduction {
	return reducer.Rejectf(rejectionCodeWalletNotFound, "wallet %s is not in the report", wallet)
}

func lineItemNotFound(wallet, id string) reducer.Reduction {
	return reducer.Rejectf(rejectionCodeLineItemNotFound, "line item %s not found in wallet %s", id, wallet)
}
