package invoice

import (
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/reducer"
)

const (
	rejectionCodeDuplicateLineItem       = "DUPLICATE_LINE_ITEM"
	rejectionCodeLineItemNotFound        = "LINE_ITEM_NOT_FOUND"
	rejectionCodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	rejectionCodeInvoiceLocked           = "INVOICE_LOCKED"

	signalTypeStatusChanged = "invoice.status_changed"
)

// Reduce applies an invoice action to a scratch global state.
func Reduce(_ action.Scope, scratch reducer.State, act action.Action) (reducer.Reduction, error) {
	state, err := reducer.AssertState[*State](scratch)
	if err != nil {
		return reducer.Reduction{}, err
	}

	switch in := act.Payload().(type) {
	case EditStatusInput:
		return editStatus(state, in)
	case EditInvoiceInput, EditIssuerInput, EditPayerInput, AddLineItemInput, EditLineItemInput, DeleteLineItemInput:
		if state.Status != StatusDraft {
			return reducer.Rejectf(rejectionCodeInvoiceLocked, "invoice is %s and can no longer be edited", state.Status), nil
		}
		return editContent(state, in), nil
	default:
		return reducer.Reduction{}, reducer.Unknown(act)
	}
}

func editStatus(state *State, in EditStatusInput) (reducer.Reduction, error) {
	from := state.Status
	if !CanTransition(from, in.Status) {
		return reducer.Rejectf(rejectionCodeInvalidStatusTransition, "cannot move invoice from %s to %s", from, in.Status), nil
	}
	state.Status = in.Status
	return reducer.Emit(signalTypeStatusChanged, StatusChangedPayload{
		InvoiceNo: state.InvoiceNo,
		From:      from,
		To:        in.Status,
		Total:     state.TotalPriceTaxIncl,
		Currency:  state.Currency,
	})
}

func editContent(state *State, payload any) reducer.Reduction {
	switch in := payload.(type) {
	case EditInvoiceInput:
		setIf(&state.InvoiceNo, in.InvoiceNo)
		setIf(&state.DateIssued, in.DateIssued)
		setIf(&state.DateDue, in.DateDue)
		setIf(&state.Currency, in.Currency)
	case EditIssuerInput:
		mergeEntity(&state.Issuer, EditLegalEntityInput(in))
	case EditPayerInput:
		mergeEntity(&state.Payer, EditLegalEntityInput(in))
	case AddLineItemInput:
		if state.lineItem(in.ID) >= 0 {
			return reducer.Rejectf(rejectionCodeDuplicateLineItem, "line item %s already exists", in.ID)
		}
		state.LineItems = append(state.LineItems, LineItem{
			ID:               in.ID,
			Description:      in.Description,
			Quantity:         in.Quantity,
			UnitPriceTaxExcl: in.UnitPriceTaxExcl,
			TaxPercent:       in.TaxPercent,
		})
		state.recompute()
	case EditLineItemInput:
		idx := state.lineItem(in.ID)
		if idx < 0 {
			return reducer.Rejectf(rejectionCodeLineItemNotFound, "line item %s not found", in.ID)
		}
		item := &state.LineItems[idx]
		setIf(&item.Description, in.Description)
		if in.Quantity != nil {
			item.Quantity = *in.Quantity
		}
		if in.UnitPriceTaxExcl != nil {
			item.UnitPriceTaxExcl = *in.UnitPriceTaxExcl
		}
		if in.TaxPercent != nil {
			item.TaxPercent = *in.TaxPercent
		}
		state.recompute()
	case DeleteLineItemInput:
		idx := state.lineItem(in.ID)
		if idx < 0 {
			return reducer.Rejectf(rejectionCodeLineItemNotFound, "line item %s not found", in.ID)
		}
		state.LineItems = append(state.LineItems[:idx], state.LineItems[idx+1:]...)
		state.recompute()
	}
	return reducer.Accept()
}

func mergeEntity(target *LegalEntity, in EditLegalEntityInput) {
	setIf(&target.Name, in.Name)
	setIf(&target.Address, in.Address)
	setIf(&target.TaxID, in.TaxID)
	setIf(&target.Email, in.Email)
	setIf(&target.Wallet, in.Wallet)
}

func setIf(target *string, value string) {
	if value != "" {
		*target = value
	}
}
