package accounts

import "strings"

// AddAccountInput captures the ADD_ACCOUNT input.
type AddAccountInput struct {
	ID           string   `json:"id"`
	Account      string   `json:"account"`
	Name         string   `json:"name"`
	Budget       string   `json:"budget,omitempty"`
	Type         string   `json:"type,omitempty"`
	KycAmlStatus string   `json:"kycAmlStatus,omitempty"`
	Owners       []string `json:"owners,omitempty"`
	Chain        []string `json:"chain,omitempty"`
}

// Normalize trims text fields and lowercases the address.
func (in AddAccountInput) Normalize() AddAccountInput {
	in.ID = strings.TrimSpace(in.ID)
	in.Account = strings.ToLower(strings.TrimSpace(in.Account))
	in.Name = strings.TrimSpace(in.Name)
	in.Budget = strings.TrimSpace(in.Budget)
	in.Owners = trimAll(in.Owners)
	return in
}

// UpdateAccountInput captures the UPDATE_ACCOUNT input. Omitted fields keep
// their current value.
type UpdateAccountInput struct {
	ID      string   `json:"id"`
	Account string   `json:"account,omitempty"`
	Name    string   `json:"name,omitempty"`
	Budget  string   `json:"budget,omitempty"`
	Type    string   `json:"type,omitempty"`
	Owners  []string `json:"owners,omitempty"`
	Chain   []string `json:"chain,omitempty"`
}

// Normalize trims text fields and lowercases the address.
func (in UpdateAccountInput) Normalize() UpdateAccountInput {
	in.ID = strings.TrimSpace(in.ID)
	in.Account = strings.ToLower(strings.TrimSpace(in.Account))
	in.Name = strings.TrimSpace(in.Name)
	in.Budget = strings.TrimSpace(in.Budget)
	in.Owners = trimAll(in.Owners)
	return in
}

// DeleteAccountInput captures the DELETE_ACCOUNT input.
type DeleteAccountInput struct {
	ID string `json:"id"`
}

// UpdateKycStatusInput captures the UPDATE_KYC_STATUS input.
type UpdateKycStatusInput struct {
	ID           string `json:"id"`
	KycAmlStatus string `json:"kycAmlStatus"`
}

// AccountAddedPayload is the accounts.account_added signal payload.
type AccountAddedPayload struct {
	ID      string `json:"id"`
	Account string `json:"account"`
}

// AccountDeletedPayload is the accounts.account_deleted signal payload.
type AccountDeletedPayload struct {
	ID      string `json:"id"`
	Account string `json:"account"`
}

func trimAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
