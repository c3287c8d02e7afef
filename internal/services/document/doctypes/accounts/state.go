package accounts

import (
	"strings"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/reducer"
)

// Account is one billing account.
type Account struct {
	ID           string   `json:"id"`
	Account      string   `json:"account"`
	Name         string   `json:"name"`
	Budget       string   `json:"budget,omitempty"`
	Type         string   `json:"type,omitempty"`
	KycAmlStatus string   `json:"kycAmlStatus,omitempty"`
	Owners       []string `json:"owners"`
	Chain        []string `json:"chain"`
}

// State is the global scope of an accounts document.
type State struct {
	Accounts []Account `json:"accounts"`
}

// NewState returns the default global state.
func NewState() reducer.State {
	return &State{Accounts: []Account{}}
}

// Clone implements reducer.State.
func (s *State) Clone() reducer.State {
	cp := &State{Accounts: make([]Account, len(s.Accounts))}
	for i, a := range s.Accounts {
		a.Owners = append([]string{}, a.Owners...)
		a.Chain = append([]string{}, a.Chain...)
		cp.Accounts[i] = a
	}
	return cp
}

func (s *State) indexByID(id string) int {
	for i, a := range s.Accounts {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (s *State) indexByAddress(address string) int {
	for i, a := range s.Accounts {
		if strings.EqualFold(a.Account, address) {
			return i
		}
	}
	return -1
}
