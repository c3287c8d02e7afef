package doctypes

import (
	"errors"
	"slices"
	"testing"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/doctypes/accounts"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/doctypes/expensereport"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/doctypes/invoice"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/document"
)

func TestNewRegistryHoldsBuiltins(t *testing.T) {
	registry, err := NewRegistry()
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	want := []string{accounts.TypeName, expensereport.TypeName, invoice.TypeName}
	slices.Sort(want)
	if got := registry.Names(); !slices.Equal(got, want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for _, name := range want {
		docType, err := registry.Lookup(name)
		if err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
		if _, err := document.Create(docType); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	registry := document.NewRegistry()
	if err := Register(registry); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(registry); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestRegisterRequiresRegistry(t *testing.T) {
	if err := Register(nil); err == nil {
		t.Fatal("expected error")
	}
	if _, err := document.NewRegistry().Lookup("powerhouse/unknown"); !errors.Is(err, document.ErrTypeUnknown) {
		t.Fatalf("expected ErrTypeUnknown, got %v", err)
	}
}
