// Package doctypes wires the contributor billing document types into a
// document registry.
package doctypes

import (
	"errors"
	"fmt"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/doctypes/accounts"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/doctypes/expensereport"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/doctypes/invoice"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/document"
)

var builders = []func() (*document.Type, error){
	accounts.NewType,
	invoice.NewType,
	expensereport.NewType,
}

// Register adds every built-in document type to registry.
func Register(registry *document.Registry) error {
	if registry == nil {
		return errors.New("document registry is required")
	}
	for _, build := range builders {
		t, err := build()
		if err != nil {
			return fmt.Errorf("build document type: %w", err)
		}
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("register %s: %w", t.Name, err)
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in document types.
func NewRegistry() (*document.Registry, error) {
	registry := document.NewRegistry()
	if err := Register(registry); err != nil {
		return nil, err
	}
	return registry, nil
}
