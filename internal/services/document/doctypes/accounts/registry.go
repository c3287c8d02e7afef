package accounts

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/powerhouse-inc/contributor-billing/internal/services/document/domain/action"
)

const (
	actionTypeAddAccount      action.Type = "ADD_ACCOUNT"
	actionTypeUpdateAccount   action.Type = "UPDATE_ACCOUNT"
	actionTypeDeleteAccount   action.Type = "DELETE_ACCOUNT"
	actionTypeUpdateKycStatus action.Type = "UPDATE_KYC_STATUS"
)

//go:embed schemas.yaml
var schemaCatalog []byte

type catalog struct {
	Actions map[string]any `yaml:"actions"`
}

// Schemas returns the JSON schema of every action, keyed by action type.
func Schemas() (map[action.Type][]byte, error) {
	var c catalog
	if err := yaml.Unmarshal(schemaCatalog, &c); err != nil {
		return nil, fmt.Errorf("parse schema catalog: %w", err)
	}
	out := make(map[action.Type][]byte, len(c.Actions))
	for name, schema := range c.Actions {
		data, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("encode %s schema: %w", name, err)
		}
		out[action.Type(name)] = data
	}
	return out, nil
}

// RegisterActions registers the accounts action vocabulary.
func RegisterActions(registry *action.Registry) error {
	if registry == nil {
		return errors.New("action registry is required")
	}
	schemas, err := Schemas()
	if err != nil {
		return err
	}
	defs := []struct {
		actionType action.Type
		build      func(string, []byte) (action.Validator, error)
	}{
		{actionTypeAddAccount, action.SchemaInput[AddAccountInput]},
		{actionTypeUpdateAccount, action.SchemaInput[UpdateAccountInput]},
		{actionTypeDeleteAccount, action.SchemaInput[DeleteAccountInput]},
		{actionTypeUpdateKycStatus, action.SchemaInput[UpdateKycStatusInput]},
	}
	for _, def := range defs {
		schema, ok := schemas[def.actionType]
		if !ok {
			return fmt.Errorf("schema catalog has no entry for %s", def.actionType)
		}
		validator, err := def.build(string(def.actionType), schema)
		if err != nil {
			return err
		}
		if err := registry.Register(action.Definition{
			Type:   def.actionType,
			Scopes: []action.Scope{action.ScopeGlobal},
			Input:  validator,
		}); err != nil {
			return err
		}
	}
	return nil
}
