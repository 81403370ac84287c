// Package monitor checks provider responses against the JSON contracts the
// service depends on, so drift in the remote API shows up in logs and metrics
// before it shows up as a wrong status on an order.
package monitor

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Names of the embedded contracts.
const (
	SchemaCharge           = "charge"
	SchemaChargePermission = "charge_permission"
	SchemaRefund           = "refund"
)

//go:embed schemas/*.json
var embedded embed.FS

// ContractMonitor validates documents against named JSON schemas.
type ContractMonitor struct {
	schemas map[string]*gojsonschema.Schema
}

// NewContractMonitor compiles the embedded provider contracts.
func NewContractMonitor() (*ContractMonitor, error) {
	cm := &ContractMonitor{schemas: make(map[string]*gojsonschema.Schema)}
	for _, name := range []string{SchemaCharge, SchemaChargePermission, SchemaRefund} {
		raw, err := embedded.ReadFile("schemas/" + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("monitor: read embedded schema %s: %w", name, err)
		}
		if err := cm.Load(name, raw); err != nil {
			return nil, err
		}
	}
	return cm, nil
}

// Load compiles schema and registers it under name, replacing any previous one.
func (cm *ContractMonitor) Load(name string, schema []byte) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return fmt.Errorf("monitor: error loading or compiling schema %s: %w", name, err)
	}
	cm.schemas[name] = compiled
	return nil
}

// Validate validates body against the named schema.
// It returns true if valid, or false and a list of validation errors if invalid.
func (cm *ContractMonitor) Validate(name string, body []byte) (bool, []string, error) {
	schema, ok := cm.schemas[name]
	if !ok {
		return false, nil, fmt.Errorf("monitor: unknown schema %q", name)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return false, nil, fmt.Errorf("monitor: error during validation: %w", err)
	}
	if result.Valid() {
		return true, nil, nil
	}

	var errors []string
	for _, desc := range result.Errors() {
		errors = append(errors, desc.String())
	}
	return false, errors, nil
}

// FormatErrors formats a slice of validation error strings into a single string.
func FormatErrors(validationErrors []string) string {
	if len(validationErrors) == 0 {
		return ""
	}
	return "Validation errors: " + strings.Join(validationErrors, "; ")
}
