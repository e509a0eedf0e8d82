// Package tools collects the concrete tool catalog implementations; each
// sub-package implements toolexec.Tool for one tool, and this package
// provides the shared JSON Schema parameter validation that each tool with a
// static parameter schema runs before doing its work.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/fa-sharp/rschat-relay/internal/relayerr"
)

// ValidateParams checks params against schemaJSON, returning a
// relayerr-wrapped InvalidParameters error on any schema violation or
// malformed input, grounded on the teacher's registry payload-validation
// helper (santhosh-tekuri/jsonschema/v6 compile-then-validate).
func ValidateParams(schemaJSON, params json.RawMessage) error {
	if len(schemaJSON) == 0 {
		return nil
	}
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return relayerr.Wrap(relayerr.InvalidParameters, "unmarshal schema", err)
	}
	var paramsDoc any
	if err := json.Unmarshal(params, &paramsDoc); err != nil {
		return relayerr.Wrap(relayerr.InvalidParameters, "unmarshal parameters", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return relayerr.Wrap(relayerr.InvalidParameters, "add schema resource", err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return relayerr.Wrap(relayerr.InvalidParameters, "compile schema", err)
	}
	if err := schema.Validate(paramsDoc); err != nil {
		return relayerr.Wrap(relayerr.InvalidParameters, fmt.Sprintf("parameters failed validation: %v", err), err)
	}
	return nil
}
