package web

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// actionSchema constrains POST /api/director/action bodies.
const actionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"group": {"type": "string", "enum": ["arm", "loco", "locomotion"]},
		"type":  {"type": "string", "enum": ["arm", "loco", "locomotion"]},
		"name":  {"type": "string", "minLength": 1},
		"id":    {"type": "integer", "minimum": 0},
		"desc":  {"type": "string"}
	},
	"anyOf": [
		{"required": ["name"]},
		{"required": ["id"]}
	],
	"additionalProperties": false
}`

const actionSchemaURL = "director_action.json"

func compileActionSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(actionSchemaURL, strings.NewReader(actionSchema)); err != nil {
		panic(fmt.Sprintf("web: add action schema: %v", err))
	}
	return c.MustCompile(actionSchemaURL)
}

var directorActionSchema = compileActionSchema()

// validateAction checks raw against the action schema.
func validateAction(raw []byte) error {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return directorActionSchema.Validate(payload)
}
