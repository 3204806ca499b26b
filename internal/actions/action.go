package actions

import (
	"context"
	"encoding/json"

	"github.com/rendis/stepflow/pkg/schema"
)

// Action is an operation of the module catalogue. Behavior is static: it
// tells the navigator whether the action opens, splits or closes a block.
type Action interface {
	Name() string
	Schema() ActionSchema
	Behavior() schema.BlockBehavior
	Execute(ctx context.Context, inv *Invocation) (Result, error)
	Validate(params map[string]any) error
}

// ActionRegistry manages the lifecycle and lookup of available actions.
type ActionRegistry interface {
	Register(action Action) error
	Get(name string) (Action, error)
	List() []ActionInfo
}

// ActionSchema describes the input/output contract of an action.
type ActionSchema struct {
	InputSchema  json.RawMessage `json:"input_schema,omitempty"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`
	Description  string          `json:"description,omitempty"`
}

// ActionInfo is a summary of a registered action for listing.
type ActionInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Block       string `json:"block,omitempty"`
	Pairing     string `json:"pairing,omitempty"`
}

// plain is embedded by actions that take part in no block.
type plain struct{}

func (plain) Behavior() schema.BlockBehavior { return schema.NoBlock }
