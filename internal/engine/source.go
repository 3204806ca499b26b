package engine

import (
	"context"

	"github.com/rendis/stepflow/internal/store"
	"github.com/rendis/stepflow/pkg/schema"
)

// WorkflowSource resolves workflow definitions by id for workflow.call.
type WorkflowSource interface {
	Workflow(ctx context.Context, id string) (*schema.WorkflowDefinition, error)
}

// MapSource is an in-memory WorkflowSource.
type MapSource map[string]*schema.WorkflowDefinition

func (m MapSource) Workflow(_ context.Context, id string) (*schema.WorkflowDefinition, error) {
	def, ok := m[id]
	if !ok || def == nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", id)
	}
	return def, nil
}

// Add registers definitions under their own ids.
func (m MapSource) Add(defs ...*schema.WorkflowDefinition) MapSource {
	for _, def := range defs {
		m[def.ID] = def
	}
	return m
}

// StoreSource reads workflow definitions from a Store.
type StoreSource struct {
	Store store.Store
}

func (s StoreSource) Workflow(ctx context.Context, id string) (*schema.WorkflowDefinition, error) {
	wf, err := s.Store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	def := wf.Definition
	if def.ID == "" {
		def.ID = wf.ID
	}
	return &def, nil
}

// ChainSource asks each source in turn and returns the first definition
// found. Errors other than NOT_FOUND stop the search.
type ChainSource []WorkflowSource

func (c ChainSource) Workflow(ctx context.Context, id string) (*schema.WorkflowDefinition, error) {
	for _, src := range c {
		def, err := src.Workflow(ctx, id)
		if err == nil {
			return def, nil
		}
		if schema.CodeOf(err) != schema.ErrCodeNotFound {
			return nil, err
		}
	}
	return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", id)
}
