package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/stepflow/internal/value"
	"github.com/rendis/stepflow/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedWorkflow(t *testing.T, s *LibSQLStore) *Workflow {
	t.Helper()
	wf := &Workflow{
		ID:   uuid.New().String(),
		Name: "test-workflow",
		Definition: schema.WorkflowDefinition{
			Steps: []schema.StepDefinition{
				{ID: "s1", Action: "variable.set", Params: map[string]any{"name": "x", "value": "a"}},
			},
		},
	}
	require.NoError(t, s.SaveWorkflow(context.Background(), wf))
	return wf
}

func requireNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

// --- Migrations ---

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))

	var count int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- comment only;\nCREATE TABLE a (x INT);\n\nCREATE INDEX i ON a (x);\n")
	assert.Len(t, stmts, 2)
}

// --- Workflows ---

func TestSaveAndGetWorkflow(t *testing.T) {
	s := newTestStore(t)
	wf := seedWorkflow(t, s)

	got, err := s.GetWorkflow(context.Background(), wf.ID)
	require.NoError(t, err)
	assert.Equal(t, wf.ID, got.ID)
	assert.Equal(t, "test-workflow", got.Name)
	require.Len(t, got.Definition.Steps, 1)
	assert.Equal(t, "variable.set", got.Definition.Steps[0].Action)
	assert.Equal(t, "x", got.Definition.Steps[0].Params["name"])
}

func TestSaveWorkflow_UpsertAndDefaultID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	wf := &Workflow{Definition: schema.WorkflowDefinition{ID: "greet", Steps: []schema.StepDefinition{{ID: "a", Action: "flow.log"}}}}
	require.NoError(t, s.SaveWorkflow(ctx, wf))
	assert.Equal(t, "greet", wf.ID)

	wf.Name = "renamed"
	wf.Definition.Steps = append(wf.Definition.Steps, schema.StepDefinition{ID: "b", Action: "flow.log"})
	require.NoError(t, s.SaveWorkflow(ctx, wf))

	got, err := s.GetWorkflow(ctx, "greet")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Len(t, got.Definition.Steps, 2)

	list, err := s.ListWorkflows(ctx, WorkflowFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSaveWorkflow_EmptyID(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveWorkflow(context.Background(), &Workflow{})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestGetWorkflow_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetWorkflow(context.Background(), "nonexistent")
	requireNotFound(t, err)
}

func TestListWorkflows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		seedWorkflow(t, s)
	}

	list, err := s.ListWorkflows(ctx, WorkflowFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	list, err = s.ListWorkflows(ctx, WorkflowFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = s.ListWorkflows(ctx, WorkflowFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDeleteWorkflow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf := seedWorkflow(t, s)
	require.NoError(t, s.SaveVariables(ctx, wf.ID, map[string]value.Value{"x": value.Int(1)}))

	require.NoError(t, s.DeleteWorkflow(ctx, wf.ID))

	_, err := s.GetWorkflow(ctx, wf.ID)
	requireNotFound(t, err)
	vars, err := s.LoadVariables(ctx, wf.ID)
	require.NoError(t, err)
	assert.Empty(t, vars)

	requireNotFound(t, s.DeleteWorkflow(ctx, wf.ID))
}

// --- Variables ---

func TestVariables_RoundTripPreservesKinds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf := seedWorkflow(t, s)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	vars := map[string]value.Value{
		"count":  value.Int(3),
		"ratio":  value.Float(0.5),
		"name":   value.String("ada"),
		"flag":   value.Bool(true),
		"none":   value.Null{},
		"items":  value.List{value.Int(1), value.String("two")},
		"nested": value.Dict{"a": value.Dict{"b": value.Int(2)}},
		"when":   value.Date{T: at},
		"area":   value.Region{X: 1, Y: 2, Width: 30, Height: 40},
	}
	require.NoError(t, s.SaveVariables(ctx, wf.ID, vars))

	got, err := s.LoadVariables(ctx, wf.ID)
	require.NoError(t, err)
	require.Len(t, got, len(vars))
	for name, want := range vars {
		assert.True(t, value.StrictEqual(want, got[name]), "variable %s: want %v got %v", name, want, got[name])
	}
	n, ok := got["count"].(value.Number)
	require.True(t, ok)
	assert.True(t, n.IsIntegral())
}

func TestVariables_SaveReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf := seedWorkflow(t, s)

	require.NoError(t, s.SaveVariables(ctx, wf.ID, map[string]value.Value{"a": value.Int(1), "b": value.Int(2)}))
	require.NoError(t, s.SaveVariables(ctx, wf.ID, map[string]value.Value{"b": value.Int(5)}))

	got, err := s.LoadVariables(ctx, wf.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.True(t, value.StrictEqual(value.Int(5), got["b"]))
}

func TestVariables_ScopedPerWorkflow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveVariables(ctx, "wf-a", map[string]value.Value{"x": value.String("a")}))
	require.NoError(t, s.SaveVariables(ctx, "wf-b", map[string]value.Value{"x": value.String("b")}))

	got, err := s.LoadVariables(ctx, "wf-a")
	require.NoError(t, err)
	assert.Equal(t, value.String("a"), got["x"])
}

// --- Runs ---

func TestCreateAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf := seedWorkflow(t, s)

	run := &Run{
		ID:          uuid.New().String(),
		WorkflowID:  wf.ID,
		ParentRunID: "parent",
		Status:      schema.RunStatusRunning,
	}
	require.NoError(t, s.CreateRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, wf.ID, got.WorkflowID)
	assert.Equal(t, "parent", got.ParentRunID)
	assert.Equal(t, schema.RunStatusRunning, got.Status)
	assert.Nil(t, got.CompletedAt)
	assert.Nil(t, got.ReturnValue)
}

func TestUpdateRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf := seedWorkflow(t, s)

	run := &Run{ID: uuid.New().String(), WorkflowID: wf.ID, Status: schema.RunStatusRunning}
	require.NoError(t, s.CreateRun(ctx, run))

	status := schema.RunStatusReturned
	now := time.Now().UTC()
	require.NoError(t, s.UpdateRun(ctx, run.ID, RunUpdate{
		Status:      &status,
		ReturnValue: json.RawMessage(`{"ok":true}`),
		CompletedAt: &now,
	}))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusReturned, got.Status)
	assert.JSONEq(t, `{"ok":true}`, string(got.ReturnValue))
	assert.NotNil(t, got.CompletedAt)

	assert.NoError(t, s.UpdateRun(ctx, run.ID, RunUpdate{}))
	requireNotFound(t, s.UpdateRun(ctx, "missing", RunUpdate{Status: &status}))
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf := seedWorkflow(t, s)

	base := time.Now().UTC().Add(-time.Hour)
	statuses := []schema.RunStatus{schema.RunStatusCompleted, schema.RunStatusFailed, schema.RunStatusCompleted}
	for i, st := range statuses {
		require.NoError(t, s.CreateRun(ctx, &Run{
			ID:         uuid.New().String(),
			WorkflowID: wf.ID,
			Status:     st,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.CreateRun(ctx, &Run{ID: uuid.New().String(), WorkflowID: "other", Status: schema.RunStatusCompleted}))

	runs, err := s.ListRuns(ctx, RunFilter{WorkflowID: wf.ID})
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	completed := schema.RunStatusCompleted
	runs, err = s.ListRuns(ctx, RunFilter{WorkflowID: wf.ID, Status: &completed})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	requireNotFound(t, err)
}

// --- Scheduled Jobs ---

func TestScheduledJobs_CRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf := seedWorkflow(t, s)

	next := time.Now().UTC().Add(time.Minute)
	job := &ScheduledJob{
		ID:             uuid.New().String(),
		WorkflowID:     wf.ID,
		CronExpression: "*/5 * * * *",
		Variables:      json.RawMessage(`{"region":"eu"}`),
		Enabled:        true,
		NextRunAt:      &next,
	}
	require.NoError(t, s.CreateScheduledJob(ctx, job))

	got, err := s.GetScheduledJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", got.CronExpression)
	assert.True(t, got.Enabled)
	assert.JSONEq(t, `{"region":"eu"}`, string(got.Variables))
	require.NotNil(t, got.NextRunAt)
	assert.Nil(t, got.LastRunAt)

	disabled := false
	now := time.Now().UTC()
	require.NoError(t, s.UpdateScheduledJob(ctx, job.ID, ScheduledJobUpdate{
		Enabled:       &disabled,
		LastRunAt:     &now,
		LastRunStatus: string(schema.RunStatusCompleted),
	}))

	got, err = s.GetScheduledJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, "completed", got.LastRunStatus)
	assert.NotNil(t, got.LastRunAt)

	enabled := true
	jobs, err := s.ListScheduledJobs(ctx, ScheduledJobFilter{Enabled: &enabled})
	require.NoError(t, err)
	assert.Empty(t, jobs)

	jobs, err = s.ListScheduledJobs(ctx, ScheduledJobFilter{WorkflowID: wf.ID})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	require.NoError(t, s.DeleteScheduledJob(ctx, job.ID))
	_, err = s.GetScheduledJob(ctx, job.ID)
	requireNotFound(t, err)
	requireNotFound(t, s.DeleteScheduledJob(ctx, job.ID))
}

func TestVacuum(t *testing.T) {
	s := newTestStore(t)
	seedWorkflow(t, s)
	assert.NoError(t, s.Vacuum(context.Background()))
}
