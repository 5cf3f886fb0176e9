package workflow

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"jobtrack/internal/authz"
	"jobtrack/internal/store"

	"github.com/google/uuid"
)

// fakeTx satisfies store.Tx; the fake store ignores it.
type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (t *fakeTx) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (t *fakeTx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}
func (t *fakeTx) Commit() error   { t.committed = true; return nil }
func (t *fakeTx) Rollback() error { t.rolledBack = true; return nil }

type fakeStore struct {
	jobs    map[uuid.UUID]*store.Job
	records []store.TransitionRecord
	metrics []store.StageMetric
	lastTx  *fakeTx

	// onLock runs after GetJobForUpdate reads the job, to simulate a
	// concurrent writer.
	onLock func(j *store.Job)
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[uuid.UUID]*store.Job)}
}

func (f *fakeStore) BeginTx(context.Context) (store.Tx, error) {
	f.lastTx = &fakeTx{}
	return f.lastTx, nil
}

func (f *fakeStore) GetJobByID(_ context.Context, id uuid.UUID) (*store.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *j
	return &cp, nil
}

func (f *fakeStore) GetJobForUpdate(_ context.Context, _ store.DBTransaction, tenantID, id uuid.UUID) (*store.Job, error) {
	j, ok := f.jobs[id]
	if !ok || j.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	if f.onLock != nil {
		f.onLock(j)
	}
	cp := *j
	return &cp, nil
}

func (f *fakeStore) UpdateJobStage(_ context.Context, _ store.DBTransaction, job *store.Job, expectedVersion int64) error {
	cur, ok := f.jobs[job.ID]
	if !ok || cur.Version != expectedVersion {
		return store.ErrStaleVersion
	}
	updated := *job
	updated.Version = expectedVersion + 1
	f.jobs[job.ID] = &updated
	job.Version = updated.Version
	return nil
}

func (f *fakeStore) AppendTransition(_ context.Context, _ store.DBTransaction, rec *store.TransitionRecord) (int64, error) {
	rec.ID = int64(len(f.records) + 1)
	f.records = append(f.records, *rec)
	return rec.ID, nil
}

func (f *fakeStore) CloseStageMetric(_ context.Context, _ store.DBTransaction, jobID uuid.UUID, exitedAt time.Time) error {
	for i := range f.metrics {
		m := &f.metrics[i]
		if m.JobID == jobID && m.ExitedAt == nil {
			exit := exitedAt
			m.ExitedAt = &exit
			d := int64(exitedAt.Sub(m.EnteredAt).Seconds())
			m.DurationSeconds = &d
		}
	}
	return nil
}

func (f *fakeStore) OpenStageMetric(_ context.Context, _ store.DBTransaction, metric *store.StageMetric) error {
	metric.ID = int64(len(f.metrics) + 1)
	f.metrics = append(f.metrics, *metric)
	return nil
}

func (f *fakeStore) openMetric(jobID uuid.UUID) *store.StageMetric {
	for i := range f.metrics {
		if f.metrics[i].JobID == jobID && f.metrics[i].ExitedAt == nil {
			return &f.metrics[i]
		}
	}
	return nil
}

type fakeResolver struct {
	principals map[uuid.UUID]authz.Principal
}

func (f *fakeResolver) Resolve(_ context.Context, id uuid.UUID) (authz.Principal, error) {
	if p, ok := f.principals[id]; ok {
		return p, nil
	}
	return authz.Principal{ID: id, Role: store.RoleNone}, nil
}

type fakeGraphSource struct {
	graph *Graph
}

func (f *fakeGraphSource) Load(context.Context, *uuid.UUID, store.EntityType) (*Graph, error) {
	return f.graph, nil
}

// testWorld wires an engine over a tenant-A graph of
// Lead(1) -> Active(9) -> Closed(12), a job sitting at Lead, and a manager,
// a member, and a foreign-tenant member.
type testWorld struct {
	engine   *Engine
	store    *fakeStore
	tenantA  uuid.UUID
	lead     store.Stage
	active   store.Stage
	closed   store.Stage
	job      *store.Job
	manager  uuid.UUID
	member   uuid.UUID
	outsider uuid.UUID
}

func newTestWorld(t *testing.T) *testWorld {
	t.Helper()

	tenantA := uuid.New()
	tenantB := uuid.New()

	lead := store.Stage{ID: uuid.New(), TenantID: &tenantA, EntityType: store.EntityJob, Name: "Lead", Sequence: 1, Category: store.StatusPlanning, Active: true}
	active := store.Stage{ID: uuid.New(), TenantID: &tenantA, EntityType: store.EntityJob, Name: "Active", Sequence: 9, Category: store.StatusActive, Active: true}
	closed := store.Stage{ID: uuid.New(), TenantID: &tenantA, EntityType: store.EntityJob, Name: "Closed", Sequence: 12, Category: store.StatusComplete, Active: true}

	graph := NewGraph(
		[]store.Stage{lead, active, closed},
		[]store.StageEdge{
			{FromStage: lead.ID, ToStage: active.ID},
			{FromStage: active.ID, ToStage: closed.ID},
			{FromStage: active.ID, ToStage: lead.ID},
		},
	)

	manager := uuid.New()
	member := uuid.New()
	outsider := uuid.New()

	resolver := &fakeResolver{principals: map[uuid.UUID]authz.Principal{
		manager:  {ID: manager, TenantID: &tenantA, Role: store.RoleManager, Active: true},
		member:   {ID: member, TenantID: &tenantA, Role: store.RoleMember, Active: true},
		outsider: {ID: outsider, TenantID: &tenantB, Role: store.RoleMember, Active: true},
	}}

	fs := newFakeStore()

	enteredAt := time.Now().UTC().Add(-2 * time.Hour)
	leadID := lead.ID
	job := &store.Job{
		ID:             uuid.New(),
		TenantID:       tenantA,
		Name:           "fit-out",
		Status:         store.StatusPlanning,
		CurrentStageID: &leadID,
		StageEnteredAt: &enteredAt,
		CreatedBy:      manager,
		Version:        1,
	}
	fs.jobs[job.ID] = job
	fs.metrics = append(fs.metrics, store.StageMetric{
		ID: 1, JobID: job.ID, TenantID: tenantA, StageID: lead.ID, EnteredAt: enteredAt,
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(fs, resolver, &fakeGraphSource{graph: graph}, nil, logger)

	return &testWorld{
		engine:   engine,
		store:    fs,
		tenantA:  tenantA,
		lead:     lead,
		active:   active,
		closed:   closed,
		job:      job,
		manager:  manager,
		member:   member,
		outsider: outsider,
	}
}

func TestApply_LeadToActive(t *testing.T) {
	w := newTestWorld(t)
	ctx := context.Background()

	res, err := w.engine.Apply(ctx, w.manager, w.job.ID, Target{StageID: &w.active.ID}, "kickoff")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.NoOp {
		t.Fatal("expected a real transition, got no-op")
	}

	if len(w.store.records) != 1 {
		t.Fatalf("expected 1 transition record, got %d", len(w.store.records))
	}
	rec := w.store.records[0]
	if *rec.FromStageID != w.lead.ID || *rec.ToStageID != w.active.ID {
		t.Errorf("record stages = %v -> %v, want Lead -> Active", rec.FromStageID, rec.ToStageID)
	}
	if rec.FromStatus != store.StatusPlanning || rec.ToStatus != store.StatusActive {
		t.Errorf("record statuses = %s -> %s", rec.FromStatus, rec.ToStatus)
	}
	if rec.ActorID != w.manager {
		t.Errorf("record actor = %s, want manager", rec.ActorID)
	}

	// Prior metric row closed with a computed duration.
	var closedMetric *store.StageMetric
	for i := range w.store.metrics {
		if w.store.metrics[i].StageID == w.lead.ID {
			closedMetric = &w.store.metrics[i]
		}
	}
	if closedMetric == nil || closedMetric.ExitedAt == nil {
		t.Fatal("expected the Lead metric row to be closed")
	}
	if closedMetric.DurationSeconds == nil || *closedMetric.DurationSeconds <= 0 {
		t.Error("expected a positive computed duration")
	}

	// New metric row opened for Active.
	open := w.store.openMetric(w.job.ID)
	if open == nil || open.StageID != w.active.ID {
		t.Fatal("expected an open metric row for Active")
	}

	updated := w.store.jobs[w.job.ID]
	if updated.Status != store.StatusActive || *updated.CurrentStageID != w.active.ID {
		t.Errorf("job not moved: status=%s stage=%v", updated.Status, updated.CurrentStageID)
	}
	if updated.Version != 2 {
		t.Errorf("job version = %d, want 2", updated.Version)
	}
	if !w.store.lastTx.committed {
		t.Error("expected the batch to commit")
	}
}

func TestApply_CrossTenantDenied(t *testing.T) {
	w := newTestWorld(t)

	_, err := w.engine.Apply(context.Background(), w.outsider, w.job.ID, Target{StageID: &w.active.ID}, "")

	var denied *authz.PermissionDenied
	if !errors.As(err, &denied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	if len(w.store.records) != 0 {
		t.Error("denied attempt must write no history")
	}
	if w.store.jobs[w.job.ID].Version != 1 {
		t.Error("denied attempt must not touch the job")
	}
}

func TestApply_MemberCannotTransition(t *testing.T) {
	w := newTestWorld(t)

	_, err := w.engine.Apply(context.Background(), w.member, w.job.ID, Target{StageID: &w.active.ID}, "")

	var denied *authz.PermissionDenied
	if !errors.As(err, &denied) {
		t.Fatalf("expected PermissionDenied for member, got %v", err)
	}
}

func TestApply_InvalidTransition(t *testing.T) {
	w := newTestWorld(t)

	// Lead -> Closed has no edge.
	_, err := w.engine.Apply(context.Background(), w.manager, w.job.ID, Target{StageID: &w.closed.ID}, "")

	var invalid *InvalidTransition
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}
	if invalid.From != "Lead" || invalid.To != "Closed" {
		t.Errorf("invalid = %s -> %s", invalid.From, invalid.To)
	}
	if len(invalid.Allowed) != 1 || invalid.Allowed[0] != "Active" {
		t.Errorf("allowed set = %v, want [Active]", invalid.Allowed)
	}
	if len(w.store.records) != 0 {
		t.Error("invalid attempt must write no history")
	}
}

func TestApply_NoOp(t *testing.T) {
	w := newTestWorld(t)

	res, err := w.engine.Apply(context.Background(), w.manager, w.job.ID, Target{StageID: &w.lead.ID}, "")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !res.NoOp {
		t.Fatal("expected no-op for transition to current stage")
	}
	if len(w.store.records) != 0 {
		t.Error("no-op must not append history")
	}
	if len(w.store.metrics) != 1 {
		t.Error("no-op must not open metric rows")
	}
}

func TestApply_ConflictStale(t *testing.T) {
	w := newTestWorld(t)

	// A concurrent transition commits between our read and our lock.
	w.store.onLock = func(j *store.Job) {
		if j.Version == 1 {
			j.Version = 2
		}
	}

	_, err := w.engine.Apply(context.Background(), w.manager, w.job.ID, Target{StageID: &w.active.ID}, "")

	var stale *ConflictStale
	if !errors.As(err, &stale) {
		t.Fatalf("expected ConflictStale, got %v", err)
	}
	if stale.JobID != w.job.ID {
		t.Errorf("conflict job = %s, want %s", stale.JobID, w.job.ID)
	}
	if len(w.store.records) != 0 {
		t.Error("stale attempt must write no history")
	}
}

func TestApply_JobNotFound(t *testing.T) {
	w := newTestWorld(t)

	_, err := w.engine.Apply(context.Background(), w.manager, uuid.New(), Target{StageID: &w.active.ID}, "")

	var nf *NotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestApply_HoldRetainsStage(t *testing.T) {
	w := newTestWorld(t)
	ctx := context.Background()

	hold := store.StatusOnHold
	res, err := w.engine.Apply(ctx, w.manager, w.job.ID, Target{Status: &hold}, "waiting on permits")
	if err != nil {
		t.Fatalf("hold failed: %v", err)
	}
	if res.Job.Status != store.StatusOnHold {
		t.Errorf("status = %s, want on_hold", res.Job.Status)
	}
	if res.Job.CurrentStageID == nil || *res.Job.CurrentStageID != w.lead.ID {
		t.Error("hold must retain the current stage")
	}

	// Stage moves are rejected while on hold.
	_, err = w.engine.Apply(ctx, w.manager, w.job.ID, Target{StageID: &w.active.ID}, "")
	var invalid *InvalidTransition
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransition while on hold, got %v", err)
	}

	// Resume returns to the retained stage's category.
	resume := store.StatusPlanning
	res, err = w.engine.Apply(ctx, w.manager, w.job.ID, Target{Status: &resume}, "permits granted")
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if res.Job.Status != store.StatusPlanning {
		t.Errorf("resumed status = %s, want planning", res.Job.Status)
	}
	if *res.Job.CurrentStageID != w.lead.ID {
		t.Error("resume must keep the retained stage")
	}

	// One record per real change: hold + resume, no record for the
	// rejected move.
	if len(w.store.records) != 2 {
		t.Errorf("expected 2 records, got %d", len(w.store.records))
	}
}

func TestApply_UnresolvedPrincipalDenied(t *testing.T) {
	w := newTestWorld(t)

	_, err := w.engine.Apply(context.Background(), uuid.New(), w.job.ID, Target{StageID: &w.active.ID}, "")

	var denied *authz.PermissionDenied
	if !errors.As(err, &denied) {
		t.Fatalf("expected PermissionDenied for unknown principal, got %v", err)
	}
}
