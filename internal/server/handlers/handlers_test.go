package handlers

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/google/uuid"

	"jobtrack/internal/authz"
	"jobtrack/internal/reminder"
	"jobtrack/internal/server/middleware"
	"jobtrack/internal/store"
	"jobtrack/internal/workflow"
)

// Mock transaction
type mockTx struct{}

func (m *mockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (m *mockTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (m *mockTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (m *mockTx) Commit() error { return nil }

func (m *mockTx) Rollback() error { return nil }

// Mock Store
type mockStore struct {
	pingErr error

	// Tenant hooks
	createTenantErr error
	tenantResp      *store.Tenant
	tenantErr       error

	// Directory hooks
	userResp      *store.User
	userErr       error
	createUserErr error

	// Stage hooks
	createStageErr   error
	createEdgeErr    error
	stageResp        *store.Stage
	stageErr         error
	listStagesResp   []store.Stage
	listSystemResp   []store.Stage
	listStagesErr    error
	listEdgesResp    []store.StageEdge
	listEdgesErr     error
	deactivateStgErr error

	// Job hooks
	createJobErr error
	getJobResp   *store.Job
	getJobErr    error

	// Spies
	capturedStage *store.Stage
	capturedJob   *store.Job
	capturedUser  *store.User
}

func (m *mockStore) BeginTx(ctx context.Context) (store.Tx, error) { return &mockTx{}, nil }
func (m *mockStore) Ping(ctx context.Context) error                { return m.pingErr }

func (m *mockStore) CreateTenant(ctx context.Context, tenant *store.Tenant, hashedKey string) error {
	return m.createTenantErr
}
func (m *mockStore) GetTenantByID(ctx context.Context, id uuid.UUID) (*store.Tenant, error) {
	return m.tenantResp, m.tenantErr
}
func (m *mockStore) GetTenantByAPIKeyHash(ctx context.Context, hash string) (*store.Tenant, error) {
	return m.tenantResp, m.tenantErr
}

func (m *mockStore) GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	return m.userResp, m.userErr
}
func (m *mockStore) CreateUser(ctx context.Context, user *store.User) error {
	m.capturedUser = user
	return m.createUserErr
}
func (m *mockStore) SetUserRole(ctx context.Context, id uuid.UUID, role store.Role, tenantID *uuid.UUID) error {
	return nil
}
func (m *mockStore) DeactivateUser(ctx context.Context, id uuid.UUID) error { return nil }

func (m *mockStore) CreateStage(ctx context.Context, tx store.DBTransaction, stage *store.Stage) error {
	m.capturedStage = stage
	return m.createStageErr
}
func (m *mockStore) GetStageByID(ctx context.Context, id uuid.UUID) (*store.Stage, error) {
	return m.stageResp, m.stageErr
}
func (m *mockStore) ListStages(ctx context.Context, tenantID *uuid.UUID, entityType store.EntityType) ([]store.Stage, error) {
	if m.listStagesErr != nil {
		return nil, m.listStagesErr
	}
	if tenantID == nil {
		return m.listSystemResp, nil
	}
	return m.listStagesResp, nil
}
func (m *mockStore) ListEdges(ctx context.Context, tenantID *uuid.UUID, entityType store.EntityType) ([]store.StageEdge, error) {
	return m.listEdgesResp, m.listEdgesErr
}
func (m *mockStore) CreateEdge(ctx context.Context, tx store.DBTransaction, edge *store.StageEdge) error {
	return m.createEdgeErr
}
func (m *mockStore) DeactivateStage(ctx context.Context, id uuid.UUID) error {
	return m.deactivateStgErr
}

func (m *mockStore) CreateJob(ctx context.Context, tx store.DBTransaction, job *store.Job) error {
	m.capturedJob = job
	return m.createJobErr
}
func (m *mockStore) GetJob(ctx context.Context, tenantID, id uuid.UUID) (*store.Job, error) {
	return m.getJobResp, m.getJobErr
}
func (m *mockStore) GetJobByID(ctx context.Context, id uuid.UUID) (*store.Job, error) {
	return m.getJobResp, m.getJobErr
}
func (m *mockStore) GetJobForUpdate(ctx context.Context, tx store.DBTransaction, tenantID, id uuid.UUID) (*store.Job, error) {
	return m.getJobResp, m.getJobErr
}
func (m *mockStore) UpdateJobStage(ctx context.Context, tx store.DBTransaction, job *store.Job, expectedVersion int64) error {
	return nil
}

// Mock engine
type mockEngine struct {
	result *workflow.TransitionResult
	err    error

	capturedTarget workflow.Target
	capturedNotes  string
}

func (m *mockEngine) Apply(ctx context.Context, principalID, jobID uuid.UUID, target workflow.Target, notes string) (*workflow.TransitionResult, error) {
	m.capturedTarget = target
	m.capturedNotes = notes
	return m.result, m.err
}

// Mock auditor
type mockAuditor struct {
	records     []store.TransitionRecord
	historyErr  error
	rollupRows  []store.StageRollupRow
	rollupErr   error
	backfilled  int64
	backfillErr error

	capturedAfterID int64
	capturedLimit   int
}

func (m *mockAuditor) History(ctx context.Context, principalID, jobID uuid.UUID, afterID int64, limit int) ([]store.TransitionRecord, error) {
	m.capturedAfterID = afterID
	m.capturedLimit = limit
	return m.records, m.historyErr
}
func (m *mockAuditor) Rollup(ctx context.Context, principalID, tenantID uuid.UUID, entityType store.EntityType) ([]store.StageRollupRow, error) {
	return m.rollupRows, m.rollupErr
}
func (m *mockAuditor) Backfill(ctx context.Context, principalID, tenantID uuid.UUID) (int64, error) {
	return m.backfilled, m.backfillErr
}

// Mock reminder scheduler
type mockScheduler struct {
	reminder    *store.Reminder
	scheduleErr error
	dispatched  int
	dispatchErr error
}

func (m *mockScheduler) Schedule(ctx context.Context, principalID, jobID uuid.UUID, resp reminder.Response, offsetHours int) (*store.Reminder, error) {
	return m.reminder, m.scheduleErr
}
func (m *mockScheduler) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	return m.dispatched, m.dispatchErr
}

// Static resolver
type mockResolver struct {
	principal authz.Principal
	err       error
}

func (m *mockResolver) Resolve(ctx context.Context, id uuid.UUID) (authz.Principal, error) {
	return m.principal, m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// authedRequest builds a request carrying tenant and actor context, the way
// the auth middleware would.
func authedRequest(method, target string, body io.Reader, tenant *store.Tenant, actorID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, body)
	ctx := middleware.WithTenant(req.Context(), tenant)
	ctx = middleware.WithActor(ctx, actorID)
	return req.WithContext(ctx)
}
