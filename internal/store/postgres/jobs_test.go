package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"jobtrack/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return &Store{db: db}, mock
}

func jobRow(job *store.Job) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "name", "status", "current_stage_id",
		"stage_entered_at", "created_by", "version", "created_at",
	}).AddRow(
		job.ID, job.TenantID, job.Name, job.Status, job.CurrentStageID,
		job.StageEnteredAt, job.CreatedBy, job.Version, job.CreatedAt,
	)
}

func TestGetJob_ScopedByTenant(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	ctx := context.Background()
	tenantID := uuid.New()
	job := &store.Job{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      "fence install",
		Status:    store.StatusPlanning,
		CreatedBy: uuid.New(),
		Version:   1,
		CreatedAt: time.Now(),
	}

	mock.ExpectQuery(`SELECT (.+) FROM jobs WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs(job.ID, tenantID).
		WillReturnRows(jobRow(job))

	got, err := s.GetJob(ctx, tenantID, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.ID != job.ID || got.TenantID != tenantID {
		t.Errorf("unexpected job: %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetJob_WrongTenantIsNoRows(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	ctx := context.Background()
	tenantID := uuid.New()
	jobID := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM jobs WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs(jobID, tenantID).
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetJob(ctx, tenantID, jobID)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("got %v, want sql.ErrNoRows", err)
	}
}

func TestUpdateJobStage_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	ctx := context.Background()
	stageID := uuid.New()
	now := time.Now()
	job := &store.Job{
		ID:             uuid.New(),
		TenantID:       uuid.New(),
		Status:         store.StatusActive,
		CurrentStageID: &stageID,
		StageEnteredAt: &now,
		Version:        3,
	}

	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(job.Status, job.CurrentStageID, job.StageEnteredAt, job.ID, job.TenantID, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.UpdateJobStage(ctx, nil, job, 3); err != nil {
		t.Fatalf("UpdateJobStage failed: %v", err)
	}
	if job.Version != 4 {
		t.Errorf("got version %d, want 4", job.Version)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdateJobStage_StaleVersion(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	ctx := context.Background()
	job := &store.Job{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Status:   store.StatusActive,
		Version:  3,
	}

	// A concurrent transition already bumped the version: zero rows match.
	mock.ExpectExec(`UPDATE jobs`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateJobStage(ctx, nil, job, 3)
	if !errors.Is(err, store.ErrStaleVersion) {
		t.Errorf("got %v, want ErrStaleVersion", err)
	}
	if job.Version != 3 {
		t.Errorf("version must not change on a stale update, got %d", job.Version)
	}
}
