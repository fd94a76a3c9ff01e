package store

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"simpleswap/pkg/runner"
)

// Store persists step results to postgres. It implements runner.Recorder.
type Store struct {
	db        *gorm.DB
	runID     string
	programID string
}

// Open connects to dsn and migrates the schema
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&StepRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// New returns a recorder that tags every row with runID and programID
func New(db *gorm.DB, runID, programID string) *Store {
	return &Store{db: db, runID: runID, programID: programID}
}

func (s *Store) Record(ctx context.Context, result runner.StepResult) error {
	rec := NewStepRecord(s.runID, s.programID, result)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save step %s: %w", result.Step, err)
	}
	log.Debugf("Saved step %s of run %s (id %d)", rec.Step, rec.RunID, rec.ID)
	return nil
}

// Run returns the steps of one run in execution order
func (s *Store) Run(ctx context.Context, runID string) ([]StepRecord, error) {
	var records []StepRecord
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("started_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return records, nil
}

// LastSuccessful returns the most recent successful record of step for the program, or nil
func (s *Store) LastSuccessful(ctx context.Context, step runner.Step) (*StepRecord, error) {
	var rec StepRecord
	err := s.db.WithContext(ctx).
		Where("program_id = ? AND step = ? AND success = ? AND simulated = ?", s.programID, string(step), true, false).
		Order("id DESC").
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query step %s: %w", step, err)
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}
