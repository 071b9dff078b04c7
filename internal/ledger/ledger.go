// Package ledger keeps a history of executed batches and their jobs in SQLite.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/tendant/simple-trimmer/internal/batch"
)

// Batch statuses stored in the ledger.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
)

// BatchRecord is one executed (or rejected) batch.
type BatchRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	InputDir    string
	Destination string
	Mode        string `gorm:"size:2"`
	Policy      string `gorm:"size:16"`
	Status      string `gorm:"size:16;index"`
	TotalJobs   int
	Succeeded   int
	Failed      int
	Unmatched   int
	Error       string
	FailureType string    `gorm:"size:16"`
	StartedAt   time.Time `gorm:"index"`
	FinishedAt  time.Time
	Jobs        []JobRecord `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
}

// JobRecord is the outcome of one trimming job.
type JobRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	BatchID     string `gorm:"size:36;index"`
	PairKey     string
	Status      string `gorm:"size:16"`
	ExitCode    int
	Error       string
	FailureType string `gorm:"size:16"`
	DurationMs  int64
	// Outputs holds the published references, one per line.
	Outputs string
}

func (BatchRecord) TableName() string { return "trim_batches" }
func (JobRecord) TableName() string   { return "trim_jobs" }

type Ledger struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite ledger at path and migrates it.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// a single connection keeps ":memory:" databases shared and serialises sqlite writes
	sqlDB.SetMaxOpenConns(1)

	l := New(db)
	if err := l.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return l, nil
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Migrate(ctx context.Context) error {
	if err := l.db.WithContext(ctx).AutoMigrate(&BatchRecord{}, &JobRecord{}); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}
	return nil
}

func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordResult stores a finished batch and its job outcomes. Recording the
// same batch ID again replaces the earlier entry.
func (l *Ledger) RecordResult(ctx context.Context, res *batch.Result, policy batch.Policy) error {
	rec := BatchRecord{
		ID:          res.ID,
		InputDir:    res.InputDir,
		Destination: res.Destination,
		Mode:        string(res.Mode),
		Policy:      string(policy),
		Status:      StatusSucceeded,
		TotalJobs:   len(res.Outcomes),
		Succeeded:   res.Succeeded(),
		Failed:      res.Failed(),
		Unmatched:   len(res.Unmatched),
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
	}
	if !res.OK(policy) {
		rec.Status = StatusFailed
	}

	jobs := make([]JobRecord, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		id := o.JobID
		if id == "" {
			// never dispatched, so no job was created
			id = res.ID + ":" + o.Input.PairKey()
		}
		var refs []string
		for _, p := range o.Published {
			if p.Err == nil && p.Ref != "" {
				refs = append(refs, p.Ref)
			}
		}
		jobs = append(jobs, JobRecord{
			ID:          id,
			BatchID:     res.ID,
			PairKey:     o.Input.PairKey(),
			Status:      string(o.Status),
			ExitCode:    o.ExitCode,
			Error:       o.ErrorMessage(),
			FailureType: string(batch.ClassifyFailure(o.Err)),
			DurationMs:  o.Duration.Milliseconds(),
			Outputs:     strings.Join(refs, "\n"),
		})
	}

	return l.save(ctx, rec, jobs)
}

// RecordRejected stores a batch that failed before any job ran.
func (l *Ledger) RecordRejected(ctx context.Context, id, inputDir, destination string, cause error) error {
	now := time.Now()
	rec := BatchRecord{
		ID:          id,
		InputDir:    inputDir,
		Destination: destination,
		Status:      StatusRejected,
		Error:       cause.Error(),
		FailureType: string(batch.ClassifyFailure(cause)),
		StartedAt:   now,
		FinishedAt:  now,
	}
	return l.save(ctx, rec, nil)
}

func (l *Ledger) save(ctx context.Context, rec BatchRecord, jobs []JobRecord) error {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_id = ?", rec.ID).Delete(&JobRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Omit("Jobs").Create(&rec).Error; err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}
		return tx.Create(&jobs).Error
	})
	if err != nil {
		return fmt.Errorf("record batch %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit batches, newest first, with their jobs.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]BatchRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var records []BatchRecord
	err := l.db.WithContext(ctx).
		Preload("Jobs", func(db *gorm.DB) *gorm.DB { return db.Order("pair_key ASC") }).
		Order("started_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load recent batches: %w", err)
	}
	return records, nil
}

// Get returns one batch by ID, or gorm.ErrRecordNotFound.
func (l *Ledger) Get(ctx context.Context, id string) (*BatchRecord, error) {
	var rec BatchRecord
	err := l.db.WithContext(ctx).
		Preload("Jobs", func(db *gorm.DB) *gorm.DB { return db.Order("pair_key ASC") }).
		First(&rec, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
