// Package ledger journals submission outcomes and tracks orphaned clients.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/benchdesk/internal/intake"
	"github.com/zulandar/benchdesk/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrOrphanNotFound is returned by ResolveOrphan for an unknown or already
// resolved orphan.
var ErrOrphanNotFound = errors.New("ledger: orphan not found")

// Ledger stores submission records. It implements intake.Observer.
type Ledger struct {
	db  *gorm.DB
	log *zap.Logger
}

// New creates a Ledger on a migrated database.
func New(db *gorm.DB, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{db: db, log: log}
}

// SubmissionFinished records r. Storage errors are logged, not returned.
func (l *Ledger) SubmissionFinished(ctx context.Context, r intake.Result) {
	if _, err := l.Record(ctx, r); err != nil {
		l.log.Error("ledger: record submission", zap.String("submission_id", r.SubmissionID), zap.Error(err))
	}
}

// Record stores a finished submission, plus an OrphanedClient row when the
// attempt left a client behind.
func (l *Ledger) Record(ctx context.Context, r intake.Result) (*models.Submission, error) {
	if r.SubmissionID == "" {
		return nil, fmt.Errorf("ledger: submission id is required")
	}
	if !r.Outcome.Terminal() {
		return nil, fmt.Errorf("ledger: submission %s has not finished (state %s)", r.SubmissionID, r.Outcome)
	}

	sub := models.Submission{
		ID:            r.SubmissionID,
		SessionID:     r.SessionID,
		Outcome:       string(r.Outcome),
		ClientID:      r.ClientID.String(),
		ClientCreated: r.ClientCreated,
		DeviceID:      r.DeviceID.String(),
		DeviceCreated: r.DeviceCreated,
		TechnicianID:  r.TechnicianID.String(),
		Compensated:   r.Compensated,
		ClientPhone:   r.Values.ClientPhone,
		DeviceSerial:  r.Values.DeviceSerialNumber,
		StartedAt:     r.Started,
		FinishedAt:    r.Finished,
	}
	if r.JobCard != nil {
		sub.JobCardID = r.JobCard.ID.String()
		sub.EmailSent = r.JobCard.EmailSent
	}
	if r.Err != nil {
		sub.Error = r.Err.Error()
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sub).Error; err != nil {
			return err
		}
		if !r.OrphanedClient {
			return nil
		}
		orphan := models.OrphanedClient{
			ClientID:     r.ClientID.String(),
			SubmissionID: r.SubmissionID,
			ClientName:   r.Values.ClientName,
			ClientPhone:  r.Values.ClientPhone,
			ClientEmail:  r.Values.ClientEmail,
			Outcome:      string(r.Outcome),
		}
		return tx.Create(&orphan).Error
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: record %s: %w", r.SubmissionID, err)
	}
	if r.OrphanedClient {
		l.log.Warn("orphaned client recorded", zap.String("client_id", sub.ClientID), zap.String("submission_id", sub.ID))
	}
	return &sub, nil
}

// ListOpts filters Submissions.
type ListOpts struct {
	Outcome string
	Limit   int // 0 = no limit
}

// Submissions returns recorded submissions, newest first.
func (l *Ledger) Submissions(ctx context.Context, opts ListOpts) ([]models.Submission, error) {
	q := l.db.WithContext(ctx).Order("finished_at DESC")
	if opts.Outcome != "" {
		q = q.Where("outcome = ?", opts.Outcome)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	var subs []models.Submission
	if err := q.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("ledger: list submissions: %w", err)
	}
	return subs, nil
}

// Get returns one submission.
func (l *Ledger) Get(ctx context.Context, id string) (*models.Submission, error) {
	var sub models.Submission
	if err := l.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ledger: submission not found: %s", id)
		}
		return nil, fmt.Errorf("ledger: get %s: %w", id, err)
	}
	return &sub, nil
}

// Orphans returns orphaned clients in creation order. Resolved ones are
// included only when all is set.
func (l *Ledger) Orphans(ctx context.Context, all bool) ([]models.OrphanedClient, error) {
	q := l.db.WithContext(ctx).Order("created_at ASC, id ASC")
	if !all {
		q = q.Where("resolved = ?", false)
	}
	var out []models.OrphanedClient
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("ledger: list orphans: %w", err)
	}
	return out, nil
}

// ResolveOrphan marks an orphan as handled, e.g. after the client was merged
// or deleted by hand.
func (l *Ledger) ResolveOrphan(ctx context.Context, id uint, note string) error {
	now := time.Now()
	result := l.db.WithContext(ctx).Model(&models.OrphanedClient{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]interface{}{"resolved": true, "resolved_at": now, "note": note})
	if result.Error != nil {
		return fmt.Errorf("ledger: resolve orphan %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrOrphanNotFound, id)
	}
	return nil
}
