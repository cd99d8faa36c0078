// Package receipts archives created job cards as JSON objects in S3.
package receipts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/zulandar/benchdesk/internal/intake"
	"go.uber.org/zap"
)

const (
	defaultQueueSize = 64
	uploadTimeout    = 20 * time.Second
)

// ObjectPutter is the subset of the S3 client the archive uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures an Archiver.
type Options struct {
	Bucket         string
	Prefix         string
	Region         string
	Endpoint       string
	ForcePathStyle bool
	QueueSize      int
	Logger         *zap.Logger
}

// Receipt is the archived record of a created job card.
type Receipt struct {
	SubmissionID string    `json:"submission_id"`
	SessionID    string    `json:"session_id,omitempty"`
	Outcome      string    `json:"outcome"`
	JobCardID    string    `json:"job_card_id"`
	Status       string    `json:"status"`
	EmailSent    bool      `json:"email_sent"`
	TechnicianID string    `json:"technician_id,omitempty"`
	Client       Party     `json:"client"`
	Device       Equipment `json:"device"`
	Problem      string    `json:"problem_description"`
	CreatedAt    time.Time `json:"created_at"`
}

// Party identifies the client on a receipt.
type Party struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Equipment identifies the device on a receipt.
type Equipment struct {
	ID           string `json:"id"`
	Created      bool   `json:"created"`
	Brand        string `json:"brand,omitempty"`
	Model        string `json:"model,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// Archiver uploads a receipt for every submission that created a job card.
// It implements intake.Observer; uploads run on a background goroutine so a
// slow bucket never holds up a submission. Close drains pending uploads.
type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	log    *zap.Logger

	queue chan Receipt
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// New creates an Archiver backed by the default AWS credential chain.
func New(ctx context.Context, opts Options) (*Archiver, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("receipts: bucket is required")
	}
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("receipts: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.ForcePathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return NewWithClient(client, opts), nil
}

// NewWithClient creates an Archiver using the given client and starts its
// uploader.
func NewWithClient(client ObjectPutter, opts Options) *Archiver {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	a := &Archiver{
		client: client,
		bucket: opts.Bucket,
		prefix: opts.Prefix,
		log:    opts.Logger,
		queue:  make(chan Receipt, opts.QueueSize),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Key returns the object key for a receipt: prefix/YYYY/MM/DD/<submission>.json.
func (a *Archiver) Key(r Receipt) string {
	day := r.CreatedAt.UTC().Format("2006/01/02")
	return path.Join(a.prefix, day, r.SubmissionID+".json")
}

// Archive uploads the receipt and returns its key.
func (a *Archiver) Archive(ctx context.Context, r Receipt) (string, error) {
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("receipts: marshal %s: %w", r.SubmissionID, err)
	}
	key := a.Key(r)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("receipts: put s3://%s/%s: %w", a.bucket, key, err)
	}
	return key, nil
}

// SubmissionFinished queues a receipt for results that created a job card.
// When the queue is full or the Archiver is closed the receipt is dropped.
func (a *Archiver) SubmissionFinished(_ context.Context, r intake.Result) {
	if !r.Succeeded() || r.JobCard == nil {
		return
	}
	rc := FromResult(r)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- rc:
	default:
		a.log.Warn("receipt queue full, dropping", zap.String("submission_id", rc.SubmissionID))
	}
}

func (a *Archiver) run() {
	defer close(a.done)
	for rc := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		key, err := a.Archive(ctx, rc)
		cancel()
		if err != nil {
			a.log.Warn("receipt upload failed", zap.String("submission_id", rc.SubmissionID), zap.Error(err))
			continue
		}
		a.log.Debug("receipt archived", zap.String("submission_id", rc.SubmissionID), zap.String("key", key))
	}
}

// Close stops accepting receipts and waits for queued uploads.
func (a *Archiver) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	<-a.done
}

// FromResult builds the receipt of a successful submission.
func FromResult(r intake.Result) Receipt {
	rc := Receipt{
		SubmissionID: r.SubmissionID,
		SessionID:    r.SessionID,
		Outcome:      string(r.Outcome),
		TechnicianID: r.TechnicianID.String(),
		Client: Party{
			ID:      r.ClientID.String(),
			Created: r.ClientCreated,
			Name:    r.Values.ClientName,
			Phone:   r.Values.ClientPhone,
			Email:   r.Values.ClientEmail,
		},
		Device: Equipment{
			ID:           r.DeviceID.String(),
			Created:      r.DeviceCreated,
			Brand:        r.Values.Brand,
			Model:        r.Values.DeviceModel,
			SerialNumber: r.Values.DeviceSerialNumber,
		},
		Problem:   r.Values.ProblemDescription,
		CreatedAt: r.Finished,
	}
	if jc := r.JobCard; jc != nil {
		rc.JobCardID = jc.ID.String()
		rc.Status = jc.Status
		rc.EmailSent = jc.EmailSent
	}
	if rc.CreatedAt.IsZero() {
		rc.CreatedAt = time.Now()
	}
	return rc
}
