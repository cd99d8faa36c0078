package announce

import (
	"context"
	"sync"
	"time"

	"github.com/zulandar/benchdesk/internal/intake"
	"go.uber.org/zap"
)

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 30 * time.Second
)

// AnnouncerOpts holds parameters for creating an Announcer.
type AnnouncerOpts struct {
	Adapter   Adapter
	ChannelID string
	// Filter selects which outcomes are posted; nil posts all.
	Filter      func(intake.Result) bool
	QueueSize   int
	SendTimeout time.Duration
	Logger      *zap.Logger
}

// Announcer posts finished submissions through an Adapter. It implements
// intake.Observer; posting happens on a background goroutine so a slow chat
// platform never holds up a submission.
type Announcer struct {
	adapter   Adapter
	channelID string
	filter    func(intake.Result) bool
	timeout   time.Duration
	log       *zap.Logger

	queue chan OutboundMessage
	done  chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewAnnouncer creates an Announcer. Call Start before submissions finish.
func NewAnnouncer(opts AnnouncerOpts) *Announcer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Announcer{
		adapter:   opts.Adapter,
		channelID: opts.ChannelID,
		filter:    opts.Filter,
		timeout:   opts.SendTimeout,
		log:       opts.Logger,
		queue:     make(chan OutboundMessage, opts.QueueSize),
		done:      make(chan struct{}),
	}
}

// Start connects the adapter and starts the sender.
func (a *Announcer) Start(ctx context.Context) error {
	if err := a.adapter.Connect(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	a.started = true
	a.mu.Unlock()
	go a.run()
	return nil
}

// SubmissionFinished queues an announcement for r. When the queue is full
// the announcement is dropped.
func (a *Announcer) SubmissionFinished(_ context.Context, r intake.Result) {
	if a.filter != nil && !a.filter(r) {
		return
	}
	evt := FormatSubmission(r)
	msg := OutboundMessage{
		ChannelID: a.channelID,
		Text:      evt.Title,
		Events:    []FormattedEvent{evt},
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started || a.closed {
		return
	}
	select {
	case a.queue <- msg:
	default:
		a.log.Warn("announce: queue full, dropping", zap.String("submission_id", r.SubmissionID))
	}
}

func (a *Announcer) run() {
	defer close(a.done)
	for msg := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.adapter.Send(ctx, msg); err != nil {
			a.log.Warn("announce: send failed", zap.String("title", msg.Text), zap.Error(err))
		}
		cancel()
	}
}

// Close drains queued announcements and closes the adapter.
func (a *Announcer) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	started := a.started
	close(a.queue)
	a.mu.Unlock()

	if started {
		<-a.done
	}
	return a.adapter.Close()
}

// FailuresOnly is a Filter that posts only attempts without a clean success.
func FailuresOnly(r intake.Result) bool {
	return r.Outcome != intake.StateCreated
}
