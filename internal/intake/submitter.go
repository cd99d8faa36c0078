package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/benchdesk/internal/backend"
	"go.uber.org/zap"
)

// State is a step of a submission attempt. The terminal states are the
// attempt's outcome.
type State string

const (
	StateIdle            State = "idle"
	StateResolvingClient State = "resolving_client"
	StateResolvingDevice State = "resolving_device"
	StateCreatingJobCard State = "creating_job_card"

	StateCreated                   State = "created"
	StateCreatedNotificationFailed State = "created_notification_failed"
	StateClientCreationFailed      State = "client_creation_failed"
	StateDeviceCreationFailed      State = "device_creation_failed"
	StateJobCardCreationFailed     State = "job_card_creation_failed"
	StateTechnicianRequired        State = "technician_required"
	StateInvalid                   State = "invalid"
)

// ValidTransitions maps each state to its valid next states.
var ValidTransitions = map[State][]State{
	StateIdle:            {StateResolvingClient, StateInvalid},
	StateResolvingClient: {StateResolvingDevice, StateClientCreationFailed},
	StateResolvingDevice: {StateCreatingJobCard, StateDeviceCreationFailed},
	StateCreatingJobCard: {
		StateCreated,
		StateCreatedNotificationFailed,
		StateJobCardCreationFailed,
		StateTechnicianRequired,
	},
}

// Terminal reports whether s ends an attempt.
func (s State) Terminal() bool {
	_, ok := ValidTransitions[s]
	return !ok
}

// Succeeded reports whether s means a job card exists.
func (s State) Succeeded() bool {
	return s == StateCreated || s == StateCreatedNotificationFailed
}

func isValidTransition(from, to State) bool {
	for _, v := range ValidTransitions[from] {
		if v == to {
			return true
		}
	}
	return false
}

// Result describes one submission attempt.
type Result struct {
	SubmissionID string
	SessionID    string
	Outcome      State
	// Trace lists every state the attempt passed through, Idle first.
	Trace []State

	ClientID      ID
	ClientCreated bool
	DeviceID      ID
	DeviceCreated bool
	TechnicianID  ID
	JobCard       *backend.JobCard

	// OrphanedClient is set when a client created by this attempt remains
	// after the attempt failed.
	OrphanedClient bool
	// Compensated is set when such a client was deleted again.
	Compensated bool

	Values FormValues
	Err    error

	Started  time.Time
	Finished time.Time
}

// Succeeded reports whether a job card was created.
func (r Result) Succeeded() bool { return r.Outcome.Succeeded() }

// Observer is told about every finished attempt.
type Observer interface {
	SubmissionFinished(ctx context.Context, r Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, r Result)

// SubmissionFinished calls f.
func (f ObserverFunc) SubmissionFinished(ctx context.Context, r Result) { f(ctx, r) }

// SubmitterOptions configures a Submitter.
type SubmitterOptions struct {
	// TechnicianID is the signed-in technician. It is assigned when the form
	// does not pick one.
	TechnicianID ID

	EmailSubject string
	EmailBody    string

	// CompensateOrphans deletes a client created in the same attempt when a
	// later step fails. Off by default: the client is left and reported as
	// orphaned.
	CompensateOrphans bool

	Observers []Observer
	Logger    *zap.Logger
}

// Default notification text.
const (
	DefaultEmailSubject = "Device Service Update"
	DefaultEmailBody    = "Your device service is in progress."
)

// Submitter runs submission attempts: resolve client, resolve device, create
// the job card. Calls are strictly sequential.
type Submitter struct {
	backend  Creator
	resolver *Resolver
	opts     SubmitterOptions
	log      *zap.Logger
}

// NewSubmitter creates a Submitter.
func NewSubmitter(b Creator, opts SubmitterOptions) *Submitter {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.EmailSubject == "" {
		opts.EmailSubject = DefaultEmailSubject
	}
	if opts.EmailBody == "" {
		opts.EmailBody = DefaultEmailBody
	}
	return &Submitter{
		backend:  b,
		resolver: NewResolver(b, opts.Logger),
		opts:     opts,
		log:      opts.Logger,
	}
}

// TechnicianID returns the configured session technician.
func (s *Submitter) TechnicianID() ID { return s.opts.TechnicianID }

// attempt tracks the state of one submission.
type attempt struct {
	res *Result
	log *zap.Logger
}

// to moves the attempt to next. Submit only requests valid transitions; an
// invalid one is a programming error.
func (a *attempt) to(next State) {
	from := a.res.Trace[len(a.res.Trace)-1]
	if !isValidTransition(from, next) {
		panic(fmt.Sprintf("intake: invalid transition %s -> %s", from, next))
	}
	a.res.Trace = append(a.res.Trace, next)
	a.res.Outcome = next
	a.log.Debug("submission state", zap.String("from", string(from)), zap.String("to", string(next)))
}

// Submit runs one attempt for the given values and resolution state. It
// always returns a Result; failures are reported in Result.Outcome and
// Result.Err. Observers run before Submit returns.
func (s *Submitter) Submit(ctx context.Context, v FormValues, st ResolutionState) Result {
	return s.submit(ctx, "", v, st)
}

func (s *Submitter) submit(ctx context.Context, sessionID string, v FormValues, st ResolutionState) Result {
	res := Result{
		SubmissionID: uuid.New().String(),
		SessionID:    sessionID,
		Outcome:      StateIdle,
		Trace:        []State{StateIdle},
		Values:       v,
		Started:      time.Now(),
	}
	log := s.log.With(zap.String("submission_id", res.SubmissionID))
	if sessionID != "" {
		log = log.With(zap.String("session_id", sessionID))
	}
	a := &attempt{res: &res, log: log}

	s.run(ctx, a, v, st)

	res.Finished = time.Now()
	fields := []zap.Field{
		zap.String("outcome", string(res.Outcome)),
		zap.String("client_id", res.ClientID.String()),
		zap.String("device_id", res.DeviceID.String()),
		zap.Duration("elapsed", res.Finished.Sub(res.Started)),
	}
	if res.Succeeded() {
		log.Info("submission finished", fields...)
	} else {
		log.Warn("submission finished", append(fields, zap.Error(res.Err))...)
	}

	for _, o := range s.opts.Observers {
		o.SubmissionFinished(ctx, res)
	}
	return res
}

func (s *Submitter) run(ctx context.Context, a *attempt, v FormValues, st ResolutionState) {
	res := a.res

	if err := v.Validate(st); err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrInvalidForm, err)
		a.to(StateInvalid)
		return
	}

	a.to(StateResolvingClient)
	client, err := s.resolver.ResolveClient(ctx, v, st)
	if err != nil {
		res.Err = err
		a.to(StateClientCreationFailed)
		return
	}
	res.ClientID, res.ClientCreated = client.ID, client.Created

	a.to(StateResolvingDevice)
	device, err := s.resolver.ResolveDevice(ctx, v, client.ID, st)
	if err != nil {
		res.Err = err
		a.to(StateDeviceCreationFailed)
		s.settleOrphan(ctx, a)
		return
	}
	res.DeviceID, res.DeviceCreated = device.ID, device.Created

	a.to(StateCreatingJobCard)
	technician := v.AssignedTechnician
	if technician.IsZero() {
		technician = s.opts.TechnicianID
	}
	res.TechnicianID = technician
	card, err := s.backend.CreateJobCard(ctx, s.jobCard(v, st, device.ID, technician))
	if err != nil {
		if technician.IsZero() {
			res.Err = fmt.Errorf("%w: %w", ErrTechnicianRequired, err)
			a.to(StateTechnicianRequired)
		} else {
			res.Err = fmt.Errorf("%w: %w", ErrJobCardCreationFailed, err)
			a.to(StateJobCardCreationFailed)
		}
		s.settleOrphan(ctx, a)
		return
	}
	res.JobCard = card
	if card.EmailSent {
		a.to(StateCreated)
	} else {
		a.to(StateCreatedNotificationFailed)
	}
}

// jobCard builds the job-card request. The notification describes the
// client and device as the operator sees them, which for reused entities
// is the stored record.
func (s *Submitter) jobCard(v FormValues, st ResolutionState, deviceID, technician ID) backend.NewJobCard {
	name, email := v.ClientName, v.ClientEmail
	if c := st.ExistingClient; c != nil {
		name, email = c.Name, c.Email
	}
	details := backend.DeviceDetails{Brand: v.Brand, Model: v.DeviceModel, SerialNumber: v.DeviceSerialNumber}
	if d := st.ExistingDevice; d != nil {
		details = backend.DeviceDetails{Brand: d.Brand, Model: d.DeviceModel, SerialNumber: d.DeviceSerialNumber}
	}
	return backend.NewJobCard{
		ProblemDescription:   v.ProblemDescription,
		Status:               InitialJobCardStatus,
		DeviceID:             deviceID,
		AssignedTechnicianID: technician,
		EmailData: backend.EmailData{
			Recipient:     email,
			Subject:       s.opts.EmailSubject,
			Body:          s.opts.EmailBody,
			ClientName:    name,
			DeviceDetails: details,
		},
		HDDOrSSDOnboard: v.HDDOrSSDOnboard,
		MemoryOnboard:   v.MemoryOnboard,
	}
}

// settleOrphan handles a client created by a failed attempt: it is either
// deleted again (CompensateOrphans) or reported as orphaned.
func (s *Submitter) settleOrphan(ctx context.Context, a *attempt) {
	res := a.res
	if !res.ClientCreated {
		return
	}
	if !s.opts.CompensateOrphans {
		res.OrphanedClient = true
		a.log.Warn("client left without job card", zap.String("client_id", res.ClientID.String()))
		return
	}
	if err := s.backend.DeleteClient(ctx, res.ClientID); err != nil {
		res.OrphanedClient = true
		res.Err = errors.Join(res.Err, fmt.Errorf("intake: delete orphaned client %s: %w", res.ClientID, err))
		a.log.Error("compensating delete failed", zap.String("client_id", res.ClientID.String()), zap.Error(err))
		return
	}
	res.Compensated = true
	a.log.Info("orphaned client deleted", zap.String("client_id", res.ClientID.String()))
}
