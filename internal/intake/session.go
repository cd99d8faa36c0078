package intake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Snapshot is a copy of a session's observable state.
type Snapshot struct {
	ID         string          `json:"id"`
	Values     FormValues      `json:"values"`
	State      ResolutionState `json:"state"`
	Submitting bool            `json:"submitting"`
	Closed     bool            `json:"closed"`
	Created    time.Time       `json:"created"`
}

// Session is one operator's form: values, resolution state, and the lookups
// and submissions issued for them. It is safe for concurrent use.
//
// Blur lookups run in the background and may overlap; a result is applied
// only if no newer lookup for the same slot was started and the form was not
// reset or closed in the meantime. A submission cannot be cancelled once
// started and only one may be outstanding.
type Session struct {
	id        string
	created   time.Time
	lookup    *LookupService
	submitter *Submitter
	log       *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	form       Form
	clientSeq  uint64
	deviceSeq  uint64
	generation uint64
	submitting bool
	closed     bool
	notices    []Notice
}

// NewSession starts an empty form session.
func NewSession(lookup *LookupService, submitter *Submitter, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	return &Session{
		id:        id,
		created:   time.Now(),
		lookup:    lookup,
		submitter: submitter,
		log:       log.With(zap.String("session_id", id)),
		ctx:       ctx,
		cancel:    cancel,
		form:      InitialForm(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Snapshot returns a copy of the session's state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:         s.id,
		Values:     s.form.Values,
		State:      s.form.State,
		Submitting: s.submitting,
		Closed:     s.closed,
		Created:    s.created,
	}
}

// Values returns the current form values.
func (s *Session) Values() FormValues {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.Values
}

// State returns the current resolution state.
func (s *Session) State() ResolutionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.State
}

// SetValues replaces the editable form values. Fields of an entity resolved
// to an existing record keep the record's values. A changed phone or serial
// empties that slot and discards any lookup still running for the old key.
func (s *Session) SetValues(v FormValues) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	form, clientKey, deviceKey := s.form.edit(v)
	if clientKey {
		s.clientSeq++
	}
	if deviceKey {
		s.deviceSeq++
	}
	s.form = form
	return nil
}

// Notices returns and clears the pending notices.
func (s *Session) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

type ticket struct {
	entity     Entity
	seq        uint64
	generation uint64
}

// begin records the typed key and starts a lookup for entity. A new key
// empties the slot until the lookup answers. Background lookups are counted
// in wg under the lock so Close cannot miss them.
func (s *Session) begin(entity Entity, key string, background bool) (ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ticket{}, ErrSessionClosed
	}
	if background {
		s.wg.Add(1)
	}
	t := ticket{entity: entity, generation: s.generation}
	typed := s.form.Values
	switch entity {
	case EntityClient:
		typed.ClientPhone = key
		s.clientSeq++
		t.seq = s.clientSeq
	case EntityDevice:
		typed.DeviceSerialNumber = key
		s.deviceSeq++
		t.seq = s.deviceSeq
	}
	s.form, _, _ = s.form.edit(typed)
	return t, nil
}

// apply reduces msg into the form if t is still current.
func (s *Session) apply(t ticket, msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := t.seq == s.clientSeq
	if t.entity == EntityDevice {
		current = t.seq == s.deviceSeq
	}
	if s.closed || t.generation != s.generation || !current {
		s.log.Debug("discarding stale lookup", zap.String("entity", string(t.entity)), zap.Uint64("seq", t.seq))
		return false
	}
	if le, ok := msg.(LookupError); ok && errors.Is(le.Err, context.Canceled) {
		s.log.Debug("discarding abandoned lookup", zap.String("entity", string(t.entity)), zap.Uint64("seq", t.seq))
		return false
	}
	s.form = Reduce(s.form, msg)
	if n, ok := LookupNotice(msg); ok {
		s.notices = append(s.notices, n)
	}
	return true
}

// LookupClient looks up phone and applies the result before returning. The
// returned message is what the backend answered; applied is false when the
// result was superseded.
func (s *Session) LookupClient(ctx context.Context, phone string) (msg Message, applied bool, err error) {
	t, err := s.begin(EntityClient, phone, false)
	if err != nil {
		return nil, false, err
	}
	msg = s.lookup.LookupClient(ctx, phone)
	return msg, s.apply(t, msg), nil
}

// LookupDevice looks up serial and applies the result before returning.
func (s *Session) LookupDevice(ctx context.Context, serial string) (msg Message, applied bool, err error) {
	t, err := s.begin(EntityDevice, serial, false)
	if err != nil {
		return nil, false, err
	}
	msg = s.lookup.LookupDevice(ctx, serial)
	return msg, s.apply(t, msg), nil
}

// BlurPhone starts a background client lookup for phone.
func (s *Session) BlurPhone(phone string) error {
	t, err := s.begin(EntityClient, phone, true)
	if err != nil {
		return err
	}
	go func() {
		defer s.wg.Done()
		s.apply(t, s.lookup.LookupClient(s.ctx, phone))
	}()
	return nil
}

// BlurSerial starts a background device lookup for serial.
func (s *Session) BlurSerial(serial string) error {
	t, err := s.begin(EntityDevice, serial, true)
	if err != nil {
		return err
	}
	go func() {
		defer s.wg.Done()
		s.apply(t, s.lookup.LookupDevice(s.ctx, serial))
	}()
	return nil
}

// Wait blocks until background lookups have finished.
func (s *Session) Wait() { s.wg.Wait() }

// Submit runs a submission attempt with the current values and state. It
// returns ErrSubmissionInProgress while another attempt is outstanding. The
// attempt ignores cancellation of ctx. A successful attempt resets the form.
func (s *Session) Submit(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, ErrSessionClosed
	}
	if s.submitting {
		s.mu.Unlock()
		return Result{}, ErrSubmissionInProgress
	}
	s.submitting = true
	form := s.form
	s.mu.Unlock()

	res := s.submitter.submit(context.WithoutCancel(ctx), s.id, form.Values, form.State)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	if res.Succeeded() {
		s.form = InitialForm()
		s.generation++
	}
	s.notices = append(s.notices, OutcomeNotice(res))
	return res, nil
}

// Reset returns the form to its initial values and discards in-flight lookups.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form = InitialForm()
	s.generation++
}

// Close cancels background lookups and waits for them. Further calls
// return ErrSessionClosed. An outstanding submission still runs to its end.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
