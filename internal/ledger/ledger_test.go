package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/benchdesk/internal/backend"
	"github.com/zulandar/benchdesk/internal/db"
	"github.com/zulandar/benchdesk/internal/intake"
	"github.com/zulandar/benchdesk/internal/ledger"
)

func testLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	gdb, err := db.Connect(db.Options{Driver: db.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	return ledger.New(gdb, nil)
}

func result(id string, outcome intake.State, finished time.Time) intake.Result {
	return intake.Result{
		SubmissionID: id,
		SessionID:    "session-1",
		Outcome:      outcome,
		ClientID:     "12",
		Values: intake.FormValues{
			ClientName:         "Grace Hopper",
			ClientEmail:        "grace@example.com",
			ClientPhone:        "0000000000",
			DeviceSerialNumber: "SN123",
		},
		Started:  finished.Add(-time.Second),
		Finished: finished,
	}
}

func TestRecord_Created(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()
	r := result("sub-1", intake.StateCreated, time.Now())
	r.ClientCreated = true
	r.DeviceID = "13"
	r.DeviceCreated = true
	r.TechnicianID = "3"
	r.JobCard = &backend.JobCard{ID: "14", EmailSent: true}

	sub, err := l.Record(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub.ID)

	got, err := l.Get(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "created", got.Outcome)
	assert.Equal(t, "12", got.ClientID)
	assert.Equal(t, "13", got.DeviceID)
	assert.Equal(t, "14", got.JobCardID)
	assert.Equal(t, "3", got.TechnicianID)
	assert.True(t, got.EmailSent)
	assert.True(t, got.ClientCreated)
	assert.Equal(t, "0000000000", got.ClientPhone)
	assert.Equal(t, "SN123", got.DeviceSerial)
	assert.Empty(t, got.Error)

	orphans, err := l.Orphans(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestRecord_OrphanedClient(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()
	r := result("sub-2", intake.StateDeviceCreationFailed, time.Now())
	r.ClientCreated = true
	r.OrphanedClient = true
	r.Err = errors.New("intake: device creation failed: boom")

	_, err := l.Record(ctx, r)
	require.NoError(t, err)

	got, err := l.Get(ctx, "sub-2")
	require.NoError(t, err)
	assert.Equal(t, "intake: device creation failed: boom", got.Error)

	orphans, err := l.Orphans(ctx, false)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	o := orphans[0]
	assert.Equal(t, "12", o.ClientID)
	assert.Equal(t, "sub-2", o.SubmissionID)
	assert.Equal(t, "Grace Hopper", o.ClientName)
	assert.Equal(t, "device_creation_failed", o.Outcome)
	assert.False(t, o.Resolved)
}

func TestRecord_Rejects(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	_, err := l.Record(ctx, intake.Result{Outcome: intake.StateCreated})
	assert.ErrorContains(t, err, "submission id is required")

	_, err = l.Record(ctx, intake.Result{SubmissionID: "x", Outcome: intake.StateResolvingDevice})
	assert.ErrorContains(t, err, "has not finished")

	_, err = l.Record(ctx, result("dup", intake.StateCreated, time.Now()))
	require.NoError(t, err)
	_, err = l.Record(ctx, result("dup", intake.StateCreated, time.Now()))
	assert.Error(t, err)
}

func TestResolveOrphan(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()
	r := result("sub-3", intake.StateJobCardCreationFailed, time.Now())
	r.OrphanedClient = true
	_, err := l.Record(ctx, r)
	require.NoError(t, err)

	orphans, err := l.Orphans(ctx, false)
	require.NoError(t, err)
	require.Len(t, orphans, 1)

	require.NoError(t, l.ResolveOrphan(ctx, orphans[0].ID, "merged into client 4"))

	open, err := l.Orphans(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := l.Orphans(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Resolved)
	assert.NotNil(t, all[0].ResolvedAt)
	assert.Equal(t, "merged into client 4", all[0].Note)

	err = l.ResolveOrphan(ctx, orphans[0].ID, "again")
	assert.ErrorIs(t, err, ledger.ErrOrphanNotFound)
	assert.ErrorIs(t, l.ResolveOrphan(ctx, 999, ""), ledger.ErrOrphanNotFound)
}

func TestSubmissions_FilterAndOrder(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()
	base := time.Now()
	for i, tc := range []struct {
		id      string
		outcome intake.State
	}{
		{"a", intake.StateCreated},
		{"b", intake.StateClientCreationFailed},
		{"c", intake.StateCreated},
	} {
		_, err := l.Record(ctx, result(tc.id, tc.outcome, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	all, err := l.Submissions(ctx, ledger.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)

	created, err := l.Submissions(ctx, ledger.ListOpts{Outcome: "created", Limit: 1})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "c", created[0].ID)
}

func TestGet_NotFound(t *testing.T) {
	l := testLedger(t)
	_, err := l.Get(context.Background(), "missing")
	assert.ErrorContains(t, err, "submission not found")
}

func TestLedgerAsObserver(t *testing.T) {
	l := testLedger(t)
	var obs intake.Observer = l
	obs.SubmissionFinished(context.Background(), result("obs-1", intake.StateTechnicianRequired, time.Now()))

	got, err := l.Get(context.Background(), "obs-1")
	require.NoError(t, err)
	assert.Equal(t, "technician_required", got.Outcome)
}
