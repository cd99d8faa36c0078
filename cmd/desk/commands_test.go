package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/benchdesk/internal/backend"
	"github.com/zulandar/benchdesk/internal/announce"
	"github.com/zulandar/benchdesk/internal/backendtest"
	"github.com/zulandar/benchdesk/internal/config"
	"github.com/zulandar/benchdesk/internal/intake"
	"go.uber.org/zap"
)

func TestLookupClient(t *testing.T) {
	e := newEnv(t, "")
	e.fake.AddClient(backend.ClientRecord{ID: "7", Name: "Ada Lovelace", Email: "ada@example.com", PhoneNumber: "0000000000"})

	out, err := e.run(t, "", "lookup", "client", "0000000000")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Existing client data found. Prefilling form.")
	assert.Contains(t, out, "Client 7")
	assert.Contains(t, out, "Ada Lovelace")

	out, err = e.run(t, "", "lookup", "client", "555")
	require.NoError(t, err, out)
	assert.Contains(t, out, "No client with phone 555")
	assert.Zero(t, e.fake.Calls(backendtest.RouteCreateClient))
}

func TestLookupDevice(t *testing.T) {
	e := newEnv(t, "")
	e.fake.AddClient(backend.ClientRecord{ID: "7", Name: "Ada", PhoneNumber: "1"})
	e.fake.AddDevice(backend.DeviceRecord{ID: "40", ClientID: "7", DeviceSerialNumber: "SN123", Brand: "Apple", DeviceModel: "MacBook Air"})

	out, err := e.run(t, "", "lookup", "device", "SN123")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Device 40 (client 7)")
	assert.Contains(t, out, "MacBook Air")

	out, err = e.run(t, "", "lookup", "device", "SN404")
	require.NoError(t, err)
	assert.Contains(t, out, "No device with serial SN404")
}

func TestLookup_Failure(t *testing.T) {
	e := newEnv(t, "")
	e.fake.Set(func(b *backendtest.Behavior) { b.FailLookups = true })

	out, err := e.run(t, "", "lookup", "client", "0000000000")
	require.Error(t, err)
	assert.ErrorIs(t, err, intake.ErrLookupFailed)
	assert.Contains(t, out, "Error checking client phone number.")
}

func TestTechniciansCmd(t *testing.T) {
	e := newEnv(t, "")
	e.fake.AddTechnician("tech2", "pw")

	out, err := e.run(t, "", "technicians")
	require.NoError(t, err, out)
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "tech1")
	assert.Contains(t, out, "tech2")
	assert.Contains(t, out, "(you)")
}

func TestLoginCmd(t *testing.T) {
	e := newEnv(t, "")

	out, err := e.run(t, "secret\n", "login", "-u", "tech1", "--password-stdin")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Signed in as tech1 (technician)")
	assert.Contains(t, out, "access_token: sandbox-1")
	assert.Contains(t, out, "technician_id: 1")

	_, err = e.run(t, "wrong\n", "login", "-u", "tech1", "--password-stdin")
	assert.True(t, backend.IsStatus(err, 401), "got %v", err)

	_, err = e.run(t, "", "login", "-u", "tech1")
	assert.ErrorContains(t, err, "password is required")
}

func TestJobCardsCmd(t *testing.T) {
	e := newEnv(t, "")
	out, err := e.run(t, "", "jobcards")
	require.NoError(t, err)
	assert.Contains(t, out, "No job cards.")

	file := e.writeValues(t, valuesYAML)
	_, err = e.run(t, "", "submit", "-f", file)
	require.NoError(t, err)

	out, err = e.run(t, "", "jobcards", "--mine")
	require.NoError(t, err, out)
	assert.Contains(t, out, "PROBLEM")
	assert.Contains(t, out, "Does not boot")
	assert.Contains(t, out, "Assigned")
}

func TestLedgerMigrateAndShow(t *testing.T) {
	e := newEnv(t, "")
	out, err := e.run(t, "", "ledger", "migrate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Migrated 2 tables")

	out, err = e.run(t, "", "ledger", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No submissions.")

	_, err = e.run(t, "", "ledger", "show", "missing")
	assert.ErrorContains(t, err, "ledger: submission not found: missing")
}

func TestConfigMissing(t *testing.T) {
	t.Setenv("BENCHDESK_API_ENDPOINT", "")
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"technicians", "-c", "/nonexistent/benchdesk.yaml"})
	err := cmd.Execute()
	assert.ErrorContains(t, err, "load config")
}

func TestPrintNotice(t *testing.T) {
	buf := new(bytes.Buffer)
	printNotice(buf, intake.Notice{Severity: intake.SeverityWarning, Text: "Please assign a technician before submitting."})
	assert.Contains(t, buf.String(), "warning")
	assert.Contains(t, buf.String(), "Please assign a technician before submitting.")
}

func TestPrintLookup_ErrorReturned(t *testing.T) {
	buf := new(bytes.Buffer)
	le := intake.LookupError{Entity: intake.EntityDevice, Key: "SN1", Err: errors.New("boom")}
	err := printLookup(buf, le)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "Error checking device serial number.")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
}

func TestAnnouncerOpts(t *testing.T) {
	mock := announce.NewMockAdapter()
	cfg := config.AnnounceConfig{Platform: "slack", ChannelID: "C1"}

	opts := announcerOpts(cfg, mock, zap.NewNop())
	assert.Equal(t, "C1", opts.ChannelID)
	assert.Nil(t, opts.Filter)

	cfg.FailuresOnly = true
	opts = announcerOpts(cfg, mock, zap.NewNop())
	require.NotNil(t, opts.Filter)
	assert.False(t, opts.Filter(intake.Result{Outcome: intake.StateCreated}))
	assert.True(t, opts.Filter(intake.Result{Outcome: intake.StateDeviceCreationFailed}))
}
