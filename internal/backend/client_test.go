package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/benchdesk/internal/backend"
	"github.com/zulandar/benchdesk/internal/backendtest"
)

func newClient(t *testing.T, url string, opts ...func(*backend.Options)) *backend.Client {
	t.Helper()
	o := backend.Options{BaseURL: url, Timeout: 5 * time.Second}
	for _, fn := range opts {
		fn(&o)
	}
	c, err := backend.New(o)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	for _, u := range []string{"", "/api", "localhost:5000"} {
		_, err := backend.New(backend.Options{BaseURL: u})
		assert.Error(t, err, "base URL %q", u)
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := newClient(t, "http://127.0.0.1:5000/api/")
	assert.Equal(t, "http://127.0.0.1:5000/api", c.BaseURL())
}

func TestFindClientByPhone_Found(t *testing.T) {
	b := backendtest.Serve(t)
	b.AddClient(backend.ClientRecord{ID: "7", Name: "Ada", Email: "ada@example.com", PhoneNumber: "0000000000", Address: "1 Loop St"})
	c := newClient(t, b.URL)

	rec, err := c.FindClientByPhone(context.Background(), "0000000000")
	require.NoError(t, err)
	assert.Equal(t, backend.ID("7"), rec.ID)
	assert.Equal(t, "Ada", rec.Name)
	assert.Equal(t, "1 Loop St", rec.Address)
	assert.Equal(t, 1, b.Calls(backendtest.RouteSearchClient))
}

func TestFindClientByPhone_SentinelIsNotFound(t *testing.T) {
	b := backendtest.Serve(t)
	c := newClient(t, b.URL)

	rec, err := c.FindClientByPhone(context.Background(), "0000000000")
	assert.Nil(t, rec)
	assert.True(t, backend.IsNotFound(err))
	assert.Equal(t, 0, b.Calls(backendtest.RouteCreateClient))
}

func TestFindDeviceBySerial(t *testing.T) {
	b := backendtest.Serve(t)
	b.AddClient(backend.ClientRecord{ID: "3", Name: "Bo", PhoneNumber: "1"})
	b.AddDevice(backend.DeviceRecord{ID: "11", DeviceSerialNumber: "SN999", Brand: "dell", ClientID: "3"})
	c := newClient(t, b.URL)

	rec, err := c.FindDeviceBySerial(context.Background(), "SN999")
	require.NoError(t, err)
	assert.Equal(t, backend.ID("11"), rec.ID)
	assert.Equal(t, backend.ID("3"), rec.ClientID)

	_, err = c.FindDeviceBySerial(context.Background(), "SN123")
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestSearch_ServerErrorIsStatusError(t *testing.T) {
	b := backendtest.Serve(t)
	b.Set(func(bh *backendtest.Behavior) { bh.FailLookups = true })
	c := newClient(t, b.URL)

	_, err := c.FindClientByPhone(context.Background(), "1")
	require.Error(t, err)
	assert.False(t, backend.IsNotFound(err))
	assert.True(t, backend.IsStatus(err, http.StatusInternalServerError))
}

func TestSearch_SentinelWith404IsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Device not found"}`))
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	_, err := c.FindDeviceBySerial(context.Background(), "SN1")
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestSearch_RecordWithoutIDIsUnexpected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"something else"}`))
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	_, err := c.FindClientByPhone(context.Background(), "1")
	assert.ErrorIs(t, err, backend.ErrUnexpectedReply)
}

func TestSearch_EscapesQuery(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("phone_number")
		_, _ = w.Write([]byte(`{"message":"Client not found"}`))
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	_, err := c.FindClientByPhone(context.Background(), "+44 20&x=1")
	assert.ErrorIs(t, err, backend.ErrNotFound)
	assert.Equal(t, "+44 20&x=1", got)
}

func TestCreateClient(t *testing.T) {
	b := backendtest.Serve(t)
	c := newClient(t, b.URL)

	rec, err := c.CreateClient(context.Background(), backend.NewClient{
		Name: "Ada", Email: "ada@example.com", PhoneNumber: "0000000000", Address: "1 Loop St",
	})
	require.NoError(t, err)
	assert.False(t, rec.ID.IsZero())

	body := b.LastBody(backendtest.RouteCreateClient)
	assert.Equal(t, "Ada", body["name"])
	assert.Equal(t, "0000000000", body["phone_number"])
	assert.Equal(t, "1 Loop St", body["address"])
}

func TestCreateClient_Failure(t *testing.T) {
	b := backendtest.Serve(t)
	b.Set(func(bh *backendtest.Behavior) { bh.FailClientCreate = true })
	c := newClient(t, b.URL)

	_, err := c.CreateClient(context.Background(), backend.NewClient{Name: "Ada", PhoneNumber: "1"})
	var se *backend.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "create client", se.Op)
	assert.Equal(t, "client store unavailable", se.Message)
}

func TestCreateDevice_SendsNumericClientID(t *testing.T) {
	b := backendtest.Serve(t)
	b.AddClient(backend.ClientRecord{ID: "7", Name: "Ada", PhoneNumber: "1"})
	c := newClient(t, b.URL)

	rec, err := c.CreateDevice(context.Background(), backend.NewDevice{
		DeviceSerialNumber: "SN123", ClientID: "7", HDDOrSSDOnboard: "onboard", MemoryOnboard: "removable",
	})
	require.NoError(t, err)
	assert.Equal(t, backend.ID("7"), rec.ClientID)

	body := b.LastBody(backendtest.RouteCreateDevice)
	assert.Equal(t, float64(7), body["client_id"])
	assert.Equal(t, "onboard", body["hdd_or_ssd_onboard"])
	assert.Equal(t, "removable", body["memory_onboard"])
}

func TestCreateJobCard_EmailSentFlag(t *testing.T) {
	b := backendtest.Serve(t)
	b.AddClient(backend.ClientRecord{ID: "1", Name: "Ada", PhoneNumber: "1"})
	b.AddDevice(backend.DeviceRecord{ID: "2", DeviceSerialNumber: "SN", ClientID: "1"})
	tech := b.AddTechnician("tess", "pw")
	c := newClient(t, b.URL)

	in := backend.NewJobCard{
		ProblemDescription:   "won't boot",
		Status:               "Assigned",
		DeviceID:             "2",
		AssignedTechnicianID: tech,
		EmailData:            backend.EmailData{Recipient: "ada@example.com"},
	}
	card, err := c.CreateJobCard(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, card.EmailSent)

	b.Set(func(bh *backendtest.Behavior) { bh.NotificationFails = true })
	card, err = c.CreateJobCard(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, card.EmailSent)
}

func TestCreateJobCard_MissingEmailSentReadsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 99}`))
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	card, err := c.CreateJobCard(context.Background(), backend.NewJobCard{DeviceID: "1"})
	require.NoError(t, err)
	assert.Equal(t, backend.ID("99"), card.ID)
	assert.False(t, card.EmailSent)
}

func TestDeleteClient(t *testing.T) {
	b := backendtest.Serve(t)
	b.AddClient(backend.ClientRecord{ID: "5", Name: "Ada", PhoneNumber: "1"})
	c := newClient(t, b.URL)

	require.NoError(t, c.DeleteClient(context.Background(), "5"))
	assert.Empty(t, b.Clients())

	err := c.DeleteClient(context.Background(), "5")
	assert.True(t, backend.IsStatus(err, http.StatusNotFound))
}

func TestListTechniciansAndJobCards(t *testing.T) {
	b := backendtest.Serve(t)
	b.Set(func(bh *backendtest.Behavior) { bh.AllowNoTechnician = true })
	tech := b.AddTechnician("tess", "pw")
	b.AddClient(backend.ClientRecord{ID: "1", Name: "Ada", PhoneNumber: "1"})
	b.AddDevice(backend.DeviceRecord{ID: "2", DeviceSerialNumber: "SN", ClientID: "1"})
	c := newClient(t, b.URL)

	techs, err := c.ListTechnicians(context.Background())
	require.NoError(t, err)
	require.Len(t, techs, 1)
	assert.Equal(t, "tess", techs[0].Username)

	_, err = c.CreateJobCard(context.Background(), backend.NewJobCard{Status: "Pending", DeviceID: "2", AssignedTechnicianID: tech})
	require.NoError(t, err)
	_, err = c.CreateJobCard(context.Background(), backend.NewJobCard{Status: "Assigned", DeviceID: "2"})
	require.NoError(t, err)

	cards, err := c.ListJobCards(context.Background(), backend.JobCardFilter{Status: "Pending", TechnicianID: tech})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Pending", cards[0].Status)
}

func TestLogin(t *testing.T) {
	b := backendtest.Serve(t)
	id := b.AddUser("rita", "secret", "receptionist")
	c := newClient(t, b.URL)

	login, err := c.Login(context.Background(), "rita", "secret")
	require.NoError(t, err)
	assert.Equal(t, id, login.ID)
	assert.Equal(t, "receptionist", login.Role)
	assert.NotEmpty(t, login.AccessToken)

	_, err = c.Login(context.Background(), "rita", "wrong")
	var se *backend.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "Invalid username or password", se.Message)
}

func TestAccessTokenIsSentAsBearer(t *testing.T) {
	b := backendtest.Serve(t)
	b.Set(func(bh *backendtest.Behavior) { bh.Token = "tok-1" })

	anon := newClient(t, b.URL)
	_, err := anon.ListTechnicians(context.Background())
	assert.True(t, backend.IsStatus(err, http.StatusUnauthorized))

	authed := newClient(t, b.URL, func(o *backend.Options) { o.AccessToken = "tok-1" })
	_, err = authed.ListTechnicians(context.Background())
	assert.NoError(t, err)
}

func TestLookupRateLimitHonorsContext(t *testing.T) {
	b := backendtest.Serve(t)
	c := newClient(t, b.URL, func(o *backend.Options) { o.LookupRateLimit = 0.001 })

	// First lookup consumes the single burst token.
	_, err := c.FindClientByPhone(context.Background(), "1")
	require.ErrorIs(t, err, backend.ErrNotFound)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.FindClientByPhone(ctx, "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, 1, b.Calls(backendtest.RouteSearchClient))
}

func TestIDJSON(t *testing.T) {
	tests := []struct {
		in   string
		want backend.ID
	}{
		{`7`, "7"},
		{`"abc-1"`, "abc-1"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var id backend.ID
		require.NoError(t, json.Unmarshal([]byte(tt.in), &id))
		assert.Equal(t, tt.want, id)
	}

	out, err := json.Marshal(struct {
		A backend.ID `json:"a"`
		B backend.ID `json:"b"`
		C backend.ID `json:"c"`
		D backend.ID `json:"d"`
	}{"7", "abc", "", "007"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":7,"b":"abc","c":null,"d":"007"}`, string(out))
}
