// Package backendtest is an in-memory implementation of the repair-shop
// backend API. Tests use it to count and inspect requests; `desk sandbox`
// serves it for local front-end work.
package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/zulandar/benchdesk/internal/backend"
)

// Route keys used by Calls and Bodies.
const (
	RouteSearchClient    = "GET /clients/search"
	RouteSearchDevice    = "GET /devices/search"
	RouteCreateClient    = "POST /clients"
	RouteDeleteClient    = "DELETE /clients/{id}"
	RouteCreateDevice    = "POST /devices"
	RouteCreateJobCard   = "POST /jobcards"
	RouteListJobCards    = "GET /jobcards"
	RouteListTechnicians = "GET /users/technicians"
	RouteLogin           = "POST /users/login"
)

// Behavior switches failure modes of the fake.
type Behavior struct {
	FailLookups       bool // searches reply 500
	FailClientCreate  bool // POST /clients replies 500
	FailDeviceCreate  bool // POST /devices replies 500
	FailJobCard       bool // POST /jobcards replies 500
	FailDelete        bool // DELETE /clients/{id} replies 500
	NotificationFails bool // job cards are created with email_sent=false
	// AllowNoTechnician accepts job cards without assigned_technician_id.
	// By default they are rejected with 400, as the real backend does.
	AllowNoTechnician bool
	// Token, when set, is required as a bearer token on every request
	// except login.
	Token string
}

type user struct {
	id       backend.ID
	password string
	role     string
}

// Backend is the in-memory fake. The zero value is not usable; call New.
type Backend struct {
	mu          sync.Mutex
	behavior    Behavior
	nextID      int
	clients     map[backend.ID]backend.ClientRecord
	devices     map[backend.ID]backend.DeviceRecord
	jobCards    []backend.JobCard
	technicians []backend.Technician
	users       map[string]user
	calls       map[string]int
	bodies      map[string][][]byte
	// URL is set by Serve.
	URL string
}

// New creates an empty Backend.
func New() *Backend {
	return &Backend{
		clients: make(map[backend.ID]backend.ClientRecord),
		devices: make(map[backend.ID]backend.DeviceRecord),
		users:   make(map[string]user),
		calls:   make(map[string]int),
		bodies:  make(map[string][][]byte),
	}
}

// Serve starts an httptest server for tb and returns the Backend.
func Serve(tb testing.TB) *Backend {
	tb.Helper()
	b := New()
	srv := httptest.NewServer(b.Handler())
	tb.Cleanup(srv.Close)
	b.URL = srv.URL
	return b
}

// Set mutates the behavior switches.
func (b *Backend) Set(fn func(*Behavior)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.behavior)
}

// AddClient stores a client, assigning an ID when none is set.
func (b *Backend) AddClient(c backend.ClientRecord) backend.ClientRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = b.newID()
	} else {
		b.reserve(c.ID)
	}
	b.clients[c.ID] = c
	return c
}

// AddDevice stores a device, assigning an ID when none is set.
func (b *Backend) AddDevice(d backend.DeviceRecord) backend.DeviceRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d.ID.IsZero() {
		d.ID = b.newID()
	} else {
		b.reserve(d.ID)
	}
	b.devices[d.ID] = d
	return d
}

// AddTechnician registers a technician user and returns its ID.
func (b *Backend) AddTechnician(username, password string) backend.ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.newID()
	b.technicians = append(b.technicians, backend.Technician{ID: id, Username: username})
	b.users[username] = user{id: id, password: password, role: "technician"}
	return id
}

// AddUser registers a non-technician user (receptionist, admin) and returns its ID.
func (b *Backend) AddUser(username, password, role string) backend.ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.newID()
	b.users[username] = user{id: id, password: password, role: role}
	return id
}

// Calls returns how many requests hit route.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// Bodies returns the raw request bodies received on route, oldest first.
func (b *Backend) Bodies(route string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.bodies[route]))
	copy(out, b.bodies[route])
	return out
}

// LastBody decodes the most recent body received on route.
func (b *Backend) LastBody(route string) map[string]any {
	bodies := b.Bodies(route)
	if len(bodies) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(bodies[len(bodies)-1], &m); err != nil {
		return nil
	}
	return m
}

// Clients returns a snapshot of stored clients.
func (b *Backend) Clients() []backend.ClientRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]backend.ClientRecord, 0, len(b.clients))
	for _, c := range b.clients {
		out = append(out, c)
	}
	return out
}

// JobCards returns a snapshot of stored job cards.
func (b *Backend) JobCards() []backend.JobCard {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]backend.JobCard, len(b.jobCards))
	copy(out, b.jobCards)
	return out
}

// Handler returns the chi router serving the backend API.
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(b.authenticate)

	r.Get("/clients/search", b.handleSearchClient)
	r.Post("/clients", b.handleCreateClient)
	r.Delete("/clients/{id}", b.handleDeleteClient)
	r.Get("/devices/search", b.handleSearchDevice)
	r.Post("/devices", b.handleCreateDevice)
	r.Get("/jobcards", b.handleListJobCards)
	r.Post("/jobcards", b.handleCreateJobCard)
	r.Get("/users/technicians", b.handleListTechnicians)
	r.Post("/users/login", b.handleLogin)
	return r
}

func (b *Backend) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		token := b.behavior.Token
		b.mu.Unlock()
		if token != "" && r.URL.Path != "/users/login" && r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleSearchClient(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(RouteSearchClient, nil)
	if b.behavior.FailLookups {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "search unavailable"})
		return
	}
	phone := r.URL.Query().Get("phone_number")
	for _, c := range b.clients {
		if c.PhoneNumber == phone {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": backend.ClientNotFoundMessage})
}

func (b *Backend) handleSearchDevice(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(RouteSearchDevice, nil)
	if b.behavior.FailLookups {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "search unavailable"})
		return
	}
	serial := r.URL.Query().Get("device_serial_number")
	for _, d := range b.devices {
		if d.DeviceSerialNumber == serial {
			writeJSON(w, http.StatusOK, d)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": backend.DeviceNotFoundMessage})
}

func (b *Backend) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(RouteCreateClient, body)
	if b.behavior.FailClientCreate {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "client store unavailable"})
		return
	}
	var in backend.NewClient
	if err := json.Unmarshal(body, &in); err != nil || in.Name == "" || in.PhoneNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and phone_number are required"})
		return
	}
	rec := backend.ClientRecord{
		ID:          b.newID(),
		Name:        in.Name,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
		Address:     in.Address,
	}
	b.clients[rec.ID] = rec
	writeJSON(w, http.StatusCreated, rec)
}

func (b *Backend) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(RouteDeleteClient, nil)
	if b.behavior.FailDelete {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "delete failed"})
		return
	}
	id := backend.ID(chi.URLParam(r, "id"))
	if _, ok := b.clients[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": backend.ClientNotFoundMessage})
		return
	}
	delete(b.clients, id)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(RouteCreateDevice, body)
	if b.behavior.FailDeviceCreate {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "device store unavailable"})
		return
	}
	var in backend.NewDevice
	if err := json.Unmarshal(body, &in); err != nil || in.DeviceSerialNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "device_serial_number is required"})
		return
	}
	if _, ok := b.clients[in.ClientID]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown client_id"})
		return
	}
	rec := backend.DeviceRecord{
		ID:                   b.newID(),
		DeviceSerialNumber:   in.DeviceSerialNumber,
		DeviceModel:          in.DeviceModel,
		Brand:                in.Brand,
		HDDOrSSD:             in.HDDOrSSD,
		HDDOrSSDSerialNumber: in.HDDOrSSDSerialNumber,
		HDDOrSSDOnboard:      in.HDDOrSSDOnboard,
		Memory:               in.Memory,
		MemorySerialNumber:   in.MemorySerialNumber,
		MemoryOnboard:        in.MemoryOnboard,
		Battery:              in.Battery,
		BatterySerialNumber:  in.BatterySerialNumber,
		Adapter:              in.Adapter,
		AdapterSerialNumber:  in.AdapterSerialNumber,
		ClientID:             in.ClientID,
		WarrantyStatus:       in.WarrantyStatus,
	}
	b.devices[rec.ID] = rec
	writeJSON(w, http.StatusCreated, rec)
}

func (b *Backend) handleCreateJobCard(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(RouteCreateJobCard, body)
	if b.behavior.FailJobCard {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "job card store unavailable"})
		return
	}
	var in backend.NewJobCard
	if err := json.Unmarshal(body, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid job card"})
		return
	}
	if in.AssignedTechnicianID.IsZero() && !b.behavior.AllowNoTechnician {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "assigned_technician_id is required"})
		return
	}
	if _, ok := b.devices[in.DeviceID]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown device_id"})
		return
	}
	card := backend.JobCard{
		ID:                   b.newID(),
		ProblemDescription:   in.ProblemDescription,
		Status:               in.Status,
		DeviceID:             in.DeviceID,
		AssignedTechnicianID: in.AssignedTechnicianID,
		CreationDate:         time.Now().UTC().Format(time.RFC3339),
		EmailSent:            !b.behavior.NotificationFails && in.EmailData.Recipient != "",
	}
	b.jobCards = append(b.jobCards, card)
	writeJSON(w, http.StatusCreated, card)
}

func (b *Backend) handleListJobCards(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(RouteListJobCards, nil)
	status := r.URL.Query().Get("status")
	tech := backend.ID(r.URL.Query().Get("assigned_technician_id"))
	out := []backend.JobCard{}
	for _, c := range b.jobCards {
		if status != "" && !strings.EqualFold(c.Status, status) {
			continue
		}
		if !tech.IsZero() && c.AssignedTechnicianID != tech {
			continue
		}
		out = append(out, c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleListTechnicians(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(RouteListTechnicians, nil)
	out := make([]backend.Technician, len(b.technicians))
	copy(out, b.technicians)
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(RouteLogin, body)
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.Unmarshal(body, &in)
	u, ok := b.users[in.Username]
	if !ok || u.password != in.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid username or password"})
		return
	}
	token := b.behavior.Token
	if token == "" {
		token = "sandbox-" + u.id.String()
	}
	writeJSON(w, http.StatusOK, backend.Login{AccessToken: token, ID: u.id, Username: in.Username, Role: u.role})
}

// record counts a call. Callers hold b.mu.
func (b *Backend) record(route string, body []byte) {
	b.calls[route]++
	if body != nil {
		b.bodies[route] = append(b.bodies[route], body)
	}
}

// reserve keeps newID from reissuing an explicitly seeded numeric ID.
// Callers hold b.mu.
func (b *Backend) reserve(id backend.ID) {
	if n, err := strconv.Atoi(id.String()); err == nil && n > b.nextID {
		b.nextID = n
	}
}

// newID allocates a numeric identifier. Callers hold b.mu.
func (b *Backend) newID() backend.ID {
	b.nextID++
	return backend.ID(strconv.Itoa(b.nextID))
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("read body: %v", err)})
		return nil, false
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
