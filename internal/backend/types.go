package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a backend-assigned identifier. The backend may emit it as a JSON
// number or string; numeric IDs are written back as numbers.
type ID string

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool { return id == "" }

func (id ID) String() string { return string(id) }

// MarshalJSON emits digits-only IDs as JSON numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts a JSON number, string or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("backend: decode id: %w", err)
		}
		*id = ID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("backend: decode id: %w", err)
		}
		*id = ID(n.String())
		return nil
	}
}

// ClientRecord is a client as the backend stores it.
type ClientRecord struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
}

// DeviceRecord is a device as the backend stores it. ClientID is fixed at creation.
type DeviceRecord struct {
	ID                   ID     `json:"id"`
	DeviceSerialNumber   string `json:"device_serial_number"`
	DeviceModel          string `json:"device_model"`
	Brand                string `json:"brand"`
	HDDOrSSD             string `json:"hdd_or_ssd"`
	HDDOrSSDSerialNumber string `json:"hdd_or_ssd_serial_number"`
	HDDOrSSDOnboard      string `json:"hdd_or_ssd_onboard,omitempty"`
	Memory               string `json:"memory"`
	MemorySerialNumber   string `json:"memory_serial_number"`
	MemoryOnboard        string `json:"memory_onboard,omitempty"`
	Battery              string `json:"battery"`
	BatterySerialNumber  string `json:"battery_serial_number"`
	Adapter              string `json:"adapter"`
	AdapterSerialNumber  string `json:"adapter_serial_number"`
	ClientID             ID     `json:"client_id"`
	WarrantyStatus       string `json:"warranty_status"`
}

// NewClient is the body of POST /clients.
type NewClient struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
}

// NewDevice is the body of POST /devices.
type NewDevice struct {
	DeviceSerialNumber   string `json:"device_serial_number"`
	DeviceModel          string `json:"device_model"`
	Brand                string `json:"brand"`
	HDDOrSSD             string `json:"hdd_or_ssd"`
	HDDOrSSDSerialNumber string `json:"hdd_or_ssd_serial_number"`
	HDDOrSSDOnboard      string `json:"hdd_or_ssd_onboard"`
	Memory               string `json:"memory"`
	MemorySerialNumber   string `json:"memory_serial_number"`
	MemoryOnboard        string `json:"memory_onboard"`
	Battery              string `json:"battery"`
	BatterySerialNumber  string `json:"battery_serial_number"`
	Adapter              string `json:"adapter"`
	AdapterSerialNumber  string `json:"adapter_serial_number"`
	ClientID             ID     `json:"client_id"`
	WarrantyStatus       string `json:"warranty_status"`
}

// DeviceDetails summarizes the device inside a notification.
type DeviceDetails struct {
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	SerialNumber string `json:"serial_number"`
}

// EmailData is the notification the backend sends when a job card is created.
type EmailData struct {
	Recipient     string        `json:"recipient"`
	Subject       string        `json:"subject"`
	Body          string        `json:"body"`
	ClientName    string        `json:"client_name"`
	DeviceDetails DeviceDetails `json:"device_details"`
}

// NewJobCard is the body of POST /jobcards.
type NewJobCard struct {
	ProblemDescription   string    `json:"problem_description"`
	Status               string    `json:"status"`
	DeviceID             ID        `json:"device_id"`
	AssignedTechnicianID ID        `json:"assigned_technician_id"`
	EmailData            EmailData `json:"email_data"`
	HDDOrSSDOnboard      string    `json:"hdd_or_ssd_onboard"`
	MemoryOnboard        string    `json:"memory_onboard"`
}

// JobCard is a job card as returned by the backend. EmailSent is only
// meaningful on the creation reply; a missing flag reads as not sent.
type JobCard struct {
	ID                   ID     `json:"id"`
	ProblemDescription   string `json:"problem_description"`
	Status               string `json:"status"`
	DeviceID             ID     `json:"device_id"`
	AssignedTechnicianID ID     `json:"assigned_technician_id"`
	CreationDate         string `json:"creation_date,omitempty"`
	EmailSent            bool   `json:"email_sent"`
}

// Technician is an entry of GET /users/technicians.
type Technician struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
}

// Login is the reply of POST /users/login.
type Login struct {
	AccessToken string `json:"access_token"`
	ID          ID     `json:"id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
}

// JobCardFilter narrows GET /jobcards.
type JobCardFilter struct {
	Status       string
	TechnicianID ID
}
