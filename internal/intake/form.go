package intake

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"github.com/zulandar/benchdesk/internal/backend"
)

// Record types are the backend's; the aliases keep intake callers from
// importing backend for the common case.
type (
	ID           = backend.ID
	ClientRecord = backend.ClientRecord
	DeviceRecord = backend.DeviceRecord
)

// Mount modes for storage and memory.
const (
	MountOnboard   = "onboard"
	MountRemovable = "removable"
)

// Defaults applied to a fresh form.
const (
	DefaultWarrantyStatus = "in_warranty"
	InitialJobCardStatus  = "Assigned"
)

// FormValues are the fields an operator fills in across the intake steps.
// AssignedTechnician is the technician picked in the form; it may be empty.
type FormValues struct {
	ClientName    string `json:"clientName" yaml:"client_name"`
	ClientEmail   string `json:"clientEmail" yaml:"client_email"`
	ClientPhone   string `json:"clientPhone" yaml:"client_phone"`
	ClientAddress string `json:"clientAddress" yaml:"client_address"`

	DeviceModel          string `json:"deviceModel" yaml:"device_model"`
	DeviceSerialNumber   string `json:"deviceSerialNumber" yaml:"device_serial_number"`
	Brand                string `json:"brand" yaml:"brand"`
	HDDOrSSD             string `json:"hddOrSsd" yaml:"hdd_or_ssd"`
	HDDOrSSDSerialNumber string `json:"hddOrSsdSerialNumber" yaml:"hdd_or_ssd_serial_number"`
	HDDOrSSDOnboard      string `json:"hddOrSsdOnboard" yaml:"hdd_or_ssd_onboard"`
	Memory               string `json:"memory" yaml:"memory"`
	MemorySerialNumber   string `json:"memorySerialNumber" yaml:"memory_serial_number"`
	MemoryOnboard        string `json:"memoryOnboard" yaml:"memory_onboard"`
	Battery              string `json:"battery" yaml:"battery"`
	BatterySerialNumber  string `json:"batterySerialNumber" yaml:"battery_serial_number"`
	Adapter              string `json:"adapter" yaml:"adapter"`
	AdapterSerialNumber  string `json:"adapterSerialNumber" yaml:"adapter_serial_number"`
	WarrantyStatus       string `json:"warrantyStatus" yaml:"warranty_status"`

	ProblemDescription string `json:"problemDescription" yaml:"problem_description"`
	AssignedTechnician ID     `json:"assignedTechnician" yaml:"assigned_technician"`
}

// InitialValues returns the values of a fresh form.
func InitialValues() FormValues {
	return FormValues{WarrantyStatus: DefaultWarrantyStatus}
}

// withClient prefills the client fields from a found record.
func (v FormValues) withClient(rec ClientRecord) FormValues {
	v.ClientName = rec.Name
	v.ClientEmail = rec.Email
	v.ClientAddress = rec.Address
	if rec.PhoneNumber != "" {
		v.ClientPhone = rec.PhoneNumber
	}
	return v
}

// withoutClient clears prefilled client fields, keeping the typed phone.
func (v FormValues) withoutClient() FormValues {
	v.ClientName = ""
	v.ClientEmail = ""
	v.ClientAddress = ""
	return v
}

// withDevice prefills the device fields from a found record. Mount modes
// are per job card and are left alone.
func (v FormValues) withDevice(rec DeviceRecord) FormValues {
	v.DeviceModel = rec.DeviceModel
	if rec.DeviceSerialNumber != "" {
		v.DeviceSerialNumber = rec.DeviceSerialNumber
	}
	v.Brand = rec.Brand
	v.HDDOrSSD = rec.HDDOrSSD
	v.HDDOrSSDSerialNumber = rec.HDDOrSSDSerialNumber
	v.Memory = rec.Memory
	v.MemorySerialNumber = rec.MemorySerialNumber
	v.Battery = rec.Battery
	v.BatterySerialNumber = rec.BatterySerialNumber
	v.Adapter = rec.Adapter
	v.AdapterSerialNumber = rec.AdapterSerialNumber
	v.WarrantyStatus = rec.WarrantyStatus
	if v.WarrantyStatus == "" {
		v.WarrantyStatus = DefaultWarrantyStatus
	}
	return v
}

// withoutDevice clears prefilled device fields, keeping the typed serial.
func (v FormValues) withoutDevice() FormValues {
	serial, hddMount, memMount := v.DeviceSerialNumber, v.HDDOrSSDOnboard, v.MemoryOnboard
	v = v.withDevice(DeviceRecord{})
	v.DeviceSerialNumber, v.HDDOrSSDOnboard, v.MemoryOnboard = serial, hddMount, memMount
	return v
}

// mergeEditable copies in onto v, except for fields that are read-only
// display data because the entity was resolved to an existing record.
func (v FormValues) mergeEditable(in FormValues, st ResolutionState) FormValues {
	out := in
	if st.ExistingClient != nil {
		out.ClientName = v.ClientName
		out.ClientEmail = v.ClientEmail
		out.ClientAddress = v.ClientAddress
	}
	if st.ExistingDevice != nil {
		serial, hddMount, memMount := out.DeviceSerialNumber, out.HDDOrSSDOnboard, out.MemoryOnboard
		out = out.withDevice(*st.ExistingDevice)
		out.DeviceSerialNumber, out.HDDOrSSDOnboard, out.MemoryOnboard = serial, hddMount, memMount
	}
	return out
}

// FieldErrors maps form field names to a validation message.
type FieldErrors map[string]string

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	names := make([]string, 0, len(fe))
	for k := range fe {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s: %s", k, fe[k])
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// Fields returns the invalid field names in sorted order.
func (fe FieldErrors) Fields() []string {
	names := make([]string, 0, len(fe))
	for k := range fe {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate checks the values that a submission will send. Fields of an
// entity resolved to an existing record are display data and are not checked.
// The technician is not required here: a missing technician surfaces as
// StateTechnicianRequired when the backend rejects the job card.
func (v FormValues) Validate(st ResolutionState) error {
	fe := FieldErrors{}
	required := func(name, value, label string) {
		if strings.TrimSpace(value) == "" {
			fe[name] = label + " is required"
		}
	}

	required("clientPhone", v.ClientPhone, "Client phone")
	if st.ExistingClient == nil {
		required("clientName", v.ClientName, "Client name")
		required("clientEmail", v.ClientEmail, "Client email")
		required("clientAddress", v.ClientAddress, "Client address")
		if v.ClientEmail != "" {
			if _, err := mail.ParseAddress(v.ClientEmail); err != nil {
				fe["clientEmail"] = "Invalid email"
			}
		}
	}

	required("deviceSerialNumber", v.DeviceSerialNumber, "Device serial number")
	if st.ExistingDevice == nil {
		required("deviceModel", v.DeviceModel, "Device model")
		required("brand", v.Brand, "Brand")
		required("hddOrSsd", v.HDDOrSSD, "HDD/SSD type")
		required("hddOrSsdSerialNumber", v.HDDOrSSDSerialNumber, "HDD/SSD serial number")
		required("memory", v.Memory, "Memory")
		required("memorySerialNumber", v.MemorySerialNumber, "Memory serial number")
		required("battery", v.Battery, "Battery type")
		required("batterySerialNumber", v.BatterySerialNumber, "Battery serial number")
		required("adapter", v.Adapter, "Adapter type")
		required("adapterSerialNumber", v.AdapterSerialNumber, "Adapter serial number")
		required("warrantyStatus", v.WarrantyStatus, "Warranty status")
	}

	mount := func(name, value, label string) {
		switch value {
		case MountOnboard, MountRemovable:
		case "":
			fe[name] = label + " is required"
		default:
			fe[name] = fmt.Sprintf("%s must be %q or %q", label, MountOnboard, MountRemovable)
		}
	}
	mount("hddOrSsdOnboard", v.HDDOrSSDOnboard, "Onboard HDD/SSD type")
	mount("memoryOnboard", v.MemoryOnboard, "Onboard memory type")

	required("problemDescription", v.ProblemDescription, "Problem description")

	if len(fe) > 0 {
		return fe
	}
	return nil
}
