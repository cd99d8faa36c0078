package intake

// Entity names a lookup slot.
type Entity string

const (
	EntityClient Entity = "client"
	EntityDevice Entity = "device"
)

// ResolutionState caches the lookup outcome per entity. A populated slot
// means the entity will be reused rather than created on submit.
type ResolutionState struct {
	ExistingClient *ClientRecord `json:"existingClient"`
	ExistingDevice *DeviceRecord `json:"existingDevice"`
}

// IsEmpty reports whether neither slot is populated.
func (s ResolutionState) IsEmpty() bool {
	return s.ExistingClient == nil && s.ExistingDevice == nil
}

// Form is everything a session owns: the operator's values and the
// resolution state derived from lookups.
type Form struct {
	Values FormValues      `json:"values"`
	State  ResolutionState `json:"state"`
}

// InitialForm returns an empty form.
func InitialForm() Form {
	return Form{Values: InitialValues()}
}

// Message is a lookup result fed to Reduce.
type Message interface {
	entity() Entity
}

// ClientFound reports a client record matching the looked-up phone.
type ClientFound struct {
	Phone  string
	Record ClientRecord
}

// ClientAbsent reports that no client matches the phone.
type ClientAbsent struct {
	Phone string
}

// DeviceFound reports a device record matching the looked-up serial.
type DeviceFound struct {
	Serial string
	Record DeviceRecord
}

// DeviceAbsent reports that no device matches the serial.
type DeviceAbsent struct {
	Serial string
}

// LookupError reports a failed lookup. For the form it behaves like an
// absent result; the caller shows a distinct notice.
type LookupError struct {
	Entity Entity
	Key    string
	Err    error
}

func (ClientFound) entity() Entity   { return EntityClient }
func (ClientAbsent) entity() Entity  { return EntityClient }
func (DeviceFound) entity() Entity   { return EntityDevice }
func (DeviceAbsent) entity() Entity  { return EntityDevice }
func (m LookupError) entity() Entity { return m.Entity }

func (m LookupError) Error() string {
	if m.Err == nil {
		return string(m.Entity) + " lookup " + m.Key + " failed"
	}
	return string(m.Entity) + " lookup " + m.Key + ": " + m.Err.Error()
}

func (m LookupError) Unwrap() error { return m.Err }

// Reduce applies a lookup message to a form. Each message touches only its
// own slot and that entity's fields. Reduce does not mutate f.
func Reduce(f Form, msg Message) Form {
	switch m := msg.(type) {
	case ClientFound:
		rec := m.Record
		f.State.ExistingClient = &rec
		f.Values = f.Values.withClient(rec)
	case DeviceFound:
		rec := m.Record
		f.State.ExistingDevice = &rec
		f.Values = f.Values.withDevice(rec)
	case ClientAbsent:
		f = clearClient(f)
	case DeviceAbsent:
		f = clearDevice(f)
	case LookupError:
		switch m.Entity {
		case EntityClient:
			f = clearClient(f)
		case EntityDevice:
			f = clearDevice(f)
		}
	}
	return f
}

// clearClient empties the client slot. Values prefilled from a previous
// record are cleared; typed values are left alone.
func clearClient(f Form) Form {
	if f.State.ExistingClient != nil {
		f.Values = f.Values.withoutClient()
	}
	f.State.ExistingClient = nil
	return f
}

func clearDevice(f Form) Form {
	if f.State.ExistingDevice != nil {
		f.Values = f.Values.withoutDevice()
	}
	f.State.ExistingDevice = nil
	return f
}

// edit applies operator-typed values to f. Changing a lookup key empties
// that entity's slot and the fields prefilled from its record, as a lookup
// answering absent would. It reports which keys changed.
func (f Form) edit(in FormValues) (out Form, clientKey, deviceKey bool) {
	clientKey = in.ClientPhone != f.Values.ClientPhone
	deviceKey = in.DeviceSerialNumber != f.Values.DeviceSerialNumber
	if clientKey && f.State.ExistingClient != nil {
		in = in.withoutClient()
		f.State.ExistingClient = nil
	}
	if deviceKey && f.State.ExistingDevice != nil {
		in = in.withoutDevice()
		f.State.ExistingDevice = nil
	}
	f.Values = f.Values.mergeEditable(in, f.State)
	return f, clientKey, deviceKey
}
