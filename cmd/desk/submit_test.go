package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/benchdesk/internal/backend"
	"github.com/zulandar/benchdesk/internal/backendtest"
	"github.com/zulandar/benchdesk/internal/intake"
)

const valuesYAML = `client_name: Grace Hopper
client_email: grace@example.com
client_phone: "0000000000"
client_address: 12 Harbor Rd
device_model: ThinkPad T14
device_serial_number: SN123
brand: Lenovo
hdd_or_ssd: SSD
hdd_or_ssd_serial_number: SSD-1
hdd_or_ssd_onboard: removable
memory: 16GB
memory_serial_number: MEM-1
memory_onboard: onboard
battery: Li-ion
battery_serial_number: BAT-1
adapter: 65W
adapter_serial_number: AD-1
problem_description: Does not boot
`

func TestReadValues_KeepsDefaults(t *testing.T) {
	v, err := readValues(strings.NewReader("client_phone: \"123\"\nassigned_technician: 4\n"))
	require.NoError(t, err)
	assert.Equal(t, "123", v.ClientPhone)
	assert.Equal(t, intake.ID("4"), v.AssignedTechnician)
	assert.Equal(t, intake.DefaultWarrantyStatus, v.WarrantyStatus)
}

func TestReadValues_BadYAML(t *testing.T) {
	_, err := readValues(strings.NewReader("client_phone: [\n"))
	assert.ErrorContains(t, err, "parse form values")
}

func TestSubmit_CreatesEverything(t *testing.T) {
	e := newEnv(t, "")
	file := e.writeValues(t, valuesYAML)

	out, err := e.run(t, "", "submit", "-f", file)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Job card submitted successfully and email sent!")
	assert.Contains(t, out, "(created)")
	assert.Contains(t, out, "Job card:")

	assert.Equal(t, 1, e.fake.Calls(backendtest.RouteSearchClient))
	assert.Equal(t, 1, e.fake.Calls(backendtest.RouteSearchDevice))
	assert.Equal(t, 1, e.fake.Calls(backendtest.RouteCreateClient))
	assert.Equal(t, 1, e.fake.Calls(backendtest.RouteCreateDevice))
	require.Len(t, e.fake.JobCards(), 1)
	assert.Equal(t, "Assigned", e.fake.JobCards()[0].Status)

	out, err = e.run(t, "", "ledger", "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, "created")
}

func TestSubmit_ReusesExistingClient(t *testing.T) {
	e := newEnv(t, "")
	e.fake.AddClient(backend.ClientRecord{ID: "7", Name: "Ada Lovelace", Email: "ada@example.com", PhoneNumber: "0000000000", Address: "1 Way"})
	file := e.writeValues(t, valuesYAML)

	out, err := e.run(t, "", "submit", "-f", file)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Existing client data found. Prefilling form.")
	assert.Contains(t, out, "7 (")
	assert.Zero(t, e.fake.Calls(backendtest.RouteCreateClient))
	assert.Equal(t, float64(7), e.fake.LastBody(backendtest.RouteCreateDevice)["client_id"])
}

func TestSubmit_DeviceFailureLeavesOrphan(t *testing.T) {
	e := newEnv(t, "")
	e.fake.Set(func(b *backendtest.Behavior) { b.FailDeviceCreate = true })
	file := e.writeValues(t, valuesYAML)

	out, err := e.run(t, "", "submit", "-f", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device_creation_failed")
	assert.Contains(t, out, "Failed to create device record.")
	assert.Contains(t, out, "desk orphans list")

	out, err = e.run(t, "", "orphans", "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Grace Hopper")
	assert.Contains(t, out, "device_creation_failed")

	out, err = e.run(t, "", "orphans", "resolve", "1", "--note", "deleted by hand")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Orphan 1 resolved")

	out, err = e.run(t, "", "orphans", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No orphaned clients.")

	_, err = e.run(t, "", "orphans", "resolve", "1")
	assert.Error(t, err)
}

func TestSubmit_Compensates(t *testing.T) {
	e := newEnv(t, "submission:\n  compensate_orphans: true\n")
	e.fake.Set(func(b *backendtest.Behavior) { b.FailJobCard = true })
	file := e.writeValues(t, valuesYAML)

	out, err := e.run(t, "", "submit", "-f", file)
	require.Error(t, err)
	assert.Contains(t, out, "was deleted again")
	assert.Equal(t, 1, e.fake.Calls(backendtest.RouteDeleteClient))
	assert.Empty(t, e.fake.Clients())
}

func TestSubmit_InvalidValues(t *testing.T) {
	e := newEnv(t, "")
	file := e.writeValues(t, "client_phone: \"0000000000\"\n")

	out, err := e.run(t, "", "submit", "-f", file)
	require.Error(t, err)
	assert.Contains(t, out, "Please correct the highlighted fields")
	assert.Zero(t, e.fake.Calls(backendtest.RouteCreateClient))
}

func TestSubmit_FromStdinWithTechnician(t *testing.T) {
	e := newEnv(t, "")
	other := e.fake.AddTechnician("tech2", "pw")

	out, err := e.run(t, valuesYAML, "submit", "-f", "-", "--technician", other.String())
	require.NoError(t, err, out)
	require.Len(t, e.fake.JobCards(), 1)
	assert.Equal(t, other, e.fake.JobCards()[0].AssignedTechnicianID)
}

func TestSubmit_RequiresFile(t *testing.T) {
	e := newEnv(t, "")
	_, err := e.run(t, "", "submit")
	assert.ErrorContains(t, err, `required flag(s) "file" not set`)
}
