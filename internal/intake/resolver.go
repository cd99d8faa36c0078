package intake

import (
	"context"
	"fmt"

	"github.com/zulandar/benchdesk/internal/backend"
	"go.uber.org/zap"
)

// Creator is the write side of the backend used by submissions.
type Creator interface {
	CreateClient(ctx context.Context, in backend.NewClient) (*backend.ClientRecord, error)
	CreateDevice(ctx context.Context, in backend.NewDevice) (*backend.DeviceRecord, error)
	CreateJobCard(ctx context.Context, in backend.NewJobCard) (*backend.JobCard, error)
	DeleteClient(ctx context.Context, id backend.ID) error
}

// Resolution is the identifier an entity resolved to.
type Resolution struct {
	ID      ID
	Created bool // false when an existing record was reused
}

// Resolver decides per entity whether to reuse a looked-up record or
// create a new one.
type Resolver struct {
	backend Creator
	log     *zap.Logger
}

// NewResolver creates a Resolver. A nil logger disables logging.
func NewResolver(b Creator, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{backend: b, log: log}
}

// ResolveClient returns the existing client's id without a request, or
// creates a client from the form. Creation errors wrap ErrClientCreationFailed.
func (r *Resolver) ResolveClient(ctx context.Context, v FormValues, st ResolutionState) (Resolution, error) {
	if st.ExistingClient != nil {
		return Resolution{ID: st.ExistingClient.ID}, nil
	}
	rec, err := r.backend.CreateClient(ctx, backend.NewClient{
		Name:        v.ClientName,
		Email:       v.ClientEmail,
		PhoneNumber: v.ClientPhone,
		Address:     v.ClientAddress,
	})
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %w", ErrClientCreationFailed, err)
	}
	r.log.Info("client created", zap.String("client_id", rec.ID.String()), zap.String("phone", v.ClientPhone))
	return Resolution{ID: rec.ID, Created: true}, nil
}

// ResolveDevice returns the existing device's id without a request, or
// creates a device owned by clientID. The mount modes always come from the
// form. Creation errors wrap ErrDeviceCreationFailed.
func (r *Resolver) ResolveDevice(ctx context.Context, v FormValues, clientID ID, st ResolutionState) (Resolution, error) {
	if st.ExistingDevice != nil {
		if owner := st.ExistingDevice.ClientID; !owner.IsZero() && owner != clientID {
			r.log.Warn("reusing device owned by another client",
				zap.String("device_id", st.ExistingDevice.ID.String()),
				zap.String("owner_id", owner.String()),
				zap.String("client_id", clientID.String()))
		}
		return Resolution{ID: st.ExistingDevice.ID}, nil
	}
	rec, err := r.backend.CreateDevice(ctx, backend.NewDevice{
		DeviceSerialNumber:   v.DeviceSerialNumber,
		DeviceModel:          v.DeviceModel,
		Brand:                v.Brand,
		HDDOrSSD:             v.HDDOrSSD,
		HDDOrSSDSerialNumber: v.HDDOrSSDSerialNumber,
		HDDOrSSDOnboard:      v.HDDOrSSDOnboard,
		Memory:               v.Memory,
		MemorySerialNumber:   v.MemorySerialNumber,
		MemoryOnboard:        v.MemoryOnboard,
		Battery:              v.Battery,
		BatterySerialNumber:  v.BatterySerialNumber,
		Adapter:              v.Adapter,
		AdapterSerialNumber:  v.AdapterSerialNumber,
		ClientID:             clientID,
		WarrantyStatus:       v.WarrantyStatus,
	})
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %w", ErrDeviceCreationFailed, err)
	}
	r.log.Info("device created", zap.String("device_id", rec.ID.String()), zap.String("client_id", clientID.String()))
	return Resolution{ID: rec.ID, Created: true}, nil
}
