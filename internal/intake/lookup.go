package intake

import (
	"context"
	"fmt"
	"strings"

	"github.com/zulandar/benchdesk/internal/backend"
	"go.uber.org/zap"
)

// Searcher is the read side of the backend used for lookups.
type Searcher interface {
	FindClientByPhone(ctx context.Context, phone string) (*backend.ClientRecord, error)
	FindDeviceBySerial(ctx context.Context, serial string) (*backend.DeviceRecord, error)
}

// LookupService finds existing clients and devices. A not-found reply is an
// absent result, not an error. There are no retries.
type LookupService struct {
	backend Searcher
	log     *zap.Logger
}

// NewLookupService creates a LookupService. A nil logger disables logging.
func NewLookupService(b Searcher, log *zap.Logger) *LookupService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LookupService{backend: b, log: log}
}

// FindClientByPhone returns the client with the given phone, or nil if there
// is none. Errors wrap ErrLookupFailed. A blank phone is absent without a
// request.
func (l *LookupService) FindClientByPhone(ctx context.Context, phone string) (*ClientRecord, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, nil
	}
	rec, err := l.backend.FindClientByPhone(ctx, phone)
	if backend.IsNotFound(err) {
		l.log.Debug("client lookup: absent", zap.String("phone", phone))
		return nil, nil
	}
	if err != nil {
		l.log.Warn("client lookup failed", zap.String("phone", phone), zap.Error(err))
		return nil, fmt.Errorf("%w: client %q: %w", ErrLookupFailed, phone, err)
	}
	l.log.Debug("client lookup: found", zap.String("phone", phone), zap.String("client_id", rec.ID.String()))
	return rec, nil
}

// FindDeviceBySerial returns the device with the given serial, or nil if
// there is none. Errors wrap ErrLookupFailed.
func (l *LookupService) FindDeviceBySerial(ctx context.Context, serial string) (*DeviceRecord, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, nil
	}
	rec, err := l.backend.FindDeviceBySerial(ctx, serial)
	if backend.IsNotFound(err) {
		l.log.Debug("device lookup: absent", zap.String("serial", serial))
		return nil, nil
	}
	if err != nil {
		l.log.Warn("device lookup failed", zap.String("serial", serial), zap.Error(err))
		return nil, fmt.Errorf("%w: device %q: %w", ErrLookupFailed, serial, err)
	}
	l.log.Debug("device lookup: found", zap.String("serial", serial), zap.String("device_id", rec.ID.String()))
	return rec, nil
}

// LookupClient runs a client lookup and reports it as a message for Reduce.
func (l *LookupService) LookupClient(ctx context.Context, phone string) Message {
	rec, err := l.FindClientByPhone(ctx, phone)
	switch {
	case err != nil:
		return LookupError{Entity: EntityClient, Key: phone, Err: err}
	case rec == nil:
		return ClientAbsent{Phone: phone}
	default:
		return ClientFound{Phone: phone, Record: *rec}
	}
}

// LookupDevice runs a device lookup and reports it as a message for Reduce.
func (l *LookupService) LookupDevice(ctx context.Context, serial string) Message {
	rec, err := l.FindDeviceBySerial(ctx, serial)
	switch {
	case err != nil:
		return LookupError{Entity: EntityDevice, Key: serial, Err: err}
	case rec == nil:
		return DeviceAbsent{Serial: serial}
	default:
		return DeviceFound{Serial: serial, Record: *rec}
	}
}
