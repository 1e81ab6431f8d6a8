package impl

import (
	"context"
	"errors"
	"time"

	"devicemail/internal/domain"
	"devicemail/internal/observability/metrics"
	"devicemail/internal/service"
	"devicemail/internal/store"

	"github.com/google/uuid"
)

var _ service.Gate = (*GateImpl)(nil)

type GateImpl struct {
	store  *store.Store
	maxAge time.Duration
	now    func() time.Time
}

func NewGate(st *store.Store, maxAge time.Duration) *GateImpl {
	if maxAge <= 0 {
		maxAge = domain.DeviceMaxAge
	}
	return &GateImpl{
		store:  st,
		maxAge: maxAge,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (g *GateImpl) Authorize(ctx context.Context, sessionKey *domain.DeviceKey, user *domain.User, required domain.Capability) (*domain.Device, domain.Verdict, error) {
	result := "denied"
	defer func() {
		metrics.DeviceAuthorizationsTotal.WithLabelValues(string(required), result).Inc()
	}()

	if sessionKey == nil || *sessionKey == uuid.Nil || user == nil {
		return nil, domain.Verdict{}, domain.ErrNoActiveDevice
	}
	dev, err := g.store.Devices().GetForOwner(ctx, *sessionKey, user.ID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, domain.Verdict{}, domain.ErrDeviceNotFoundOrInactive
	}
	if err != nil {
		result = "error"
		return nil, domain.Verdict{}, err
	}
	if !dev.Active {
		return nil, domain.Verdict{}, domain.ErrDeviceNotFoundOrInactive
	}

	verdict := domain.Evaluate(dev, g.now(), g.maxAge)
	if !verdict.Allows(required) {
		return dev, verdict, domain.ErrPermissionDenied
	}
	result = "allowed"
	return dev, verdict, nil
}
