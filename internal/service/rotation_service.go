package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supportops/owner-relay/internal/config"
	"github.com/supportops/owner-relay/internal/domain"
	"github.com/supportops/owner-relay/internal/events"
	"github.com/supportops/owner-relay/internal/repository"
)

const defaultRotationTimeout = 5 * time.Second

// RotationService assigns owners by cycling through online staff, oldest
// assignment first.
type RotationService struct {
	staff      repository.SupportListRepository
	fallback   domain.OwnerInfo
	timeout    time.Duration
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// RotationDependencies bundles collaborators for the rotation service.
type RotationDependencies struct {
	StaffRepo  repository.SupportListRepository
	Owner      config.OwnerConfig
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewRotationService creates the service.
func NewRotationService(deps RotationDependencies) *RotationService {
	timeout := deps.Owner.RotationTimeout()
	if timeout <= 0 {
		timeout = defaultRotationTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &RotationService{
		staff:      deps.StaffRepo,
		fallback:   domain.OwnerInfo{Name: deps.Owner.DefaultName, ID: deps.Owner.DefaultID},
		timeout:    timeout,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        now,
	}
}

// AcquireOwner selects and advances the least recently assigned online staff
// member. It never fails: store errors and an empty pool yield the fallback
// owner with the reason recorded on the Assignment.
//
// The acquisition is detached from ctx cancellation so an aborted request
// cannot leave the rotation half applied; it is still bounded by the
// configured rotation timeout.
func (s *RotationService) AcquireOwner(ctx context.Context) (assignment domain.Assignment) {
	stamp := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("rotation panicked; using fallback owner", zap.Any("panic", r))
			assignment = s.fallbackAssignment(domain.FallbackStoreUnavailable, stamp)
		}
		s.publish(ctx, assignment)
	}()

	if s.staff == nil {
		s.logger.Warn("staff store not configured; using fallback owner")
		return s.fallbackAssignment(domain.FallbackStoreUnavailable, stamp)
	}

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	staff, err := s.staff.AcquireOldestOnline(txCtx, stamp)
	switch {
	case errors.Is(err, repository.ErrNoEligibleStaff):
		s.logger.Warn("no online support staff found; using fallback owner")
		return s.fallbackAssignment(domain.FallbackNoEligibleStaff, stamp)
	case err != nil:
		s.logger.Error("staff store error; using fallback owner", zap.Error(err))
		return s.fallbackAssignment(domain.FallbackStoreUnavailable, stamp)
	}

	s.logger.Info("selected support staff",
		zap.String("name", staff.Name),
		zap.String("id", staff.ID),
		zap.Time("assigned_at", stamp),
	)
	return domain.Assignment{Owner: staff.Owner(), AssignedAt: stamp}
}

func (s *RotationService) fallbackAssignment(reason domain.FallbackReason, stamp time.Time) domain.Assignment {
	return domain.Assignment{Owner: s.fallback, Fallback: reason, AssignedAt: stamp}
}

func (s *RotationService) publish(ctx context.Context, a domain.Assignment) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventOwnerAssigned,
		Timestamp: a.AssignedAt,
		Payload: events.OwnerAssignedPayload{
			OwnerName: a.Owner.Name,
			OwnerID:   a.Owner.ID,
			Fallback:  a.Fallback,
		},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("owner_assigned handlers failed", zap.Error(fmt.Errorf("publish %s: %w", event.ID, err)))
	}
}
