package stops

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"freight-ops/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ServiceInterface defines the stop lifecycle operations exposed to the
// handler layer.
type ServiceInterface interface {
	GetStopDetail(ctx context.Context, stopID string) (*models.StopDetail, error)
	GetRouteOverview(ctx context.Context, orderID string) (*models.RouteOverview, error)
	Advance(ctx context.Context, stopID string, target models.StopStatus) error
	MarkArrived(ctx context.Context, stopID string) error
	MarkDeparted(ctx context.Context, stopID string) error
}

// Service implements the stop lifecycle logic. It proposes transitions to the
// upstream TMS and recomputes derived values from the latest snapshot; it
// never holds authoritative state of its own.
type Service struct {
	repo     RepositoryInterface
	logger   *zap.Logger
	inflight *inflightGuard
	now      func() time.Time
}

// NewService creates a new stop service. inflightTTL bounds how long a stop
// stays locked if an upstream call is abandoned without ever returning.
func NewService(repo RepositoryInterface, logger *zap.Logger, inflightTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		logger:   logger,
		inflight: newInflightGuard(inflightTTL),
		now:      time.Now,
	}
}

// GetStopDetail returns a stop snapshot joined with its next action and
// derived values. The next action is withheld while the stop's route is
// misconfigured, so an incomplete route never offers progression.
func (s *Service) GetStopDetail(ctx context.Context, stopID string) (*models.StopDetail, error) {
	stop, err := s.repo.FindStopByID(ctx, stopID)
	if err != nil {
		return nil, fmt.Errorf("service.GetStopDetail: %w", err)
	}

	routeStops, err := s.repo.ListStopsByOrder(ctx, stop.OrderID)
	if err != nil {
		return nil, fmt.Errorf("service.GetStopDetail: %w", err)
	}

	return s.buildDetail(stop, ValidateRoute(routeStops) == nil)
}

// GetRouteOverview returns the route summary and every stop's detail for one
// order, in sequence order. A configuration problem is reported on the
// overview and suppresses all next actions; it does not fail the read.
func (s *Service) GetRouteOverview(ctx context.Context, orderID string) (*models.RouteOverview, error) {
	routeStops, err := s.repo.ListStopsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.GetRouteOverview: %w", err)
	}

	sort.Slice(routeStops, func(i, j int) bool {
		return routeStops[i].SequenceNumber < routeStops[j].SequenceNumber
	})

	overview := &models.RouteOverview{
		OrderID: orderID,
		Summary: SummarizeRoute(routeStops),
	}

	routeErr := ValidateRoute(routeStops)
	if routeErr != nil {
		overview.ConfigError = routeErr.Error()
	}

	for _, stop := range routeStops {
		detail, err := s.buildDetail(stop, routeErr == nil)
		if err != nil {
			return nil, fmt.Errorf("service.GetRouteOverview: %w", err)
		}
		overview.Stops = append(overview.Stops, detail)
	}
	return overview, nil
}

// Advance applies the generic transition for a stop. The target must match
// the policy's single legal next action; anything else is refused locally
// without contacting the upstream. Requests for a stop with a transition
// already in flight are rejected.
func (s *Service) Advance(ctx context.Context, stopID string, target models.StopStatus) error {
	stop, err := s.repo.FindStopByID(ctx, stopID)
	if err != nil {
		return fmt.Errorf("service.Advance: %w", err)
	}

	if err := s.checkRoute(ctx, stop.OrderID); err != nil {
		return fmt.Errorf("service.Advance: %w", err)
	}

	action, err := NextAction(stop.Status, stop.StopType)
	if err != nil {
		return fmt.Errorf("service.Advance: %w", err)
	}
	if action == nil {
		return models.ErrNoNextAction
	}
	if action.TargetStatus != target {
		return fmt.Errorf("%w: %s cannot move to %s", models.ErrIllegalTransition, stop.Status, target)
	}

	return s.dispatch(ctx, stop, func(ctx context.Context, cmd models.TransitionCommand) error {
		return s.repo.UpdateStopStatus(ctx, cmd)
	}, target)
}

// MarkArrived is the named shortcut for the EN_ROUTE -> ARRIVED step. It does
// not go through the generic transition map; ARRIVED has exactly one
// predecessor, so a local status check is sufficient.
func (s *Service) MarkArrived(ctx context.Context, stopID string) error {
	stop, err := s.repo.FindStopByID(ctx, stopID)
	if err != nil {
		return fmt.Errorf("service.MarkArrived: %w", err)
	}

	if err := s.checkRoute(ctx, stop.OrderID); err != nil {
		return fmt.Errorf("service.MarkArrived: %w", err)
	}
	if !CanMarkArrived(stop.Status) {
		return fmt.Errorf("%w: %s cannot move to %s", models.ErrIllegalTransition, stop.Status, models.StatusArrived)
	}

	return s.dispatch(ctx, stop, func(ctx context.Context, cmd models.TransitionCommand) error {
		return s.repo.MarkArrived(ctx, cmd.StopID, cmd.OrderID)
	}, models.StatusArrived)
}

// MarkDeparted is the named shortcut targeting DEPARTED, legal once loading
// or unloading has finished.
func (s *Service) MarkDeparted(ctx context.Context, stopID string) error {
	stop, err := s.repo.FindStopByID(ctx, stopID)
	if err != nil {
		return fmt.Errorf("service.MarkDeparted: %w", err)
	}

	if err := s.checkRoute(ctx, stop.OrderID); err != nil {
		return fmt.Errorf("service.MarkDeparted: %w", err)
	}
	if !CanMarkDeparted(stop.Status) {
		return fmt.Errorf("%w: %s cannot move to %s", models.ErrIllegalTransition, stop.Status, models.StatusDeparted)
	}

	return s.dispatch(ctx, stop, func(ctx context.Context, cmd models.TransitionCommand) error {
		return s.repo.MarkDeparted(ctx, cmd.StopID, cmd.OrderID)
	}, models.StatusDeparted)
}

// dispatch sends one mutation upstream under the per-stop single-flight
// guard. The guard is released on every path; a failed mutation leaves the
// stop at its last known-good status and the caller free to retry.
func (s *Service) dispatch(ctx context.Context, stop *models.Stop, send func(context.Context, models.TransitionCommand) error, target models.StopStatus) error {
	if !s.inflight.acquire(stop.ID, s.now()) {
		return models.ErrTransitionInFlight
	}
	defer s.inflight.release(stop.ID)

	cmd := models.TransitionCommand{
		RequestID:    uuid.NewString(),
		StopID:       stop.ID,
		OrderID:      stop.OrderID,
		TargetStatus: target,
	}

	s.logger.Info("dispatching stop transition",
		zap.String("request_id", cmd.RequestID),
		zap.String("stop_id", cmd.StopID),
		zap.String("order_id", cmd.OrderID),
		zap.String("from", string(stop.Status)),
		zap.String("to", string(cmd.TargetStatus)),
	)

	if err := send(ctx, cmd); err != nil {
		s.logger.Error("stop transition failed",
			zap.String("request_id", cmd.RequestID),
			zap.String("stop_id", cmd.StopID),
			zap.Error(err),
		)
		return fmt.Errorf("service.dispatch: %w", err)
	}
	return nil
}

// checkRoute fails closed before any progression on a misconfigured route.
func (s *Service) checkRoute(ctx context.Context, orderID string) error {
	routeStops, err := s.repo.ListStopsByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if len(routeStops) == 0 {
		return models.ErrRouteNotConfigured
	}
	return ValidateRoute(routeStops)
}

func (s *Service) buildDetail(stop *models.Stop, offerAction bool) (*models.StopDetail, error) {
	detail := &models.StopDetail{
		Stop:      stop,
		Dwell:     Dwell(stop, s.now()),
		Detention: Detention(stop, s.now()),
		Variance:  Variance(stop),
	}

	if offerAction {
		action, err := NextAction(stop.Status, stop.StopType)
		if err != nil {
			return nil, err
		}
		detail.NextAction = action
	}
	return detail, nil
}

// inflightGuard serializes mutations per stop. Entries older than ttl are
// treated as abandoned so a lost upstream response cannot block a stop
// forever.
type inflightGuard struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]time.Time
}

func newInflightGuard(ttl time.Duration) *inflightGuard {
	return &inflightGuard{
		ttl:     ttl,
		pending: make(map[string]time.Time),
	}
}

func (g *inflightGuard) acquire(stopID string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if started, ok := g.pending[stopID]; ok && now.Sub(started) < g.ttl {
		return false
	}
	g.pending[stopID] = now
	return true
}

func (g *inflightGuard) release(stopID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, stopID)
}
