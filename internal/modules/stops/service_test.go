package stops

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"freight-ops/internal/models"

	"go.uber.org/zap"
)

// fakeRepo simulates the upstream TMS: it serves snapshots, records every
// mutation, and applies accepted transitions so follow-up reads see them.
type fakeRepo struct {
	mu         sync.Mutex
	stops      map[string]*models.Stop
	updates    []models.TransitionCommand
	arrivals   []string
	departures []string
	updateErr  error

	// When set, UpdateStopStatus signals started and then waits on block,
	// letting tests hold a mutation in flight.
	started chan struct{}
	block   chan struct{}
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stops: make(map[string]*models.Stop)}
}

func (f *fakeRepo) FindStopByID(ctx context.Context, stopID string) (*models.Stop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stops[stopID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) ListStopsByOrder(ctx context.Context, orderID string) ([]*models.Stop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Stop{}
	for _, s := range f.stops {
		if s.OrderID == orderID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateStopStatus(ctx context.Context, cmd models.TransitionCommand) error {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, cmd)
	if s, ok := f.stops[cmd.StopID]; ok {
		s.Status = cmd.TargetStatus
	}
	return nil
}

func (f *fakeRepo) MarkArrived(ctx context.Context, stopID, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.arrivals = append(f.arrivals, stopID)
	if s, ok := f.stops[stopID]; ok {
		s.Status = models.StatusArrived
		now := base
		s.ArrivedAt = &now
	}
	return nil
}

func (f *fakeRepo) MarkDeparted(ctx context.Context, stopID, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.departures = append(f.departures, stopID)
	if s, ok := f.stops[stopID]; ok {
		s.Status = models.StatusDeparted
		now := base
		s.DepartedAt = &now
	}
	return nil
}

func newTestService(fr *fakeRepo) *Service {
	svc := NewService(fr, zap.NewNop(), 30*time.Second)
	svc.now = func() time.Time { return base }
	return svc
}

// seedRoute populates a minimal valid route: an arrived pickup and a pending
// delivery on order o1.
func seedRoute(fr *fakeRepo) {
	fr.stops["s1"] = routeStop("s1", 1, models.StopTypePickup, models.StatusArrived)
	fr.stops["s2"] = routeStop("s2", 2, models.StopTypeDelivery, models.StatusPending)
}

func TestAdvanceDispatchesOnce(t *testing.T) {
	fr := newFakeRepo()
	seedRoute(fr)
	svc := newTestService(fr)

	if err := svc.Advance(context.Background(), "s1", models.StatusLoading); err != nil {
		t.Fatalf("Advance error: %v", err)
	}

	if len(fr.updates) != 1 {
		t.Fatalf("updates = %d; want exactly 1", len(fr.updates))
	}
	cmd := fr.updates[0]
	if cmd.StopID != "s1" || cmd.OrderID != "o1" || cmd.TargetStatus != models.StatusLoading {
		t.Errorf("command = %+v; want s1/o1 -> LOADING", cmd)
	}
	if cmd.RequestID == "" {
		t.Error("command has no request id")
	}
	if fr.stops["s1"].Status != models.StatusLoading {
		t.Errorf("stop status = %s; want LOADING", fr.stops["s1"].Status)
	}
}

func TestAdvanceRefusesWrongTarget(t *testing.T) {
	fr := newFakeRepo()
	seedRoute(fr)
	svc := newTestService(fr)

	err := svc.Advance(context.Background(), "s1", models.StatusDeparted)
	if !errors.Is(err, models.ErrIllegalTransition) {
		t.Fatalf("Advance wrong target err = %v; want ErrIllegalTransition", err)
	}
	if len(fr.updates) != 0 {
		t.Errorf("upstream contacted on an illegal transition: %d updates", len(fr.updates))
	}
}

func TestAdvanceRefusesTerminalStop(t *testing.T) {
	fr := newFakeRepo()
	seedRoute(fr)
	fr.stops["s1"].Status = models.StatusDeparted
	svc := newTestService(fr)

	err := svc.Advance(context.Background(), "s1", models.StatusEnRoute)
	if !errors.Is(err, models.ErrNoNextAction) {
		t.Fatalf("Advance terminal err = %v; want ErrNoNextAction", err)
	}
	if len(fr.updates) != 0 {
		t.Errorf("upstream contacted for a terminal stop: %d updates", len(fr.updates))
	}
}

func TestAdvanceBlockedByInvalidRoute(t *testing.T) {
	fr := newFakeRepo()
	// Pickup only: no delivery anywhere on the route.
	fr.stops["s1"] = routeStop("s1", 1, models.StopTypePickup, models.StatusArrived)
	svc := newTestService(fr)

	err := svc.Advance(context.Background(), "s1", models.StatusLoading)
	var cfgErr *models.RouteConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Advance on invalid route err = %v; want RouteConfigError", err)
	}
	if len(fr.updates) != 0 {
		t.Errorf("upstream contacted despite invalid route: %d updates", len(fr.updates))
	}
}

func TestAdvanceUnknownStop(t *testing.T) {
	fr := newFakeRepo()
	svc := newTestService(fr)

	if err := svc.Advance(context.Background(), "missing", models.StatusEnRoute); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Advance unknown stop err = %v; want ErrNotFound", err)
	}
}

func TestAdvanceSingleFlightPerStop(t *testing.T) {
	fr := newFakeRepo()
	seedRoute(fr)
	fr.started = make(chan struct{}, 1)
	fr.block = make(chan struct{})
	svc := newTestService(fr)

	done := make(chan error, 1)
	go func() {
		done <- svc.Advance(context.Background(), "s1", models.StatusLoading)
	}()
	<-fr.started // first mutation is now held in flight

	if err := svc.Advance(context.Background(), "s1", models.StatusLoading); !errors.Is(err, models.ErrTransitionInFlight) {
		t.Fatalf("concurrent Advance err = %v; want ErrTransitionInFlight", err)
	}

	// A different stop is independent and must not be blocked.
	fr.started = nil
	if err := svc.Advance(context.Background(), "s2", models.StatusEnRoute); err != nil {
		t.Fatalf("Advance on unrelated stop err = %v; want nil", err)
	}

	close(fr.block)
	if err := <-done; err != nil {
		t.Fatalf("first Advance err = %v; want nil", err)
	}
}

func TestMutationFailureClearsInFlight(t *testing.T) {
	fr := newFakeRepo()
	seedRoute(fr)
	fr.updateErr = errors.New("upstream rejected the update")
	svc := newTestService(fr)

	err := svc.Advance(context.Background(), "s1", models.StatusLoading)
	if err == nil || !strings.Contains(err.Error(), "upstream rejected the update") {
		t.Fatalf("Advance err = %v; want wrapped upstream message", err)
	}
	if fr.stops["s1"].Status != models.StatusArrived {
		t.Errorf("stop status = %s after failure; want last known-good ARRIVED", fr.stops["s1"].Status)
	}

	// The in-flight flag must be cleared so a retry can go through.
	fr.updateErr = nil
	if err := svc.Advance(context.Background(), "s1", models.StatusLoading); err != nil {
		t.Fatalf("retry after failure err = %v; want nil", err)
	}
}

func TestMarkArrivedShortcut(t *testing.T) {
	fr := newFakeRepo()
	seedRoute(fr)
	fr.stops["s1"].Status = models.StatusEnRoute
	svc := newTestService(fr)

	if err := svc.MarkArrived(context.Background(), "s1"); err != nil {
		t.Fatalf("MarkArrived error: %v", err)
	}
	if len(fr.arrivals) != 1 || fr.arrivals[0] != "s1" {
		t.Errorf("arrivals = %v; want [s1]", fr.arrivals)
	}
	if len(fr.updates) != 0 {
		t.Errorf("generic update used for a shortcut: %d updates", len(fr.updates))
	}

	// ARRIVED has exactly one predecessor; anything else is refused.
	if err := svc.MarkArrived(context.Background(), "s2"); !errors.Is(err, models.ErrIllegalTransition) {
		t.Fatalf("MarkArrived from PENDING err = %v; want ErrIllegalTransition", err)
	}
}

func TestMarkDepartedShortcut(t *testing.T) {
	fr := newFakeRepo()
	seedRoute(fr)
	fr.stops["s1"].Status = models.StatusLoaded
	svc := newTestService(fr)

	if err := svc.MarkDeparted(context.Background(), "s1"); err != nil {
		t.Fatalf("MarkDeparted error: %v", err)
	}
	if len(fr.departures) != 1 || fr.departures[0] != "s1" {
		t.Errorf("departures = %v; want [s1]", fr.departures)
	}

	if err := svc.MarkDeparted(context.Background(), "s2"); !errors.Is(err, models.ErrIllegalTransition) {
		t.Fatalf("MarkDeparted from PENDING err = %v; want ErrIllegalTransition", err)
	}
}

func TestGetRouteOverview(t *testing.T) {
	fr := newFakeRepo()
	seedRoute(fr)
	arrived := base.Add(-150 * time.Minute)
	fr.stops["s1"].ArrivedAt = &arrived
	svc := newTestService(fr)

	overview, err := svc.GetRouteOverview(context.Background(), "o1")
	if err != nil {
		t.Fatalf("GetRouteOverview error: %v", err)
	}

	if overview.ConfigError != "" {
		t.Errorf("ConfigError = %q on a valid route", overview.ConfigError)
	}
	if overview.Summary.TotalStops != 2 || overview.Summary.CompletionPercentage != 0 {
		t.Errorf("summary = %+v; want 2 stops at 0%%", overview.Summary)
	}
	if len(overview.Stops) != 2 {
		t.Fatalf("stops = %d; want 2", len(overview.Stops))
	}
	if overview.Stops[0].Stop.ID != "s1" || overview.Stops[1].Stop.ID != "s2" {
		t.Errorf("stops out of sequence order: %s, %s", overview.Stops[0].Stop.ID, overview.Stops[1].Stop.ID)
	}

	first := overview.Stops[0]
	if first.NextAction == nil || first.NextAction.Label != "Start Loading" {
		t.Errorf("next action = %+v; want Start Loading", first.NextAction)
	}
	if first.Dwell == nil || first.Dwell.Hours != 2 || first.Dwell.Minutes != 30 || !first.Dwell.Live {
		t.Errorf("dwell = %+v; want live 2h 30m", first.Dwell)
	}
	if first.Detention == nil || first.Detention.Charge != 37.5 {
		t.Errorf("detention = %+v; want charge 37.5 at defaults", first.Detention)
	}

	second := overview.Stops[1]
	if second.Dwell != nil || second.Detention != nil || second.Variance != nil {
		t.Errorf("pending stop has derived values: %+v", second)
	}
}

func TestGetRouteOverviewWithholdsActionsOnInvalidRoute(t *testing.T) {
	fr := newFakeRepo()
	fr.stops["s1"] = routeStop("s1", 1, models.StopTypePickup, models.StatusArrived)
	svc := newTestService(fr)

	overview, err := svc.GetRouteOverview(context.Background(), "o1")
	if err != nil {
		t.Fatalf("GetRouteOverview error: %v", err)
	}
	if overview.ConfigError == "" {
		t.Error("ConfigError empty for a route missing its delivery")
	}
	for _, detail := range overview.Stops {
		if detail.NextAction != nil {
			t.Errorf("stop %s offered action %+v on an invalid route", detail.Stop.ID, detail.NextAction)
		}
	}
}

func TestInflightGuardTTL(t *testing.T) {
	g := newInflightGuard(30 * time.Second)
	if !g.acquire("s1", base) {
		t.Fatal("fresh acquire failed")
	}
	if g.acquire("s1", base.Add(10*time.Second)) {
		t.Fatal("acquire succeeded while entry still live")
	}
	// An abandoned request must not block the stop forever.
	if !g.acquire("s1", base.Add(31*time.Second)) {
		t.Fatal("acquire failed after TTL expiry")
	}
	g.release("s1")
	if !g.acquire("s1", base.Add(32*time.Second)) {
		t.Fatal("acquire failed after release")
	}
}
