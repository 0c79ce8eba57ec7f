package services

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/clock"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/keylock"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/realtime"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/repository"
	"github.com/google/uuid"
)

type fixture struct {
	store      *repository.MemoryStore
	clock      *clock.Manual
	hub        *realtime.Hub
	limiter    *RateLimiter
	risk       *ZoneRiskService
	notifier   *NotificationService
	lifecycle  *LifecycleService
	zone       *models.Zone
	otherZone  *models.Zone
	incident   *models.IncidentType
	reporter   models.Actor
	admin      models.Actor
	officer    models.Actor
	officer2   models.Actor
	superAdmin models.Actor
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	rejectTarget models.ReportState
	limit        int
	window       time.Duration
	wrap         func(*repository.MemoryStore) repository.Store
}

func withRejectTarget(s models.ReportState) fixtureOption {
	return func(c *fixtureConfig) { c.rejectTarget = s }
}

func withWindow(d time.Duration) fixtureOption {
	return func(c *fixtureConfig) { c.window = d }
}

// withWrap puts a decorator between the services and the seeded memory store.
func withWrap(wrap func(*repository.MemoryStore) repository.Store) fixtureOption {
	return func(c *fixtureConfig) { c.wrap = wrap }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{rejectTarget: models.StateInProcess, limit: 3}
	for _, o := range opts {
		o(&cfg)
	}

	ctx := context.Background()
	mem := repository.NewMemoryStore()
	var store repository.Store = mem
	if cfg.wrap != nil {
		store = cfg.wrap(mem)
	}

	lima := time.FixedZone("PET", -5*60*60)
	f := &fixture{
		store: mem,
		clock: clock.NewManual(time.Date(2026, 10, 14, 9, 0, 0, 0, lima)),
		hub:   realtime.NewHub(64, 100),
	}

	f.zone = &models.Zone{ID: uuid.New(), SiteID: uuid.New(), Name: "Library", Active: true, Status: models.ZoneSafe}
	f.otherZone = &models.Zone{ID: uuid.New(), SiteID: f.zone.SiteID, Name: "Parking", Active: true, Status: models.ZoneSafe}
	f.incident = &models.IncidentType{ID: uuid.New(), Name: "Theft"}
	for _, z := range []*models.Zone{f.zone, f.otherZone} {
		if err := mem.UpsertZone(ctx, z); err != nil {
			t.Fatalf("UpsertZone: %v", err)
		}
	}
	if err := mem.UpsertIncidentType(ctx, f.incident); err != nil {
		t.Fatalf("UpsertIncidentType: %v", err)
	}

	newActor := func(role models.Role) models.Actor {
		a := models.Actor{UserID: uuid.New(), Role: role}
		if err := mem.UpsertUser(ctx, &models.User{ID: a.UserID, Email: a.UserID.String() + "@campus.test", Role: role, Enabled: true}); err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
		return a
	}
	f.reporter = newActor(models.RoleUser)
	f.admin = newActor(models.RoleAdmin)
	f.officer = newActor(models.RoleSecurity)
	f.officer2 = newActor(models.RoleSecurity)
	f.superAdmin = newActor(models.RoleSuperAdmin)

	locker := keylock.NewLocal()
	f.limiter = NewRateLimiter(store, f.clock, cfg.limit, []models.Role{models.RoleAdmin, models.RoleSecurity})
	f.notifier = NewNotificationService(f.hub, store)
	f.risk = NewZoneRiskService(store, locker, f.clock, f.notifier, ZoneRiskConfig{
		Thresholds: DefaultThresholds,
		Window:     cfg.window,
		CacheTTL:   time.Minute,
	})
	f.lifecycle = NewLifecycleService(store, f.limiter, f.risk, f.notifier, locker, f.clock, LifecycleConfig{RejectTarget: cfg.rejectTarget})
	return f
}

func (f *fixture) input() CreateReportInput {
	return CreateReportInput{
		IncidentTypeID: f.incident.ID,
		ZoneID:         f.zone.ID,
		Description:    "Laptop stolen from the second floor",
		ContactInfo:    "+51 999 000 111",
	}
}

func (f *fixture) create(t *testing.T) *models.Report {
	t.Helper()
	r, err := f.lifecycle.CreateReport(context.Background(), f.reporter, f.input())
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	return r
}

func (f *fixture) apply(t *testing.T, id uuid.UUID, op Operation, actor models.Actor, p TransitionPayload) *models.ReportManagement {
	t.Helper()
	m, err := f.lifecycle.ApplyTransition(context.Background(), id, op, actor, p)
	if err != nil {
		t.Fatalf("%s: %v", op, err)
	}
	return m
}

func (f *fixture) assign(t *testing.T, id uuid.UUID) {
	t.Helper()
	officer := f.officer.UserID
	f.apply(t, id, OpAssignSecurity, f.admin, TransitionPayload{Priority: models.PriorityHigh, SecurityUserID: &officer})
}

// resolve drives a fresh report all the way to RESUELTO.
func (f *fixture) resolve(t *testing.T, id uuid.UUID) {
	t.Helper()
	f.assign(t, id)
	f.apply(t, id, OpCompleteWithNote, f.officer, TransitionPayload{Note: "done"})
	f.apply(t, id, OpApprove, f.admin, TransitionPayload{})
}

// forceState writes a management record directly, bypassing the engine.
func (f *fixture) forceState(t *testing.T, id uuid.UUID, state models.ReportState) {
	t.Helper()
	ctx := context.Background()
	m, err := f.store.GetManagement(ctx, id)
	if err != nil {
		t.Fatalf("GetManagement: %v", err)
	}
	officer := f.officer.UserID
	next := *m
	next.State = state
	next.Priority = models.PriorityMedium
	next.AssignedSecurityID = &officer
	next.Version = m.Version + 1
	if err := f.store.UpdateManagement(ctx, &next, m.Version); err != nil {
		t.Fatalf("UpdateManagement: %v", err)
	}
}

func (f *fixture) state(t *testing.T, id uuid.UUID) models.ReportState {
	t.Helper()
	m, err := f.store.GetManagement(context.Background(), id)
	if err != nil {
		t.Fatalf("GetManagement: %v", err)
	}
	return m.State
}

func drainEvents(sub *realtime.Subscription) []realtime.Event {
	var out []realtime.Event
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}
