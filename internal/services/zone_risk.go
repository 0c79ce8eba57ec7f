package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/clock"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/keylock"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/repository"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Thresholds struct {
	CautionAt int
	DangerAt  int
}

var DefaultThresholds = Thresholds{CautionAt: 2, DangerAt: 3}

func (t Thresholds) valid() bool {
	return t.CautionAt >= 1 && t.DangerAt > t.CautionAt
}

// StatusFor derives a zone status from its resolved-incident count.
func StatusFor(count int, t Thresholds) models.ZoneStatus {
	switch {
	case count >= t.DangerAt:
		return models.ZoneDangerous
	case count >= t.CautionAt:
		return models.ZoneCaution
	default:
		return models.ZoneSafe
	}
}

// ZoneChangeNotifier is told when a zone's derived status changes.
type ZoneChangeNotifier interface {
	ZoneStatusChanged(ctx context.Context, zone *models.Zone, previous models.ZoneStatus)
}

type ZoneRiskConfig struct {
	Thresholds Thresholds
	// Window bounds which resolutions count. Zero counts all time.
	Window   time.Duration
	CacheTTL time.Duration
}

// ZoneRiskService recomputes zone status from the authoritative resolved count.
type ZoneRiskService struct {
	zones      repository.ZoneRepository
	reports    repository.ReportRepository
	locker     keylock.Locker
	clock      clock.Clock
	notifier   ZoneChangeNotifier
	thresholds Thresholds
	window     time.Duration
	cache      *expirable.LRU[uuid.UUID, models.Zone]

	// cacheGen is bumped on every invalidation; a reader only fills the cache
	// if the generation it saw before loading is still current.
	cacheMu  sync.Mutex
	cacheGen map[uuid.UUID]uint64

	staleMu sync.Mutex
	stale   map[uuid.UUID]struct{}
}

func NewZoneRiskService(store repository.Store, locker keylock.Locker, clk clock.Clock, notifier ZoneChangeNotifier, cfg ZoneRiskConfig) *ZoneRiskService {
	th := cfg.Thresholds
	if !th.valid() {
		slog.Warn("invalid zone thresholds, using defaults", "component", "zones", "caution_at", th.CautionAt, "danger_at", th.DangerAt)
		th = DefaultThresholds
	}
	s := &ZoneRiskService{
		zones:      store,
		reports:    store,
		locker:     locker,
		clock:      clk,
		notifier:   notifier,
		thresholds: th,
		window:     cfg.Window,
		cacheGen:   make(map[uuid.UUID]uint64),
		stale:      make(map[uuid.UUID]struct{}),
	}
	if cfg.CacheTTL > 0 {
		s.cache = expirable.NewLRU[uuid.UUID, models.Zone](1024, nil, cfg.CacheTTL)
	}
	return s
}

func (s *ZoneRiskService) Thresholds() Thresholds {
	return s.thresholds
}

// Recompute recounts resolved reports in the zone and writes the derived
// fields. Running it again without new data yields the same result.
func (s *ZoneRiskService) Recompute(ctx context.Context, zoneID uuid.UUID) (*models.Zone, error) {
	unlock, err := s.locker.Lock(ctx, "zone:"+zoneID.String())
	if err != nil {
		return nil, storeError("failed to lock zone", err)
	}
	defer unlock()

	zone, err := s.zones.GetZone(ctx, zoneID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, "zone %s not found", zoneID)
	}
	if err != nil {
		return nil, storeError("failed to load zone", err)
	}

	now := s.clock.Now()
	var since time.Time
	if s.window > 0 {
		since = now.Add(-s.window)
	}

	count, err := s.reports.CountResolved(ctx, zoneID, since)
	if err != nil {
		return nil, storeError("failed to count resolved reports", err)
	}

	previous := zone.Status
	status := StatusFor(count, s.thresholds)
	if err := s.zones.UpdateZoneRisk(ctx, zoneID, count, status, now); err != nil {
		return nil, storeError("failed to update zone risk", err)
	}

	zone.RollingIncidentCount = count
	zone.Status = status
	zone.StatusUpdatedAt = &now
	s.invalidate(zoneID)
	s.clearStale(zoneID)

	changed := previous != status
	metrics.ZoneRecomputeTotal.WithLabelValues(boolLabel(changed)).Inc()
	metrics.ZoneStatus.WithLabelValues(zoneID.String()).Set(statusValue(status))

	if changed {
		slog.Info("zone status changed", "component", "zones", "zone_id", zoneID, "from", previous, "to", status, "count", count)
		if s.notifier != nil {
			s.notifier.ZoneStatusChanged(ctx, zone, previous)
		}
	}
	return zone, nil
}

// RecomputeAfterCommit is called once a report change is durable. A failure is
// logged and the zone is queued for the next sweep, because the report change
// itself has already succeeded.
func (s *ZoneRiskService) RecomputeAfterCommit(ctx context.Context, zoneID uuid.UUID) {
	if _, err := s.Recompute(ctx, zoneID); err != nil {
		s.markStale(zoneID)
		slog.Error("zone recompute failed, queued for retry", "component", "zones", "zone_id", zoneID, "error", err)
	}
}

// RecomputeAll recomputes every zone and returns how many were processed.
func (s *ZoneRiskService) RecomputeAll(ctx context.Context) (int, error) {
	zones, err := s.zones.ListZones(ctx, nil, false)
	if err != nil {
		return 0, storeError("failed to list zones", err)
	}
	done := 0
	for _, z := range zones {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := s.Recompute(ctx, z.ID); err != nil {
			s.markStale(z.ID)
			slog.Error("zone recompute failed during sweep", "component", "zones", "zone_id", z.ID, "error", err)
			continue
		}
		done++
	}
	return done, nil
}

// RetryStale recomputes zones whose recompute failed earlier.
func (s *ZoneRiskService) RetryStale(ctx context.Context) int {
	s.staleMu.Lock()
	ids := make([]uuid.UUID, 0, len(s.stale))
	for id := range s.stale {
		ids = append(ids, id)
	}
	s.staleMu.Unlock()

	fixed := 0
	for _, id := range ids {
		if _, err := s.Recompute(ctx, id); err == nil {
			fixed++
		}
	}
	return fixed
}

func (s *ZoneRiskService) StaleCount() int {
	s.staleMu.Lock()
	defer s.staleMu.Unlock()
	return len(s.stale)
}

func (s *ZoneRiskService) markStale(id uuid.UUID) {
	s.staleMu.Lock()
	s.stale[id] = struct{}{}
	s.staleMu.Unlock()
}

func (s *ZoneRiskService) clearStale(id uuid.UUID) {
	s.staleMu.Lock()
	delete(s.stale, id)
	s.staleMu.Unlock()
}

// GetZoneStatus returns the zone through a short-lived cache that Recompute
// invalidates.
func (s *ZoneRiskService) GetZoneStatus(ctx context.Context, zoneID uuid.UUID) (*models.Zone, error) {
	if s.cache == nil {
		return s.loadZone(ctx, zoneID)
	}
	if z, ok := s.cache.Get(zoneID); ok {
		return &z, nil
	}

	s.cacheMu.Lock()
	gen := s.cacheGen[zoneID]
	s.cacheMu.Unlock()

	zone, err := s.loadZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	if s.cacheGen[zoneID] == gen {
		s.cache.Add(zoneID, *zone)
	}
	s.cacheMu.Unlock()
	return zone, nil
}

func (s *ZoneRiskService) loadZone(ctx context.Context, zoneID uuid.UUID) (*models.Zone, error) {
	zone, err := s.zones.GetZone(ctx, zoneID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, "zone %s not found", zoneID)
	}
	if err != nil {
		return nil, storeError("failed to load zone", err)
	}
	return zone, nil
}

func (s *ZoneRiskService) invalidate(zoneID uuid.UUID) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	s.cacheGen[zoneID]++
	s.cache.Remove(zoneID)
	s.cacheMu.Unlock()
}

func (s *ZoneRiskService) ListZones(ctx context.Context, siteID *uuid.UUID) ([]models.Zone, error) {
	zones, err := s.zones.ListZones(ctx, siteID, true)
	if err != nil {
		return nil, storeError("failed to list zones", err)
	}
	return zones, nil
}

const staleRetryInterval = 30 * time.Second

// StartSweep retries stale zones every 30 seconds and, when interval is
// positive, recomputes every zone on that interval. With several replicas only
// the holder of the sweep lock runs a full sweep.
func (s *ZoneRiskService) StartSweep(interval time.Duration, done <-chan struct{}) {
	go func() {
		retry := time.NewTicker(staleRetryInterval)
		defer retry.Stop()

		var sweep <-chan time.Time
		if interval > 0 {
			t := time.NewTicker(interval)
			defer t.Stop()
			sweep = t.C
		}

		for {
			select {
			case <-retry.C:
				if n := s.RetryStale(context.Background()); n > 0 {
					slog.Info("stale zones recomputed", "component", "zones", "count", n)
				}
			case <-sweep:
				s.sweepOnce(interval)
			case <-done:
				return
			}
		}
	}()
}

func (s *ZoneRiskService) sweepOnce(interval time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), interval)
	defer cancel()

	unlock, err := s.locker.TryLock(ctx, "zones:sweep", interval)
	if errors.Is(err, keylock.ErrNotObtained) {
		return
	}
	if err != nil {
		slog.Warn("zone sweep lock failed", "component", "zones", "error", err)
		return
	}
	defer unlock()

	n, err := s.RecomputeAll(ctx)
	if err != nil {
		slog.Error("zone sweep aborted", "component", "zones", "processed", n, "error", err)
		return
	}
	slog.Info("zone sweep completed", "component", "zones", "processed", n)
}

func statusValue(s models.ZoneStatus) float64 {
	switch s {
	case models.ZoneCaution:
		return 1
	case models.ZoneDangerous:
		return 2
	}
	return 0
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
