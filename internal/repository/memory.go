package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. All writes happen under one
// mutex, which gives it the same compare-and-swap and atomic quota semantics
// as the PostgreSQL store.
type MemoryStore struct {
	mu            sync.RWMutex
	reports       map[uuid.UUID]models.Report
	managements   map[uuid.UUID]models.ReportManagement
	zones         map[uuid.UUID]models.Zone
	sites         map[uuid.UUID]models.Site
	incidentTypes map[uuid.UUID]models.IncidentType
	users         map[uuid.UUID]models.User
	quotas        map[uuid.UUID]models.UserDailyQuota
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:       make(map[uuid.UUID]models.Report),
		managements:   make(map[uuid.UUID]models.ReportManagement),
		zones:         make(map[uuid.UUID]models.Zone),
		sites:         make(map[uuid.UUID]models.Site),
		incidentTypes: make(map[uuid.UUID]models.IncidentType),
		users:         make(map[uuid.UUID]models.User),
		quotas:        make(map[uuid.UUID]models.UserDailyQuota),
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func copyManagement(m models.ReportManagement) *models.ReportManagement {
	if m.AssignedSecurityID != nil {
		id := *m.AssignedSecurityID
		m.AssignedSecurityID = &id
	}
	return &m
}

func (s *MemoryStore) CreateReport(ctx context.Context, report *models.Report, mgmt *models.ReportManagement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[report.ID]; exists {
		return ErrConflict
	}
	stored := *report
	stored.Management = nil
	s.reports[report.ID] = stored
	s.managements[mgmt.ReportID] = *copyManagement(*mgmt)
	report.Management = mgmt
	return nil
}

func (s *MemoryStore) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reportLocked(id)
}

func (s *MemoryStore) reportLocked(id uuid.UUID) (*models.Report, error) {
	report, ok := s.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	if mgmt, ok := s.managements[id]; ok {
		report.Management = copyManagement(mgmt)
	}
	return &report, nil
}

func (s *MemoryStore) GetManagement(ctx context.Context, reportID uuid.UUID) (*models.ReportManagement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	mgmt, ok := s.managements[reportID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyManagement(mgmt), nil
}

func (s *MemoryStore) UpdateManagement(ctx context.Context, mgmt *models.ReportManagement, expectedVersion int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.managements[mgmt.ReportID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrConflict
	}
	s.managements[mgmt.ReportID] = *copyManagement(*mgmt)
	return nil
}

func (s *MemoryStore) ListReports(ctx context.Context, filter ReportFilter) ([]models.Report, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Report
	for id := range s.reports {
		report, _ := s.reportLocked(id)
		if !s.matchesLocked(report, filter) {
			continue
		}
		matched = append(matched, *report)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (s *MemoryStore) matchesLocked(r *models.Report, f ReportFilter) bool {
	m := r.Management
	if m == nil {
		return false
	}
	if f.State != "" && m.State != f.State {
		return false
	}
	if f.Priority != "" && m.Priority != f.Priority {
		return false
	}
	if f.AssignedSecurityID != nil && !m.IsAssignedTo(*f.AssignedSecurityID) {
		return false
	}
	if f.Anonymous != nil && r.IsAnonymous != *f.Anonymous {
		return false
	}
	if f.ZoneID != nil && r.ZoneID != *f.ZoneID {
		return false
	}
	if f.ReporterID != nil && r.ReporterID != *f.ReporterID {
		return false
	}
	if f.SiteID != nil {
		zone, ok := s.zones[r.ZoneID]
		if !ok || zone.SiteID != *f.SiteID {
			return false
		}
	}
	return true
}

func (s *MemoryStore) CountResolved(ctx context.Context, zoneID uuid.UUID, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for id, report := range s.reports {
		if report.ZoneID != zoneID {
			continue
		}
		mgmt, ok := s.managements[id]
		if !ok || mgmt.State != models.StateResolved {
			continue
		}
		if !since.IsZero() && mgmt.LastUpdatedAt.Before(since) {
			continue
		}
		count++
	}
	return count, nil
}

func (s *MemoryStore) GetZone(ctx context.Context, id uuid.UUID) (*models.Zone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	zone, ok := s.zones[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &zone, nil
}

func (s *MemoryStore) ListZones(ctx context.Context, siteID *uuid.UUID, activeOnly bool) ([]models.Zone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	zones := make([]models.Zone, 0, len(s.zones))
	for _, z := range s.zones {
		if siteID != nil && z.SiteID != *siteID {
			continue
		}
		if activeOnly && !z.Active {
			continue
		}
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Name < zones[j].Name })
	return zones, nil
}

func (s *MemoryStore) UpdateZoneRisk(ctx context.Context, id uuid.UUID, count int, status models.ZoneStatus, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	zone, ok := s.zones[id]
	if !ok {
		return ErrNotFound
	}
	zone.RollingIncidentCount = count
	zone.Status = status
	stamp := at
	zone.StatusUpdatedAt = &stamp
	s.zones[id] = zone
	return nil
}

func (s *MemoryStore) ConsumeQuota(ctx context.Context, userID uuid.UUID, date string, limit int, at time.Time) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotas[userID]
	if !ok || q.LastReportDate != date {
		q = models.UserDailyQuota{UserID: userID, AttemptsToday: 0, LastReportDate: date}
	}
	if q.AttemptsToday >= limit {
		return q.AttemptsToday, false, nil
	}
	q.AttemptsToday++
	q.UpdatedAt = at
	s.quotas[userID] = q
	return q.AttemptsToday, true, nil
}

func (s *MemoryStore) RefundQuota(ctx context.Context, userID uuid.UUID, date string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotas[userID]
	if !ok || q.LastReportDate != date || q.AttemptsToday == 0 {
		return nil
	}
	q.AttemptsToday--
	q.UpdatedAt = at
	s.quotas[userID] = q
	return nil
}

func (s *MemoryStore) GetQuota(ctx context.Context, userID uuid.UUID) (*models.UserDailyQuota, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotas[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &q, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) UpsertSite(ctx context.Context, site *models.Site) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[site.ID] = *site
	return nil
}

func (s *MemoryStore) UpsertZone(ctx context.Context, zone *models.Zone) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *zone
	if existing, ok := s.zones[zone.ID]; ok {
		next.RollingIncidentCount = existing.RollingIncidentCount
		next.Status = existing.Status
		next.StatusUpdatedAt = existing.StatusUpdatedAt
		next.CreatedAt = existing.CreatedAt
	} else if next.Status == "" {
		next.Status = models.ZoneSafe
	}
	s.zones[zone.ID] = next
	return nil
}

func (s *MemoryStore) UpsertIncidentType(ctx context.Context, it *models.IncidentType) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidentTypes[it.ID] = *it
	return nil
}

func (s *MemoryStore) GetIncidentType(ctx context.Context, id uuid.UUID) (*models.IncidentType, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.incidentTypes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &it, nil
}

func (s *MemoryStore) UpsertUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
	return nil
}

var _ Store = (*MemoryStore)(nil)
