package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// consumeQuotaSQL performs the lazy daily reset and the increment in a single
// statement. The conflicting row is locked for the duration of the upsert, so
// concurrent submissions for one user are serialized by PostgreSQL.
const consumeQuotaSQL = `INSERT INTO user_daily_quotas (user_id, attempts_today, last_report_date, updated_at)
VALUES (?, 1, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
	attempts_today = CASE WHEN user_daily_quotas.last_report_date = EXCLUDED.last_report_date
		THEN user_daily_quotas.attempts_today + 1 ELSE 1 END,
	last_report_date = EXCLUDED.last_report_date,
	updated_at = EXCLUDED.updated_at
WHERE user_daily_quotas.last_report_date <> EXCLUDED.last_report_date
	OR user_daily_quotas.attempts_today < ?
RETURNING attempts_today`

const refundQuotaSQL = `UPDATE user_daily_quotas
SET attempts_today = attempts_today - 1, updated_at = ?
WHERE user_id = ? AND last_report_date = ? AND attempts_today > 0`

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying handle for infrastructure that shares the pool.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) CreateReport(ctx context.Context, report *models.Report, mgmt *models.ReportManagement) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(report).Error; err != nil {
			return err
		}
		return tx.Create(mgmt).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	report.Management = mgmt
	return nil
}

func (s *GormStore) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := s.db.WithContext(ctx).Preload("Management").First(&report, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

func (s *GormStore) GetManagement(ctx context.Context, reportID uuid.UUID) (*models.ReportManagement, error) {
	var mgmt models.ReportManagement
	err := s.db.WithContext(ctx).First(&mgmt, "report_id = ?", reportID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report management: %w", err)
	}
	return &mgmt, nil
}

func (s *GormStore) UpdateManagement(ctx context.Context, mgmt *models.ReportManagement, expectedVersion int) error {
	result := s.db.WithContext(ctx).Model(&models.ReportManagement{}).
		Where("report_id = ? AND version = ?", mgmt.ReportID, expectedVersion).
		Updates(map[string]interface{}{
			"state":                mgmt.State,
			"priority":             mgmt.Priority,
			"assigned_security_id": mgmt.AssignedSecurityID,
			"security_note":        mgmt.SecurityNote,
			"admin_note":           mgmt.AdminNote,
			"version":              mgmt.Version,
			"last_updated_at":      mgmt.LastUpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update report management: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.ReportManagement{}).
			Where("report_id = ?", mgmt.ReportID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check report management: %w", err)
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (s *GormStore) ListReports(ctx context.Context, filter ReportFilter) ([]models.Report, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Report{}).
		Joins("JOIN report_managements ON report_managements.report_id = reports.id")

	if filter.State != "" {
		query = query.Where("report_managements.state = ?", filter.State)
	}
	if filter.Priority != "" {
		query = query.Where("report_managements.priority = ?", filter.Priority)
	}
	if filter.AssignedSecurityID != nil {
		query = query.Where("report_managements.assigned_security_id = ?", *filter.AssignedSecurityID)
	}
	if filter.Anonymous != nil {
		query = query.Where("reports.is_anonymous = ?", *filter.Anonymous)
	}
	if filter.ZoneID != nil {
		query = query.Where("reports.zone_id = ?", *filter.ZoneID)
	}
	if filter.ReporterID != nil {
		query = query.Where("reports.reporter_id = ?", *filter.ReporterID)
	}
	if filter.SiteID != nil {
		query = query.Joins("JOIN zones ON zones.id = reports.zone_id").
			Where("zones.site_id = ?", *filter.SiteID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var reports []models.Report
	if err := query.Preload("Management").Order("reports.created_at DESC").Find(&reports).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, total, nil
}

func (s *GormStore) CountResolved(ctx context.Context, zoneID uuid.UUID, since time.Time) (int, error) {
	query := s.db.WithContext(ctx).Model(&models.ReportManagement{}).
		Joins("JOIN reports ON reports.id = report_managements.report_id").
		Where("reports.zone_id = ? AND report_managements.state = ?", zoneID, models.StateResolved)
	if !since.IsZero() {
		query = query.Where("report_managements.last_updated_at >= ?", since)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count resolved reports: %w", err)
	}
	return int(count), nil
}

func (s *GormStore) GetZone(ctx context.Context, id uuid.UUID) (*models.Zone, error) {
	var zone models.Zone
	err := s.db.WithContext(ctx).First(&zone, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}
	return &zone, nil
}

func (s *GormStore) ListZones(ctx context.Context, siteID *uuid.UUID, activeOnly bool) ([]models.Zone, error) {
	query := s.db.WithContext(ctx).Model(&models.Zone{})
	if siteID != nil {
		query = query.Where("site_id = ?", *siteID)
	}
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var zones []models.Zone
	if err := query.Order("name ASC").Find(&zones).Error; err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	return zones, nil
}

func (s *GormStore) UpdateZoneRisk(ctx context.Context, id uuid.UUID, count int, status models.ZoneStatus, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.Zone{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"rolling_incident_count": count,
			"status":                 status,
			"status_updated_at":      at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update zone risk: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ConsumeQuota(ctx context.Context, userID uuid.UUID, date string, limit int, at time.Time) (int, bool, error) {
	rows, err := s.db.WithContext(ctx).Raw(consumeQuotaSQL, userID, date, at, limit).Rows()
	if err != nil {
		return 0, false, fmt.Errorf("failed to consume quota: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, false, fmt.Errorf("failed to consume quota: %w", err)
		}
		return limit, false, nil
	}

	var attempts int
	if err := rows.Scan(&attempts); err != nil {
		return 0, false, fmt.Errorf("failed to read quota: %w", err)
	}
	return attempts, true, nil
}

func (s *GormStore) RefundQuota(ctx context.Context, userID uuid.UUID, date string, at time.Time) error {
	if err := s.db.WithContext(ctx).Exec(refundQuotaSQL, at, userID, date).Error; err != nil {
		return fmt.Errorf("failed to refund quota: %w", err)
	}
	return nil
}

func (s *GormStore) GetQuota(ctx context.Context, userID uuid.UUID) (*models.UserDailyQuota, error) {
	var quota models.UserDailyQuota
	err := s.db.WithContext(ctx).First(&quota, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}
	return &quota, nil
}

func (s *GormStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *GormStore) UpsertSite(ctx context.Context, site *models.Site) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "address", "updated_at"}),
	}).Create(site).Error
}

func (s *GormStore) UpsertZone(ctx context.Context, zone *models.Zone) error {
	if zone.Status == "" {
		zone.Status = models.ZoneSafe
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"site_id", "name", "description", "active", "updated_at"}),
	}).Create(zone).Error
}

func (s *GormStore) UpsertIncidentType(ctx context.Context, it *models.IncidentType) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "updated_at"}),
	}).Create(it).Error
}

func (s *GormStore) GetIncidentType(ctx context.Context, id uuid.UUID) (*models.IncidentType, error) {
	var it models.IncidentType
	err := s.db.WithContext(ctx).First(&it, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident type: %w", err)
	}
	return &it, nil
}

func (s *GormStore) UpsertUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "full_name", "role", "enabled", "updated_at"}),
	}).Create(user).Error
}

var _ Store = (*GormStore)(nil)
