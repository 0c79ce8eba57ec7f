// Package repository is the durable record of reports, zones, quotas and the
// staff directory. It offers a PostgreSQL implementation over GORM and an
// in-process implementation with the same atomicity guarantees.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict means a compare-and-swap write found a newer version.
	ErrConflict = errors.New("record was modified concurrently")
)

type ReportFilter struct {
	State              models.ReportState
	Priority           models.Priority
	Anonymous          *bool
	ZoneID             *uuid.UUID
	SiteID             *uuid.UUID
	ReporterID         *uuid.UUID
	AssignedSecurityID *uuid.UUID
	Limit              int
	Offset             int
}

type ReportRepository interface {
	// CreateReport stores the report and its initial management record together.
	CreateReport(ctx context.Context, report *models.Report, mgmt *models.ReportManagement) error
	// GetReport returns the report with its management record attached.
	GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error)
	GetManagement(ctx context.Context, reportID uuid.UUID) (*models.ReportManagement, error)
	// UpdateManagement overwrites the record only if its stored version still
	// equals expectedVersion; otherwise it returns ErrConflict.
	UpdateManagement(ctx context.Context, mgmt *models.ReportManagement, expectedVersion int) error
	ListReports(ctx context.Context, filter ReportFilter) ([]models.Report, int64, error)
	// CountResolved counts RESUELTO reports in a zone whose last update is at or
	// after since. A zero since counts all time.
	CountResolved(ctx context.Context, zoneID uuid.UUID, since time.Time) (int, error)
}

type ZoneRepository interface {
	GetZone(ctx context.Context, id uuid.UUID) (*models.Zone, error)
	ListZones(ctx context.Context, siteID *uuid.UUID, activeOnly bool) ([]models.Zone, error)
	// UpdateZoneRisk writes the derived fields only.
	UpdateZoneRisk(ctx context.Context, id uuid.UUID, count int, status models.ZoneStatus, at time.Time) error
}

type QuotaRepository interface {
	// ConsumeQuota atomically resets the counter if date differs from the stored
	// date, then increments it unless the limit is already reached. It returns
	// the new attempt count and whether the attempt was accepted.
	ConsumeQuota(ctx context.Context, userID uuid.UUID, date string, limit int, at time.Time) (int, bool, error)
	// RefundQuota gives back one attempt consumed on date.
	RefundQuota(ctx context.Context, userID uuid.UUID, date string, at time.Time) error
	GetQuota(ctx context.Context, userID uuid.UUID) (*models.UserDailyQuota, error)
}

type UserRepository interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CatalogRepository holds the administratively managed static data.
type CatalogRepository interface {
	UpsertSite(ctx context.Context, site *models.Site) error
	// UpsertZone writes static zone fields and never touches derived ones.
	UpsertZone(ctx context.Context, zone *models.Zone) error
	UpsertIncidentType(ctx context.Context, it *models.IncidentType) error
	GetIncidentType(ctx context.Context, id uuid.UUID) (*models.IncidentType, error)
	UpsertUser(ctx context.Context, user *models.User) error
}

type Store interface {
	ReportRepository
	ZoneRepository
	QuotaRepository
	UserRepository
	CatalogRepository
	Ping(ctx context.Context) error
}
