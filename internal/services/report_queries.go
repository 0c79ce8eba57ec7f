package services

import (
	"context"
	"errors"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/repository"
	"github.com/google/uuid"
)

const maxPageSize = 100

// redactFor hides who filed an anonymous report from everyone but its author.
func redactFor(actor models.Actor, r *models.Report) {
	if !r.IsAnonymous || r.ReporterID == actor.UserID {
		return
	}
	r.ReporterID = uuid.Nil
	r.ContactInfo = ""
}

func canView(actor models.Actor, r *models.Report) bool {
	switch {
	case r.ReporterID == actor.UserID:
		return true
	case actor.Role == models.RoleAdmin:
		return true
	case actor.Role == models.RoleSecurity && r.Management != nil && r.Management.IsAssignedTo(actor.UserID):
		return true
	}
	return false
}

// GetReport returns a report to its reporter, administrators and the
// assigned officer.
func (s *LifecycleService) GetReport(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Report, error) {
	report, err := s.store.GetReport(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, "report %s not found", id)
	}
	if err != nil {
		return nil, storeError("failed to load report", err)
	}
	if !canView(actor, report) {
		return nil, newError(KindForbidden, "report %s is not visible to you", id)
	}
	redactFor(actor, report)
	return report, nil
}

// ListMine returns the caller's own reports.
func (s *LifecycleService) ListMine(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Report, int64, error) {
	id := actor.UserID
	return s.list(ctx, actor, repository.ReportFilter{ReporterID: &id, Limit: limit, Offset: offset})
}

// ListAssigned returns the reports assigned to the calling officer.
func (s *LifecycleService) ListAssigned(ctx context.Context, actor models.Actor, state models.ReportState, limit, offset int) ([]models.Report, int64, error) {
	if actor.Role != models.RoleSecurity {
		return nil, 0, newError(KindForbidden, "only security officers have assignments")
	}
	id := actor.UserID
	return s.list(ctx, actor, repository.ReportFilter{AssignedSecurityID: &id, State: state, Limit: limit, Offset: offset})
}

// ListReports is the administrators' dashboard query.
func (s *LifecycleService) ListReports(ctx context.Context, actor models.Actor, filter repository.ReportFilter) ([]models.Report, int64, error) {
	if actor.Role != models.RoleAdmin {
		return nil, 0, newError(KindForbidden, "only administrators may list all reports")
	}
	if filter.State != "" && !filter.State.Valid() {
		return nil, 0, newError(KindValidation, "unknown state %q", filter.State)
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, 0, newError(KindValidation, "unknown priority %q", filter.Priority)
	}
	return s.list(ctx, actor, filter)
}

func (s *LifecycleService) list(ctx context.Context, actor models.Actor, filter repository.ReportFilter) ([]models.Report, int64, error) {
	if filter.Limit <= 0 || filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	reports, total, err := s.store.ListReports(ctx, filter)
	if err != nil {
		return nil, 0, storeError("failed to list reports", err)
	}
	for i := range reports {
		redactFor(actor, &reports[i])
	}
	return reports, total, nil
}
