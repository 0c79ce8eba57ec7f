package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/realtime"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/repository"
	"github.com/google/uuid"
)

// NotificationService decides who hears about what and hands events to the
// push transport. Publishing is best-effort: failures are logged, never
// returned to the operation that triggered them.
type NotificationService struct {
	pub     realtime.Publisher
	reports repository.ReportRepository
}

func NewNotificationService(pub realtime.Publisher, reports repository.ReportRepository) *NotificationService {
	return &NotificationService{pub: pub, reports: reports}
}

// reporterTarget is the reporter's own channel, or the report-scoped session
// channel when the report is anonymous.
func reporterTarget(r *models.Report) realtime.Target {
	if r.IsAnonymous {
		return realtime.ReportTarget(r.ID)
	}
	return realtime.UserTarget(r.ReporterID)
}

func (n *NotificationService) send(ctx context.Context, events ...realtime.Event) {
	for _, ev := range events {
		if ev.Target.Kind == realtime.TargetRole && models.Role(ev.Target.Value) == models.RoleSuperAdmin {
			continue
		}
		if err := n.pub.Publish(ctx, ev); err != nil {
			slog.Warn("notification publish failed", "component", "notify", "target", ev.Target.String(), "subject_id", ev.SubjectID, "error", err)
		}
	}
}

// ReportCreated tells administrators a new report needs a priority.
func (n *NotificationService) ReportCreated(ctx context.Context, report *models.Report, zone *models.Zone) {
	where := ""
	if zone != nil {
		where = " in " + zone.Name
	}
	n.send(ctx, realtime.NewEvent(
		realtime.EventReportCreated,
		realtime.RoleTarget(models.RoleAdmin),
		report.ID.String(),
		string(models.StatePending),
		"New report",
		fmt.Sprintf("A new report%s needs a priority.", where),
		report.CreatedAt,
	))
}

// ReportTransitioned routes the notifications for one committed transition.
// Every event carries the commit timestamp, so a retried publish of the same
// transition yields the same dedupe key.
func (n *NotificationService) ReportTransitioned(ctx context.Context, report *models.Report, op Operation, mgmt *models.ReportManagement) {
	subject := report.ID.String()
	state := string(mgmt.State)
	at := mgmt.LastUpdatedAt
	event := func(target realtime.Target, title, body string) realtime.Event {
		return realtime.NewEvent(realtime.EventReportUpdated, target, subject, state, title, body, at)
	}

	var events []realtime.Event
	switch op {
	case OpAssignSecurity:
		if mgmt.AssignedSecurityID != nil {
			events = append(events, event(realtime.UserTarget(*mgmt.AssignedSecurityID),
				fmt.Sprintf("New assignment (%s priority)", mgmt.Priority),
				"You have been assigned a report. Head to the zone when ready."))
		}
		events = append(events, event(reporterTarget(report),
			"Your report is being handled",
			"A security officer has been assigned to your report."))
	case OpGoToZone, OpZoneLocated, OpCancel:
		events = append(events, event(reporterTarget(report),
			"Report update",
			fmt.Sprintf("Your report is now %s.", mgmt.State)))
	case OpCompleteWithNote:
		events = append(events, event(realtime.RoleTarget(models.RoleAdmin),
			"Approval required",
			"A security officer completed a report and it awaits approval."))
	case OpApprove:
		if mgmt.AssignedSecurityID != nil {
			events = append(events, event(realtime.UserTarget(*mgmt.AssignedSecurityID),
				"Resolution approved",
				"An administrator approved your resolution."))
		}
		events = append(events, event(reporterTarget(report),
			"Report resolved",
			fmt.Sprintf("Your report is now %s.", mgmt.State)))
	case OpReject:
		if mgmt.AssignedSecurityID != nil {
			events = append(events, event(realtime.UserTarget(*mgmt.AssignedSecurityID),
				"More work required",
				"An administrator sent the report back for more work."))
		}
		if mgmt.State == models.StateInvestigating {
			events = append(events, event(reporterTarget(report),
				"Report update",
				fmt.Sprintf("Your report is now %s.", mgmt.State)))
		}
	case OpSetPriority:
		// Priority changes stay on the administrators' dashboards.
	}
	n.send(ctx, events...)
}

// ZoneStatusChanged broadcasts a zone's new status to every subscriber.
func (n *NotificationService) ZoneStatusChanged(ctx context.Context, zone *models.Zone, previous models.ZoneStatus) {
	at := zone.UpdatedAt
	if zone.StatusUpdatedAt != nil {
		at = *zone.StatusUpdatedAt
	}
	n.send(ctx, realtime.NewEvent(
		realtime.EventZoneStatus,
		realtime.TopicTarget(realtime.TopicZoneStatus),
		zone.ID.String(),
		string(zone.Status),
		"Zone status: "+string(zone.Status),
		fmt.Sprintf("%s changed from %s to %s (%d resolved incidents).", zone.Name, previous, zone.Status, zone.RollingIncidentCount),
		at,
	))
}

// SelectorsFor returns the targets actor may subscribe to: their own user
// channel, their role, the zone status topic and the session channels of
// anonymous reports they filed.
func (n *NotificationService) SelectorsFor(ctx context.Context, actor models.Actor, anonymousReports []uuid.UUID) ([]realtime.Target, error) {
	if actor.Role == models.RoleSuperAdmin {
		return nil, newError(KindForbidden, "role %s does not receive notifications", actor.Role)
	}
	if !actor.Role.Valid() {
		return nil, newError(KindForbidden, "unknown role %q", actor.Role)
	}

	targets := []realtime.Target{
		realtime.UserTarget(actor.UserID),
		realtime.RoleTarget(actor.Role),
		realtime.TopicTarget(realtime.TopicZoneStatus),
	}
	for _, id := range anonymousReports {
		report, err := n.reports.GetReport(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, "report %s not found", id)
		}
		if err != nil {
			return nil, storeError("failed to load report", err)
		}
		if report.ReporterID != actor.UserID {
			return nil, newError(KindForbidden, "report %s belongs to another reporter", id)
		}
		if report.IsAnonymous {
			targets = append(targets, realtime.ReportTarget(id))
		}
	}
	return targets, nil
}
