package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/clock"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/keylock"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const maxNoteLength = 1000

// CreateReportInput is what a reporter submits. Evidence has already been
// stored by the upload collaborator; only its reference arrives here.
type CreateReportInput struct {
	IncidentTypeID uuid.UUID
	ZoneID         uuid.UUID
	Description    string `validate:"min=10,max=100"`
	IsAnonymous    bool
	ContactInfo    string `validate:"max=255"`
	PhotoRef       string `validate:"max=512"`
}

// TransitionPayload carries the optional inputs of applyTransition.
type TransitionPayload struct {
	Priority       models.Priority
	SecurityUserID *uuid.UUID
	Note           string
}

type LifecycleConfig struct {
	RejectTarget models.ReportState
}

// LifecycleService is the only writer of report management records.
type LifecycleService struct {
	store       repository.Store
	limiter     *RateLimiter
	risk        *ZoneRiskService
	notifier    *NotificationService
	locker      keylock.Locker
	clock       clock.Clock
	transitions transitionTable
	validate    *validator.Validate
}

func NewLifecycleService(store repository.Store, limiter *RateLimiter, risk *ZoneRiskService, notifier *NotificationService, locker keylock.Locker, clk clock.Clock, cfg LifecycleConfig) *LifecycleService {
	target := cfg.RejectTarget
	if !ValidRejectTarget(target) {
		if target != "" {
			slog.Warn("unsupported reject target, using EN_PROCESO", "component", "lifecycle", "configured", target)
		}
		target = models.StateInProcess
	}
	return &LifecycleService{
		store:       store,
		limiter:     limiter,
		risk:        risk,
		notifier:    notifier,
		locker:      locker,
		clock:       clk,
		transitions: newTransitionTable(target),
		validate:    validator.New(),
	}
}

func (s *LifecycleService) validationError(err error) *Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Kind: KindValidation, Message: "invalid input", Err: err}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+"="+fe.Param()+")")
	}
	return newError(KindValidation, "invalid %s", strings.Join(fields, ", "))
}

// CreateReport files a new report in PENDING after charging the reporter's
// daily quota. The quota attempt is refunded if the report is not stored.
func (s *LifecycleService) CreateReport(ctx context.Context, actor models.Actor, in CreateReportInput) (*models.Report, error) {
	report, err := s.createReport(ctx, actor, in)
	observe(OpCreateReport, err)
	return report, err
}

func (s *LifecycleService) createReport(ctx context.Context, actor models.Actor, in CreateReportInput) (*models.Report, error) {
	if !Can(actor.Role, OpCreateReport) {
		return nil, newError(KindForbidden, "role %s may not file reports", actor.Role)
	}

	in.Description = strings.TrimSpace(in.Description)
	in.ContactInfo = strings.TrimSpace(in.ContactInfo)
	in.PhotoRef = strings.TrimSpace(in.PhotoRef)
	if in.IsAnonymous {
		in.ContactInfo = ""
	}
	if in.IncidentTypeID == uuid.Nil {
		return nil, newError(KindValidation, "incident type is required")
	}
	if in.ZoneID == uuid.Nil {
		return nil, newError(KindValidation, "zone is required")
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, s.validationError(err)
	}

	zone, err := s.store.GetZone(ctx, in.ZoneID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindValidation, "zone %s does not exist", in.ZoneID)
	}
	if err != nil {
		return nil, storeError("failed to load zone", err)
	}
	if !zone.Active {
		return nil, newError(KindValidation, "zone %s is not active", zone.Name)
	}
	if _, err := s.store.GetIncidentType(ctx, in.IncidentTypeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindValidation, "incident type %s does not exist", in.IncidentTypeID)
		}
		return nil, storeError("failed to load incident type", err)
	}

	reservation, err := s.limiter.Reserve(ctx, actor)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	report := &models.Report{
		ID:             uuid.New(),
		IncidentTypeID: in.IncidentTypeID,
		ZoneID:         in.ZoneID,
		Description:    in.Description,
		IsAnonymous:    in.IsAnonymous,
		ContactInfo:    in.ContactInfo,
		PhotoRef:       in.PhotoRef,
		ReporterID:     actor.UserID,
		CreatedAt:      now,
	}
	mgmt := &models.ReportManagement{
		ReportID:      report.ID,
		State:         models.StatePending,
		Version:       1,
		LastUpdatedAt: now,
	}
	if err := s.store.CreateReport(ctx, report, mgmt); err != nil {
		s.limiter.Release(ctx, reservation)
		return nil, storeError("failed to store report", err)
	}

	slog.Info("report created", "component", "lifecycle", "report_id", report.ID, "zone_id", report.ZoneID, "user_id", actor.UserID, "anonymous", report.IsAnonymous, "attempts_today", reservation.Attempts)

	s.risk.RecomputeAfterCommit(ctx, report.ZoneID)
	s.notifier.ReportCreated(ctx, report, zone)
	return report, nil
}

// ApplyTransition validates op against the report's current state, the
// caller's role and identity, and the payload, then writes the new state with
// a version check. The report stays locked until its zone is recomputed and
// notifications are published, which keeps per-report notifications in
// commit order.
func (s *LifecycleService) ApplyTransition(ctx context.Context, reportID uuid.UUID, op Operation, actor models.Actor, payload TransitionPayload) (*models.ReportManagement, error) {
	mgmt, err := s.applyTransition(ctx, reportID, op, actor, payload)
	observe(op, err)
	return mgmt, err
}

func (s *LifecycleService) applyTransition(ctx context.Context, reportID uuid.UUID, op Operation, actor models.Actor, payload TransitionPayload) (*models.ReportManagement, error) {
	if !op.Valid() {
		return nil, newError(KindValidation, "unknown operation %q", op)
	}

	unlock, err := s.locker.Lock(ctx, "report:"+reportID.String())
	if err != nil {
		return nil, storeError("failed to lock report", err)
	}
	defer unlock()

	report, err := s.store.GetReport(ctx, reportID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, "report %s not found", reportID)
	}
	if err != nil {
		return nil, storeError("failed to load report", err)
	}
	current := report.Management
	if current == nil {
		return nil, storeError("report has no management record", repository.ErrNotFound)
	}

	to, ok := s.transitions.next(current.State, op)
	if !ok {
		return nil, newError(KindInvalidTransition, "%s is not allowed while the report is %s", op, current.State)
	}
	if err := s.authorize(op, actor, report); err != nil {
		return nil, err
	}

	next := *current
	if err := s.applyPayload(ctx, op, &next, payload); err != nil {
		return nil, err
	}
	next.State = to
	next.Version = current.Version + 1
	next.LastUpdatedAt = s.clock.Now()

	if err := s.store.UpdateManagement(ctx, &next, current.Version); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, newError(KindInvalidTransition, "report changed concurrently; reload and retry")
		}
		return nil, storeError("failed to update report", err)
	}

	slog.Info("report transitioned", "component", "lifecycle", "report_id", reportID, "action", string(op), "user_id", actor.UserID, "from", current.State, "to", next.State, "version", next.Version)

	report.Management = &next
	if to == models.StateResolved || to == models.StateCancelled {
		s.risk.RecomputeAfterCommit(ctx, report.ZoneID)
	}
	s.notifier.ReportTransitioned(ctx, report, op, &next)
	return &next, nil
}

// authorize applies the capability table and then the identity rules.
func (s *LifecycleService) authorize(op Operation, actor models.Actor, report *models.Report) error {
	if !Can(actor.Role, op) {
		return newError(KindForbidden, "role %s may not %s", actor.Role, op)
	}
	switch op {
	case OpGoToZone, OpZoneLocated, OpCompleteWithNote:
		if !report.Management.IsAssignedTo(actor.UserID) {
			return newError(KindForbidden, "only the assigned security officer may %s", op)
		}
	case OpCancel:
		if actor.Role != models.RoleAdmin && report.ReporterID != actor.UserID {
			return newError(KindForbidden, "only the reporter or an administrator may cancel")
		}
	}
	return nil
}

func (s *LifecycleService) applyPayload(ctx context.Context, op Operation, next *models.ReportManagement, p TransitionPayload) error {
	switch op {
	case OpSetPriority:
		if p.Priority == models.PriorityUnset {
			return newError(KindMissingPriority, "priority is required")
		}
		if !p.Priority.Valid() {
			return newError(KindValidation, "invalid priority %q", p.Priority)
		}
		if next.Priority == p.Priority {
			return newError(KindInvalidTransition, "priority is already %s", p.Priority)
		}
		next.Priority = p.Priority

	case OpAssignSecurity:
		priority := p.Priority
		if priority == models.PriorityUnset {
			priority = next.Priority
		}
		if priority == models.PriorityUnset {
			return newError(KindMissingPriority, "a priority must be set before assigning security")
		}
		if !priority.Valid() {
			return newError(KindValidation, "invalid priority %q", priority)
		}
		if p.SecurityUserID == nil || *p.SecurityUserID == uuid.Nil {
			return newError(KindValidation, "security_user_id is required")
		}
		officer, err := s.store.GetUser(ctx, *p.SecurityUserID)
		if errors.Is(err, repository.ErrNotFound) {
			return newError(KindValidation, "security user %s does not exist", *p.SecurityUserID)
		}
		if err != nil {
			return storeError("failed to load security user", err)
		}
		if officer.Role != models.RoleSecurity || !officer.Enabled {
			return newError(KindValidation, "user %s is not an active security officer", officer.ID)
		}
		id := officer.ID
		next.Priority = priority
		next.AssignedSecurityID = &id

	case OpCompleteWithNote:
		note := strings.TrimSpace(p.Note)
		if note == "" {
			return newError(KindValidation, "a security note is required")
		}
		if utf8.RuneCountInString(note) > maxNoteLength {
			return newError(KindValidation, "security note exceeds %d characters", maxNoteLength)
		}
		next.SecurityNote = note

	case OpApprove, OpReject:
		note := strings.TrimSpace(p.Note)
		if utf8.RuneCountInString(note) > maxNoteLength {
			return newError(KindValidation, "admin note exceeds %d characters", maxNoteLength)
		}
		// The note belongs to this decision; an earlier rejection reason does
		// not carry over.
		next.AdminNote = note
		if op == OpReject && s.transitions[OpReject][models.StatePendingApproval] == models.StatePending {
			next.AssignedSecurityID = nil
		}
	}
	return nil
}

func observe(op Operation, err error) {
	result := "ok"
	if err != nil {
		result = string(KindOf(err))
		if result == "" {
			result = "error"
		}
	}
	metrics.TransitionsTotal.WithLabelValues(string(op), result).Inc()
}
