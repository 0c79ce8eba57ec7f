package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/realtime"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/repository"
	"github.com/google/uuid"
)

func TestScenarioFullResolutionKeepsZoneSafe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	report := f.create(t)

	officer := f.officer.UserID
	m := f.apply(t, report.ID, OpAssignSecurity, f.admin, TransitionPayload{Priority: models.PriorityHigh, SecurityUserID: &officer})
	if m.State != models.StateInProcess || m.Priority != models.PriorityHigh || !m.IsAssignedTo(officer) {
		t.Fatalf("after assign: %+v", m)
	}
	f.apply(t, report.ID, OpGoToZone, f.officer, TransitionPayload{})
	f.apply(t, report.ID, OpZoneLocated, f.officer, TransitionPayload{})
	m = f.apply(t, report.ID, OpCompleteWithNote, f.officer, TransitionPayload{Note: "done"})
	if m.State != models.StatePendingApproval || m.SecurityNote != "done" {
		t.Fatalf("after complete: %+v", m)
	}
	m = f.apply(t, report.ID, OpApprove, f.admin, TransitionPayload{})
	if m.State != models.StateResolved {
		t.Fatalf("final state = %s, want RESUELTO", m.State)
	}
	if m.Version != 6 {
		t.Errorf("version = %d, want 6 after five transitions", m.Version)
	}

	zone, err := f.store.GetZone(ctx, f.zone.ID)
	if err != nil {
		t.Fatalf("GetZone: %v", err)
	}
	if zone.RollingIncidentCount != 1 || zone.Status != models.ZoneSafe {
		t.Errorf("zone = count %d status %s, want 1 SAFE", zone.RollingIncidentCount, zone.Status)
	}
}

func TestScenarioThreeResolutionsMakeZoneDangerous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	want := []models.ZoneStatus{models.ZoneSafe, models.ZoneCaution, models.ZoneDangerous}
	for i := 0; i < 3; i++ {
		r := f.create(t)
		f.resolve(t, r.ID)
		zone, _ := f.store.GetZone(ctx, f.zone.ID)
		if zone.Status != want[i] || zone.RollingIncidentCount != i+1 {
			t.Errorf("after %d resolutions: count %d status %s, want %s", i+1, zone.RollingIncidentCount, zone.Status, want[i])
		}
	}

	other, _ := f.store.GetZone(ctx, f.otherZone.ID)
	if other.Status != models.ZoneSafe {
		t.Errorf("unrelated zone status = %s", other.Status)
	}
}

func TestScenarioDailyQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.lifecycle.CreateReport(ctx, f.reporter, f.input()); err != nil {
			t.Fatalf("report %d: %v", i+1, err)
		}
	}
	_, err := f.lifecycle.CreateReport(ctx, f.reporter, f.input())
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("4th report error = %v, want QUOTA_EXCEEDED", err)
	}

	_, total, _ := f.store.ListReports(ctx, repository.ReportFilter{})
	if total != 3 {
		t.Errorf("stored reports = %d, want 3", total)
	}

	f.clock.Advance(24 * time.Hour)
	if _, err := f.lifecycle.CreateReport(ctx, f.reporter, f.input()); err != nil {
		t.Fatalf("next-day report: %v", err)
	}
	q, err := f.store.GetQuota(ctx, f.reporter.UserID)
	if err != nil {
		t.Fatalf("GetQuota: %v", err)
	}
	if q.AttemptsToday != 1 || q.LastReportDate != f.clock.Today().String() {
		t.Errorf("quota = %+v, want 1 attempt on %s", q, f.clock.Today())
	}
}

func TestScenarioReporterCancelsThenCompleteIsInvalid(t *testing.T) {
	f := newFixture(t)
	report := f.create(t)
	f.assign(t, report.ID)

	m := f.apply(t, report.ID, OpCancel, f.reporter, TransitionPayload{})
	if m.State != models.StateCancelled {
		t.Fatalf("state = %s, want CANCELADO", m.State)
	}

	for _, actor := range []models.Actor{f.officer, f.reporter} {
		_, err := f.lifecycle.ApplyTransition(context.Background(), report.ID, OpCompleteWithNote, actor, TransitionPayload{Note: "late"})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("completeWithNote by %s after cancel: %v, want INVALID_TRANSITION", actor.Role, err)
		}
	}
}

func TestScenarioAssignWithoutPriority(t *testing.T) {
	f := newFixture(t)
	report := f.create(t)
	officer := f.officer.UserID

	_, err := f.lifecycle.ApplyTransition(context.Background(), report.ID, OpAssignSecurity, f.admin, TransitionPayload{SecurityUserID: &officer})
	if !errors.Is(err, ErrMissingPriority) {
		t.Fatalf("error = %v, want MISSING_PRIORITY", err)
	}
	if st := f.state(t, report.ID); st != models.StatePending {
		t.Errorf("state = %s, want PENDING", st)
	}

	// A priority set earlier satisfies the requirement.
	f.apply(t, report.ID, OpSetPriority, f.admin, TransitionPayload{Priority: models.PriorityLow})
	m := f.apply(t, report.ID, OpAssignSecurity, f.admin, TransitionPayload{SecurityUserID: &officer})
	if m.Priority != models.PriorityLow || m.State != models.StateInProcess {
		t.Errorf("after assign: %+v", m)
	}
}

// Every (state, operation) pair outside the transition table is rejected with
// INVALID_TRANSITION, even for a caller who would otherwise be allowed.
func TestTransitionTableIsExhaustive(t *testing.T) {
	allowed := map[models.ReportState][]Operation{
		models.StatePending:         {OpSetPriority, OpAssignSecurity, OpCancel},
		models.StateInProcess:       {OpGoToZone, OpCompleteWithNote, OpCancel},
		models.StateLocating:        {OpZoneLocated, OpCompleteWithNote, OpCancel},
		models.StateInvestigating:   {OpCompleteWithNote, OpCancel},
		models.StatePendingApproval: {OpApprove, OpReject},
	}

	for _, state := range models.AllStates {
		for _, op := range TransitionOperations {
			t.Run(string(state)+"/"+string(op), func(t *testing.T) {
				f := newFixture(t)
				report := f.create(t)
				f.forceState(t, report.ID, state)

				actor := f.admin
				switch op {
				case OpGoToZone, OpZoneLocated, OpCompleteWithNote:
					actor = f.officer
				}
				officer := f.officer.UserID
				payload := TransitionPayload{Priority: models.PriorityHigh, SecurityUserID: &officer, Note: "note"}

				_, err := f.lifecycle.ApplyTransition(context.Background(), report.ID, op, actor, payload)

				want := false
				for _, a := range allowed[state] {
					if a == op {
						want = true
					}
				}
				if want && err != nil {
					t.Errorf("expected success, got %v", err)
				}
				if !want && !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("expected INVALID_TRANSITION, got %v", err)
				}
			})
		}
	}
}

func TestReapplyingTransitionIsRejected(t *testing.T) {
	f := newFixture(t)
	report := f.create(t)
	f.assign(t, report.ID)
	ctx := context.Background()

	steps := []struct {
		op    Operation
		actor models.Actor
		p     TransitionPayload
	}{
		{OpGoToZone, f.officer, TransitionPayload{}},
		{OpZoneLocated, f.officer, TransitionPayload{}},
		{OpCompleteWithNote, f.officer, TransitionPayload{Note: "done"}},
		{OpApprove, f.admin, TransitionPayload{}},
	}
	for _, s := range steps {
		f.apply(t, report.ID, s.op, s.actor, s.p)
		if _, err := f.lifecycle.ApplyTransition(ctx, report.ID, s.op, s.actor, s.p); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("retry of %s: %v, want INVALID_TRANSITION", s.op, err)
		}
	}

	f2 := newFixture(t)
	r2 := f2.create(t)
	f2.apply(t, r2.ID, OpSetPriority, f2.admin, TransitionPayload{Priority: models.PriorityMedium})
	if _, err := f2.lifecycle.ApplyTransition(ctx, r2.ID, OpSetPriority, f2.admin, TransitionPayload{Priority: models.PriorityMedium}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("repeated setPriority: %v, want INVALID_TRANSITION", err)
	}
}

func TestForbiddenActors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	report := f.create(t)
	f.assign(t, report.ID)

	stranger := models.Actor{UserID: uuid.New(), Role: models.RoleUser}
	testCases := []struct {
		name  string
		op    Operation
		actor models.Actor
		p     TransitionPayload
	}{
		{"unassigned officer completes", OpCompleteWithNote, f.officer2, TransitionPayload{Note: "x"}},
		{"unassigned officer goes to zone", OpGoToZone, f.officer2, TransitionPayload{}},
		{"admin plays officer", OpGoToZone, f.admin, TransitionPayload{}},
		{"other user cancels", OpCancel, stranger, TransitionPayload{}},
		{"officer cancels", OpCancel, f.officer, TransitionPayload{}},
		{"superadmin cancels", OpCancel, f.superAdmin, TransitionPayload{}},
		{"reporter goes to zone", OpGoToZone, f.reporter, TransitionPayload{}},
	}
	for _, tc := range testCases {
		_, err := f.lifecycle.ApplyTransition(ctx, report.ID, tc.op, tc.actor, tc.p)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("%s: error = %v, want FORBIDDEN", tc.name, err)
		}
	}
	if st := f.state(t, report.ID); st != models.StateInProcess {
		t.Errorf("state changed by forbidden calls: %s", st)
	}

	if _, err := f.lifecycle.CreateReport(ctx, f.superAdmin, f.input()); !errors.Is(err, ErrForbidden) {
		t.Errorf("superadmin create: %v, want FORBIDDEN", err)
	}
}

func TestAdminCancelsAnyReport(t *testing.T) {
	f := newFixture(t)
	report := f.create(t)
	f.assign(t, report.ID)
	f.apply(t, report.ID, OpGoToZone, f.officer, TransitionPayload{})

	m := f.apply(t, report.ID, OpCancel, f.admin, TransitionPayload{})
	if m.State != models.StateCancelled {
		t.Fatalf("state = %s", m.State)
	}
	zone, _ := f.store.GetZone(context.Background(), f.zone.ID)
	if zone.RollingIncidentCount != 0 {
		t.Errorf("cancelled report counted toward zone risk: %d", zone.RollingIncidentCount)
	}
}

func TestCancelNotAllowedAwaitingApproval(t *testing.T) {
	f := newFixture(t)
	report := f.create(t)
	f.assign(t, report.ID)
	f.apply(t, report.ID, OpCompleteWithNote, f.officer, TransitionPayload{Note: "done"})

	for _, actor := range []models.Actor{f.reporter, f.admin} {
		if _, err := f.lifecycle.ApplyTransition(context.Background(), report.ID, OpCancel, actor, TransitionPayload{}); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("cancel by %s in PENDIENTE_APROBACION: %v", actor.Role, err)
		}
	}
}

func TestRejectTargets(t *testing.T) {
	testCases := []struct {
		configured   models.ReportState
		want         models.ReportState
		keepAssignee bool
	}{
		{models.StateInProcess, models.StateInProcess, true},
		{models.StateInvestigating, models.StateInvestigating, true},
		{models.StatePending, models.StatePending, false},
		{models.StateResolved, models.StateInProcess, true},
	}
	for _, tc := range testCases {
		t.Run(string(tc.configured), func(t *testing.T) {
			f := newFixture(t, withRejectTarget(tc.configured))
			report := f.create(t)
			f.assign(t, report.ID)
			f.apply(t, report.ID, OpCompleteWithNote, f.officer, TransitionPayload{Note: "first pass"})

			m := f.apply(t, report.ID, OpReject, f.admin, TransitionPayload{Note: "  need photos  "})
			if m.State != tc.want {
				t.Errorf("state = %s, want %s", m.State, tc.want)
			}
			if m.AdminNote != "need photos" {
				t.Errorf("admin note = %q", m.AdminNote)
			}
			if m.SecurityNote != "first pass" {
				t.Errorf("security note lost: %q", m.SecurityNote)
			}
			if tc.keepAssignee != m.IsAssignedTo(f.officer.UserID) {
				t.Errorf("assignee kept = %v, want %v", !tc.keepAssignee, tc.keepAssignee)
			}
		})
	}
}

func TestApproveAfterRejectDropsRejectionNote(t *testing.T) {
	f := newFixture(t)
	report := f.create(t)
	f.assign(t, report.ID)
	f.apply(t, report.ID, OpCompleteWithNote, f.officer, TransitionPayload{Note: "first pass"})
	f.apply(t, report.ID, OpReject, f.admin, TransitionPayload{Note: "need photos"})
	f.apply(t, report.ID, OpCompleteWithNote, f.officer, TransitionPayload{Note: "photos attached"})

	m := f.apply(t, report.ID, OpApprove, f.admin, TransitionPayload{})
	if m.State != models.StateResolved {
		t.Fatalf("state = %s", m.State)
	}
	if m.AdminNote != "" {
		t.Errorf("admin note = %q, want the rejection reason cleared", m.AdminNote)
	}
	if m.SecurityNote != "photos attached" {
		t.Errorf("security note = %q", m.SecurityNote)
	}
}

func TestPayloadValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	report := f.create(t)
	nobody := uuid.New()
	admin := f.admin.UserID

	testCases := []struct {
		name string
		op   Operation
		p    TransitionPayload
		want *Error
	}{
		{"bad priority", OpSetPriority, TransitionPayload{Priority: "URGENT"}, ErrValidation},
		{"empty priority", OpSetPriority, TransitionPayload{}, ErrMissingPriority},
		{"no officer", OpAssignSecurity, TransitionPayload{Priority: models.PriorityHigh}, ErrValidation},
		{"unknown officer", OpAssignSecurity, TransitionPayload{Priority: models.PriorityHigh, SecurityUserID: &nobody}, ErrValidation},
		{"officer is not security", OpAssignSecurity, TransitionPayload{Priority: models.PriorityHigh, SecurityUserID: &admin}, ErrValidation},
		{"unknown operation", Operation("escalate"), TransitionPayload{}, ErrValidation},
	}
	for _, tc := range testCases {
		if _, err := f.lifecycle.ApplyTransition(ctx, report.ID, tc.op, f.admin, tc.p); !errors.Is(err, tc.want) {
			t.Errorf("%s: error = %v, want %s", tc.name, err, tc.want.Kind)
		}
	}

	f.assign(t, report.ID)
	if _, err := f.lifecycle.ApplyTransition(ctx, report.ID, OpCompleteWithNote, f.officer, TransitionPayload{Note: "   "}); !errors.Is(err, ErrValidation) {
		t.Errorf("blank note: %v, want VALIDATION", err)
	}
	if _, err := f.lifecycle.ApplyTransition(ctx, uuid.New(), OpGoToZone, f.officer, TransitionPayload{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing report: %v, want NOT_FOUND", err)
	}
}

func TestCreateReportValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inactive := &models.Zone{ID: uuid.New(), SiteID: f.zone.SiteID, Name: "Closed wing", Active: false}
	f.store.UpsertZone(ctx, inactive)

	testCases := []struct {
		name   string
		mutate func(*CreateReportInput)
	}{
		{"too short", func(in *CreateReportInput) { in.Description = "   short   " }},
		{"too long", func(in *CreateReportInput) { in.Description = strings.Repeat("x", 101) }},
		{"missing zone", func(in *CreateReportInput) { in.ZoneID = uuid.Nil }},
		{"unknown zone", func(in *CreateReportInput) { in.ZoneID = uuid.New() }},
		{"inactive zone", func(in *CreateReportInput) { in.ZoneID = inactive.ID }},
		{"unknown incident type", func(in *CreateReportInput) { in.IncidentTypeID = uuid.New() }},
		{"photo ref too long", func(in *CreateReportInput) { in.PhotoRef = strings.Repeat("p", 513) }},
	}
	for _, tc := range testCases {
		in := f.input()
		tc.mutate(&in)
		if _, err := f.lifecycle.CreateReport(ctx, f.reporter, in); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: error = %v, want VALIDATION", tc.name, err)
		}
	}

	// Rejected submissions do not consume quota.
	status, _ := f.limiter.Status(ctx, f.reporter)
	if status.Attempts != 0 {
		t.Errorf("attempts after validation failures = %d, want 0", status.Attempts)
	}

	in := f.input()
	in.Description = strings.Repeat("á", 100)
	in.IsAnonymous = true
	report, err := f.lifecycle.CreateReport(ctx, f.reporter, in)
	if err != nil {
		t.Fatalf("100-rune description rejected: %v", err)
	}
	if report.ContactInfo != "" {
		t.Errorf("anonymous report kept contact info %q", report.ContactInfo)
	}
	if report.Management == nil || report.Management.State != models.StatePending {
		t.Errorf("new report management = %+v", report.Management)
	}
}

func TestConcurrentCompletionSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	report := f.create(t)
	f.assign(t, report.ID)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		invalid   int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.lifecycle.ApplyTransition(context.Background(), report.ID, OpCompleteWithNote, f.officer, TransitionPayload{Note: "done"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInvalidTransition):
				invalid++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || invalid != 7 {
		t.Errorf("successes=%d invalid=%d, want 1 and 7", successes, invalid)
	}
}

type failingStore struct {
	*repository.MemoryStore
	failUpdate bool
	failCreate bool
}

func (s *failingStore) UpdateManagement(ctx context.Context, m *models.ReportManagement, v int) error {
	if s.failUpdate {
		return errors.New("connection refused")
	}
	return s.MemoryStore.UpdateManagement(ctx, m, v)
}

func (s *failingStore) CreateReport(ctx context.Context, r *models.Report, m *models.ReportManagement) error {
	if s.failCreate {
		return errors.New("connection refused")
	}
	return s.MemoryStore.CreateReport(ctx, r, m)
}

func TestStoreFailureLeavesRecordUnchanged(t *testing.T) {
	fs := &failingStore{}
	f := newFixture(t, withWrap(func(mem *repository.MemoryStore) repository.Store {
		fs.MemoryStore = mem
		return fs
	}))

	report := f.create(t)
	sub := f.hub.Subscribe(realtime.UserTarget(f.reporter.UserID), realtime.UserTarget(f.officer.UserID))
	defer sub.Close()

	fs.failUpdate = true
	officer := f.officer.UserID
	_, err := f.lifecycle.ApplyTransition(context.Background(), report.ID, OpAssignSecurity, f.admin, TransitionPayload{Priority: models.PriorityHigh, SecurityUserID: &officer})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("error = %v, want STORE_UNAVAILABLE", err)
	}

	m, _ := f.store.GetManagement(context.Background(), report.ID)
	if m.State != models.StatePending || m.Priority != models.PriorityUnset || m.AssignedSecurityID != nil || m.Version != 1 {
		t.Errorf("record changed after failed write: %+v", m)
	}
	if got := drainEvents(sub); len(got) != 0 {
		t.Errorf("notifications fired for an uncommitted transition: %+v", got)
	}

	fs.failCreate = true
	if _, err := f.lifecycle.CreateReport(context.Background(), f.reporter, f.input()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("create error = %v", err)
	}
	status, _ := f.limiter.Status(context.Background(), f.reporter)
	if status.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 (failed create refunded)", status.Attempts)
	}
}
