package services

import (
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
)

type Operation string

const (
	OpCreateReport     Operation = "createReport"
	OpSetPriority      Operation = "setPriority"
	OpAssignSecurity   Operation = "assignSecurity"
	OpGoToZone         Operation = "goToZone"
	OpZoneLocated      Operation = "zoneLocated"
	OpCompleteWithNote Operation = "completeWithNote"
	OpApprove          Operation = "approve"
	OpReject           Operation = "reject"
	OpCancel           Operation = "cancel"
)

// TransitionOperations lists every operation applyTransition accepts.
var TransitionOperations = []Operation{
	OpSetPriority, OpAssignSecurity, OpGoToZone, OpZoneLocated,
	OpCompleteWithNote, OpApprove, OpReject, OpCancel,
}

func (op Operation) Valid() bool {
	for _, o := range TransitionOperations {
		if o == op {
			return true
		}
	}
	return false
}

// capabilities is the single role -> allowed operations table. Identity rules
// (assigned officer, own report) are checked separately.
var capabilities = map[models.Role]map[Operation]bool{
	models.RoleUser: {
		OpCreateReport: true,
		OpCancel:       true,
	},
	models.RoleAdmin: {
		OpCreateReport:   true,
		OpSetPriority:    true,
		OpAssignSecurity: true,
		OpApprove:        true,
		OpReject:         true,
		OpCancel:         true,
	},
	models.RoleSecurity: {
		OpCreateReport:     true,
		OpGoToZone:         true,
		OpZoneLocated:      true,
		OpCompleteWithNote: true,
	},
	models.RoleSuperAdmin: {},
}

// Can reports whether role may invoke op at all.
func Can(role models.Role, op Operation) bool {
	return capabilities[role][op]
}

// transitionTable maps (operation, from-state) to the resulting state.
type transitionTable map[Operation]map[models.ReportState]models.ReportState

func newTransitionTable(rejectTarget models.ReportState) transitionTable {
	return transitionTable{
		OpSetPriority: {
			models.StatePending: models.StatePending,
		},
		OpAssignSecurity: {
			models.StatePending: models.StateInProcess,
		},
		OpGoToZone: {
			models.StateInProcess: models.StateLocating,
		},
		OpZoneLocated: {
			models.StateLocating: models.StateInvestigating,
		},
		OpCompleteWithNote: {
			models.StateInProcess:     models.StatePendingApproval,
			models.StateLocating:      models.StatePendingApproval,
			models.StateInvestigating: models.StatePendingApproval,
		},
		OpApprove: {
			models.StatePendingApproval: models.StateResolved,
		},
		OpReject: {
			models.StatePendingApproval: rejectTarget,
		},
		OpCancel: {
			models.StatePending:       models.StateCancelled,
			models.StateInProcess:     models.StateCancelled,
			models.StateLocating:      models.StateCancelled,
			models.StateInvestigating: models.StateCancelled,
		},
	}
}

func (t transitionTable) next(from models.ReportState, op Operation) (models.ReportState, bool) {
	to, ok := t[op][from]
	return to, ok
}

// ValidRejectTarget reports whether s may be configured as the state a
// rejected completion returns to.
func ValidRejectTarget(s models.ReportState) bool {
	switch s {
	case models.StateInProcess, models.StateInvestigating, models.StatePending:
		return true
	}
	return false
}
