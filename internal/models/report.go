package models

import (
	"time"

	"github.com/google/uuid"
)

// ReportState is the workflow state held by a ReportManagement record.
type ReportState string

const (
	StatePending         ReportState = "PENDING"
	StateInProcess       ReportState = "EN_PROCESO"
	StateLocating        ReportState = "UBICANDO"
	StateInvestigating   ReportState = "INVESTIGANDO"
	StatePendingApproval ReportState = "PENDIENTE_APROBACION"
	StateResolved        ReportState = "RESUELTO"
	StateCancelled       ReportState = "CANCELADO"
)

var AllStates = []ReportState{
	StatePending, StateInProcess, StateLocating, StateInvestigating,
	StatePendingApproval, StateResolved, StateCancelled,
}

func (s ReportState) Valid() bool {
	for _, st := range AllStates {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s ReportState) Terminal() bool {
	return s == StateResolved || s == StateCancelled
}

type Priority string

const (
	PriorityUnset  Priority = ""
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Report is an incident account. It is immutable once created; all workflow
// data lives in its ReportManagement record.
type Report struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	IncidentTypeID uuid.UUID         `gorm:"type:uuid;not null;index" json:"incident_type_id"`
	ZoneID         uuid.UUID         `gorm:"type:uuid;not null;index" json:"zone_id"`
	Description    string            `gorm:"not null;size:100" json:"description"`
	IsAnonymous    bool              `gorm:"not null;default:false" json:"is_anonymous"`
	ContactInfo    string            `gorm:"size:255" json:"contact_info,omitempty"`
	PhotoRef       string            `gorm:"size:512" json:"photo_ref,omitempty"`
	ReporterID     uuid.UUID         `gorm:"type:uuid;not null;index" json:"reporter_id"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
	Management     *ReportManagement `gorm:"foreignKey:ReportID;references:ID" json:"management,omitempty"`
}

// ReportManagement is the single, overwritten-in-place workflow record of a Report.
// Version increments on every accepted transition and guards concurrent writers.
type ReportManagement struct {
	ReportID           uuid.UUID   `gorm:"type:uuid;primaryKey" json:"report_id"`
	State              ReportState `gorm:"size:30;not null;index" json:"state"`
	Priority           Priority    `gorm:"size:10" json:"priority,omitempty"`
	AssignedSecurityID *uuid.UUID  `gorm:"type:uuid;index" json:"assigned_security_id,omitempty"`
	SecurityNote       string      `gorm:"size:1000" json:"security_note,omitempty"`
	AdminNote          string      `gorm:"size:1000" json:"admin_note,omitempty"`
	Version            int         `gorm:"not null;default:1" json:"version"`
	LastUpdatedAt      time.Time   `gorm:"not null;index" json:"last_updated_at"`
}

func (ReportManagement) TableName() string {
	return "report_managements"
}

// IsAssignedTo reports whether userID is the officer currently assigned.
func (m *ReportManagement) IsAssignedTo(userID uuid.UUID) bool {
	return m.AssignedSecurityID != nil && *m.AssignedSecurityID == userID
}

// IncidentType is a catalogue entry (theft, harassment, ...).
type IncidentType struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"not null;size:100;uniqueIndex" json:"name"`
	Description string    `gorm:"size:500" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
