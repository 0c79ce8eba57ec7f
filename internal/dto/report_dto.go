package dto

import (
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/google/uuid"
)

type CreateReportRequest struct {
	IncidentTypeID uuid.UUID `json:"incident_type_id"`
	ZoneID         uuid.UUID `json:"zone_id"`
	Description    string    `json:"description"`
	IsAnonymous    bool      `json:"is_anonymous"`
	ContactInfo    string    `json:"contact_info"`
	PhotoRef       string    `json:"photo_ref"`
}

// TransitionRequest drives applyTransition. Only the fields the operation
// needs are read.
type TransitionRequest struct {
	Operation      string          `json:"operation"`
	Priority       models.Priority `json:"priority"`
	SecurityUserID *uuid.UUID      `json:"security_user_id"`
	Note           string          `json:"note"`
}

type RecomputeResponse struct {
	Recomputed int `json:"recomputed"`
}
