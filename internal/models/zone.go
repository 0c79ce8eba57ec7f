package models

import (
	"time"

	"github.com/google/uuid"
)

type ZoneStatus string

const (
	ZoneSafe      ZoneStatus = "SAFE"
	ZoneCaution   ZoneStatus = "CAUTION"
	ZoneDangerous ZoneStatus = "DANGEROUS"
)

// Site is a campus (sede) grouping zones.
type Site struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null;size:100;uniqueIndex" json:"name"`
	Address   string    `gorm:"size:255" json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Zone is a physical campus area. Name, SiteID, Description and Active are
// administered externally; RollingIncidentCount and Status are derived and
// written only by the zone risk service.
type Zone struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SiteID               uuid.UUID  `gorm:"type:uuid;not null;index" json:"site_id"`
	Name                 string     `gorm:"not null;size:100" json:"name"`
	Description          string     `gorm:"size:500" json:"description,omitempty"`
	Active               bool       `gorm:"not null" json:"active"`
	RollingIncidentCount int        `gorm:"not null;default:0" json:"rolling_incident_count"`
	Status               ZoneStatus `gorm:"size:20;not null;default:'SAFE'" json:"status"`
	StatusUpdatedAt      *time.Time `json:"status_updated_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
