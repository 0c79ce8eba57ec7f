package models

import (
	"time"

	"github.com/google/uuid"
)

// UserDailyQuota tracks report submissions per identity per calendar day.
// LastReportDate is an ISO date (YYYY-MM-DD) in the authoritative timezone.
type UserDailyQuota struct {
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	AttemptsToday  int       `gorm:"not null;default:0" json:"attempts_today"`
	LastReportDate string    `gorm:"size:10;not null" json:"last_report_date"`
	UpdatedAt      time.Time `json:"updated_at"`
}
