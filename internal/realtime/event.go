// Package realtime routes notification events to connected subscribers.
package realtime

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

type TargetKind string

const (
	TargetUser   TargetKind = "user"
	TargetRole   TargetKind = "role"
	TargetReport TargetKind = "report"
	TargetTopic  TargetKind = "topic"
)

// TopicZoneStatus carries zone status changes to every subscriber.
const TopicZoneStatus = "zone-status"

// Target selects recipients: one user, every holder of a role, the session
// channel of an anonymous report, or a broadcast topic.
type Target struct {
	Kind  TargetKind
	Value string
}

func UserTarget(id uuid.UUID) Target {
	return Target{Kind: TargetUser, Value: id.String()}
}

func RoleTarget(role models.Role) Target {
	return Target{Kind: TargetRole, Value: string(role)}
}

func ReportTarget(id uuid.UUID) Target {
	return Target{Kind: TargetReport, Value: id.String()}
}

func TopicTarget(topic string) Target {
	return Target{Kind: TargetTopic, Value: topic}
}

func (t Target) String() string {
	return string(t.Kind) + ":" + t.Value
}

func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Target) UnmarshalText(b []byte) error {
	parsed, err := ParseTarget(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func ParseTarget(s string) (Target, error) {
	kind, value, ok := strings.Cut(s, ":")
	if !ok || value == "" {
		return Target{}, fmt.Errorf("invalid target %q", s)
	}
	switch TargetKind(kind) {
	case TargetUser, TargetReport:
		if _, err := uuid.Parse(value); err != nil {
			return Target{}, fmt.Errorf("invalid target %q: %w", s, err)
		}
	case TargetRole:
		if !models.Role(value).Valid() {
			return Target{}, fmt.Errorf("invalid role in target %q", s)
		}
	case TargetTopic:
	default:
		return Target{}, fmt.Errorf("unknown target kind %q", kind)
	}
	return Target{Kind: TargetKind(kind), Value: value}, nil
}

type EventType string

const (
	EventReportCreated EventType = "report.created"
	EventReportUpdated EventType = "report.updated"
	EventZoneStatus    EventType = "zone.status"
)

// Event is one push payload addressed to one target.
type Event struct {
	Key       string    `json:"key"`
	Type      EventType `json:"type"`
	Target    Target    `json:"target"`
	SubjectID string    `json:"subject_id"`
	State     string    `json:"state"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent builds an event and derives its dedupe key.
func NewEvent(typ EventType, target Target, subjectID, state, title, body string, at time.Time) Event {
	ev := Event{
		Type:      typ,
		Target:    target,
		SubjectID: subjectID,
		State:     state,
		Title:     title,
		Body:      body,
		CreatedAt: at,
	}
	ev.Key = EventKey(subjectID, state, at, title+"\n"+body)
	return ev
}

// EventKey is stable for the same subject, resulting state, timestamp and
// text. The target is not part of the key, so one logical event reaching a
// subscriber through two channels collapses to a single delivery.
func EventKey(subjectID, state string, at time.Time, text string) string {
	h, _ := blake2b.New(16, nil)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(at.UnixNano()))
	h.Write([]byte(subjectID))
	h.Write([]byte{0})
	h.Write([]byte(state))
	h.Write([]byte{0})
	h.Write(ts[:])
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
