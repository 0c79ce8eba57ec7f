// Package campus loads the administratively managed catalogue (sites, zones,
// incident types and staff) from a JSON seed file.
package campus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/repository"
	"github.com/google/uuid"
)

type SiteConfig struct {
	ID      uuid.UUID    `json:"id"`
	Name    string       `json:"name"`
	Address string       `json:"address"`
	Zones   []ZoneConfig `json:"zones"`
}

type ZoneConfig struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	// Active defaults to true when omitted.
	Active *bool `json:"active"`
}

type IncidentTypeConfig struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

type StaffConfig struct {
	ID       uuid.UUID   `json:"id"`
	Email    string      `json:"email"`
	FullName string      `json:"full_name"`
	Role     models.Role `json:"role"`
	Enabled  *bool       `json:"enabled"`
}

type CampusFile struct {
	Sites         []SiteConfig         `json:"sites"`
	IncidentTypes []IncidentTypeConfig `json:"incident_types"`
	Staff         []StaffConfig        `json:"staff"`
}

// Registry is the validated, in-memory view of a campus file.
type Registry struct {
	mu        sync.RWMutex
	sites     map[uuid.UUID]*models.Site
	zones     map[uuid.UUID]*models.Zone
	incidents map[uuid.UUID]*models.IncidentType
	staff     map[uuid.UUID]*models.User
}

func NewRegistry() *Registry {
	return &Registry{
		sites:     make(map[uuid.UUID]*models.Site),
		zones:     make(map[uuid.UUID]*models.Zone),
		incidents: make(map[uuid.UUID]*models.IncidentType),
		staff:     make(map[uuid.UUID]*models.User),
	}
}

func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read campus config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Registry, error) {
	var file CampusFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse campus config: %w", err)
	}

	registry := NewRegistry()
	for _, s := range file.Sites {
		if s.ID == uuid.Nil || strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("site %q needs an id and a name", s.Name)
		}
		registry.sites[s.ID] = &models.Site{ID: s.ID, Name: s.Name, Address: s.Address}
		for _, z := range s.Zones {
			if z.ID == uuid.Nil || strings.TrimSpace(z.Name) == "" {
				return nil, fmt.Errorf("zone %q in site %s needs an id and a name", z.Name, s.Name)
			}
			if _, dup := registry.zones[z.ID]; dup {
				return nil, fmt.Errorf("zone %s is listed twice", z.ID)
			}
			registry.zones[z.ID] = &models.Zone{
				ID:          z.ID,
				SiteID:      s.ID,
				Name:        z.Name,
				Description: z.Description,
				Active:      z.Active == nil || *z.Active,
				Status:      models.ZoneSafe,
			}
		}
	}
	for _, it := range file.IncidentTypes {
		if it.ID == uuid.Nil || strings.TrimSpace(it.Name) == "" {
			return nil, fmt.Errorf("incident type %q needs an id and a name", it.Name)
		}
		registry.incidents[it.ID] = &models.IncidentType{ID: it.ID, Name: it.Name, Description: it.Description}
	}
	for _, u := range file.Staff {
		if u.ID == uuid.Nil || u.Email == "" {
			return nil, fmt.Errorf("staff member %q needs an id and an email", u.FullName)
		}
		if !u.Role.Valid() {
			return nil, fmt.Errorf("staff member %s has unknown role %q", u.Email, u.Role)
		}
		registry.staff[u.ID] = &models.User{
			ID:       u.ID,
			Email:    u.Email,
			FullName: u.FullName,
			Role:     u.Role,
			Enabled:  u.Enabled == nil || *u.Enabled,
		}
	}
	return registry, nil
}

func (r *Registry) Zone(id uuid.UUID) *models.Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.zones[id]
}

func (r *Registry) Counts() (sites, zones, incidentTypes, staff int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sites), len(r.zones), len(r.incidents), len(r.staff)
}

// Seed upserts the catalogue into store. Derived zone fields already in the
// store are left alone.
func (r *Registry) Seed(ctx context.Context, store repository.CatalogRepository) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sites {
		site := *s
		if err := store.UpsertSite(ctx, &site); err != nil {
			return fmt.Errorf("failed to seed site %s: %w", s.Name, err)
		}
	}
	for _, z := range r.zones {
		zone := *z
		if err := store.UpsertZone(ctx, &zone); err != nil {
			return fmt.Errorf("failed to seed zone %s: %w", z.Name, err)
		}
	}
	for _, it := range r.incidents {
		incident := *it
		if err := store.UpsertIncidentType(ctx, &incident); err != nil {
			return fmt.Errorf("failed to seed incident type %s: %w", it.Name, err)
		}
	}
	for _, u := range r.staff {
		user := *u
		if err := store.UpsertUser(ctx, &user); err != nil {
			return fmt.Errorf("failed to seed staff member %s: %w", u.Email, err)
		}
	}
	return nil
}
