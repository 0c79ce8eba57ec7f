package campus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/repository"
	"github.com/google/uuid"
)

const sample = `{
  "sites": [{
    "id": "7b0c6f1e-2a43-4d2b-9e4e-1f0a5c3d2b10",
    "name": "Sede Central",
    "zones": [
      {"id": "0f6a2c1b-8d3e-4f5a-9b7c-1e2d3f4a5b61", "name": "Biblioteca"},
      {"id": "3c9d5f4e-1a6b-4c8d-8e0f-4b5a6c7d8e94", "name": "Pabellon B", "active": false}
    ]
  }],
  "incident_types": [{"id": "6f2a8c7b-4d9e-4f1a-9b3c-7e8d9fa0b1c7", "name": "Robo"}],
  "staff": [
    {"id": "b2c3d4e5-f6a7-4b8c-9d0e-1f2a3b4c5d6e", "email": "guard@campus.test", "role": "SECURITY"},
    {"id": "c3d4e5f6-a7b8-4c9d-8e1f-2a3b4c5d6e7f", "email": "former@campus.test", "role": "SECURITY", "enabled": false}
  ]
}`

var (
	library  = uuid.MustParse("0f6a2c1b-8d3e-4f5a-9b7c-1e2d3f4a5b61")
	closed   = uuid.MustParse("3c9d5f4e-1a6b-4c8d-8e0f-4b5a6c7d8e94")
	guard    = uuid.MustParse("b2c3d4e5-f6a7-4b8c-9d0e-1f2a3b4c5d6e")
	former   = uuid.MustParse("c3d4e5f6-a7b8-4c9d-8e1f-2a3b4c5d6e7f")
	robberyT = uuid.MustParse("6f2a8c7b-4d9e-4f1a-9b3c-7e8d9fa0b1c7")
	testTime = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campus.json")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}

	registry, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	sites, zones, incidents, staff := registry.Counts()
	if sites != 1 || zones != 2 || incidents != 1 || staff != 2 {
		t.Errorf("counts = %d/%d/%d/%d", sites, zones, incidents, staff)
	}
	if z := registry.Zone(library); z == nil || !z.Active || z.Status != models.ZoneSafe {
		t.Errorf("library zone = %+v", z)
	}
	if z := registry.Zone(closed); z == nil || z.Active {
		t.Errorf("inactive zone = %+v", z)
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestParseRejectsBadEntries(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"zone without id", `{"sites":[{"id":"7b0c6f1e-2a43-4d2b-9e4e-1f0a5c3d2b10","name":"S","zones":[{"name":"Z"}]}]}`},
		{"site without name", `{"sites":[{"id":"7b0c6f1e-2a43-4d2b-9e4e-1f0a5c3d2b10"}]}`},
		{"unknown role", `{"staff":[{"id":"b2c3d4e5-f6a7-4b8c-9d0e-1f2a3b4c5d6e","email":"a@b.c","role":"JANITOR"}]}`},
		{"incident without name", `{"incident_types":[{"id":"6f2a8c7b-4d9e-4f1a-9b3c-7e8d9fa0b1c7"}]}`},
	}
	for _, tc := range testCases {
		if _, err := Parse([]byte(tc.data)); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
}

func TestSeedKeepsDerivedZoneFields(t *testing.T) {
	registry, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	store := repository.NewMemoryStore()
	ctx := context.Background()

	if err := registry.Seed(ctx, store); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := store.UpdateZoneRisk(ctx, library, 3, models.ZoneDangerous, testTime); err != nil {
		t.Fatalf("UpdateZoneRisk: %v", err)
	}
	if err := registry.Seed(ctx, store); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	zone, err := store.GetZone(ctx, library)
	if err != nil {
		t.Fatalf("GetZone: %v", err)
	}
	if zone.RollingIncidentCount != 3 || zone.Status != models.ZoneDangerous {
		t.Errorf("reseed overwrote derived fields: %+v", zone)
	}

	u, err := store.GetUser(ctx, guard)
	if err != nil || u.Role != models.RoleSecurity || !u.Enabled {
		t.Errorf("guard = %+v, %v", u, err)
	}
	u, _ = store.GetUser(ctx, former)
	if u.Enabled {
		t.Error("disabled staff member seeded as enabled")
	}
	if _, err := store.GetIncidentType(ctx, robberyT); err != nil {
		t.Errorf("incident type not seeded: %v", err)
	}
}
