package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.DailyReportLimit != 3 {
		t.Errorf("DailyReportLimit = %d, want 3", cfg.DailyReportLimit)
	}
	if cfg.RejectTargetState != "EN_PROCESO" {
		t.Errorf("RejectTargetState = %q", cfg.RejectTargetState)
	}
	if cfg.ZoneRiskWindow != 0 {
		t.Errorf("ZoneRiskWindow = %v, want all-time (0)", cfg.ZoneRiskWindow)
	}
	if cfg.NotifyDedupeSize != 100 {
		t.Errorf("NotifyDedupeSize = %d, want 100", cfg.NotifyDedupeSize)
	}
	if cfg.ClockTimezone != "America/Lima" {
		t.Errorf("ClockTimezone = %q", cfg.ClockTimezone)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DAILY_REPORT_LIMIT", "5")
	t.Setenv("ZONE_RISK_WINDOW", "168h")
	t.Setenv("QUOTA_EXEMPT_ROLES", " ADMIN , ,SECURITY,SUPERADMIN ")
	t.Setenv("ZONE_CACHE_TTL", "not-a-duration")

	cfg := Load()
	if cfg.DailyReportLimit != 5 {
		t.Errorf("DailyReportLimit = %d, want 5", cfg.DailyReportLimit)
	}
	if cfg.ZoneRiskWindow != 168*time.Hour {
		t.Errorf("ZoneRiskWindow = %v", cfg.ZoneRiskWindow)
	}
	if cfg.ZoneCacheTTL != 30*time.Second {
		t.Errorf("ZoneCacheTTL fallback = %v", cfg.ZoneCacheTTL)
	}
	roles := cfg.ExemptRoles()
	if len(roles) != 3 || roles[0] != "ADMIN" || roles[2] != "SUPERADMIN" {
		t.Errorf("ExemptRoles = %v", roles)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name     string
		secret   string
		password string
		driver   string
		source   string
		clockURL string
		wantErr  bool
	}{
		{"postgres ok", "secret", "pw", "postgres", "system", "", false},
		{"memory without password", "secret", "", "memory", "system", "", false},
		{"missing secret", "", "pw", "postgres", "system", "", true},
		{"postgres without password", "secret", "", "postgres", "system", "", true},
		{"unknown driver", "secret", "pw", "sqlite", "system", "", true},
		{"remote clock", "secret", "pw", "postgres", "remote", "https://time.test", false},
		{"remote clock without url", "secret", "pw", "postgres", "remote", "", true},
		{"unknown clock", "secret", "pw", "postgres", "ntp", "", true},
	}
	for _, tc := range testCases {
		cfg := Load()
		cfg.JWTSecret = tc.secret
		cfg.DBPassword = tc.password
		cfg.StoreDriver = tc.driver
		cfg.ClockSource = tc.source
		cfg.ClockURL = tc.clockURL
		if err := cfg.Validate(); (err != nil) != tc.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}
