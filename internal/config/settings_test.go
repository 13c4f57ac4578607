package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.MinimumMatchScore != 60 || s.MaxDailyApplications != 20 {
		t.Fatalf("unexpected defaults %+v", s)
	}
	want := []time.Duration{72 * time.Hour, 168 * time.Hour, 336 * time.Hour}
	if len(s.FollowUpOffsets) != len(want) {
		t.Fatalf("expected %d offsets, got %d", len(want), len(s.FollowUpOffsets))
	}
	for i := range want {
		if s.FollowUpOffsets[i] != want[i] {
			t.Fatalf("offset %d: expected %s, got %s", i, want[i], s.FollowUpOffsets[i])
		}
	}
	if !s.FallbackOnGenerationError || s.CallTimeout != 30*time.Second {
		t.Fatalf("unexpected call settings %+v", s)
	}
	rules := s.EligibilityRules()
	if rules.MinimumMatchScore != 60 || rules.WorkingHours.Start != 9*60 || rules.WorkingHours.End != 18*60 {
		t.Fatalf("unexpected rules %+v", rules)
	}
}

func TestParseSettings_OverlaysDefaults(t *testing.T) {
	s, err := ParseSettings([]byte(`
minimum_match_score: 75
priority_industries: [fintech]
working_hours:
  start: "22:00"
  end: "06:00"
  time_zone: Europe/Berlin
profile:
  id: me
  name: Sam
  email: sam@example.com
  skills: [Go]
  experience: senior
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.MinimumMatchScore != 75 || s.MaxDailyApplications != 20 {
		t.Fatalf("overlay lost defaults: %+v", s)
	}
	if got := s.ScoringOptions().PriorityIndustries; len(got) != 1 || got[0] != "fintech" {
		t.Fatalf("unexpected priority industries %v", got)
	}
	if s.Profile == nil || s.Profile.ID != "me" {
		t.Fatalf("profile not decoded: %+v", s.Profile)
	}
	wh := s.EligibilityRules().WorkingHours
	if wh.Location == nil || wh.Location.String() != "Europe/Berlin" {
		t.Fatalf("unexpected location %v", wh.Location)
	}
}

func TestParseSettings_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"score":   "minimum_match_score: 140",
		"offsets": "follow_up_offsets: [72h, 24h]",
		"hours":   "working_hours: {start: \"25:00\", end: \"18:00\"}",
		"timeout": "call_timeout: 0s",
		"yaml":    "minimum_match_score: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseSettings([]byte(doc)); err == nil {
				t.Fatalf("expected error for %q", doc)
			}
		})
	}
}

func TestSettingsStore_ReloadIfChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	if err := os.WriteFile(path, []byte("minimum_match_score: 50\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.Current().MinimumMatchScore != 50 {
		t.Fatalf("expected 50, got %d", st.Current().MinimumMatchScore)
	}
	if changed, err := st.ReloadIfChanged(); err != nil || changed {
		t.Fatalf("unchanged file should not reload (changed=%v err=%v)", changed, err)
	}

	if err := os.WriteFile(path, []byte("minimum_match_score: 70\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	changed, err := st.ReloadIfChanged()
	if err != nil || !changed {
		t.Fatalf("expected reload (changed=%v err=%v)", changed, err)
	}
	if st.Current().MinimumMatchScore != 70 {
		t.Fatalf("expected 70, got %d", st.Current().MinimumMatchScore)
	}

	if err := os.WriteFile(path, []byte("minimum_match_score: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Reload(); err == nil || !strings.Contains(err.Error(), "minimum_match_score") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if st.Current().MinimumMatchScore != 70 {
		t.Fatalf("bad reload must keep previous settings")
	}
}

func TestLoadSettings_MissingFileUsesDefaults(t *testing.T) {
	st, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.Current().MinimumMatchScore != 60 {
		t.Fatalf("expected defaults")
	}
}
