package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"outreach-engine/internal/domain/eligibility"
	"outreach-engine/internal/domain/matching"
	"outreach-engine/internal/domain/opportunity"

	"gopkg.in/yaml.v3"
)

// DefaultSettingsYAML is written by operators as a starting point and is
// also what an absent settings file resolves to.
const DefaultSettingsYAML = `# outreach-engine operator settings
excluded_organizations: []
minimum_match_score: 60
priority_industries: []
max_daily_applications: 20

working_hours:
  start: "09:00"
  end: "18:00"
  time_zone: UTC

follow_up_offsets: [72h, 168h, 336h]

intervals:
  processor: 30s
  follow_up: 1m
  sweep: 5m
  health: 1m
  metrics: 5m
  reply_watch: 2m

call_timeout: 30s
fallback_on_generation_error: true

follow_up_workers: 4
follow_up_rate: 500ms
`

type WorkingHoursSettings struct {
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
	TimeZone string `yaml:"time_zone"`
}

type IntervalSettings struct {
	Processor  time.Duration `yaml:"processor"`
	FollowUp   time.Duration `yaml:"follow_up"`
	Sweep      time.Duration `yaml:"sweep"`
	Health     time.Duration `yaml:"health"`
	Metrics    time.Duration `yaml:"metrics"`
	ReplyWatch time.Duration `yaml:"reply_watch"`
}

// Settings are the operator knobs that may change while the engine runs.
// In-flight pipelines keep whatever they were created with; only new
// decisions see a reload.
type Settings struct {
	ExcludedOrganizations     []string             `yaml:"excluded_organizations"`
	MinimumMatchScore         int                  `yaml:"minimum_match_score"`
	PriorityIndustries        []string             `yaml:"priority_industries"`
	MaxDailyApplications      int                  `yaml:"max_daily_applications"`
	WorkingHours              WorkingHoursSettings `yaml:"working_hours"`
	FollowUpOffsets           []time.Duration      `yaml:"follow_up_offsets"`
	Intervals                 IntervalSettings     `yaml:"intervals"`
	CallTimeout               time.Duration        `yaml:"call_timeout"`
	FallbackOnGenerationError bool                 `yaml:"fallback_on_generation_error"`
	FollowUpWorkers           int                  `yaml:"follow_up_workers"`
	FollowUpRate              time.Duration        `yaml:"follow_up_rate"`
	Profile                   *opportunity.Profile `yaml:"profile,omitempty"`

	workingHours eligibility.WorkingHours
}

func DefaultSettings() Settings {
	s, err := ParseSettings([]byte(DefaultSettingsYAML))
	if err != nil {
		panic(fmt.Sprintf("config: default settings do not parse: %v", err))
	}
	return s
}

// ParseSettings decodes data on top of the defaults, so a file only needs
// the keys it changes.
func ParseSettings(data []byte) (Settings, error) {
	s := Settings{}
	if err := yaml.Unmarshal([]byte(DefaultSettingsYAML), &s); err != nil {
		return Settings{}, err
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse settings: %w", err)
		}
	}
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	var problems []string
	if s.MinimumMatchScore < 0 || s.MinimumMatchScore > 100 {
		problems = append(problems, "minimum_match_score must be within 0..100")
	}
	if s.MaxDailyApplications < 0 {
		problems = append(problems, "max_daily_applications must not be negative")
	}
	prev := time.Duration(0)
	for i, off := range s.FollowUpOffsets {
		if off <= prev {
			problems = append(problems, fmt.Sprintf("follow_up_offsets[%d] must be positive and increasing", i))
		}
		prev = off
	}
	if s.CallTimeout <= 0 {
		problems = append(problems, "call_timeout must be positive")
	}
	if s.FollowUpWorkers <= 0 {
		s.FollowUpWorkers = 1
	}
	iv := s.Intervals
	for name, d := range map[string]time.Duration{
		"processor": iv.Processor, "follow_up": iv.FollowUp, "sweep": iv.Sweep,
		"health": iv.Health, "metrics": iv.Metrics, "reply_watch": iv.ReplyWatch,
	} {
		if d <= 0 {
			problems = append(problems, "intervals."+name+" must be positive")
		}
	}
	wh, err := eligibility.ParseWorkingHours(s.WorkingHours.Start, s.WorkingHours.End, s.WorkingHours.TimeZone)
	if err != nil {
		problems = append(problems, "working_hours: "+err.Error())
	}
	s.workingHours = wh
	if s.Profile != nil {
		if err := s.Profile.Validate(); err != nil {
			problems = append(problems, "profile: "+err.Error())
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid settings: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (s Settings) EligibilityRules() eligibility.Rules {
	return eligibility.Rules{
		ExcludedOrganizations: s.ExcludedOrganizations,
		MinimumMatchScore:     s.MinimumMatchScore,
		WorkingHours:          s.workingHours,
	}
}

func (s Settings) ScoringOptions() matching.Options {
	return matching.Options{PriorityIndustries: s.PriorityIndustries}
}

// SettingsStore holds the current Settings and swaps them atomically on
// reload. Readers never see a partially applied file.
type SettingsStore struct {
	path    string
	current atomic.Pointer[Settings]

	mu      sync.Mutex
	modTime time.Time
}

func NewSettingsStore(s Settings) *SettingsStore {
	st := &SettingsStore{}
	st.current.Store(&s)
	return st
}

// LoadSettings reads path into a new store. A missing file yields the
// defaults so a fresh checkout runs without one.
func LoadSettings(path string) (*SettingsStore, error) {
	st := &SettingsStore{path: path}
	if _, err := st.Reload(); err != nil {
		return nil, err
	}
	return st, nil
}

func (st *SettingsStore) Current() Settings {
	return *st.current.Load()
}

func (st *SettingsStore) Path() string {
	return st.path
}

// Reload re-reads the file unconditionally. On error the previous settings
// stay active.
func (st *SettingsStore) Reload() (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.reloadLocked()
}

// ReloadIfChanged reloads only when the file's modification time moved.
func (st *SettingsStore) ReloadIfChanged() (bool, error) {
	if st.path == "" {
		return false, nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	info, err := os.Stat(st.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if info.ModTime().Equal(st.modTime) {
		return false, nil
	}
	if _, err := st.reloadLocked(); err != nil {
		return false, err
	}
	return true, nil
}

func (st *SettingsStore) reloadLocked() (Settings, error) {
	var data []byte
	if st.path != "" {
		b, err := os.ReadFile(st.path)
		switch {
		case err == nil:
			data = b
			if info, statErr := os.Stat(st.path); statErr == nil {
				st.modTime = info.ModTime()
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Settings{}, fmt.Errorf("read settings %s: %w", st.path, err)
		}
	}
	s, err := ParseSettings(data)
	if err != nil {
		return Settings{}, err
	}
	st.current.Store(&s)
	return s, nil
}
