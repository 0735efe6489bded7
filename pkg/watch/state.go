package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/utils"
)

const stateFileName = "watch_state.json"

// DomainState contains the last run information for a domain
type DomainState struct {
	LastRunTime  time.Time      `json:"last_run_time"`
	LastOutcome  models.Outcome `json:"last_outcome"`
	RecordCount  int            `json:"record_count"`
	ValidCount   int            `json:"valid_count"`
	KnownValid   []string       `json:"known_valid,omitempty"` // Sorted valid addresses seen across runs
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Succeeded reports whether the last run produced results
func (d DomainState) Succeeded() bool {
	return d.LastOutcome == models.OutcomeCompleted || d.LastOutcome == models.OutcomeBlocked
}

// WatchState contains the persistent state for the watch scheduler
type WatchState struct {
	Domains   map[string]DomainState `json:"domains"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// StateManager handles persisting and loading watch state
type StateManager struct {
	stateDir  string
	statePath string
	state     WatchState
	mu        sync.RWMutex
}

// NewStateManager creates a new state manager
func NewStateManager(stateDir string) *StateManager {
	return &StateManager{
		stateDir:  stateDir,
		statePath: filepath.Join(stateDir, stateFileName),
		state:     WatchState{Domains: make(map[string]DomainState)},
	}
}

// Load loads the state from disk; a missing file means a fresh state
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.state = WatchState{Domains: make(map[string]DomainState)}
			return nil
		}
		return fmt.Errorf("%w: failed to read state file: %w", utils.ErrFilesystem, err)
	}

	if err := json.Unmarshal(data, &m.state); err != nil {
		return fmt.Errorf("%w: failed to parse state file JSON: %w", utils.ErrParsing, err)
	}
	if m.state.Domains == nil {
		m.state.Domains = make(map[string]DomainState)
	}
	return nil
}

// Save saves the state to disk
func (m *StateManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.UpdatedAt = time.Now()
	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create state directory: %w", utils.ErrFilesystem, err)
	}
	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal state JSON: %w", utils.ErrParsing, err)
	}
	if err := os.WriteFile(m.statePath, data, 0644); err != nil {
		return fmt.Errorf("%w: failed to write state file: %w", utils.ErrFilesystem, err)
	}
	return nil
}

// GetDomainState returns the state for a specific domain
func (m *StateManager) GetDomainState(domain string) (DomainState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.state.Domains[domain]
	return state, ok
}

// RecordRun stores the outcome of a run and returns the valid addresses not
// seen in any earlier run.
func (m *StateManager) RecordRun(domain string, outcome models.Outcome, records []models.Record, errorMsg string, at time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state.Domains[domain]
	known := make(map[string]bool, len(prev.KnownValid))
	for _, e := range prev.KnownValid {
		known[e] = true
	}

	var fresh []string
	valid := 0
	for _, r := range records {
		if !r.IsValid {
			continue
		}
		valid++
		if !known[r.Email] {
			known[r.Email] = true
			fresh = append(fresh, r.Email)
		}
	}
	all := make([]string, 0, len(known))
	for e := range known {
		all = append(all, e)
	}
	sort.Strings(all)
	sort.Strings(fresh)

	m.state.Domains[domain] = DomainState{
		LastRunTime:  at,
		LastOutcome:  outcome,
		RecordCount:  len(records),
		ValidCount:   valid,
		KnownValid:   all,
		ErrorMessage: errorMsg,
	}
	return fresh
}

// ShouldRun checks if a domain should run based on the interval
func (m *StateManager) ShouldRun(domain string, interval time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.state.Domains[domain]
	if !ok {
		return true
	}
	return time.Since(state.LastRunTime) >= interval
}

// GetNextRunTime returns when the domain should next run
func (m *StateManager) GetNextRunTime(domain string, interval time.Duration) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.state.Domains[domain]
	if !ok {
		return time.Now()
	}
	return state.LastRunTime.Add(interval)
}
