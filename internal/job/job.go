// Package job tracks a batch run over a list of postcode districts. One job
// is active at a time; an external driver steps it forward one district per
// call and collects the accumulated results.
package job

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/streetsignal/streetsignal/internal/model"
	"github.com/streetsignal/streetsignal/internal/processor"
)

// Runner processes a single district. Satisfied by *processor.Processor.
type Runner interface {
	Process(ctx context.Context, district string, opts processor.Options) model.DistrictResult
}

// Job is one batch run.
type Job struct {
	ID           string                 `json:"job_id"`
	Districts    []string               `json:"districts"`
	Preset       string                 `json:"preset"`
	Options      processor.Options      `json:"options"`
	CurrentIndex int                    `json:"current_index"`
	Results      []model.DistrictResult `json:"results"`
	CreatedAt    time.Time              `json:"created_at"`
	Completed    bool                   `json:"completed"`
}

// StepResult reports progress after one Step call.
type StepResult struct {
	Completed bool                  `json:"completed"`
	Total     int                   `json:"total"`
	Processed int                   `json:"processed"`
	Result    *model.DistrictResult `json:"result,omitempty"`
}

// Manager owns the single active job.
type Manager struct {
	mu       sync.Mutex
	runner   Runner
	job      *Job
	stepping bool
}

// NewManager creates a Manager over the given district runner.
func NewManager(runner Runner) *Manager {
	return &Manager{runner: runner}
}

// ParseDistricts splits raw user input into normalized district codes.
// Commas and newlines both act as separators; blanks are dropped.
func ParseDistricts(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	var out []string
	for _, f := range fields {
		if d := model.NormalizeDistrict(f); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// Start creates a new job, replacing any previous one.
func (m *Manager) Start(districts []string, presetName string, opts processor.Options) (Job, error) {
	normalized := make([]string, 0, len(districts))
	for _, d := range districts {
		if n := model.NormalizeDistrict(d); n != "" {
			normalized = append(normalized, n)
		}
	}
	if len(normalized) == 0 {
		return Job{}, eris.New("job: no valid districts provided")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.job = &Job{
		ID:        uuid.NewString(),
		Districts: normalized,
		Preset:    presetName,
		Options:   opts,
		CreatedAt: time.Now(),
	}
	return *m.job, nil
}

// Step processes the next district of the active job. Only one Step runs at
// a time; overlapping calls fail instead of double-processing a district.
func (m *Manager) Step(ctx context.Context) (StepResult, error) {
	m.mu.Lock()
	if m.job == nil {
		m.mu.Unlock()
		return StepResult{}, eris.New("job: no active job")
	}
	if m.job.Completed {
		m.mu.Unlock()
		return StepResult{}, eris.New("job: already completed")
	}
	if m.stepping {
		m.mu.Unlock()
		return StepResult{}, eris.New("job: step already in progress")
	}

	idx := m.job.CurrentIndex
	total := len(m.job.Districts)
	if idx >= total {
		m.job.Completed = true
		m.mu.Unlock()
		return StepResult{Completed: true, Total: total, Processed: idx}, nil
	}

	district := m.job.Districts[idx]
	opts := m.job.Options
	m.stepping = true
	m.mu.Unlock()

	// The mutex is released while the district processes so status reads
	// are not blocked behind minutes of provider calls.
	result := m.runner.Process(ctx, district, opts)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepping = false
	m.job.Results = append(m.job.Results, result)
	m.job.CurrentIndex++
	m.job.Completed = m.job.CurrentIndex >= total

	return StepResult{
		Completed: m.job.Completed,
		Total:     total,
		Processed: m.job.CurrentIndex,
		Result:    &result,
	}, nil
}

// Current returns a snapshot of the active job, or false if none exists.
func (m *Manager) Current() (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job == nil {
		return Job{}, false
	}
	snapshot := *m.job
	snapshot.Districts = append([]string(nil), m.job.Districts...)
	snapshot.Results = append([]model.DistrictResult(nil), m.job.Results...)
	return snapshot, true
}

// Results returns a copy of the results accumulated so far.
func (m *Manager) Results() []model.DistrictResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job == nil {
		return nil
	}
	return append([]model.DistrictResult(nil), m.job.Results...)
}

// Reset discards the active job.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.job = nil
	m.stepping = false
}
