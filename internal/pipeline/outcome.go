package pipeline

import (
	"github.com/KaramelBytes/cleanloom/internal/dataset"
	"github.com/KaramelBytes/cleanloom/internal/detect"
	"github.com/KaramelBytes/cleanloom/internal/visual"
)

// Outcome describes the state reached by one action.
type Outcome struct {
	Stage         string               `json:"stage"`
	Round         int                  `json:"round,omitempty"`
	Step          int                  `json:"step"`
	Token         string               `json:"token"`
	Action        string               `json:"action,omitempty"`
	Message       string               `json:"message,omitempty"`
	Count         int                  `json:"count"`
	Menu          []ActionKind         `json:"menu"`
	Rows          *dataset.Dataset     `json:"-"`
	Missing       detect.MissingReport `json:"missing,omitempty"`
	Chart         visual.Result        `json:"chart"`
	Contamination float64              `json:"contamination,omitempty"`
}

// State is a read-only view of a session for status endpoints.
type State struct {
	ID         string        `json:"id"`
	Stage      string        `json:"stage"`
	Round      int           `json:"round,omitempty"`
	Step       int           `json:"step"`
	Token      string        `json:"token"`
	Filename   string        `json:"filename,omitempty"`
	Menu       []ActionKind  `json:"menu"`
	Finish     ActionKind    `json:"finish,omitempty"`
	Counts     Counts        `json:"counts"`
	History    []float64     `json:"contamination_history,omitempty"`
	Rows       int           `json:"rows"`
	Columns    []string      `json:"columns"`
	LogEntries int           `json:"log_entries"`
	Chart      visual.Result `json:"chart"`
}

// State snapshots the session. It returns ErrNoDataset before Load.
func (s *Session) State() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return State{ID: s.ID}, ErrNoDataset
	}
	return State{
		ID:         s.ID,
		Stage:      stageName(s.stage, s.round),
		Round:      s.round,
		Step:       s.step,
		Token:      s.token(),
		Filename:   s.filename,
		Menu:       append([]ActionKind(nil), s.menu...),
		Finish:     finishAction(s.stage),
		Counts:     s.counts,
		History:    append([]float64(nil), s.history...),
		Rows:       s.current.Len(),
		Columns:    s.current.Names(),
		LogEntries: s.log.Len(),
		Chart:      s.chart,
	}, nil
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Current returns a copy of the working dataset, markers included.
func (s *Session) Current() *dataset.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.Clone()
}

// LastChart returns the chart proposed by the latest transition together
// with the dataset it should be drawn over.
func (s *Session) LastChart() (visual.Result, *dataset.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return visual.Result{Unavailable: true}, nil
	}
	return s.chart, s.current.Clone()
}

// LogEntries returns the action log in order.
func (s *Session) LogEntries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Entries()
}

// LogText renders the action log as written to the export file.
func (s *Session) LogText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Text()
}

// ContaminationHistory returns every contamination used so far.
func (s *Session) ContaminationHistory() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.history...)
}

// Summary compares the working dataset with the upload.
type Summary struct {
	OriginalRows int     `json:"original_rows"`
	CurrentRows  int     `json:"current_rows"`
	Before       float64 `json:"dirtiness_before"`
	After        float64 `json:"dirtiness_after"`
}

// Summary scores the upload and the working dataset with detect.Dirtiness.
func (s *Session) Summary() (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Summary{}, ErrNoDataset
	}
	return Summary{
		OriginalRows: s.original.Len(),
		CurrentRows:  s.current.Len(),
		Before:       detect.Dirtiness(s.original, s.original, s.opts.Identifiers),
		After:        detect.Dirtiness(s.original, s.current, s.opts.Identifiers),
	}, nil
}
