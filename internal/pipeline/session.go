// Package pipeline drives one dataset through the guided cleaning stages:
// missing values, duplicates, outliers and export. Each Session owns its
// whole state; nothing is shared between sessions.
package pipeline

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
	"github.com/KaramelBytes/cleanloom/internal/detect"
	"github.com/KaramelBytes/cleanloom/internal/export"
	"github.com/KaramelBytes/cleanloom/internal/isoforest"
	"github.com/KaramelBytes/cleanloom/internal/visual"
)

// DefaultMaxOutlierRounds bounds the outlier stage; there is no round after it.
const DefaultMaxOutlierRounds = 3

// Options tunes the detectors used by a session.
type Options struct {
	Forest           isoforest.Options
	Neighbors        int
	MaxOutlierRounds int
	Identifiers      []string
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Forest:           isoforest.DefaultOptions(),
		Neighbors:        detect.DefaultNeighbors,
		MaxOutlierRounds: DefaultMaxOutlierRounds,
		Identifiers:      append([]string(nil), detect.DefaultIdentifiers...),
	}
}

// Recommender proposes the chart shown after each transition.
type Recommender interface {
	Recommend(ds *dataset.Dataset, intent visual.Intent, enhance string) visual.Result
}

// Counts holds the latest detector results.
type Counts struct {
	Missing    int `json:"missing"`
	Duplicates int `json:"duplicates"`
	Outliers   int `json:"outliers"`
}

// Session is the state of one cleaning run. All exported methods are safe
// for concurrent use; transitions are applied one at a time.
type Session struct {
	ID string

	mu     sync.Mutex
	opts   Options
	rec    Recommender
	logger *zap.Logger

	stage    Stage
	round    int
	step     int
	uploaded string
	filename string

	original *dataset.Dataset
	current  *dataset.Dataset
	previous *dataset.Dataset

	history []float64
	log     *Log
	intent  visual.Intent
	chart   visual.Result
	menu    []ActionKind
	counts  Counts
	missing detect.MissingReport
}

// New creates an empty session. A nil recommender uses visual.Recommender
// and a nil logger discards output.
func New(opts Options, rec Recommender, logger *zap.Logger) *Session {
	if opts.MaxOutlierRounds <= 0 {
		opts.MaxOutlierRounds = DefaultMaxOutlierRounds
	}
	if opts.Neighbors <= 0 {
		opts.Neighbors = detect.DefaultNeighbors
	}
	if opts.Identifiers == nil {
		opts.Identifiers = append([]string(nil), detect.DefaultIdentifiers...)
	}
	if rec == nil {
		rec = visual.Recommender{Identifiers: opts.Identifiers}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		ID:     id,
		opts:   opts,
		rec:    rec,
		logger: logger.With(zap.String("session", id)),
		log:    NewLog(),
	}
}

// Load replaces the dataset and restarts the workflow at data-loading.
func (s *Session) Load(ds *dataset.Dataset, filename string) (*Outcome, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stage = StageDataLoading
	s.round = 0
	s.step = 1
	s.uploaded = filename
	s.filename = ""
	s.original = ds.Clone()
	s.current = ds.Clone()
	s.previous = ds.Clone()
	s.history = nil
	s.counts = Counts{}
	s.missing = nil
	s.log.Reset()
	s.log.System("Data uploaded")
	s.chart = s.rec.Recommend(s.current, nil, "")
	s.intent = visual.ExtractIntent(s.chart.Spec)
	s.menu = []ActionKind{ActStart}
	s.logger.Info("dataset loaded",
		zap.String("file", filename),
		zap.Int("rows", ds.Len()),
		zap.Int("columns", ds.Width()))
	return s.outcome("", "Data uploaded", 0, nil), nil
}

// Token identifies the current step. Actions carrying an older token are
// rejected by Apply.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token()
}

func (s *Session) token() string { return fmt.Sprintf("%s:%d", s.ID, s.step) }

// Apply performs a if token matches the current step.
func (s *Session) Apply(token string, a Action) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token() {
		return nil, ErrStaleToken
	}
	return s.do(a)
}

// Do performs a against the current step.
func (s *Session) Do(a Action) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.do(a)
}

// finishAction is the stage's always-available forward action.
func finishAction(st Stage) ActionKind {
	switch st {
	case StageDataLoading:
		return ActStart
	case StageMissing:
		return ActFinishMissing
	case StageDuplicates:
		return ActFinishDuplicates
	case StageOutliers:
		return ActFinishOutliers
	}
	return 0
}

// FinishAction returns the action that leaves the current stage, or zero
// in the download stage.
func (s *Session) FinishAction() ActionKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return finishAction(s.stage)
}

func (s *Session) allowed(k ActionKind) bool {
	if k != 0 && k == finishAction(s.stage) {
		return true
	}
	for _, m := range s.menu {
		if m == k {
			return true
		}
	}
	return false
}

func (s *Session) do(a Action) (*Outcome, error) {
	if s.current == nil {
		return nil, ErrNoDataset
	}
	from := stageName(s.stage, s.round)
	if !s.allowed(a.Kind) {
		return nil, &InvalidStageTransitionError{From: from, Action: a.Kind}
	}
	if s.stage == StageOutliers && a.Round != 0 && a.Round != s.round {
		return nil, &InvalidStageTransitionError{From: from, Action: a.Kind, Reason: fmt.Sprintf("offered in round %d", a.Round)}
	}

	var (
		out *Outcome
		err error
	)
	switch s.stage {
	case StageDataLoading:
		out, err = s.start()
	case StageMissing:
		out, err = s.missingAction(a.Kind)
	case StageDuplicates:
		out, err = s.duplicateAction(a.Kind)
	case StageOutliers:
		out, err = s.outlierAction(a.Kind)
	default:
		err = &InvalidStageTransitionError{From: from, Action: a.Kind}
	}
	if err != nil {
		s.logger.Warn("transition failed",
			zap.String("stage", from),
			zap.Stringer("action", a.Kind),
			zap.Error(err))
		return nil, err
	}
	s.logger.Info("transition",
		zap.String("from", from),
		zap.String("stage", out.Stage),
		zap.Stringer("action", a.Kind),
		zap.Int("step", out.Step),
		zap.Int("count", out.Count))
	return out, nil
}

// block records a detector failure and returns it without changing state.
func (s *Session) block(err error) error {
	s.log.System("ERROR: " + err.Error())
	return &BlockingError{Stage: stageName(s.stage, s.round), Err: err}
}

func (s *Session) outcome(action, message string, count int, rows *dataset.Dataset) *Outcome {
	o := &Outcome{
		Stage:   stageName(s.stage, s.round),
		Round:   s.round,
		Step:    s.step,
		Token:   s.token(),
		Action:  action,
		Message: message,
		Count:   count,
		Menu:    append([]ActionKind(nil), s.menu...),
		Rows:    rows,
		Chart:   s.chart,
	}
	if s.stage == StageMissing {
		o.Missing = s.missing
	}
	if s.stage == StageOutliers && len(s.history) > 0 {
		o.Contamination = s.history[len(s.history)-1]
	}
	return o
}

// setChart records the chart shown for ds and remembers its column pair.
func (s *Session) setChart(r visual.Result) {
	s.chart = r
	if in := visual.ExtractIntent(r.Spec); in != nil {
		s.intent = in
	}
}

// Export writes the cleaned dataset and the log into dir. Only the
// download stage may export.
func (s *Session) Export(dir string) (*export.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageDownload {
		return nil, &InvalidStageTransitionError{From: stageName(s.stage, s.round), Action: 0, Reason: "export needs the download stage"}
	}
	b, err := export.WriteBundle(dir, s.filename, s.current, s.log.Text())
	if err != nil {
		return nil, fmt.Errorf("export session: %w", err)
	}
	s.logger.Info("exported", zap.String("data", b.DataPath), zap.Int("rows", b.Rows))
	return b, nil
}

// Downloadable returns the cleaned dataset without marker columns. It is
// only available in the download stage.
func (s *Session) Downloadable() (*dataset.Dataset, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageDownload {
		return nil, "", &InvalidStageTransitionError{From: stageName(s.stage, s.round), Reason: "export needs the download stage"}
	}
	return export.Downloadable(s.current), s.filename, nil
}
