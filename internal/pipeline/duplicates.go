package pipeline

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
	"github.com/KaramelBytes/cleanloom/internal/detect"
)

var duplicateMenu = []ActionKind{ActHighlight, ActDelete, ActKeep}

func duplicateMessage(n int) string { return fmt.Sprintf("%d duplicated rows were detected", n) }

const missingBlockMessage = `ERROR: Visualisations cannot be displayed due to missing values in the data. ` +
	`Please revisit the "Missing Value Handling" step above, and click the "Finish Missing Value Handling" button when done.`

// enterDuplicates leaves missing-value handling. It refuses to advance
// while the chart for the flagged data would be drawn over missing values,
// or while a feature column the outlier stage encodes still has nulls;
// neither can be fixed once missing-value handling is left.
func (s *Session) enterDuplicates(label string) (*Outcome, error) {
	s.log.User(label)
	flagged, n := detect.DetectDuplicates(s.current, detect.KeepFirst, s.opts.Identifiers)
	chart := s.rec.Recommend(flagged, s.intent, dataset.DuplicateColumn)
	var cause error
	if cols := detect.FeatureNulls(s.current, s.opts.Identifiers); len(cols) > 0 {
		cause = fmt.Errorf("%w in %s", ErrMissingValuesBlock, strings.Join(cols, ", "))
	} else if chart.MissingValues {
		cause = ErrMissingValuesBlock
	}
	if cause != nil {
		s.log.System(missingBlockMessage)
		return nil, &BlockingError{
			Stage:   stageName(s.stage, s.round),
			Message: missingBlockMessage,
			Err:     cause,
		}
	}
	s.previous = s.current.Clone()
	s.stage = StageDuplicates
	s.step++
	s.current = flagged
	s.counts.Duplicates = n
	s.setChart(chart)
	msg := duplicateMessage(n)
	s.log.System(msg)
	s.menu = []ActionKind{ActKeep}
	if n > 0 {
		s.menu = append([]ActionKind(nil), duplicateMenu...)
	}
	return s.outcome(label, msg, n, nil), nil
}

func (s *Session) duplicateAction(k ActionKind) (*Outcome, error) {
	label := Label(k, s.stage, s.round)
	switch k {
	case ActFinishDuplicates:
		return s.enterOutliers(label)
	case ActKeep:
		s.log.User(label)
		return s.enterOutliers(Label(ActFinishDuplicates, s.stage, s.round))
	}
	s.log.User(label)

	if k == ActHighlight {
		rows := detect.HighlightDuplicates(s.current, s.opts.Identifiers)
		s.step++
		msg := duplicateMessage(s.counts.Duplicates)
		s.log.System(msg)
		return s.outcome(label, msg, s.counts.Duplicates, rows), nil
	}

	base := s.previous
	if k == ActDelete {
		base = detect.DropFlagged(s.current, dataset.DuplicateColumn)
	}
	flagged, n := detect.DetectDuplicates(base, detect.KeepFirst, s.opts.Identifiers)
	s.current = flagged
	s.step++
	s.counts.Duplicates = n
	msg := duplicateMessage(n)
	s.log.System(msg)
	switch {
	case k == ActDelete && n == 0:
		s.menu = []ActionKind{ActUndo}
	case n > 0:
		s.menu = append([]ActionKind(nil), duplicateMenu...)
	default:
		s.menu = []ActionKind{ActKeep}
	}
	chart := s.rec.Recommend(s.current, s.intent, dataset.DuplicateColumn)
	if chart.MissingValues || chart.Unavailable {
		chart = s.rec.Recommend(s.current, nil, dataset.DuplicateColumn)
	}
	s.setChart(chart)
	return s.outcome(label, msg, n, nil), nil
}
