package pipeline

import (
	"fmt"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
	"github.com/KaramelBytes/cleanloom/internal/detect"
	"github.com/KaramelBytes/cleanloom/internal/export"
)

var missingMenu = []ActionKind{ActHighlight, ActDelete, ActImputeSimple, ActImputeKNN}

func missingMessage(n int) string { return fmt.Sprintf("%d missing values were detected", n) }

// start enters missing-value handling. The snapshot taken at load time is
// the one undo returns to for the whole stage.
func (s *Session) start() (*Outcome, error) {
	s.log.User(Label(ActStart, s.stage, s.round))
	s.stage = StageMissing
	s.step++
	s.filename = export.CleanFilename(s.uploaded)
	s.previous = s.current.Clone()
	rep, n := detect.DetectMissing(s.current)
	s.missing = rep
	s.counts.Missing = n
	msg := missingMessage(n)
	s.log.System(msg)
	s.menu = nil
	if n > 0 {
		s.menu = append([]ActionKind(nil), missingMenu...)
	}
	return s.outcome(Label(ActStart, StageDataLoading, 0), msg, n, nil), nil
}

func (s *Session) missingAction(k ActionKind) (*Outcome, error) {
	label := Label(k, s.stage, s.round)
	if k == ActFinishMissing {
		return s.enterDuplicates(label)
	}
	s.log.User(label)

	var (
		next *dataset.Dataset
		rows *dataset.Dataset
		err  error
	)
	switch k {
	case ActHighlight:
		rows = detect.MissingRows(s.current)
		s.step++
		s.menu = []ActionKind{ActDelete, ActImputeSimple, ActImputeKNN}
		msg := missingMessage(s.counts.Missing)
		return s.outcome(label, msg, s.counts.Missing, rows), nil
	case ActDelete:
		next = detect.DropMissing(s.current)
	case ActImputeSimple:
		next, err = detect.Impute(s.current, detect.MethodSimple, s.opts.Neighbors)
	case ActImputeKNN:
		next, err = detect.Impute(s.current, detect.MethodKNN, s.opts.Neighbors)
	case ActUndo:
		next = s.previous.Clone()
	}
	if err != nil {
		return nil, s.block(err)
	}

	s.current = next
	s.step++
	rep, n := detect.DetectMissing(s.current)
	s.missing = rep
	s.counts.Missing = n
	msg := missingMessage(n)
	s.log.System(msg)
	switch {
	case k == ActUndo || n > 0:
		s.menu = nil
		if n > 0 {
			s.menu = append([]ActionKind(nil), missingMenu...)
		}
	default:
		s.menu = []ActionKind{ActUndo}
	}
	s.setChart(s.rec.Recommend(s.current, s.intent, ""))
	return s.outcome(label, msg, n, nil), nil
}
