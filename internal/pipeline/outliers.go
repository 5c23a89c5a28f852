package pipeline

import (
	"fmt"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
	"github.com/KaramelBytes/cleanloom/internal/detect"
)

var outlierMenu = []ActionKind{ActFindMore, ActFindLess, ActAccept, ActKeep}

func outlierMessage(n, round int) string {
	if round <= 1 {
		return fmt.Sprintf("%d outlier values were detected", n)
	}
	return fmt.Sprintf("%d new potential outlier values were detected. "+
		"If no more outliers should be removed, please click on \"Finish Outlier Handling\" below.", n)
}

func (s *Session) outlierOptions() detect.OutlierOptions {
	return detect.OutlierOptions{Forest: s.opts.Forest, Identifiers: s.opts.Identifiers}
}

// detectOutliers runs the forest and picks a chart for the result, falling
// back to an intent-free chart when the remembered pair cannot be drawn.
func (s *Session) detectOutliers(ds *dataset.Dataset, c float64) (*detect.OutlierResult, error) {
	res, err := detect.TrainIsolationForest(ds, c, s.intent, s.outlierOptions())
	if err != nil {
		return nil, err
	}
	chart := s.rec.Recommend(res.Data, res.Intent, dataset.OutlierColumn)
	if chart.MissingValues || chart.Unavailable {
		chart = s.rec.Recommend(res.Data, nil, dataset.OutlierColumn)
	}
	s.setChart(chart)
	return res, nil
}

// enterOutliers starts round 1 with a fresh contamination from the
// controller.
func (s *Session) enterOutliers(label string) (*Outcome, error) {
	s.log.User(label)
	c := detect.DetermineContamination(s.history, true)
	res, err := s.detectOutliers(s.current, c)
	if err != nil {
		return nil, s.block(err)
	}
	s.previous = s.current.Clone()
	s.current = res.Data
	s.history = append(s.history, res.Contamination)
	s.stage = StageOutliers
	s.round = 1
	s.step++
	s.counts.Outliers = res.Count
	s.menu = append([]ActionKind(nil), outlierMenu...)
	msg := outlierMessage(res.Count, s.round)
	s.log.System(msg)
	return s.outcome(label, msg, res.Count, nil), nil
}

func (s *Session) outlierAction(k ActionKind) (*Outcome, error) {
	label := Label(k, s.stage, s.round)
	switch k {
	case ActKeep:
		s.log.User(label)
		return s.finishOutliers(Label(ActFinishOutliers, s.stage, s.round))
	case ActFinishOutliers:
		return s.finishOutliers(label)
	}
	s.log.User(label)

	var (
		base     *dataset.Dataset
		snapshot *dataset.Dataset
		c        = s.history[len(s.history)-1]
		appendC  bool
		advance  bool
	)
	switch k {
	case ActFindMore, ActFindLess:
		c = detect.DetermineContamination(s.history, k == ActFindMore)
		base, snapshot, appendC = s.current, s.current, true
	case ActAccept:
		base = detect.DropOutliers(s.current)
		snapshot, appendC = s.current, true
		advance = s.round < s.opts.MaxOutlierRounds
	case ActUndo:
		base = s.previous
	}

	res, err := s.detectOutliers(base, c)
	if err != nil {
		return nil, s.block(err)
	}
	if snapshot != nil {
		s.previous = snapshot.Clone()
	}
	if appendC {
		s.history = append(s.history, res.Contamination)
	}
	s.current = res.Data
	s.counts.Outliers = res.Count
	s.step++
	if advance {
		s.round++
	}
	switch k {
	case ActAccept:
		s.menu = append(append([]ActionKind(nil), outlierMenu...), ActUndo)
	default:
		s.menu = append([]ActionKind(nil), outlierMenu...)
	}
	msg := outlierMessage(res.Count, s.round)
	s.log.System(msg)
	return s.outcome(label, msg, res.Count, nil), nil
}

// finishOutliers moves to the download stage. Flags stay on the data until
// export strips them.
func (s *Session) finishOutliers(label string) (*Outcome, error) {
	s.log.User(label)
	s.stage = StageDownload
	s.step++
	s.menu = nil
	return s.outcome(label, "", s.counts.Outliers, nil), nil
}
