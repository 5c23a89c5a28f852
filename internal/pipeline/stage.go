package pipeline

import "fmt"

// Stage is a step of the cleaning workflow. Stages only move forward.
type Stage int

const (
	StageDataLoading Stage = iota
	StageMissing
	StageDuplicates
	StageOutliers
	StageDownload
)

var stageNames = [...]string{
	StageDataLoading: "data-loading",
	StageMissing:     "missing-value-handling",
	StageDuplicates:  "duplicate-removal",
	StageOutliers:    "outlier-handling",
	StageDownload:    "download",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// stageName renders the stage with its outlier round, e.g. outlier-handling-2.
func stageName(s Stage, round int) string {
	if s == StageOutliers && round > 1 {
		return fmt.Sprintf("%s-%d", s, round)
	}
	return s.String()
}
