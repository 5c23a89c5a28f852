package pipeline

import (
	"fmt"
	"strings"
)

// ActionKind is a user choice offered by a stage.
type ActionKind int

const (
	ActStart ActionKind = iota + 1
	ActHighlight
	ActDelete
	ActImputeSimple
	ActImputeKNN
	ActUndo
	ActFinishMissing
	ActKeep
	ActFinishDuplicates
	ActFindMore
	ActFindLess
	ActAccept
	ActFinishOutliers
)

var actionKeywords = map[ActionKind]string{
	ActStart:            "start",
	ActHighlight:        "highlight",
	ActDelete:           "delete",
	ActImputeSimple:     "impute-simple",
	ActImputeKNN:        "impute-knn",
	ActUndo:             "undo",
	ActFinishMissing:    "finish-missing",
	ActKeep:             "keep",
	ActFinishDuplicates: "finish-duplicates",
	ActFindMore:         "more",
	ActFindLess:         "less",
	ActAccept:           "accept",
	ActFinishOutliers:   "finish-outliers",
}

var keywordAliases = map[string]ActionKind{
	"remove": ActAccept,
}

func (k ActionKind) String() string {
	if s, ok := actionKeywords[k]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// MarshalText encodes the keyword so menus serialise as strings.
func (k ActionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText accepts the keywords produced by MarshalText.
func (k *ActionKind) UnmarshalText(b []byte) error {
	v, err := ParseActionKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseActionKind maps a keyword such as "impute-KNN" or "more" to a kind.
func ParseActionKind(s string) (ActionKind, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for k, kw := range actionKeywords {
		if kw == key {
			return k, nil
		}
	}
	if k, ok := keywordAliases[key]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Action is one user request. Round pins outlier actions to the round they
// were offered in; zero means the current round.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Round int        `json:"round,omitempty"`
}

// Label is the human wording recorded in the action log.
func Label(k ActionKind, stage Stage, round int) string {
	switch k {
	case ActStart:
		return "Start Data Engineering Process"
	case ActHighlight:
		if stage == StageDuplicates {
			return "Highlight duplicated rows"
		}
		return "Show rows with missing values"
	case ActDelete:
		if stage == StageDuplicates {
			return "Delete duplicates"
		}
		return "Delete rows with missing values"
	case ActImputeSimple:
		return "Impute missing values using the univariate mean"
	case ActImputeKNN:
		return "Impute missing values using the k nearest neighbours"
	case ActUndo:
		return "Undo the last step"
	case ActFinishMissing:
		return "Finish Missing Value Handling"
	case ActKeep:
		switch {
		case stage == StageDuplicates:
			return "Keep all duplicates"
		case round > 1:
			return "Keep remaining outliers"
		}
		return "Keep all outliers"
	case ActFinishDuplicates:
		return "Finish Duplicate Removal"
	case ActFindMore:
		return "Find more outliers"
	case ActFindLess:
		return "Find less outliers"
	case ActAccept:
		return "Remove the detected outliers"
	case ActFinishOutliers:
		return "Finish Outlier Handling"
	}
	return k.String()
}
