package detect

import "fmt"

// DataError reports a column that cannot be processed, e.g. a numeric
// column with no present values to impute from.
type DataError struct {
	Column string
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error in column %q: %s", e.Column, e.Reason)
}

// FeatureEncodingError reports a column that cannot be turned into model
// features.
type FeatureEncodingError struct {
	Column string
	Reason string
}

func (e *FeatureEncodingError) Error() string {
	return fmt.Sprintf("cannot encode column %q: %s", e.Column, e.Reason)
}
