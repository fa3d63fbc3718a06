package workflow

import (
	"fmt"
	"time"
)

const referencePrefix = "ECAS"

// ReferencePeriod is the sequence bucket for t, e.g. "2024-05".
func ReferencePeriod(t time.Time) string {
	return t.Format("2006-01")
}

// FormatReference renders ECAS-YYYY-MM-NNNN for the seq-th request of t's calendar month.
func FormatReference(t time.Time, seq int) string {
	return fmt.Sprintf("%s-%04d-%02d-%04d", referencePrefix, t.Year(), int(t.Month()), seq)
}
