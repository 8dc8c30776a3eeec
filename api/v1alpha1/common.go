package v1alpha1

import "strings"

const (
	ProcessingStatusSuccess = "SUCCESS"
	ProcessingStatusFailure = "FAILURE"
)

// IsSuccessStatus reports whether a worker status means the task succeeded.
// Workers are not consistent about case.
func IsSuccessStatus(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), ProcessingStatusSuccess)
}
