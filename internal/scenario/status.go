// Package scenario holds the table-driven test cases for both widgets and
// the runner that plays them against a live page.
package scenario

// DataType says whether a case's input is expected to be accepted.
type DataType string

const (
	Valid   DataType = "valid"
	Invalid DataType = "invalid"
)

// Status is the pass/fail mark recorded for a case in the report table.
type Status string

const (
	Passed Status = "passed"
	Failed Status = "failed"
)

// ResolveStatus maps what the UI showed to a table status. Invalid data
// passes when the UI rejected it; valid data passes only on a clean success.
func ResolveStatus(dt DataType, hasValidationError, hasSuccess bool) Status {
	if dt == Invalid {
		if hasSuccess {
			return Failed
		}
		if hasValidationError {
			return Passed
		}
		return Failed
	}
	if hasSuccess && !hasValidationError {
		return Passed
	}
	return Failed
}
