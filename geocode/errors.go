package geocode

import "errors"

// Escalation points. Everything else the orchestrator encounters is an
// expected condition and stays a logged boolean inside the sub-protocols.
var (
	// ErrLoginFailed means the logged-in probe never appeared after
	// submitting credentials. Setup failure: nothing downstream can work.
	ErrLoginFailed = errors.New("portal login failed")

	// ErrRetryBudgetExhausted means the monitoring row for the submitted
	// artifact never appeared within the probe budget.
	ErrRetryBudgetExhausted = errors.New("monitoring row never appeared")

	// ErrEnableDeadline means the download control stayed disabled
	// through every allowed refresh. The job is left queryable on the
	// portal for manual recovery.
	ErrEnableDeadline = errors.New("download control never enabled")

	// ErrDownloadTimeout means no finished file reached the download
	// directory in time. History is deliberately not cleared.
	ErrDownloadTimeout = errors.New("download did not complete")
)
