package models

const ParseModeHTML = "HTML"

const (
	// DateLayout is the calendar-date format the backend expects in queries.
	DateLayout = "2006-01-02"

	// WireTimestampLayout is local wall time with second precision and no zone suffix.
	WireTimestampLayout = "2006-01-02T15:04:05"

	// TimeOfDayLayout is the slot format returned by the availability endpoint.
	TimeOfDayLayout = "15:04"
)

const (
	// DefaultBackendTimeout request timeout for the REST backend, in seconds
	DefaultBackendTimeout = 15

	// DefaultSessionTTL session lifetime, in minutes
	DefaultSessionTTL = 8 * 60

	// DefaultPaginationSize items per page in list views
	DefaultPaginationSize = 8

	// RateLimitMessages messages allowed per window
	RateLimitMessages = 20

	// RateLimitWindow flood-control window, in seconds
	RateLimitWindow = 60

	// UpcomingLimit number of upcoming appointments shown on the dashboard
	UpcomingLimit = 5

	// AuditHistoryLimit entries returned by the history command
	AuditHistoryLimit = 10
)
