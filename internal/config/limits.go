package config

const (
	// MaxNodeNameLength is the maximum length for folder and file names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxNodeNameLength = 255

	// MaxTitleLength is the maximum length for file titles.
	MaxTitleLength = 255

	// DefaultSearchLimit is the number of search hits returned when the
	// caller does not specify one.
	DefaultSearchLimit = 20

	// MaxSearchLimit caps the number of search hits per request.
	MaxSearchLimit = 100

	// DefaultLogListLimit is the number of permission log entries returned
	// when the caller does not specify one.
	DefaultLogListLimit = 50

	// MaxLogListLimit caps the number of permission log entries per request.
	MaxLogListLimit = 500
)
