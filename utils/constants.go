package utils

import (
	"time"
)

// Token time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Communication constants
const (
	// MaxSubjectLength bounds communication subjects
	MaxSubjectLength = 500

	// DefaultPrimaryColor is used when an organization has no branding color
	DefaultPrimaryColor = "#1E40AF"

	// DefaultDispatchConcurrency is the number of parallel senders per dispatch
	DefaultDispatchConcurrency = 5

	// DefaultDispatchLockTTL bounds how long a dispatch may hold its lock
	DefaultDispatchLockTTL = 10 * time.Minute

	// RequestTimeout is the default timeout for request-scoped contexts
	RequestTimeout = 30 * time.Second

	// SendRequestTimeout covers a synchronous dispatch inside the send request
	SendRequestTimeout = 5 * time.Minute
)
