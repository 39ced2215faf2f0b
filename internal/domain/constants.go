package domain

import "time"

// Dashboard API endpoints, relative to the configured base URL.
const (
	PathLogin                 = "/api/auth/login/"
	PathRegister              = "/api/auth/register/"
	PathSendVerificationEmail = "/api/auth/send_verification_email/"
	PathLoginWithToken        = "/api/auth/login_with_token/"
	PathTokenRefresh          = "/api/auth/token/refresh/"
	PathTokenVerify           = "/api/auth/token/verify/"
	PathSelfInfo              = "/api/auth/selfinfo/"

	PathDashboardStats = "/api/dashboard/stats/"
	PathCompanies      = "/api/companies/"
	PathApplications   = "/api/applications/"
)

// Credential slot names. Every store backend uses the same three names so a
// session written by one backend reads back identically from another.
const (
	SlotAccess   = "accessToken"
	SlotRefresh  = "refreshToken"
	SlotIdentity = "user_email"
)

// Verification code purposes accepted by the send_verification_email endpoint.
const (
	CodePurposeRegister       = "register"
	CodePurposeLoginWithToken = "login_with_token"
)

// Timeouts and lifecycle limits. Compiled defaults, overridable via config.
const (
	APIRequestTimeout = 15 * time.Second // http.Client timeout for dashboard calls
	RefreshTimeout    = 10 * time.Second // bound on the single shared renewal call
	RedisTimeout      = 2 * time.Second  // Max time for Redis operations

	// SessionTTL bounds how long a persisted session survives without
	// being touched. Matches the issuer's refresh token lifetime.
	SessionTTL = 7 * 24 * time.Hour

	// MaxErrorBodyBytes caps how much of a failed response body is read
	// into an error message.
	MaxErrorBodyBytes = 4 << 10

	ShutdownOTELTimeout = 5 * time.Second
)
