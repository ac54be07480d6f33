package common

// AuthorizationHeaderName carries the bearer access token on API requests.
const AuthorizationHeaderName = "Authorization"

// Capability parameters. Both travel as query parameters so the rule
// predicates can match them without inspecting the body.
const (
	ParamModuleID = "sid"
	ParamGuard    = "d"
)

// Guard lifecycle values.
const (
	// GuardPlaceholder is assigned at creation, before promotion.
	GuardPlaceholder = "init"
	// GuardPrefix starts every promoted guard.
	GuardPrefix = "g_"
)
