package middleware

// Keys under which middleware stores resolved values in the fiber context.
const (
	LocalUserID  = "userId"
	LocalClaims  = "claims"
	LocalSession = "session"
)
