package auth

// UserContext is the authenticated identity threaded through request
// contexts once the bearer token is verified.
type UserContext struct {
	UserID    string
	Role      string
	Name      string
	SessionID string
}
