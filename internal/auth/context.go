package auth

// Context is the caller's authentication state, resolved once per request
// and passed explicitly to everything that gates on it.
type Context struct {
	Authenticated bool
	Subject       string // user name from the auth provider; empty for guests
	Token         string // raw session token, forwarded to the creation service
}

// Guest is the context of an unauthenticated caller.
var Guest = Context{}

// User returns an authenticated context for subject.
func User(subject, token string) Context {
	return Context{Authenticated: true, Subject: subject, Token: token}
}
