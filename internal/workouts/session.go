package workouts

import "context"

// Session is the per-client state: who is logged in and which goal they
// are looking at.
type Session struct {
	Token    string `json:"-"`
	Username string `json:"username"`
	Goal     string `json:"goal,omitempty"`
}

type sessionCtxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionCtxKey{}).(*Session)
	return s, ok && s != nil
}
