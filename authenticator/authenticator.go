package authenticator

import (
	"context"
)

// Claims represents verified claims about the caller
type Claims map[string]interface{}

// Subject returns the caller identity claim, if present
func (c Claims) Subject() string {
	if sub, ok := c["sub"].(string); ok {
		return sub
	}
	return ""
}

// Verifier validates bearer tokens presented to the API. The variant in
// use is chosen once at startup and reported by Mode so deployments can
// see which trust model is active.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Claims, error)
	Mode() string
}
