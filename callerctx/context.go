package callerctx

import "context"

// Context key type
type contextKey string

const subjectKey contextKey = "caller_subject"

// WithSubject adds the authenticated caller subject to request context
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// Subject retrieves the authenticated caller subject from request context
func Subject(ctx context.Context) string {
	subject, ok := ctx.Value(subjectKey).(string)
	if !ok || subject == "" {
		return "anonymous"
	}
	return subject
}
