package authcore

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}

// UnknownIP is recorded on a session when the request context carries no
// client IP.
const UnknownIP = "Unknown IP"

// WithClientIP attaches the caller's IP address to ctx. The Service records
// it on every session it creates.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the caller's User-Agent string to ctx. The Service
// binds sessions to it and rejects refresh attempts from a different agent.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return UnknownIP
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	if ip == "" {
		return UnknownIP
	}
	return ip
}

func userAgentFromContext(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrMissingUserAgent
	}
	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	if userAgent == "" {
		return "", ErrMissingUserAgent
	}
	return userAgent, nil
}
