package sessionkit

import "context"

type deviceIDContextKey struct{}
type userAgentContextKey struct{}

// WithDeviceID attaches the installation's device identifier to ctx. It is
// recorded on audit events and sent as the X-Device-ID header on login calls.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDContextKey{}, deviceID)
}

// WithUserAgent attaches the client's User-Agent string to ctx for login
// calls.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func deviceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	deviceID, _ := ctx.Value(deviceIDContextKey{}).(string)
	return deviceID
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}
