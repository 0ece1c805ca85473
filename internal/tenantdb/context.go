package tenantdb

import "context"

type handleContextKey struct{}

// ContextWithHandle attaches the request's tenant-bound handle to the context.
// One handle per inbound request; it is discarded at request end.
func ContextWithHandle(ctx context.Context, h *Handle) context.Context {
	if h == nil {
		return ctx
	}
	return context.WithValue(ctx, handleContextKey{}, h)
}

// HandleFromContext returns the tenant-bound handle if one was attached.
func HandleFromContext(ctx context.Context) (*Handle, bool) {
	if ctx == nil {
		return nil, false
	}
	h, ok := ctx.Value(handleContextKey{}).(*Handle)
	if !ok || h == nil {
		return nil, false
	}
	return h, true
}
