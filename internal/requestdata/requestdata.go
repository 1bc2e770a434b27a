package requestdata

import (
	"context"
)

var requestDataKey = struct{}{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey)
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

// RequestData carries the caller identity resolved by middleware.
// UserID is empty for anonymous callers; SessionID is always set
// (generated when the client did not send one).
type RequestData struct {
	TokenString string
	UserID      string
	SessionID   string
}
