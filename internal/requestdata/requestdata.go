package requestdata

import (
	"context"
)

type requestDataKey struct{}

// RequestData carries the authenticated caller identity for one request.
// Authentication itself is an external concern; middleware fills this in.
type RequestData struct {
	UserID      string
	TokenString string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey{})
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}
