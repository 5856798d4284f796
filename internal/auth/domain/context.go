package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type userIDKey struct{}

// WithUserID binds the authenticated user to the request context.
func WithUserID(ctx context.Context, id snowflake.ID) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

func UserIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(userIDKey{}).(snowflake.ID)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}
