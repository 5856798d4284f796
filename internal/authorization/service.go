package authorization

import "context"

// Service decides whether an actor may perform an action on an object.
type Service interface {
	Authorize(ctx context.Context, actor string, object string, action string) error
}
