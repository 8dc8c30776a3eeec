package auth

import (
	"context"

	"github.com/stemflow/stemflow/internal/store/model"
)

type userKeyType struct{}

var userKey userKeyType

func UserFromContext(ctx context.Context) (model.User, bool) {
	val, ok := ctx.Value(userKey).(model.User)
	return val, ok
}

func NewUserContext(ctx context.Context, u model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// MustHaveUser is for handlers mounted behind the authenticator middleware.
func MustHaveUser(ctx context.Context) model.User {
	user, found := UserFromContext(ctx)
	if !found {
		panic("failed to find user in context")
	}
	return user
}
