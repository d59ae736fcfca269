// Package cont carries the authenticated principal through a request context.
package cont

import (
	"context"

	"mentorgate/entity"
)

type userKey struct{}

// PutUser stores a copy of the user.
func PutUser(c context.Context, user *entity.User) context.Context {
	if user == nil {
		return c
	}
	u := *user
	return context.WithValue(c, userKey{}, &u)
}

// GetUser returns the authenticated user, or nil when the request was not authenticated.
func GetUser(c context.Context) *entity.User {
	user, _ := c.Value(userKey{}).(*entity.User)
	return user
}
