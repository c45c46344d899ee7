package user

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/pkg/cerr"
)

// Ensure returns the user with the given username, creating a member record
// when none exists. Meeting action items routinely name people who have not
// logged in yet.
func Ensure(ctx context.Context, repo Repository, username string) (*User, error) {
	u, err := repo.GetByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if !cerr.IsCode(err, cerr.NotFound) {
		return nil, err
	}
	u = &User{
		ID:        ulid.Make().String(),
		Username:  username,
		Role:      auth.RoleMember,
		CreatedAt: time.Now(),
	}
	if err := repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
