package auth

import "context"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// Identity is the caller resolved from the bearer token. Credential issuance
// lives outside this service; we only verify and extract.
type Identity struct {
	UserID   string
	Username string
	Role     Role
}

// IsAdmin reports whether the caller may perform admin operations.
func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

// CanManagerApprove reports whether the caller may sign off high-effort
// tasks. Admins superset managers.
func (id Identity) CanManagerApprove() bool {
	return id.Role == RoleManager || id.Role == RoleAdmin
}

type identityKey struct{}

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
