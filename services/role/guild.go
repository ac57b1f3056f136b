package role

import "context"

//go:generate mockgen -source=guild.go -destination=guild_mock_test.go -package=role

type GuildRole struct {
	ID    string
	Name  string
	Color int
}

// Guild is the slice of the community platform the reconciler needs.
type Guild interface {
	MemberRoles(ctx context.Context, memberID string) ([]string, error)
	AddRole(ctx context.Context, memberID, roleID string) error
	RemoveRole(ctx context.Context, memberID, roleID string) error
	Roles(ctx context.Context) ([]GuildRole, error)
	CreateRole(ctx context.Context, name string, color int) (GuildRole, error)
}
