// Package roletest provides an in-memory Guild for tests.
package roletest

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	"storefront-bot/services/role"
)

var ErrUnknownRole = errors.New("unknown role")

type FakeGuild struct {
	mu      sync.Mutex
	roles   []role.GuildRole
	members map[string]map[string]bool
	nextID  int

	// FailAdd makes AddRole fail for the named roles.
	FailAdd map[string]error

	Adds    int
	Removes int
}

func NewFakeGuild() *FakeGuild {
	return &FakeGuild{members: make(map[string]map[string]bool), FailAdd: make(map[string]error)}
}

// Seed creates the named roles without going through CreateRole.
func (f *FakeGuild) Seed(names ...string) {
	for _, n := range names {
		_, _ = f.CreateRole(context.Background(), n, 0)
	}
}

func (f *FakeGuild) MemberRoles(_ context.Context, memberID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.members[memberID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *FakeGuild) AddRole(_ context.Context, memberID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.nameOf(roleID)
	if !ok {
		return ErrUnknownRole
	}
	if err := f.FailAdd[name]; err != nil {
		return err
	}
	if f.members[memberID] == nil {
		f.members[memberID] = make(map[string]bool)
	}
	f.members[memberID][roleID] = true
	f.Adds++
	return nil
}

func (f *FakeGuild) RemoveRole(_ context.Context, memberID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[memberID], roleID)
	f.Removes++
	return nil
}

func (f *FakeGuild) Roles(context.Context) ([]role.GuildRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]role.GuildRole(nil), f.roles...), nil
}

func (f *FakeGuild) CreateRole(_ context.Context, name string, color int) (role.GuildRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r := role.GuildRole{ID: strconv.Itoa(f.nextID), Name: name, Color: color}
	f.roles = append(f.roles, r)
	return r, nil
}

// Grant puts a role on a member directly.
func (f *FakeGuild) Grant(memberID, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roles {
		if r.Name == name {
			if f.members[memberID] == nil {
				f.members[memberID] = make(map[string]bool)
			}
			f.members[memberID][r.ID] = true
		}
	}
}

// RoleNames returns the member's role names, sorted.
func (f *FakeGuild) RoleNames(memberID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for id := range f.members[memberID] {
		if n, ok := f.nameOf(id); ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

func (f *FakeGuild) nameOf(id string) (string, bool) {
	for _, r := range f.roles {
		if r.ID == id {
			return r.Name, true
		}
	}
	return "", false
}
