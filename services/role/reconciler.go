package role

import (
	"context"
	"fmt"
	"sync"

	"storefront-bot/services/catalog"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("role.reconciler",
	fx.Provide(NewReconciler),
)

// Result lists role names touched by one reconciliation pass. Failed roles
// were skipped; the rest of the pass still ran.
type Result struct {
	Added   []string
	Removed []string
	Failed  []string
}

func (r Result) Changed() bool { return len(r.Added) > 0 || len(r.Removed) > 0 }

// Reconciler converges a member's roles on what their spend and products imply.
type Reconciler struct {
	guild Guild

	mu  sync.RWMutex
	ids map[string]string
}

func NewReconciler(guild Guild) *Reconciler {
	return &Reconciler{guild: guild}
}

// DesiredTier returns the highest tier whose threshold is covered by spent.
func DesiredTier(spent float64) (catalog.TierRole, bool) {
	var (
		best  catalog.TierRole
		found bool
	)
	for _, t := range catalog.TierRoles {
		if spent >= t.Threshold {
			best, found = t, true
		}
	}
	return best, found
}

func DesiredFlags(spent float64) []catalog.FlagRole {
	var out []catalog.FlagRole
	for _, f := range catalog.FlagRoles {
		if spent >= f.MinSpend {
			out = append(out, f)
		}
	}
	return out
}

// EnsureRoles creates every catalog role missing from the guild and refreshes
// the name to ID map. It returns the names it created.
func (r *Reconciler) EnsureRoles(ctx context.Context) ([]string, error) {
	ids, err := r.loadRoles(ctx)
	if err != nil {
		return nil, err
	}

	var created []string
	for _, want := range catalogRoles() {
		if _, ok := ids[want.Name]; ok {
			continue
		}
		role, err := r.guild.CreateRole(ctx, want.Name, want.Color)
		if err != nil {
			zap.L().Warn("[Roles] failed to create role", zap.String("role", want.Name), zap.Error(err))
			continue
		}
		ids[role.Name] = role.ID
		created = append(created, role.Name)
	}

	r.mu.Lock()
	r.ids = ids
	r.mu.Unlock()

	if len(created) > 0 {
		zap.L().Info("[Roles] created missing roles", zap.Strings("roles", created))
	}
	return created, nil
}

// Invalidate drops the cached role map so the next pass re-reads the guild.
func (r *Reconciler) Invalidate() {
	r.mu.Lock()
	r.ids = nil
	r.mu.Unlock()
}

func (r *Reconciler) loadRoles(ctx context.Context) (map[string]string, error) {
	roles, err := r.guild.Roles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list guild roles: %w", err)
	}
	ids := make(map[string]string, len(roles))
	for _, role := range roles {
		ids[role.Name] = role.ID
	}
	return ids, nil
}

func (r *Reconciler) roleIDs(ctx context.Context) (map[string]string, error) {
	r.mu.RLock()
	ids := r.ids
	r.mu.RUnlock()
	if ids != nil {
		return ids, nil
	}

	ids, err := r.loadRoles(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.ids = ids
	r.mu.Unlock()
	return ids, nil
}

type pass struct {
	ctx      context.Context
	guild    Guild
	memberID string
	ids      map[string]string
	held     map[string]bool
	result   Result
}

func (r *Reconciler) begin(ctx context.Context, memberID string) (*pass, error) {
	ids, err := r.roleIDs(ctx)
	if err != nil {
		return nil, err
	}
	current, err := r.guild.MemberRoles(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("read member roles: %w", err)
	}
	held := make(map[string]bool, len(current))
	for _, id := range current {
		held[id] = true
	}
	return &pass{ctx: ctx, guild: r.guild, memberID: memberID, ids: ids, held: held}, nil
}

func (p *pass) has(name string) bool {
	id, ok := p.ids[name]
	return ok && p.held[id]
}

func (p *pass) add(name string) {
	id, ok := p.ids[name]
	if !ok {
		zap.L().Warn("[Roles] role does not exist in guild", zap.String("role", name))
		p.result.Failed = append(p.result.Failed, name)
		return
	}
	if p.held[id] {
		return
	}
	if err := p.guild.AddRole(p.ctx, p.memberID, id); err != nil {
		zap.L().Warn("[Roles] failed to add role", zap.String("member_id", p.memberID), zap.String("role", name), zap.Error(err))
		p.result.Failed = append(p.result.Failed, name)
		return
	}
	p.held[id] = true
	p.result.Added = append(p.result.Added, name)
}

func (p *pass) remove(name string) {
	id, ok := p.ids[name]
	if !ok || !p.held[id] {
		return
	}
	if err := p.guild.RemoveRole(p.ctx, p.memberID, id); err != nil {
		zap.L().Warn("[Roles] failed to remove role", zap.String("member_id", p.memberID), zap.String("role", name), zap.Error(err))
		p.result.Failed = append(p.result.Failed, name)
		return
	}
	delete(p.held, id)
	p.result.Removed = append(p.result.Removed, name)
}

// ReconcileTier keeps exactly the tier role matching spent and grants the
// flag roles whose thresholds are met. Running it twice changes nothing.
func (r *Reconciler) ReconcileTier(ctx context.Context, memberID string, spent float64) (Result, error) {
	p, err := r.begin(ctx, memberID)
	if err != nil {
		return Result{}, err
	}

	want, ok := DesiredTier(spent)
	for _, t := range catalog.TierRoles {
		if ok && t.Name == want.Name {
			continue
		}
		p.remove(t.Name)
	}
	if ok {
		p.add(want.Name)
	}

	for _, f := range DesiredFlags(spent) {
		p.add(f.Name)
	}

	return p.result, nil
}

// ReconcileProducts grants the role of every owned product. Product roles
// are never revoked here.
func (r *Reconciler) ReconcileProducts(ctx context.Context, memberID string, productIDs []string) (Result, error) {
	if len(productIDs) == 0 {
		return Result{}, nil
	}
	p, err := r.begin(ctx, memberID)
	if err != nil {
		return Result{}, err
	}

	for _, id := range productIDs {
		product, ok := catalog.ProductByID(id)
		if !ok {
			continue
		}
		p.add(product.RoleName)
	}
	return p.result, nil
}

// RemoveAll strips every tier, flag and product role from the member.
func (r *Reconciler) RemoveAll(ctx context.Context, memberID string) (Result, error) {
	p, err := r.begin(ctx, memberID)
	if err != nil {
		return Result{}, err
	}
	for _, want := range catalogRoles() {
		p.remove(want.Name)
	}
	return p.result, nil
}

// HeldTier reports which tier role the member currently holds, if any.
func (r *Reconciler) HeldTier(ctx context.Context, memberID string) (string, error) {
	p, err := r.begin(ctx, memberID)
	if err != nil {
		return "", err
	}
	for i := len(catalog.TierRoles) - 1; i >= 0; i-- {
		if p.has(catalog.TierRoles[i].Name) {
			return catalog.TierRoles[i].Name, nil
		}
	}
	return "", nil
}

func catalogRoles() []GuildRole {
	var out []GuildRole
	for _, t := range catalog.TierRoles {
		out = append(out, GuildRole{Name: t.Name, Color: t.Color})
	}
	for _, f := range catalog.FlagRoles {
		out = append(out, GuildRole{Name: f.Name, Color: f.Color})
	}
	for _, p := range catalog.Products {
		out = append(out, GuildRole{Name: p.RoleName, Color: p.Color})
	}
	return out
}
