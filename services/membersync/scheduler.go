package membersync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront-bot/services/catalog"
	"storefront-bot/services/customer"
	"storefront-bot/services/role"
	"storefront-bot/services/verification"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultMemberDelay = 500 * time.Millisecond

var (
	syncRuns     = prometheus.NewCounter(prometheus.CounterOpts{Name: "member_sync_runs_total"})
	syncUpdated  = prometheus.NewCounter(prometheus.CounterOpts{Name: "member_sync_updated_total"})
	syncFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "member_sync_failures_total"})
	keysAwarded  = prometheus.NewCounter(prometheus.CounterOpts{Name: "member_sync_keys_awarded_total"})
)

func init() {
	prometheus.MustRegister(syncRuns, syncUpdated, syncFailures, keysAwarded)
}

type Members interface {
	ListAll(ctx context.Context) ([]verification.Record, error)
	GetByMember(ctx context.Context, memberID string) (*verification.Record, error)
	// ApplyStats stores new totals and credits the keys they cross in one
	// transaction.
	ApplyStats(ctx context.Context, memberID string, spent float64, count int) (verification.StatsUpdate, error)
	RecordProducts(ctx context.Context, memberID string, productIDs []string) ([]string, error)
}

type Directory interface {
	Lookup(ctx context.Context, email string) (customer.Record, bool)
	PurchaseCount(ctx context.Context, email string) int
	Products(ctx context.Context, email string) []customer.LineItem
}

type Roles interface {
	ReconcileTier(ctx context.Context, memberID string, spent float64) (role.Result, error)
	ReconcileProducts(ctx context.Context, memberID string, productIDs []string) (role.Result, error)
}

// Notifier tells a member about keys accrued by a sync.
type Notifier interface {
	KeysEarned(ctx context.Context, memberID string, keys, balance int) error
}

// Report summarizes one pass over the verified members.
type Report struct {
	Checked      int
	Updated      int
	KeysAwarded  int
	RolesChanged int
	Failed       int
	StartedAt    time.Time
	Duration     time.Duration
}

// Scheduler keeps verified members in step with the customer directory.
type Scheduler struct {
	members   Members
	directory Directory
	roles     Roles
	notifier  Notifier
	tracer    trace.Tracer
	delay     time.Duration

	mu   sync.RWMutex
	last *Report
}

type Options struct {
	Members   Members
	Directory Directory
	Roles     Roles
	Notifier  Notifier
	Tracer    trace.Tracer
	// MemberDelay spaces out members to stay under Discord rate limits.
	MemberDelay time.Duration
}

func NewScheduler(o Options) *Scheduler {
	if o.MemberDelay < 0 {
		o.MemberDelay = 0
	} else if o.MemberDelay == 0 {
		o.MemberDelay = defaultMemberDelay
	}
	return &Scheduler{
		members:   o.Members,
		directory: o.Directory,
		roles:     o.Roles,
		notifier:  o.Notifier,
		tracer:    o.Tracer,
		delay:     o.MemberDelay,
	}
}

// LastReport returns the report of the most recent finished run, if any.
func (s *Scheduler) LastReport() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}

// RunOnce walks every verified member. A failing member is logged and counted;
// the walk continues with the next one. Only listing the members or a
// cancelled ctx ends the run early.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "membersync.run")
		defer span.End()
	}
	syncRuns.Inc()

	rep := Report{StartedAt: time.Now()}
	members, err := s.members.ListAll(ctx)
	if err != nil {
		return rep, fmt.Errorf("list verified members: %w", err)
	}

	zap.L().Info("[Sync] starting member sync", zap.Int("members", len(members)))

	for i, rec := range members {
		if i > 0 && !sleepCtx(ctx, s.delay) {
			rep.Duration = time.Since(rep.StartedAt)
			return rep, ctx.Err()
		}
		rep.Checked++

		out, err := s.syncMember(ctx, rec)
		if err != nil {
			rep.Failed++
			syncFailures.Inc()
			zap.L().Error("[Sync] member sync failed", zap.String("member_id", rec.MemberID), zap.Error(err))
			continue
		}
		if out.updated {
			rep.Updated++
			syncUpdated.Inc()
		}
		if out.rolesChanged {
			rep.RolesChanged++
		}
		rep.KeysAwarded += out.keys
	}

	rep.Duration = time.Since(rep.StartedAt)
	keysAwarded.Add(float64(rep.KeysAwarded))

	s.mu.Lock()
	s.last = &rep
	s.mu.Unlock()

	zap.L().Info("[Sync] member sync finished",
		zap.Int("checked", rep.Checked),
		zap.Int("updated", rep.Updated),
		zap.Int("keys_awarded", rep.KeysAwarded),
		zap.Int("failed", rep.Failed),
		zap.Duration("duration", rep.Duration),
	)
	return rep, nil
}

type memberOutcome struct {
	updated      bool
	rolesChanged bool
	keys         int
}

func (s *Scheduler) syncMember(ctx context.Context, rec verification.Record) (out memberOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "membersync.member", trace.WithAttributes(attribute.String("member_id", rec.MemberID)))
		defer span.End()
	}

	cust, found := s.directory.Lookup(ctx, rec.Email)
	if !found {
		// A directory miss is not evidence of zero spend.
		zap.L().Debug("[Sync] customer missing from directory", zap.String("member_id", rec.MemberID))
		return out, nil
	}
	count := s.directory.PurchaseCount(ctx, rec.Email)
	if cust.TotalSpend == rec.TotalSpent && count == rec.PurchaseCount {
		return out, nil
	}

	upd, err := s.members.ApplyStats(ctx, rec.MemberID, cust.TotalSpend, count)
	if err != nil {
		return out, err
	}
	if !upd.Applied {
		// Unlinked or updated by another run since ListAll.
		return out, nil
	}
	out.updated = true

	if upd.Keys > 0 {
		out.keys = upd.Keys
		if s.notifier != nil {
			if err := s.notifier.KeysEarned(ctx, rec.MemberID, upd.Keys, upd.Balance); err != nil {
				zap.L().Warn("[Sync] keys notification not queued", zap.String("member_id", rec.MemberID), zap.Error(err))
			}
		}
	}

	res, err := s.roles.ReconcileTier(ctx, rec.MemberID, cust.TotalSpend)
	if err != nil {
		zap.L().Warn("[Sync] tier roles not reconciled", zap.String("member_id", rec.MemberID), zap.Error(err))
	}
	out.rolesChanged = res.Changed()

	products := catalog.MatchProducts(customer.ProductNames(s.directory.Products(ctx, rec.Email)))
	_, pres, err := s.syncProducts(ctx, rec.MemberID, products)
	if err != nil {
		zap.L().Warn("[Sync] product roles not reconciled", zap.String("member_id", rec.MemberID), zap.Error(err))
	}
	out.rolesChanged = out.rolesChanged || pres.Changed()

	zap.L().Info("[Sync] member updated",
		zap.String("member_id", rec.MemberID),
		zap.Float64("total_spent", cust.TotalSpend),
		zap.Int("purchase_count", count),
		zap.Int("keys", out.keys),
	)
	return out, nil
}

// syncProducts stores detected products and grants their roles. It returns
// the product IDs first seen in this call.
func (s *Scheduler) syncProducts(ctx context.Context, memberID string, products []string) ([]string, role.Result, error) {
	if len(products) == 0 {
		return nil, role.Result{}, nil
	}
	fresh, err := s.members.RecordProducts(ctx, memberID, products)
	if err != nil {
		return nil, role.Result{}, err
	}
	res, err := s.roles.ReconcileProducts(ctx, memberID, products)
	return fresh, res, err
}

type ProductCheck struct {
	Found []string
	New   []string
	Roles role.Result
}

// CheckProducts re-reads one verified member's orders and grants any missing
// product roles. It returns nil when the member is not verified.
func (s *Scheduler) CheckProducts(ctx context.Context, memberID string) (*ProductCheck, error) {
	rec, err := s.members.GetByMember(ctx, memberID)
	if err != nil || rec == nil {
		return nil, err
	}
	found := catalog.MatchProducts(customer.ProductNames(s.directory.Products(ctx, rec.Email)))
	fresh, res, err := s.syncProducts(ctx, memberID, found)
	if err != nil {
		return nil, err
	}
	return &ProductCheck{Found: found, New: fresh, Roles: res}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
