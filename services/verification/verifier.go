package verification

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"storefront-bot/pkg/config"
	"storefront-bot/pkg/dns"
	"storefront-bot/pkg/errutil"
	"storefront-bot/services/catalog"
	"storefront-bot/services/coupon"
	"storefront-bot/services/customer"
	"storefront-bot/services/role"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const lookupBudget = 10 * time.Second

type Outcome string

const (
	OutcomeVerified          Outcome = "verified"
	OutcomeInvalidEmail      Outcome = "invalid_email"
	OutcomeAlreadyVerified   Outcome = "already_verified"
	OutcomeEmailTaken        Outcome = "email_taken"
	OutcomeCustomerNotFound  Outcome = "customer_not_found"
	OutcomeInsufficientSpend Outcome = "insufficient_spend"
)

type Directory interface {
	Lookup(ctx context.Context, email string) (customer.Record, bool)
	PurchaseCount(ctx context.Context, email string) int
	Products(ctx context.Context, email string) []customer.LineItem
}

type Roles interface {
	ReconcileTier(ctx context.Context, memberID string, spent float64) (role.Result, error)
	ReconcileProducts(ctx context.Context, memberID string, productIDs []string) (role.Result, error)
	RemoveAll(ctx context.Context, memberID string) (role.Result, error)
}

type Coupons interface {
	IssueForLevel(ctx context.Context, memberID, email string, level int) (*coupon.Coupon, bool, error)
}

// MailDomains reports whether an email domain accepts mail.
type MailDomains interface {
	HasMX(ctx context.Context, domain string) (bool, error)
}

type VerifyRequest struct {
	MemberID string
	Username string
	Email    string
}

type VerifyResult struct {
	Outcome Outcome
	Record  *Record
	// Spent is the customer's lifetime spend, set from the lookup onwards.
	Spent       float64
	InitialKeys int
	Coupon      *coupon.Coupon
	CouponNew   bool
	Products    []string
	Roles       role.Result
}

// Verifier runs the member-initiated verification workflow.
type Verifier struct {
	ledger    *Ledger
	directory Directory
	roles     Roles
	coupons   Coupons
	domains   MailDomains
	budget    time.Duration
}

type VerifierParams struct {
	fx.In
	Config    *config.Config
	Ledger    *Ledger
	Directory *customer.Directory
	Roles     *role.Reconciler
	Coupons   *coupon.Service
}

func NewVerifier(p VerifierParams) *Verifier {
	v := newVerifier(p.Ledger, p.Directory, p.Roles, p.Coupons)
	if p.Config.Verify.CheckMX {
		v.domains = dns.NewMXResolver()
	}
	return v
}

func newVerifier(l *Ledger, dir Directory, roles Roles, coupons Coupons) *Verifier {
	return &Verifier{ledger: l, directory: dir, roles: roles, coupons: coupons, budget: lookupBudget}
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Verify links a member to a customer email. Precondition failures are
// reported through VerifyResult.Outcome; err is reserved for storage faults.
// Every path writes one audit entry.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	email := NormalizeEmail(req.Email)
	attempt := Attempt{MemberID: req.MemberID, Username: req.Username, Email: email, Action: ActionVerify}
	fail := func(o Outcome, details map[string]any) (VerifyResult, error) {
		if details == nil {
			details = map[string]any{}
		}
		details["reason"] = string(o)
		attempt.Details = details
		v.ledger.LogAttempt(ctx, attempt)
		return VerifyResult{Outcome: o}, nil
	}

	if !ValidEmail(email) {
		return fail(OutcomeInvalidEmail, nil)
	}
	if v.domains != nil {
		domain := email[strings.LastIndexByte(email, '@')+1:]
		ok, err := v.domains.HasMX(ctx, domain)
		if err != nil {
			zap.L().Warn("[Verify] mail domain not checked", zap.String("domain", domain), zap.Error(err))
		} else if !ok {
			return fail(OutcomeInvalidEmail, map[string]any{"mx": false})
		}
	}

	existing, err := v.ledger.GetByMember(ctx, req.MemberID)
	if err != nil {
		return VerifyResult{}, err
	}
	if existing != nil {
		res, _ := fail(OutcomeAlreadyVerified, nil)
		res.Record = existing
		return res, nil
	}

	linked, err := v.ledger.GetByEmail(ctx, email)
	if err != nil {
		return VerifyResult{}, err
	}
	if linked != nil {
		return fail(OutcomeEmailTaken, nil)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, v.budget)
	cust, found := v.directory.Lookup(lookupCtx, email)
	cancel()
	if !found {
		return fail(OutcomeCustomerNotFound, nil)
	}

	if cust.TotalSpend < catalog.MinVerifySpend {
		res, _ := fail(OutcomeInsufficientSpend, map[string]any{"total_spent": cust.TotalSpend})
		res.Spent = cust.TotalSpend
		return res, nil
	}

	count := v.directory.PurchaseCount(ctx, email)
	// The link and the initial purchase keys commit together.
	rec, keys, err := v.ledger.Link(ctx, LinkParams{
		MemberID:      req.MemberID,
		Username:      req.Username,
		Email:         email,
		TotalSpent:    cust.TotalSpend,
		PurchaseCount: count,
	})
	switch {
	case errors.Is(err, ErrMemberLinked):
		return fail(OutcomeAlreadyVerified, nil)
	case errors.Is(err, ErrEmailLinked):
		return fail(OutcomeEmailTaken, nil)
	case err != nil:
		return VerifyResult{}, err
	}

	result := VerifyResult{Outcome: OutcomeVerified, Record: &rec, Spent: rec.TotalSpent}
	zapLog := zap.L().With(zap.String("member_id", req.MemberID), zap.String("email", MaskEmail(email)))

	if res, err := v.roles.ReconcileTier(ctx, req.MemberID, rec.TotalSpent); err != nil {
		zapLog.Warn("[Verify] tier roles not applied", zap.Error(err))
	} else {
		result.Roles = res
	}

	result.Products = catalog.MatchProducts(customer.ProductNames(v.directory.Products(ctx, email)))
	if len(result.Products) > 0 {
		if _, err := v.ledger.RecordProducts(ctx, req.MemberID, result.Products); err != nil {
			zapLog.Warn("[Verify] failed to store products", zap.Error(err))
		}
		if res, err := v.roles.ReconcileProducts(ctx, req.MemberID, result.Products); err != nil {
			zapLog.Warn("[Verify] product roles not applied", zap.Error(err))
		} else {
			result.Roles.Added = append(result.Roles.Added, res.Added...)
			result.Roles.Failed = append(result.Roles.Failed, res.Failed...)
		}
	}

	result.InitialKeys = keys

	if c, issued, err := v.coupons.IssueForLevel(ctx, req.MemberID, email, rec.Level); err != nil {
		zapLog.Warn("[Verify] coupon not issued", zap.Error(err))
	} else {
		result.Coupon, result.CouponNew = c, issued
	}

	attempt.Success = true
	attempt.Details = map[string]any{
		"total_spent":    rec.TotalSpent,
		"purchase_count": count,
		"level":          rec.Level,
		"initial_keys":   keys,
		"products":       result.Products,
		"coupon_issued":  result.CouponNew,
	}
	v.ledger.LogAttempt(ctx, attempt)

	zapLog.Info("[Verify] member verified", zap.Int("level", rec.Level), zap.Int("initial_keys", keys))
	return result, nil
}

type UnlinkRequest struct {
	MemberID string
	Email    string
	Actor    string
	Admin    bool
}

// Unlink removes a link by member or, when MemberID is empty, by email, and
// strips the member's catalog roles. NotFound is returned when nothing was linked.
func (v *Verifier) Unlink(ctx context.Context, req UnlinkRequest) (*Record, role.Result, error) {
	var (
		rec *Record
		err error
	)
	if req.MemberID != "" {
		rec, err = v.ledger.Unlink(ctx, req.MemberID)
	} else {
		rec, err = v.ledger.UnlinkByEmail(ctx, req.Email)
	}
	if err != nil {
		return nil, role.Result{}, err
	}
	if rec == nil {
		return nil, role.Result{}, errutil.NotFound("no verification found", nil)
	}

	action := ActionUnlink
	if req.Admin {
		action = ActionAdminUnlink
	}
	v.ledger.LogAttempt(ctx, Attempt{
		MemberID: rec.MemberID,
		Username: rec.Username,
		Email:    rec.Email,
		Action:   action,
		Success:  true,
		Details:  map[string]any{"actor": req.Actor},
	})

	res, err := v.roles.RemoveAll(ctx, rec.MemberID)
	if err != nil {
		zap.L().Warn("[Verify] roles not removed after unlink", zap.String("member_id", rec.MemberID), zap.Error(err))
	}
	return rec, res, nil
}
