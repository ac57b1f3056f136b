package customer

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	incrementalMaxPages   = 30
	incrementalQuietAfter = 5
	orderSearchMaxPages   = 10
	orderCacheTTL         = 5 * time.Minute
	defaultPageDelay      = 20 * time.Millisecond
)

// Directory is the in-memory customer directory keyed by lower-cased email.
type Directory struct {
	client   *Client
	snapshot Snapshot
	tracer   trace.Tracer

	mu        sync.RWMutex
	customers map[string]Record
	loaded    bool
	lastLoad  time.Time

	group     singleflight.Group
	orders    *orderCache
	pageDelay time.Duration
}

type Options struct {
	Client    *Client
	Snapshot  Snapshot
	Tracer    trace.Tracer
	PageDelay time.Duration
	OrderTTL  time.Duration
}

func NewDirectory(o Options) *Directory {
	if o.PageDelay == 0 {
		o.PageDelay = defaultPageDelay
	}
	if o.OrderTTL == 0 {
		o.OrderTTL = orderCacheTTL
	}
	return &Directory{
		client:    o.Client,
		snapshot:  o.Snapshot,
		tracer:    o.Tracer,
		customers: make(map[string]Record),
		orders:    newOrderCache(o.OrderTTL),
		pageDelay: o.PageDelay,
	}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d *Directory) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func()) {
	if d.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := d.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func() { span.End() }
}

// LoadAll restores the snapshot and catches up incrementally, or walks the
// whole remote directory when there is no snapshot. Concurrent callers share
// one load; a caller whose ctx ends stops waiting without aborting the load.
func (d *Directory) LoadAll(ctx context.Context) (int, error) {
	ch := d.group.DoChan("load", func() (any, error) {
		return d.loadAll(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (d *Directory) loadAll(ctx context.Context) (int, error) {
	ctx, end := d.startSpan(ctx, "customer.load_all")
	defer end()

	if d.restore(ctx) {
		directoryLoads.WithLabelValues("snapshot").Inc()
		if _, err := d.IncrementalSync(ctx); err != nil {
			return 0, err
		}
		return d.Len(), nil
	}

	directoryLoads.WithLabelValues("full").Inc()
	zap.L().Info("[Directory] no snapshot, loading the full customer directory")

	customers := make(map[string]Record)
	for page := 1; ; page++ {
		p, ok := d.client.Customers(ctx, page, DefaultPageSize)
		if !ok || len(p.Data) == 0 {
			break
		}
		for _, rec := range p.Data {
			if rec.Email != "" {
				customers[rec.Email] = rec
			}
		}
		if page >= p.Pages {
			break
		}
		if !sleepCtx(ctx, d.pageDelay) {
			break
		}
	}

	d.mu.Lock()
	d.customers = customers
	d.loaded = true
	d.lastLoad = time.Now()
	d.mu.Unlock()
	directorySize.Set(float64(len(customers)))

	zap.L().Info("[Directory] full load finished", zap.Int("customers", len(customers)))
	d.persist(ctx)
	return len(customers), nil
}

func (d *Directory) restore(ctx context.Context) bool {
	if d.snapshot == nil {
		return false
	}
	data, err := d.snapshot.Load(ctx)
	if err != nil {
		zap.L().Warn("[Directory] failed to read snapshot", zap.Error(err))
		return false
	}
	if data == nil || len(data.Customers) == 0 {
		return false
	}

	customers := make(map[string]Record, len(data.Customers))
	for email, rec := range data.Customers {
		email = normalize(email)
		rec.Email = email
		customers[email] = rec
	}

	d.mu.Lock()
	d.customers = customers
	d.loaded = true
	d.mu.Unlock()
	directorySize.Set(float64(len(customers)))

	zap.L().Info("[Directory] restored snapshot",
		zap.Int("customers", len(customers)),
		zap.Time("saved_at", data.Timestamp),
	)
	return true
}

type SyncResult struct {
	New     int
	Updated int
	Pages   int
}

func (r SyncResult) Changed() bool { return r.New > 0 || r.Updated > 0 }

// IncrementalSync re-reads the first pages of the directory, where new
// customers appear. It stops after a quiet page past page five, at the last
// page, or after thirty pages, and persists only when something changed.
func (d *Directory) IncrementalSync(ctx context.Context) (SyncResult, error) {
	ctx, end := d.startSpan(ctx, "customer.incremental_sync")
	defer end()

	var res SyncResult
	for page := 1; page <= incrementalMaxPages; page++ {
		p, ok := d.client.Customers(ctx, page, DefaultPageSize)
		if !ok || len(p.Data) == 0 {
			break
		}
		res.Pages = page

		pageNew := 0
		d.mu.Lock()
		for _, rec := range p.Data {
			if rec.Email == "" {
				continue
			}
			old, known := d.customers[rec.Email]
			switch {
			case !known:
				d.customers[rec.Email] = rec
				pageNew++
			case old.TotalSpend != rec.TotalSpend:
				d.customers[rec.Email] = rec
				res.Updated++
			}
		}
		d.mu.Unlock()
		res.New += pageNew

		if page > incrementalQuietAfter && pageNew == 0 {
			break
		}
		if page >= p.Pages {
			break
		}
		if !sleepCtx(ctx, d.pageDelay) {
			break
		}
	}

	d.mu.Lock()
	d.loaded = true
	d.lastLoad = time.Now()
	size := len(d.customers)
	d.mu.Unlock()
	directorySize.Set(float64(size))

	if res.Changed() {
		zap.L().Info("[Directory] incremental sync applied changes",
			zap.Int("new", res.New),
			zap.Int("updated", res.Updated),
			zap.Int("pages", res.Pages),
		)
		d.persist(ctx)
	} else {
		zap.L().Debug("[Directory] cache is up to date", zap.Int("pages", res.Pages))
	}
	return res, nil
}

// Refresh is the periodic entry point: a full load until the directory has
// been populated once, incremental afterwards.
func (d *Directory) Refresh(ctx context.Context) error {
	if !d.Loaded() {
		_, err := d.LoadAll(ctx)
		return err
	}
	_, err := d.IncrementalSync(ctx)
	return err
}

func (d *Directory) persist(ctx context.Context) {
	if d.snapshot == nil {
		return
	}

	d.mu.RLock()
	customers := make(map[string]Record, len(d.customers))
	for k, v := range d.customers {
		customers[k] = v
	}
	d.mu.RUnlock()

	data := &SnapshotData{Timestamp: time.Now().UTC(), Count: len(customers), Customers: customers}
	if err := d.snapshot.Save(ctx, data); err != nil {
		zap.L().Warn("[Directory] failed to save snapshot", zap.Error(err))
	}
}

// Lookup finds a customer by email, populating the directory first if it
// has never been loaded.
func (d *Directory) Lookup(ctx context.Context, email string) (Record, bool) {
	email = normalize(email)
	if email == "" {
		return Record{}, false
	}

	if !d.Loaded() {
		if _, err := d.LoadAll(ctx); err != nil {
			zap.L().Warn("[Directory] load on lookup failed", zap.Error(err))
		}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.customers[email]
	return rec, ok
}

func (d *Directory) TotalSpent(ctx context.Context, email string) float64 {
	rec, ok := d.Lookup(ctx, email)
	if !ok {
		return 0
	}
	return rec.TotalSpend
}

// PurchaseCount falls back to the number of paid orders when the directory
// record carries no count.
func (d *Directory) PurchaseCount(ctx context.Context, email string) int {
	if rec, ok := d.Lookup(ctx, email); ok && rec.OrderCount > 0 {
		return rec.OrderCount
	}
	return len(d.Orders(ctx, email))
}

// Orders returns the customer's paid orders, cached for a few minutes.
func (d *Directory) Orders(ctx context.Context, email string) []Order {
	email = normalize(email)
	if email == "" {
		return nil
	}
	if orders, ok := d.orders.Get(email); ok {
		return orders
	}

	v, _, _ := d.group.Do("orders:"+email, func() (any, error) {
		return d.fetchOrders(ctx, email), nil
	})
	orders := v.([]Order)
	d.orders.Set(email, orders)
	return orders
}

func (d *Directory) fetchOrders(ctx context.Context, email string) []Order {
	ctx, end := d.startSpan(ctx, "customer.orders")
	defer end()

	var paid []Order
	for page := 1; page <= orderSearchMaxPages; page++ {
		p, ok := d.client.SearchOrders(ctx, email, page)
		if !ok || len(p.Data) == 0 {
			break
		}
		for _, o := range p.Data {
			if normalize(o.CustomerEmail) != email || !o.Paid() {
				continue
			}
			paid = append(paid, o)
		}
		if page >= p.Pages {
			break
		}
	}
	return paid
}

// Products flattens the line items of the customer's paid orders.
func (d *Directory) Products(ctx context.Context, email string) []LineItem {
	var items []LineItem
	for _, o := range d.Orders(ctx, email) {
		items = append(items, o.Items...)
	}
	return items
}

func (d *Directory) ClearOrderCache() int {
	return d.orders.Clear()
}

func (d *Directory) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.customers)
}

type Stats struct {
	Loaded    bool      `json:"loaded"`
	Customers int       `json:"customers"`
	LastLoad  time.Time `json:"last_load"`
}

func (d *Directory) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Stats{Loaded: d.loaded, Customers: len(d.customers), LastLoad: d.lastLoad}
}

func sleepCtx(ctx context.Context, dur time.Duration) bool {
	if dur <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
