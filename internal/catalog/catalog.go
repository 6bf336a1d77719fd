package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"boutique/backoffice/internal/apiclient"
	"boutique/backoffice/internal/cache"
	"boutique/backoffice/internal/domain"
)

// Source is the slice of the REST client the catalog reads from.
type Source interface {
	ListProducts(ctx context.Context, params apiclient.ListParams) ([]domain.Product, error)
	ListCustomers(ctx context.Context, params apiclient.ListParams) ([]domain.Customer, error)
}

// Catalog holds the canonical product and customer lists used to resolve
// human-entered names.
type Catalog struct {
	source Source
	cache  cache.CatalogCache
	ttl    time.Duration
	key    string
	logger logrus.FieldLogger
	now    func() time.Time

	mu        sync.RWMutex
	products  []domain.Product
	customers []domain.Customer
	fetchedAt time.Time
}

type Option func(*Catalog)

func WithCache(c cache.CatalogCache, ttl time.Duration) Option {
	return func(cat *Catalog) {
		if c != nil {
			cat.cache = c
			cat.ttl = ttl
		}
	}
}

// WithKey scopes cached snapshots, typically by backend URL.
func WithKey(key string) Option {
	return func(cat *Catalog) {
		if key != "" {
			cat.key = key
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(cat *Catalog) {
		if logger != nil {
			cat.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(cat *Catalog) {
		if now != nil {
			cat.now = now
		}
	}
}

func New(source Source, opts ...Option) *Catalog {
	c := &Catalog{
		source: source,
		cache:  cache.NoopCatalogCache{},
		key:    "default",
		logger: logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithField("component", "catalog")
	return c
}

// Refresh loads both lists, from the cache when a fresh snapshot exists.
// Cache failures are logged and fall through to the API.
func (c *Catalog) Refresh(ctx context.Context) error {
	snapshot, ok, err := c.cache.Get(ctx, c.key)
	if err != nil {
		c.logger.WithError(err).Warn("catalog cache read failed")
	}
	if ok && snapshot != nil {
		c.install(*snapshot)
		return nil
	}

	var products []domain.Product
	var customers []domain.Customer
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = c.source.ListProducts(gctx, apiclient.ListParams{})
		return err
	})
	g.Go(func() error {
		var err error
		customers, err = c.source.ListCustomers(gctx, apiclient.ListParams{})
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fresh := cache.Snapshot{Products: products, Customers: customers, FetchedAt: c.now().UTC()}
	c.install(fresh)
	if err := c.cache.Set(ctx, c.key, &fresh, c.ttl); err != nil {
		c.logger.WithError(err).Warn("catalog cache write failed")
	}
	return nil
}

// Invalidate drops the cached snapshot so the next Refresh refetches.
func (c *Catalog) Invalidate(ctx context.Context) {
	if err := c.cache.Delete(ctx, c.key); err != nil {
		c.logger.WithError(err).Warn("catalog cache delete failed")
	}
}

func (c *Catalog) install(snapshot cache.Snapshot) {
	c.mu.Lock()
	c.products = snapshot.Products
	c.customers = snapshot.Customers
	c.fetchedAt = snapshot.FetchedAt
	c.mu.Unlock()
}

func (c *Catalog) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

func (c *Catalog) Products() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Product(nil), c.products...)
}

func (c *Catalog) Customers() []domain.Customer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Customer(nil), c.customers...)
}

// ProductByName matches case-insensitively on the trimmed name. When names
// collide the first product in list order wins.
func (c *Catalog) ProductByName(name string) (domain.Product, bool) {
	needle := strings.TrimSpace(name)
	if needle == "" {
		return domain.Product{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if strings.EqualFold(strings.TrimSpace(p.Name), needle) {
			return p, true
		}
	}
	return domain.Product{}, false
}

// CustomerByName matches the display name, falling back to "first last".
func (c *Catalog) CustomerByName(name string) (domain.Customer, bool) {
	needle := strings.TrimSpace(name)
	if needle == "" {
		return domain.Customer{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cu := range c.customers {
		if strings.EqualFold(strings.TrimSpace(cu.DisplayName()), needle) {
			return cu, true
		}
		joined := strings.TrimSpace(cu.FirstName + " " + cu.LastName)
		if strings.EqualFold(joined, needle) {
			return cu, true
		}
	}
	return domain.Customer{}, false
}

// PriceOf returns the canonical unit price for a product name.
func (c *Catalog) PriceOf(name string) (decimal.Decimal, bool) {
	p, ok := c.ProductByName(name)
	if !ok {
		return decimal.Zero, false
	}
	return p.Price, true
}

// Suggest lists product names starting with prefix, in catalog order.
func (c *Catalog) Suggest(prefix string, limit int) []string {
	needle := strings.ToLower(strings.TrimSpace(prefix))
	if limit <= 0 {
		limit = 10
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, limit)
	seen := make(map[string]struct{})
	for _, p := range c.products {
		name := strings.TrimSpace(p.Name)
		key := strings.ToLower(name)
		if !strings.HasPrefix(key, needle) {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
		if len(out) == limit {
			break
		}
	}
	return out
}
