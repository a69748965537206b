package datasource

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"fenix-advisor/backend/models"
)

// Snapshot is one load of a source together with its schema profile.
type Snapshot struct {
	Dataset  *models.Dataset
	Profile  models.SchemaProfile
	Report   LoadReport
	LoadedAt time.Time
}

// ProfileFunc summarizes a freshly loaded dataset.
type ProfileFunc func(ds *models.Dataset) models.SchemaProfile

// Cache keeps loaded snapshots for a fixed TTL and reloads them wholesale.
type Cache struct {
	entries *expirable.LRU[string, *Snapshot]
	layout  Layout
	profile ProfileFunc
	logger  *zap.Logger

	mu      sync.Mutex
	loading map[string]*sync.Mutex
}

func NewCache(size int, ttl time.Duration, layout Layout, profile ProfileFunc, logger *zap.Logger) *Cache {
	c := &Cache{
		layout:  layout,
		profile: profile,
		logger:  logger.Named("dataset-cache"),
		loading: map[string]*sync.Mutex{},
	}
	c.entries = expirable.NewLRU[string, *Snapshot](size, func(key string, _ *Snapshot) {
		c.logger.Debug("dataset evicted", zap.String("source", key))
	}, ttl)
	return c
}

// Get returns the cached snapshot for src, loading it on a miss. Concurrent
// misses for the same source share one load.
func (c *Cache) Get(ctx context.Context, src Source) (*Snapshot, error) {
	if src == nil {
		return nil, &SourceUnavailableError{Err: errNoSource}
	}
	key := src.Key()
	if snap, ok := c.entries.Get(key); ok {
		return snap, nil
	}

	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()
	if snap, ok := c.entries.Get(key); ok {
		return snap, nil
	}

	start := time.Now()
	ds, report, err := Load(ctx, src, c.layout)
	if err != nil {
		c.logger.Warn("dataset load failed", zap.String("source", key), zap.Error(err))
		return nil, err
	}
	snap := &Snapshot{Dataset: ds, Report: report, LoadedAt: time.Now()}
	if c.profile != nil {
		snap.Profile = c.profile(ds)
	}
	c.entries.Add(key, snap)
	c.logger.Info("dataset loaded",
		zap.String("source", key),
		zap.Int("rows", report.RowsKept),
		zap.Int("dropped_date", report.DroppedDate),
		zap.Int("dropped_amount", report.DroppedAmount),
		zap.Duration("took", time.Since(start)))
	return snap, nil
}

func (c *Cache) Invalidate(src Source) {
	if src == nil {
		return
	}
	c.entries.Remove(src.Key())
}

func (c *Cache) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.loading[key]
	if !ok {
		l = &sync.Mutex{}
		c.loading[key] = l
	}
	return l
}
