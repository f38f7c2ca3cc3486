package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/calebres/aidesk/credentials"
	"github.com/calebres/aidesk/transport"
)

// ModelsCache holds the remote model catalog with a TTL.
type ModelsCache struct {
	mu        sync.RWMutex
	models    []transport.ModelInfo
	fetchedAt time.Time
	ttl       time.Duration
}

// NewModelsCache creates a cache with the given TTL.
func NewModelsCache(ttl time.Duration) *ModelsCache {
	return &ModelsCache{ttl: ttl}
}

// Get returns the cached catalog, or nil when stale or empty.
func (c *ModelsCache) Get() []transport.ModelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.models == nil || time.Since(c.fetchedAt) > c.ttl {
		return nil
	}
	return c.models
}

// Set replaces the cached catalog.
func (c *ModelsCache) Set(models []transport.ModelInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = models
	c.fetchedAt = time.Now()
}

// ModelCatalog serves the model list, refreshing the cache on a schedule so
// the settings screen doesn't block on the remote call.
type ModelCatalog struct {
	lister    transport.ModelLister
	creds     credentials.Store
	cache     *ModelsCache
	scheduler *cron.Cron
	logger    *log.Logger
}

// NewModelCatalog creates the catalog and starts its refresh schedule.
func NewModelCatalog(lister transport.ModelLister, creds credentials.Store, interval time.Duration, logger *log.Logger) *ModelCatalog {
	if logger == nil {
		logger = log.Default()
	}

	catalog := &ModelCatalog{
		lister: lister,
		creds:  creds,
		cache:  NewModelsCache(interval),
		logger: logger,
	}

	catalog.scheduler = cron.New()
	spec := fmt.Sprintf("@every %ds", int(interval.Seconds()))
	if _, err := catalog.scheduler.AddFunc(spec, catalog.refresh); err != nil {
		logger.Printf("Failed to schedule model refresh: %v", err)
	} else {
		catalog.scheduler.Start()
	}

	return catalog
}

// Models returns the catalog, fetching on a cache miss.
func (mc *ModelCatalog) Models(ctx context.Context) ([]transport.ModelInfo, error) {
	if cached := mc.cache.Get(); cached != nil {
		return cached, nil
	}

	secret, err := mc.creds.Read()
	if err != nil {
		return nil, fmt.Errorf("no credential for model listing: %w", err)
	}

	models, err := mc.lister.ListModels(ctx, secret)
	if err != nil {
		return nil, err
	}

	mc.cache.Set(models)
	return models, nil
}

func (mc *ModelCatalog) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	secret, err := mc.creds.Read()
	if err != nil {
		// Nothing to refresh until a key is configured.
		return
	}

	models, err := mc.lister.ListModels(ctx, secret)
	if err != nil {
		mc.logger.Printf("Model catalog refresh failed: %v", err)
		return
	}
	mc.cache.Set(models)
}

// Stop halts the refresh schedule.
func (mc *ModelCatalog) Stop() {
	if mc.scheduler != nil {
		mc.scheduler.Stop()
	}
}
