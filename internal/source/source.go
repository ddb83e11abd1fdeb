// Package source loads the machine workbook from disk, an upload or Google
// Drive.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agrof66/machine-dashboard/internal/sheet"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Source produces a parsed data set.
type Source interface {
	Name() string
	Load(ctx context.Context) (*sheet.Dataset, error)
}

// FileSource reads a workbook from the local file system.
type FileSource struct {
	Path string
}

// Name implements Source.
func (s FileSource) Name() string {
	return "file:" + s.Path
}

// Load implements Source. A missing file yields an error wrapping
// fs.ErrNotExist.
func (s FileSource) Load(ctx context.Context) (*sheet.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	ds, err := sheet.Parse(data, filepath.Base(s.Path))
	if err != nil {
		return nil, err
	}
	ds.Source = filepath.Base(s.Path)
	return ds, nil
}

// UploadSource is a workbook uploaded by a user.
type UploadSource struct {
	Filename string
	Data     []byte
}

// Name implements Source.
func (s UploadSource) Name() string {
	return "upload:" + s.Filename
}

// Load implements Source.
func (s UploadSource) Load(ctx context.Context) (*sheet.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.Data) == 0 {
		return nil, sheet.ErrEmptySheet
	}
	ds, err := sheet.Parse(s.Data, s.Filename)
	if err != nil {
		return nil, err
	}
	ds.Source = s.Filename
	return ds, nil
}

// FallbackSource tries Primary and falls back to Fallback on failure.
type FallbackSource struct {
	Primary  Source
	Fallback Source
	Logger   *zap.Logger
}

// Name implements Source.
func (s FallbackSource) Name() string {
	return s.Primary.Name()
}

// Load implements Source.
func (s FallbackSource) Load(ctx context.Context) (*sheet.Dataset, error) {
	ds, _, err := s.loadFrom(ctx)
	return ds, err
}

// loadFrom also returns the source that produced the data set.
func (s FallbackSource) loadFrom(ctx context.Context) (*sheet.Dataset, Source, error) {
	ds, err := s.Primary.Load(ctx)
	if err == nil {
		return ds, s.Primary, nil
	}
	if s.Fallback == nil {
		return nil, nil, err
	}
	if s.Logger != nil {
		s.Logger.Warn("primary source failed, using fallback",
			zap.String("op", "source.FallbackSource.Load"),
			zap.String("primary", s.Primary.Name()),
			zap.String("fallback", s.Fallback.Name()),
			zap.Error(err),
		)
	}
	ds, fallbackErr := s.Fallback.Load(ctx)
	if fallbackErr != nil {
		return nil, nil, errors.Join(err, fallbackErr)
	}
	return ds, s.Fallback, nil
}

type originLoader interface {
	loadFrom(ctx context.Context) (*sheet.Dataset, Source, error)
}

func loadFrom(ctx context.Context, src Source) (*sheet.Dataset, Source, error) {
	if o, ok := src.(originLoader); ok {
		return o.loadFrom(ctx)
	}
	ds, err := src.Load(ctx)
	return ds, src, err
}

// Cache keeps loaded data sets for a fixed time, keyed by source name. A
// data set that came from a fallback is returned but not stored, so the
// primary source is retried on the next load.
type Cache struct {
	items  *cache.Cache
	logger *zap.Logger
}

// NewCache creates a cache whose entries live for ttl.
func NewCache(ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{items: cache.New(ttl, 2*ttl), logger: logger}
}

// Load returns the cached data set of src or loads and stores it.
func (c *Cache) Load(ctx context.Context, src Source) (*sheet.Dataset, error) {
	key := src.Name()
	if v, ok := c.items.Get(key); ok {
		return v.(*sheet.Dataset), nil
	}

	start := time.Now()
	ds, from, err := loadFrom(ctx, src)
	if err != nil {
		return nil, err
	}
	if from.Name() != key {
		c.logger.Warn("serving fallback data set uncached",
			zap.String("op", "source.Cache.Load"),
			zap.String("source", key),
			zap.String("loadedFrom", from.Name()),
		)
		return ds, nil
	}
	c.items.SetDefault(key, ds)
	c.logger.Info("data set loaded",
		zap.String("op", "source.Cache.Load"),
		zap.String("source", key),
		zap.Int("machines", len(ds.Machines)),
		zap.Int("months", len(ds.Months)),
		zap.Duration("duration", time.Since(start)),
	)
	return ds, nil
}

// Reload drops every cached data set.
func (c *Cache) Reload() {
	c.items.Flush()
}

// Len returns the number of cached data sets.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}
