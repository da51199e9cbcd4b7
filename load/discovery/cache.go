package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// CacheEntry is the on-disk form of a scan result.
type CacheEntry struct {
	Host      string    `yaml:"host"`
	ScannedAt time.Time `yaml:"scanned_at"`
	Ports     []int     `yaml:"ports"`
}

// Cache reuses a previous scan of the same host stored at Path, and otherwise
// runs Inner and stores its result. MaxAge 0 means entries never expire.
type Cache struct {
	Path   string
	Inner  Discoverer
	MaxAge time.Duration

	now func() time.Time
}

// NewCache creates a Cache around inner.
func NewCache(path string, inner Discoverer, maxAge time.Duration) *Cache {
	return &Cache{Path: path, Inner: inner, MaxAge: maxAge, now: time.Now}
}

func (c *Cache) Discover(ctx context.Context, host string) ([]int, error) {
	entry, err := c.load()
	switch {
	case err == nil && entry.Host == host && c.fresh(entry):
		logrus.Infof("Reusing scan of %s from %s (%s)", host, c.Path, entry.ScannedAt.Format(time.RFC3339))
		return append([]int(nil), entry.Ports...), nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		logrus.Warnf("Ignoring unreadable scan cache %s: %v", c.Path, err)
	}

	ports, err := c.Inner.Discover(ctx, host)
	if err != nil {
		return nil, err
	}
	if err := c.store(CacheEntry{Host: host, ScannedAt: c.now().UTC(), Ports: ports}); err != nil {
		logrus.Warnf("Could not write scan cache %s: %v", c.Path, err)
	}
	return ports, nil
}

func (c *Cache) fresh(e *CacheEntry) bool {
	return c.MaxAge <= 0 || c.now().Sub(e.ScannedAt) <= c.MaxAge
}

func (c *Cache) load() (*CacheEntry, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, err
	}
	var e CacheEntry
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parsing scan cache: %w", err)
	}
	return &e, nil
}

func (c *Cache) store(e CacheEntry) error {
	data, err := yaml.Marshal(&e)
	if err != nil {
		return err
	}
	return os.WriteFile(c.Path, data, 0o644)
}
