package artwork

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Prefetcher warms the artwork cache ahead of playback so track changes can
// render artwork without a fetch. Failures are swallowed: prefetching is
// purely an optimization.
type Prefetcher struct {
	cache  *Cache
	client *http.Client
	logger *logrus.Logger
}

// NewPrefetcher creates a prefetcher over the given cache.
func NewPrefetcher(cache *Cache, logger *logrus.Logger) *Prefetcher {
	return &Prefetcher{
		cache:  cache,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Prefetch loads the artwork reference into the cache unless it is already
// there.
func (p *Prefetcher) Prefetch(artworkRef string) {
	if artworkRef == "" {
		return
	}
	if _, cached := p.cache.Get(artworkRef); cached {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	data, err := fetch(ctx, p.client, artworkRef)
	if err != nil {
		p.logger.WithError(err).WithField("artwork", artworkRef).Debug("Artwork prefetch failed")
		return
	}
	p.cache.Set(artworkRef, data)
}

// Cached reports whether the artwork reference is currently cached.
func (p *Prefetcher) Cached(artworkRef string) bool {
	_, ok := p.cache.Get(artworkRef)
	return ok
}
