package storage

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

// MemoCache keeps recently read calendars in memory in front of a Store so
// repeated API hits for a hot route skip the database. Entries live at most
// ttl in memory and are still checked against the caller's maxAge.
type MemoCache struct {
	*Store
	memo *expirable.LRU[models.Route, models.CachedPrices]
}

func NewMemoCache(store *Store, size int, ttl time.Duration) *MemoCache {
	if size <= 0 {
		size = 512
	}
	return &MemoCache{
		Store: store,
		memo:  expirable.NewLRU[models.Route, models.CachedPrices](size, nil, ttl),
	}
}

func (m *MemoCache) Get(ctx context.Context, route models.Route, maxAge time.Duration) (models.CachedPrices, bool, error) {
	if cached, ok := m.memo.Get(route); ok {
		if m.now().Sub(cached.ScrapedAt) <= maxAge {
			return cached, true, nil
		}
		m.memo.Remove(route)
	}

	cached, ok, err := m.Store.Get(ctx, route, maxAge)
	if err != nil || !ok {
		return cached, ok, err
	}
	m.memo.Add(route, cached)
	return cached, true, nil
}

func (m *MemoCache) Save(ctx context.Context, route models.Route, prices models.PriceMap) (int, error) {
	m.memo.Remove(route)
	return m.Store.Save(ctx, route, prices)
}

func (m *MemoCache) ClearOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	m.memo.Purge()
	return m.Store.ClearOlderThan(ctx, age)
}
