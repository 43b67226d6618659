package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	items   map[string][]byte
	failGet bool
}

func (m *memoryCache) GetJSON(_ context.Context, key string, dst interface{}) (bool, error) {
	if m.failGet {
		return false, errors.New("connection refused")
	}
	raw, ok := m.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *memoryCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func TestCachedPriceSource_CachesSuccessOnly(t *testing.T) {
	source := &fakePriceSource{snapshots: []model.PriceSnapshot{
		model.NewFailedSnapshot(errors.New("offline"), false),
		oneGramSnapshot(1041000, 950000),
		oneGramSnapshot(1, 1),
	}}
	cache := &memoryCache{items: map[string][]byte{}}
	cached := NewCachedPriceSource(source, cache, time.Minute)
	ctx := context.Background()

	assert.False(t, cached.Fetch(ctx).Success)
	assert.Empty(t, cache.items)

	first := cached.Fetch(ctx)
	require.True(t, first.Success)

	second := cached.Fetch(ctx)
	require.True(t, second.Success)
	assert.Equal(t, 2, source.calls)

	q, ok := second.OneGram()
	require.True(t, ok)
	assert.True(t, q.Sell.Equal(d("1041000")))
	assert.Equal(t, first.LastUpdate, second.LastUpdate)
}

func TestCachedPriceSource_CacheErrorFallsThrough(t *testing.T) {
	source := &fakePriceSource{snapshots: []model.PriceSnapshot{oneGramSnapshot(1041000, 950000)}}
	cached := NewCachedPriceSource(source, &memoryCache{items: map[string][]byte{}, failGet: true}, time.Minute)

	assert.True(t, cached.Fetch(context.Background()).Success)
	assert.Equal(t, 1, source.calls)
}
