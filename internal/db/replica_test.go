package db

import (
	"context"
	"testing"
	"time"

	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupReplicaPair(t *testing.T) (*gorm.DB, *gorm.DB) {
	t.Helper()
	local, err := SetupTestDB()
	require.NoError(t, err)
	remote, err := SetupTestDB()
	require.NoError(t, err)
	return local, remote
}

func countRows(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}

func sampleHolding(id string) model.Holding {
	return model.Holding{
		ID:            id,
		Weight:        decimal.NewFromInt(1),
		PurchasePrice: decimal.NewFromInt(1_000_000),
		PurchaseDate:  "2026-10-01",
		Notes:         "1g",
		CreatedAt:     time.Date(2026, 10, 1, 9, 0, 0, 0, model.JakartaZone),
	}
}

func TestReplicatedStore_MirrorsCommittedWrites(t *testing.T) {
	local, remote := setupReplicaPair(t)
	store, err := NewReplicatedStore(local, remote, ReplicaOptions{SyncTimeout: time.Second})
	require.NoError(t, err)
	defer store.Close()

	h := sampleHolding("h-1")
	require.NoError(t, store.DB().Create(&h).Error)
	require.NoError(t, store.DB().Create(&model.Transaction{
		Type: model.TransactionBuy, HoldingID: h.ID, Weight: h.Weight,
		Price: h.PurchasePrice, Date: h.PurchaseDate, Timestamp: h.CreatedAt,
	}).Error)

	assert.Eventually(t, func() bool {
		return countRows(t, remote, &model.Holding{}) == 1 && countRows(t, remote, &model.Transaction{}) == 1
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, store.DB().Delete(&model.Holding{}, "id = ?", h.ID).Error)
	assert.Eventually(t, func() bool {
		return countRows(t, remote, &model.Holding{}) == 0
	}, 2*time.Second, 20*time.Millisecond)

	// 거래 원장은 보유분 삭제 후에도 남는다
	assert.Equal(t, int64(1), countRows(t, remote, &model.Transaction{}))
}

func TestReplicatedStore_SyncIsIdempotent(t *testing.T) {
	local, remote := setupReplicaPair(t)
	store, err := NewReplicatedStore(local, remote, ReplicaOptions{SyncTimeout: time.Second, Debounce: time.Hour})
	require.NoError(t, err)
	defer store.Close()

	h := sampleHolding("h-1")
	require.NoError(t, local.Create(&h).Error)
	require.NoError(t, local.Create(&model.PriceHistory{
		Weight: decimal.NewFromInt(1), SellPrice: decimal.NewFromInt(10), BuyPrice: decimal.NewFromInt(9),
		RecordedAt: h.CreatedAt,
	}).Error)

	ctx := context.Background()
	require.NoError(t, store.Sync(ctx))
	require.NoError(t, store.Sync(ctx))

	assert.Equal(t, int64(1), countRows(t, remote, &model.Holding{}))
	assert.Equal(t, int64(1), countRows(t, remote, &model.PriceHistory{}))

	h.Notes = "renamed"
	require.NoError(t, local.Save(&h).Error)
	require.NoError(t, store.Sync(ctx))

	var mirrored model.Holding
	require.NoError(t, remote.First(&mirrored, "id = ?", h.ID).Error)
	assert.Equal(t, "renamed", mirrored.Notes)
}

func TestReplicatedStore_RemoteFailureKeepsLocalWrite(t *testing.T) {
	local, remote := setupReplicaPair(t)
	store, err := NewReplicatedStore(local, remote, ReplicaOptions{SyncTimeout: time.Second})
	require.NoError(t, err)
	defer store.Close()

	CleanupTestDB(remote)

	h := sampleHolding("h-1")
	require.NoError(t, store.DB().Create(&h).Error)

	assert.Eventually(t, func() bool {
		return store.Status().SyncFailures > 0
	}, 2*time.Second, 20*time.Millisecond)

	status := store.Status()
	assert.Equal(t, "replicated", status.Mode)
	assert.NotEmpty(t, status.LastSyncError)
	assert.Equal(t, int64(1), countRows(t, local, &model.Holding{}))
}

func TestReplicatedStore_HydrateFillsEmptyLocal(t *testing.T) {
	local, remote := setupReplicaPair(t)

	h := sampleHolding("h-remote")
	require.NoError(t, remote.Create(&h).Error)

	store, err := NewReplicatedStore(local, remote, ReplicaOptions{SyncTimeout: time.Second, Debounce: time.Hour})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Hydrate(context.Background()))
	assert.Equal(t, int64(1), countRows(t, local, &model.Holding{}))

	// 로컬에 데이터가 있으면 다시 채우지 않는다
	require.NoError(t, remote.Create(ptr(sampleHolding("h-other"))).Error)
	require.NoError(t, store.Hydrate(context.Background()))
	assert.Equal(t, int64(1), countRows(t, local, &model.Holding{}))
}

func TestReplicatedStore_HydrateStoresLocalTimeForm(t *testing.T) {
	local, remote := setupReplicaPair(t)

	// 복제본 드라이버는 시각을 UTC 등 다른 시간대로 돌려줄 수 있다
	require.NoError(t, remote.Exec(
		`INSERT INTO price_histories (weight, sell_price, buy_price, recorded_at) VALUES (?, ?, ?, ?)`,
		"1", "1041000", "950000", "2026-10-19 02:00:00+00:00").Error)
	require.NoError(t, remote.Exec(
		`INSERT INTO holdings (id, weight, purchase_price, purchase_date, notes, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"h-remote", "1", "1000000", "2026-10-01", "", "2026-10-01 02:00:00+00:00").Error)
	require.NoError(t, remote.Exec(
		`INSERT INTO transactions (type, holding_id, weight, price, date, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		"BUY", "h-remote", "1", "1000000", "2026-10-01", "2026-10-01 02:00:00+00:00").Error)

	store, err := NewReplicatedStore(local, remote, ReplicaOptions{SyncTimeout: time.Second, Debounce: time.Hour})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Hydrate(context.Background()))

	storedText := func(query string) string {
		var text string
		require.NoError(t, local.Raw(query).Scan(&text).Error)
		return text
	}
	assert.Equal(t, "2026-10-19 09:00:00+07:00", storedText(`SELECT CAST(recorded_at AS TEXT) FROM price_histories`))
	assert.Equal(t, "2026-10-01 09:00:00+07:00", storedText(`SELECT CAST(created_at AS TEXT) FROM holdings`))
	assert.Equal(t, "2026-10-01 09:00:00+07:00", storedText(`SELECT CAST(timestamp AS TEXT) FROM transactions`))

	// 텍스트 비교로 기간 조회해도 빠지지 않는다
	var count int64
	since := model.StoredTime(time.Date(2026, 10, 19, 8, 30, 0, 0, model.JakartaZone))
	require.NoError(t, local.Model(&model.PriceHistory{}).Where("recorded_at >= ?", since).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLocalStore_Status(t *testing.T) {
	db, err := SetupTestDB()
	require.NoError(t, err)

	store := NewLocalStore(db)
	assert.Equal(t, StoreStatus{Mode: "local"}, store.Status())
	require.NoError(t, store.Close())
}

func TestSeedPriceHistory_SkipsWhenPresent(t *testing.T) {
	db, err := SetupTestDB()
	require.NoError(t, err)
	defer CleanupTestDB(db)

	now := time.Date(2026, 10, 19, 9, 0, 0, 0, model.JakartaZone)
	n, err := SeedPriceHistory(db, 2, now)
	require.NoError(t, err)
	assert.Positive(t, n)

	again, err := SeedPriceHistory(db, 2, now)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func ptr[T any](v T) *T { return &v }
