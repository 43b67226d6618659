package repository

import (
	"testing"
	"time"

	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupHoldingTest(t *testing.T) (*gorm.DB, HoldingRepository, TransactionRepository) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	return testDB, NewHoldingRepository(testDB), NewTransactionRepository(testDB)
}

func newHolding(id, date string, weight int64) (*model.Holding, *model.Transaction) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, model.JakartaZone)
	h := &model.Holding{
		ID:            id,
		Weight:        decimal.NewFromInt(weight),
		PurchasePrice: decimal.NewFromInt(weight * 1_000_000),
		PurchaseDate:  date,
		CreatedAt:     now,
	}
	txn := &model.Transaction{
		Type:      model.TransactionBuy,
		HoldingID: id,
		Weight:    h.Weight,
		Price:     h.PurchasePrice,
		Date:      date,
		Timestamp: now,
	}
	return h, txn
}

func TestHoldingRepository_CreateWithTransaction(t *testing.T) {
	testDB, repo, txnRepo := setupHoldingTest(t)
	defer db.CleanupTestDB(testDB)

	h, txn := newHolding("h-1", "2026-10-01", 1)
	require.NoError(t, repo.CreateWithTransaction(h, txn))
	assert.NotZero(t, txn.ID)

	found, err := repo.FindByID("h-1")
	require.NoError(t, err)
	assert.True(t, found.Weight.Equal(decimal.NewFromInt(1)))

	txns, err := txnRepo.FindAll()
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, model.TransactionBuy, txns[0].Type)
	assert.Equal(t, "h-1", txns[0].HoldingID)
}

func TestHoldingRepository_CreateWithTransaction_RollsBackOnDuplicate(t *testing.T) {
	testDB, repo, txnRepo := setupHoldingTest(t)
	defer db.CleanupTestDB(testDB)

	h, txn := newHolding("h-1", "2026-10-01", 1)
	require.NoError(t, repo.CreateWithTransaction(h, txn))

	dup, dupTxn := newHolding("h-1", "2026-10-02", 2)
	assert.Error(t, repo.CreateWithTransaction(dup, dupTxn))

	txns, err := txnRepo.FindAll()
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestHoldingRepository_FindAllOrdering(t *testing.T) {
	testDB, repo, _ := setupHoldingTest(t)
	defer db.CleanupTestDB(testDB)

	for _, tc := range []struct{ id, date string }{
		{"a", "2026-01-15"}, {"b", "2026-03-01"}, {"c", "2025-12-31"},
	} {
		h, txn := newHolding(tc.id, tc.date, 1)
		require.NoError(t, repo.CreateWithTransaction(h, txn))
	}

	desc, err := repo.FindAll()
	require.NoError(t, err)
	require.Len(t, desc, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{desc[0].ID, desc[1].ID, desc[2].ID})

	asc, err := repo.FindAllByPurchaseDate()
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, []string{asc[0].ID, asc[1].ID, asc[2].ID})
}

func TestHoldingRepository_Update(t *testing.T) {
	testDB, repo, _ := setupHoldingTest(t)
	defer db.CleanupTestDB(testDB)

	h, txn := newHolding("h-1", "2026-10-01", 1)
	require.NoError(t, repo.CreateWithTransaction(h, txn))

	h.Notes = "Antam"
	h.Weight = decimal.RequireFromString("0.5")
	require.NoError(t, repo.Update(h))

	found, err := repo.FindByID("h-1")
	require.NoError(t, err)
	assert.Equal(t, "Antam", found.Notes)
	assert.True(t, found.Weight.Equal(decimal.RequireFromString("0.5")))
}

func TestHoldingRepository_DeleteWithTransaction(t *testing.T) {
	testDB, repo, txnRepo := setupHoldingTest(t)
	defer db.CleanupTestDB(testDB)

	h, txn := newHolding("h-1", "2026-10-01", 1)
	require.NoError(t, repo.CreateWithTransaction(h, txn))

	sell := &model.Transaction{
		Type: model.TransactionSell, HoldingID: h.ID, Weight: h.Weight,
		Price: decimal.NewFromInt(1_200_000), Date: "2026-10-19", Timestamp: h.CreatedAt,
	}
	require.NoError(t, repo.DeleteWithTransaction(h, sell))

	_, err := repo.FindByID("h-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// 원장은 보유분이 사라진 뒤에도 남고, 최근 거래가 먼저 온다
	txns, err := txnRepo.FindAll()
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, model.TransactionSell, txns[0].Type)
	assert.Equal(t, model.TransactionBuy, txns[1].Type)

	// 이미 삭제된 보유분은 거래를 남기지 않는다
	again := *sell
	again.ID = 0
	assert.ErrorIs(t, repo.DeleteWithTransaction(h, &again), gorm.ErrRecordNotFound)
	remaining, err := repo.FindAll()
	require.NoError(t, err)
	assert.Empty(t, remaining)
	txns, err = txnRepo.FindAll()
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}
