package repository

import (
	"time"

	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceHistoryRepository 시세 이력 저장소 인터페이스
type PriceHistoryRepository interface {
	// CreateIfChanged 같은 무게의 직전 기록과 가격이 다를 때만 추가. 확인과 추가는 한 트랜잭션에서 수행
	CreateIfChanged(entry *model.PriceHistory) (bool, error)
	FindByWeightSince(weight decimal.Decimal, since time.Time) ([]model.PriceHistory, error)
}

type priceHistoryRepository struct {
	db *gorm.DB
}

// NewPriceHistoryRepository 시세 이력 저장소 생성
func NewPriceHistoryRepository(db *gorm.DB) PriceHistoryRepository {
	return &priceHistoryRepository{db: db}
}

func (r *priceHistoryRepository) CreateIfChanged(entry *model.PriceHistory) (bool, error) {
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		latest, err := findLatestByWeight(tx, entry.Weight)
		if err != nil {
			return err
		}
		if latest != nil && latest.SameAs(entry.SellPrice, entry.BuyPrice) {
			return nil
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		logger.Error("Failed to record price history", err, map[string]interface{}{
			"weight": entry.Weight.String(),
		})
		return false, err
	}
	return created, nil
}

// findLatestByWeight 특정 무게의 가장 최근 기록. 없으면 nil
func findLatestByWeight(db *gorm.DB, weight decimal.Decimal) (*model.PriceHistory, error) {
	var entry model.PriceHistory
	if err := db.Where("weight = ?", weight).
		Order("recorded_at DESC").
		Order("id DESC").
		First(&entry).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// FindByWeightSince 특정 무게의 기간별 이력 (오래된 순)
func (r *priceHistoryRepository) FindByWeightSince(weight decimal.Decimal, since time.Time) ([]model.PriceHistory, error) {
	var entries []model.PriceHistory
	// recorded_at 은 텍스트로 비교되므로 저장 형태와 같은 시각으로 넘긴다
	if err := r.db.Where("weight = ? AND recorded_at >= ?", weight, model.StoredTime(since)).
		Order("recorded_at ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		logger.Error("Failed to find price history by weight", err)
		return nil, err
	}
	return entries, nil
}
