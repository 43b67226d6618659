package db

import (
	"math/rand"
	"time"

	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Models 마이그레이션 및 복제 대상 테이블
func Models() []interface{} {
	return []interface{}{
		&model.Holding{},
		&model.Transaction{},
		&model.PriceHistory{},
	}
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := db.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// SeedPriceHistory 개발용 시세 이력 더미 데이터 생성 (최근 days 일, 1시간 간격)
func SeedPriceHistory(db *gorm.DB, days int, now time.Time) (int, error) {
	var count int64
	if err := db.Model(&model.PriceHistory{}).Count(&count).Error; err != nil {
		return 0, err
	}

	if count > 0 {
		logger.Info("Price history already seeded, skipping...", map[string]interface{}{
			"existing_count": count,
		})
		return 0, nil
	}

	logger.Info("Seeding price history...", map[string]interface{}{
		"days": days,
	})

	// 기준 시세 (Rp/g)
	baseSell := decimal.NewFromInt(1_350_000)
	weights := []decimal.Decimal{
		decimal.RequireFromString("0.5"),
		decimal.NewFromInt(1),
		decimal.NewFromInt(5),
		decimal.NewFromInt(10),
	}

	start := now.In(model.JakartaZone).Truncate(time.Hour).AddDate(0, 0, -days)
	rows := make([]model.PriceHistory, 0, days*4*len(weights))

	// 하루 4번 변동
	for at := start; !at.After(now); at = at.Add(6 * time.Hour) {
		// -1% ~ +1%
		variance := decimal.NewFromFloat((rand.Float64() - 0.5) * 0.02)

		for _, w := range weights {
			sell := baseSell.Mul(w).Mul(decimal.NewFromInt(1).Add(variance)).Round(-3)
			buy := sell.Mul(decimal.RequireFromString("0.95")).Round(-3)
			rows = append(rows, model.PriceHistory{
				Weight:     w,
				SellPrice:  sell,
				BuyPrice:   buy,
				RecordedAt: at,
			})
		}
	}

	if err := db.CreateInBatches(rows, 200).Error; err != nil {
		logger.Error("Failed to seed price history", err)
		return 0, err
	}

	logger.Info("Price history seeded successfully", map[string]interface{}{
		"total_records": len(rows),
		"days":          days,
	})
	return len(rows), nil
}
