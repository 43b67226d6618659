package repository

import (
	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/pkg/logger"
	"gorm.io/gorm"
)

// TransactionRepository 거래 원장 조회. 추가는 보유분 변경과 같은 트랜잭션에서 HoldingRepository 가 한다
type TransactionRepository interface {
	FindAll() ([]model.Transaction, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// FindAll 최근 거래부터
func (r *transactionRepository) FindAll() ([]model.Transaction, error) {
	var txns []model.Transaction
	if err := r.db.Order("id DESC").Find(&txns).Error; err != nil {
		logger.Error("Failed to find transactions", err)
		return nil, err
	}
	return txns, nil
}
