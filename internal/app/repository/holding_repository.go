package repository

import (
	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/pkg/logger"
	"gorm.io/gorm"
)

// HoldingRepository 보유 금 저장소 인터페이스.
// 보유분 변경과 거래 원장 추가는 항상 같은 트랜잭션에서 처리한다
type HoldingRepository interface {
	CreateWithTransaction(holding *model.Holding, txn *model.Transaction) error
	CreateBatch(holdings []model.Holding, txns []model.Transaction) error
	FindAll() ([]model.Holding, error)
	FindAllByPurchaseDate() ([]model.Holding, error)
	FindByID(id string) (*model.Holding, error)
	Update(holding *model.Holding) error
	DeleteWithTransaction(holding *model.Holding, txn *model.Transaction) error
}

type holdingRepository struct {
	db *gorm.DB
}

// NewHoldingRepository 보유 금 저장소 생성
func NewHoldingRepository(db *gorm.DB) HoldingRepository {
	return &holdingRepository{db: db}
}

// CreateWithTransaction 보유분과 BUY 거래를 함께 추가
func (r *holdingRepository) CreateWithTransaction(holding *model.Holding, txn *model.Transaction) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(holding).Error; err != nil {
			return err
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		logger.Error("Failed to create holding", err, map[string]interface{}{
			"holding_id": holding.ID,
		})
		return err
	}
	return nil
}

// CreateBatch 가져오기용 일괄 추가 (전부 성공하거나 전부 실패)
func (r *holdingRepository) CreateBatch(holdings []model.Holding, txns []model.Transaction) error {
	if len(holdings) == 0 {
		return nil
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(holdings, 100).Error; err != nil {
			return err
		}
		if len(txns) == 0 {
			return nil
		}
		return tx.CreateInBatches(txns, 100).Error
	})
	if err != nil {
		logger.Error("Failed to create holdings batch", err, map[string]interface{}{
			"count": len(holdings),
		})
		return err
	}
	return nil
}

// FindAll 매입일 최신순 (같은 날이면 최근 추가순)
func (r *holdingRepository) FindAll() ([]model.Holding, error) {
	var holdings []model.Holding
	if err := r.db.Order("purchase_date DESC").
		Order("created_at DESC").
		Find(&holdings).Error; err != nil {
		logger.Error("Failed to find holdings", err)
		return nil, err
	}
	return holdings, nil
}

// FindAllByPurchaseDate 매입일 오래된 순 (내보내기용)
func (r *holdingRepository) FindAllByPurchaseDate() ([]model.Holding, error) {
	var holdings []model.Holding
	if err := r.db.Order("purchase_date ASC").
		Order("created_at ASC").
		Find(&holdings).Error; err != nil {
		logger.Error("Failed to find holdings by purchase date", err)
		return nil, err
	}
	return holdings, nil
}

// FindByID 보유분 조회. 없으면 gorm.ErrRecordNotFound
func (r *holdingRepository) FindByID(id string) (*model.Holding, error) {
	var holding model.Holding
	if err := r.db.First(&holding, "id = ?", id).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to find holding by ID", err, map[string]interface{}{
				"holding_id": id,
			})
		}
		return nil, err
	}
	return &holding, nil
}

// Update 보유분 수정 (거래 원장은 변경하지 않음)
func (r *holdingRepository) Update(holding *model.Holding) error {
	if err := r.db.Model(holding).Select("weight", "purchase_price", "purchase_date", "notes").
		Updates(holding).Error; err != nil {
		logger.Error("Failed to update holding", err, map[string]interface{}{
			"holding_id": holding.ID,
		})
		return err
	}
	return nil
}

// DeleteWithTransaction 보유분 삭제와 SELL/DELETE 거래 추가
func (r *holdingRepository) DeleteWithTransaction(holding *model.Holding, txn *model.Transaction) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&model.Holding{}, "id = ?", holding.ID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to delete holding", err, map[string]interface{}{
				"holding_id": holding.ID,
			})
		}
		return err
	}
	return nil
}
