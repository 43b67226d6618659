package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Holding 사용자가 보유한 금 한 건
type Holding struct {
	ID            string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Weight        decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"weight"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"purchase_price"`
	PurchaseDate  string          `gorm:"type:varchar(10);not null;index" json:"purchase_date"`
	Notes         string          `gorm:"type:text;default:''" json:"notes"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
}

func (Holding) TableName() string {
	return "holdings"
}

func (h *Holding) BeforeCreate(tx *gorm.DB) error {
	h.CreatedAt = StoredTime(h.CreatedAt)
	return nil
}

// HoldingUpdate 부분 수정 값. nil 필드는 변경하지 않는다
type HoldingUpdate struct {
	Weight        *decimal.Decimal
	PurchasePrice *decimal.Decimal
	PurchaseDate  *string
	Notes         *string
}

// IsEmpty 변경할 필드가 없음
func (u HoldingUpdate) IsEmpty() bool {
	return u.Weight == nil && u.PurchasePrice == nil && u.PurchaseDate == nil && u.Notes == nil
}

// TransactionType 거래 유형
type TransactionType string

const (
	TransactionBuy    TransactionType = "BUY"
	TransactionSell   TransactionType = "SELL"
	TransactionDelete TransactionType = "DELETE"
)

// Transaction 매입/매도/삭제 거래 원장 (추가만 가능)
type Transaction struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	Type      TransactionType `gorm:"type:varchar(10);not null" json:"type"`
	HoldingID string          `gorm:"type:varchar(64);not null;index" json:"holding_id"` // 보유분이 삭제된 뒤에도 남는 약한 참조
	Weight    decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"weight"`
	Price     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	Date      string          `gorm:"type:varchar(10);not null" json:"date"`
	Timestamp time.Time       `gorm:"not null" json:"timestamp"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	t.Timestamp = StoredTime(t.Timestamp)
	return nil
}

// Portfolio 보유 목록과 거래 원장
type Portfolio struct {
	Holdings     []Holding     `json:"holdings"`
	Transactions []Transaction `json:"transactions"`
}

// HoldingValuation 현재 시세로 평가한 보유분
type HoldingValuation struct {
	Holding
	CurrentSell   decimal.Decimal `json:"current_sell"`
	CurrentBuy    decimal.Decimal `json:"current_buy"`
	ProfitLoss    decimal.Decimal `json:"profit_loss"`
	ProfitLossPct float64         `json:"profit_loss_pct"`
}

// PortfolioTotals 포트폴리오 합계
type PortfolioTotals struct {
	TotalWeight        decimal.Decimal `json:"total_weight"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	TotalCurrentValue  decimal.Decimal `json:"total_current_value"`
	TotalProfitLoss    decimal.Decimal `json:"total_profit_loss"`
	TotalProfitLossPct float64         `json:"total_profit_loss_pct"`
	HoldingsCount      int             `json:"holdings_count"`
}

// PortfolioSummary 평가 결과 응답
type PortfolioSummary struct {
	Success      bool               `json:"success"`
	PricesUpdate string             `json:"prices_update"`
	Summary      PortfolioTotals    `json:"summary"`
	Holdings     []HoldingValuation `json:"holdings"`
	Transactions []Transaction      `json:"transactions"`
}
