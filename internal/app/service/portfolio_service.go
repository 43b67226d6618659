package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/internal/app/repository"
	"github.com/ikkim/gold-portfolio-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrHoldingNotFound = errors.New("holding not found")
	ErrInvalidHolding  = errors.New("invalid holding")
)

// HoldingInput 보유분 추가 요청
type HoldingInput struct {
	Weight        decimal.Decimal
	PurchasePrice decimal.Decimal
	PurchaseDate  string // 비어 있으면 오늘 (UTC+7)
	Notes         string
}

// PortfolioService 보유 금과 거래 원장 관리
type PortfolioService interface {
	GetPortfolio() (*model.Portfolio, error)
	AddHolding(input HoldingInput) (*model.Holding, error)
	UpdateHolding(id string, update model.HoldingUpdate) (*model.Holding, error)
	DeleteHolding(id string, sellPrice decimal.Decimal) (*model.Transaction, error)
	GetSummary(ctx context.Context) (*model.PortfolioSummary, error)
}

type portfolioService struct {
	holdings     repository.HoldingRepository
	transactions repository.TransactionRepository
	prices       PriceSource
	now          func() time.Time
	newID        func() (string, error)
}

// NewPortfolioService 포트폴리오 서비스 생성
func NewPortfolioService(
	holdings repository.HoldingRepository,
	transactions repository.TransactionRepository,
	prices PriceSource,
) PortfolioService {
	return &portfolioService{
		holdings:     holdings,
		transactions: transactions,
		prices:       prices,
		now:          model.NowInZone,
		newID:        newHoldingID,
	}
}

// newHoldingID 시간 순으로 정렬되는 UUIDv7
func newHoldingID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// GetPortfolio 보유 목록 (매입일 최신순) 과 거래 원장 (최근순)
func (s *portfolioService) GetPortfolio() (*model.Portfolio, error) {
	holdings, err := s.holdings.FindAll()
	if err != nil {
		return nil, err
	}
	txns, err := s.transactions.FindAll()
	if err != nil {
		return nil, err
	}
	return &model.Portfolio{Holdings: holdings, Transactions: txns}, nil
}

func validatePurchaseDate(date string) error {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return fmt.Errorf("%w: purchase_date must be YYYY-MM-DD", ErrInvalidHolding)
	}
	return nil
}

// AddHolding 보유분을 추가하고 BUY 거래를 함께 기록한다
func (s *portfolioService) AddHolding(input HoldingInput) (*model.Holding, error) {
	now := s.now()

	if !input.Weight.IsPositive() {
		return nil, fmt.Errorf("%w: weight must be positive", ErrInvalidHolding)
	}
	if input.PurchasePrice.IsNegative() {
		return nil, fmt.Errorf("%w: purchase_price must not be negative", ErrInvalidHolding)
	}
	if input.PurchaseDate == "" {
		input.PurchaseDate = now.Format(model.DateLayout)
	}
	if err := validatePurchaseDate(input.PurchaseDate); err != nil {
		return nil, err
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate holding id: %w", err)
	}

	holding := &model.Holding{
		ID:            id,
		Weight:        input.Weight,
		PurchasePrice: input.PurchasePrice,
		PurchaseDate:  input.PurchaseDate,
		Notes:         input.Notes,
		CreatedAt:     now,
	}
	txn := buyTransaction(holding)

	if err := s.holdings.CreateWithTransaction(holding, txn); err != nil {
		return nil, err
	}

	logger.Info("Holding added", map[string]interface{}{
		"holding_id": holding.ID,
		"weight":     holding.Weight.String(),
		"price":      FormatRupiah(holding.PurchasePrice),
	})
	return holding, nil
}

func buyTransaction(h *model.Holding) *model.Transaction {
	return &model.Transaction{
		Type:      model.TransactionBuy,
		HoldingID: h.ID,
		Weight:    h.Weight,
		Price:     h.PurchasePrice,
		Date:      h.PurchaseDate,
		Timestamp: h.CreatedAt,
	}
}

// UpdateHolding nil 이 아닌 필드만 변경한다. 거래 원장은 남기지 않는다
func (s *portfolioService) UpdateHolding(id string, update model.HoldingUpdate) (*model.Holding, error) {
	holding, err := s.holdings.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHoldingNotFound
		}
		return nil, err
	}

	if update.IsEmpty() {
		return holding, nil
	}

	if update.Weight != nil {
		if !update.Weight.IsPositive() {
			return nil, fmt.Errorf("%w: weight must be positive", ErrInvalidHolding)
		}
		holding.Weight = *update.Weight
	}
	if update.PurchasePrice != nil {
		if update.PurchasePrice.IsNegative() {
			return nil, fmt.Errorf("%w: purchase_price must not be negative", ErrInvalidHolding)
		}
		holding.PurchasePrice = *update.PurchasePrice
	}
	if update.PurchaseDate != nil {
		if err := validatePurchaseDate(*update.PurchaseDate); err != nil {
			return nil, err
		}
		holding.PurchaseDate = *update.PurchaseDate
	}
	if update.Notes != nil {
		holding.Notes = *update.Notes
	}

	if err := s.holdings.Update(holding); err != nil {
		return nil, err
	}
	return holding, nil
}

// DeleteHolding 보유분을 삭제한다. sellPrice 가 0보다 크면 SELL, 아니면 DELETE 거래를 남긴다
func (s *portfolioService) DeleteHolding(id string, sellPrice decimal.Decimal) (*model.Transaction, error) {
	holding, err := s.holdings.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHoldingNotFound
		}
		return nil, err
	}

	now := s.now()
	txn := &model.Transaction{
		Type:      model.TransactionDelete,
		HoldingID: holding.ID,
		Weight:    holding.Weight,
		Price:     decimal.Zero,
		Date:      now.Format(model.DateLayout),
		Timestamp: now,
	}
	if sellPrice.IsPositive() {
		txn.Type = model.TransactionSell
		txn.Price = sellPrice
	}

	if err := s.holdings.DeleteWithTransaction(holding, txn); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHoldingNotFound
		}
		return nil, err
	}

	logger.Info("Holding removed", map[string]interface{}{
		"holding_id": holding.ID,
		"type":       txn.Type,
	})
	return txn, nil
}

// GetSummary 현재 시세로 포트폴리오를 평가한다
func (s *portfolioService) GetSummary(ctx context.Context) (*model.PortfolioSummary, error) {
	portfolio, err := s.GetPortfolio()
	if err != nil {
		return nil, err
	}

	summary, err := Valuate(portfolio.Holdings, s.prices.Fetch(ctx))
	if err != nil {
		return nil, err
	}
	summary.Transactions = portfolio.Transactions
	return summary, nil
}
