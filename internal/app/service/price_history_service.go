package service

import (
	"context"
	"errors"
	"time"

	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/internal/app/repository"
	"github.com/ikkim/gold-portfolio-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

const (
	DefaultHistoryDays = 30
	MaxHistoryDays     = 365
)

var ErrOneGramQuoteMissing = errors.New("1 gram quote missing from price table")

// RecordResult 한 번의 시세 기록 주기 결과
type RecordResult struct {
	Changed    bool      `json:"changed"`
	Weight     string    `json:"weight"`
	Sell       float64   `json:"sell"`
	Buy        float64   `json:"buy"`
	RecordedAt time.Time `json:"recorded_at"`
}

// PriceHistoryService 시세 이력 기록/조회
type PriceHistoryService interface {
	RecordIfChanged(weight, sell, buy decimal.Decimal) (bool, error)
	GetHistory(weight decimal.Decimal, days int) ([]model.PriceHistory, int, error)
	RecordHourly(ctx context.Context) (*RecordResult, error)
}

type priceHistoryService struct {
	repo   repository.PriceHistoryRepository
	source PriceSource
	now    func() time.Time
}

// NewPriceHistoryService 시세 이력 서비스 생성. 이력은 항상 원본 시세로 기록하므로 캐시는 벗겨낸다
func NewPriceHistoryService(repo repository.PriceHistoryRepository, source PriceSource) PriceHistoryService {
	return &priceHistoryService{
		repo:   repo,
		source: LiveSource(source),
		now:    model.NowInZone,
	}
}

// RecordIfChanged 직전 기록과 가격이 다를 때만 새 이력을 남긴다
func (s *priceHistoryService) RecordIfChanged(weight, sell, buy decimal.Decimal) (bool, error) {
	entry := &model.PriceHistory{
		Weight:     weight,
		SellPrice:  sell,
		BuyPrice:   buy,
		RecordedAt: s.now(),
	}
	return s.repo.CreateIfChanged(entry)
}

// ClampHistoryDays 조회 기간을 1~365일로 제한
func ClampHistoryDays(days int) int {
	if days < 1 {
		return 1
	}
	if days > MaxHistoryDays {
		return MaxHistoryDays
	}
	return days
}

// GetHistory 최근 days 일 이력 (오래된 순). 실제 적용된 기간도 함께 반환
func (s *priceHistoryService) GetHistory(weight decimal.Decimal, days int) ([]model.PriceHistory, int, error) {
	days = ClampHistoryDays(days)
	since := s.now().AddDate(0, 0, -days)

	entries, err := s.repo.FindByWeightSince(weight, since)
	if err != nil {
		return nil, days, err
	}
	for i := range entries {
		entries[i].RecordedAt = entries[i].RecordedAt.In(model.JakartaZone)
	}
	return entries, days, nil
}

// RecordHourly 시세를 조회해 1그램 시세를 기록한다.
// 조회 실패나 1그램 시세 누락은 에러로 반환하고 아무것도 쓰지 않는다
func (s *priceHistoryService) RecordHourly(ctx context.Context) (*RecordResult, error) {
	snapshot := s.source.Fetch(ctx)
	if err := snapshot.Err(); err != nil {
		return nil, err
	}

	quote, ok := snapshot.OneGram()
	if !ok {
		return nil, ErrOneGramQuoteMissing
	}

	weight := model.OneGram.Grams()
	changed, err := s.RecordIfChanged(weight, quote.Sell, quote.Buy)
	if err != nil {
		return nil, err
	}

	result := &RecordResult{
		Changed:    changed,
		Weight:     model.OneGram.String(),
		Sell:       quote.Sell.InexactFloat64(),
		Buy:        quote.Buy.InexactFloat64(),
		RecordedAt: s.now(),
	}

	fields := map[string]interface{}{
		"sell": FormatRupiah(quote.Sell),
		"buy":  FormatRupiah(quote.Buy),
		"at":   result.RecordedAt.Format(model.TimestampLayout),
	}
	if changed {
		logger.Info("Price updated", fields)
	} else {
		logger.Info("Price unchanged", fields)
	}

	return result, nil
}
