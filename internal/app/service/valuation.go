package service

import (
	"errors"
	"fmt"

	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/shopspring/decimal"
)

// ErrPricesUnavailable 평가에 쓸 현재 시세를 가져오지 못함
var ErrPricesUnavailable = errors.New("could not fetch current prices")

var hundred = decimal.NewFromInt(100)

// Valuate 보유분을 현재 시세로 평가한다.
// 같은 무게의 시세가 있으면 그대로, 없으면 1그램 시세 x 무게, 그것도 없으면 0 으로 평가한다.
// 손익은 매입가(buy) 기준이며 실패한 시세로는 평가하지 않는다
func Valuate(holdings []model.Holding, snapshot model.PriceSnapshot) (*model.PortfolioSummary, error) {
	if err := snapshot.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPricesUnavailable, err)
	}

	perGram, hasPerGram := snapshot.OneGram()

	var totalWeight, totalCost, totalValue decimal.Decimal
	valued := make([]model.HoldingValuation, 0, len(holdings))

	for _, h := range holdings {
		var sell, buy decimal.Decimal
		if q, ok := exactQuote(snapshot, h.Weight); ok {
			sell, buy = q.Sell, q.Buy
		} else if hasPerGram {
			sell = perGram.Sell.Mul(h.Weight)
			buy = perGram.Buy.Mul(h.Weight)
		}

		profitLoss := buy.Sub(h.PurchasePrice)
		valued = append(valued, model.HoldingValuation{
			Holding:       h,
			CurrentSell:   sell,
			CurrentBuy:    buy,
			ProfitLoss:    profitLoss,
			ProfitLossPct: percentOf(profitLoss, h.PurchasePrice),
		})

		totalWeight = totalWeight.Add(h.Weight)
		totalCost = totalCost.Add(h.PurchasePrice)
		totalValue = totalValue.Add(buy)
	}

	totalProfitLoss := totalValue.Sub(totalCost)

	return &model.PortfolioSummary{
		Success:      true,
		PricesUpdate: snapshot.LastUpdate,
		Summary: model.PortfolioTotals{
			TotalWeight:        totalWeight.Round(2),
			TotalCost:          totalCost.Round(0),
			TotalCurrentValue:  totalValue.Round(0),
			TotalProfitLoss:    totalProfitLoss.Round(0),
			TotalProfitLossPct: percentOf(totalProfitLoss, totalCost),
			HoldingsCount:      len(holdings),
		},
		Holdings: valued,
	}, nil
}

// exactQuote 밀리그램 키로 정확히 표현되는 무게일 때만 같은 무게 시세를 쓴다
func exactQuote(snapshot model.PriceSnapshot, weight decimal.Decimal) (model.PriceQuote, bool) {
	key := model.NewWeightKey(weight)
	if !key.Grams().Equal(weight) {
		return model.PriceQuote{}, false
	}
	return snapshot.Quote(key)
}

// percentOf diff/base*100, 소수 둘째 자리. base 가 0 이하이면 0
func percentOf(diff, base decimal.Decimal) float64 {
	if !base.IsPositive() {
		return 0
	}
	return diff.Div(base).Mul(hundred).Round(2).InexactFloat64()
}
