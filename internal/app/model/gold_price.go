package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 시세 원본(Galeri24)은 WIB 기준이므로 UTC+7 고정 시간대를 사용한다
var JakartaZone = time.FixedZone("WIB", 7*60*60)

const (
	// ZoneLabel API 응답에 표기되는 시간대
	ZoneLabel = "Asia/Jakarta (GMT+7)"
	// TimestampLayout last_update 표기 형식
	TimestampLayout = "2006-01-02 15:04:05"
	// DateLayout 매입일/거래일 형식
	DateLayout = "2006-01-02"
)

func init() {
	// 금액은 기존 API처럼 JSON 숫자로 내보낸다
	decimal.MarshalJSONWithoutQuotes = true
}

// NowInZone UTC+7 기준 현재 시각
func NowInZone() time.Time {
	return time.Now().In(JakartaZone)
}

// StoredTime 저장용 시각. SQLite 는 시각을 텍스트로 비교하므로 UTC+7 초 단위로 통일한다
func StoredTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.In(JakartaZone).Truncate(time.Second)
}

// WeightKey 그램 무게를 밀리그램 정수로 고정한 시세표 키
type WeightKey int64

// OneGram 1그램 키
const OneGram WeightKey = 1000

// oneGramSpellings 과거 데이터에서 1그램 키가 쓰인 표기 순서
var oneGramSpellings = []string{"1.0", "1"}

var ErrInvalidWeight = errors.New("invalid weight")

// NewWeightKey 그램 단위 decimal 을 키로 변환 (밀리그램 미만은 반올림)
func NewWeightKey(grams decimal.Decimal) WeightKey {
	return WeightKey(grams.Shift(3).Round(0).IntPart())
}

// ParseWeightKey "1", "1.0", "0,5", "5 gr", "10g" 형태를 모두 허용
func ParseWeightKey(s string) (WeightKey, error) {
	grams, err := ParseGrams(s)
	if err != nil {
		return 0, err
	}
	return NewWeightKey(grams), nil
}

// ParseGrams 단위 표기를 제거하고 양수 그램 값을 파싱
func ParseGrams(s string) (decimal.Decimal, error) {
	cleaned := strings.ToLower(strings.TrimSpace(s))
	for _, unit := range []string{"gram", "gr", "g"} {
		if strings.HasSuffix(cleaned, unit) {
			cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, unit))
			break
		}
	}
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	grams, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidWeight, s)
	}
	if !grams.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q must be positive", ErrInvalidWeight, s)
	}
	return grams, nil
}

// Grams 키를 그램 decimal 로 복원
func (k WeightKey) Grams() decimal.Decimal {
	return decimal.New(int64(k), -3)
}

// String 정수 무게는 "1.0" 형태로 표기 (기존 키 표기와 동일)
func (k WeightKey) String() string {
	g := k.Grams()
	if g.IsInteger() {
		return g.StringFixed(1)
	}
	return g.String()
}

func (k WeightKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *WeightKey) UnmarshalText(text []byte) error {
	parsed, err := ParseWeightKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// PriceQuote 특정 무게의 판매가/매입가
type PriceQuote struct {
	Weight    decimal.Decimal `json:"weight"`
	Sell      decimal.Decimal `json:"sell"`
	Buy       decimal.Decimal `json:"buy"`
	SpreadPct float64         `json:"spread_pct"`
}

// NewPriceQuote 스프레드(%)를 계산해 시세를 만든다. 매입가가 0이면 스프레드는 0
func NewPriceQuote(weight, sell, buy decimal.Decimal) PriceQuote {
	return PriceQuote{
		Weight:    weight,
		Sell:      sell,
		Buy:       buy,
		SpreadPct: SpreadPct(sell, buy),
	}
}

// SpreadPct (sell-buy)/buy*100, 소수 둘째 자리 반올림
func SpreadPct(sell, buy decimal.Decimal) float64 {
	if buy.IsZero() {
		return 0
	}
	return sell.Sub(buy).Div(buy).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// PriceSnapshot 한 번의 시세 조회 결과. 생성 후 변경하지 않는다
type PriceSnapshot struct {
	Success    bool                     `json:"success"`
	LastUpdate string                   `json:"last_update,omitempty"`
	Timezone   string                   `json:"timezone,omitempty"`
	Data       map[WeightKey]PriceQuote `json:"data,omitempty"`
	Error      string                   `json:"error,omitempty"`
	NoData     bool                     `json:"no_data,omitempty"` // 사이트 응답은 있었으나 시세표가 없음
	FetchedAt  time.Time                `json:"-"`
}

// NewSuccessSnapshot 조회 시각을 UTC+7 로 기록한 성공 결과
func NewSuccessSnapshot(fetchedAt time.Time, data map[WeightKey]PriceQuote) PriceSnapshot {
	local := fetchedAt.In(JakartaZone)
	return PriceSnapshot{
		Success:    true,
		LastUpdate: local.Format(TimestampLayout),
		Timezone:   ZoneLabel,
		Data:       data,
		FetchedAt:  local,
	}
}

// NewFailedSnapshot 실패 결과
func NewFailedSnapshot(err error, noData bool) PriceSnapshot {
	return PriceSnapshot{
		Success: false,
		Error:   err.Error(),
		NoData:  noData,
	}
}

// Err 실패한 조회면 에러를 반환
func (s PriceSnapshot) Err() error {
	if s.Success {
		return nil
	}
	if s.Error == "" {
		return errors.New("price fetch failed")
	}
	return errors.New(s.Error)
}

// Quote 정확히 일치하는 무게의 시세
func (s PriceSnapshot) Quote(weight WeightKey) (PriceQuote, bool) {
	q, ok := s.Data[weight]
	return q, ok
}

// QuoteBySpelling 표기 후보를 순서대로 시도
func (s PriceSnapshot) QuoteBySpelling(spellings ...string) (PriceQuote, bool) {
	for _, spelling := range spellings {
		key, err := ParseWeightKey(spelling)
		if err != nil {
			continue
		}
		if q, ok := s.Data[key]; ok {
			return q, true
		}
	}
	return PriceQuote{}, false
}

// OneGram 1그램 시세 ("1.0" -> "1" 순서)
func (s PriceSnapshot) OneGram() (PriceQuote, bool) {
	return s.QuoteBySpelling(oneGramSpellings...)
}

// PriceHistory 무게별 시세 변경 이력 (변경 시에만 추가, 수정/삭제 없음)
type PriceHistory struct {
	ID         uint            `gorm:"primarykey" json:"id"`
	Weight     decimal.Decimal `gorm:"type:decimal(12,3);not null;index:idx_price_histories_weight_recorded,priority:1" json:"weight"`
	SellPrice  decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"sell_price"`
	BuyPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"buy_price"`
	RecordedAt time.Time       `gorm:"not null;index:idx_price_histories_weight_recorded,priority:2" json:"recorded_at"`
}

func (PriceHistory) TableName() string {
	return "price_histories"
}

// BeforeCreate 기록 시각을 저장 형태로 맞춘다 (복제본에서 가져온 행 포함)
func (h *PriceHistory) BeforeCreate(tx *gorm.DB) error {
	h.RecordedAt = StoredTime(h.RecordedAt)
	return nil
}

// SameAs 판매가/매입가가 모두 같으면 true
func (h *PriceHistory) SameAs(sell, buy decimal.Decimal) bool {
	return h.SellPrice.Equal(sell) && h.BuyPrice.Equal(buy)
}
