package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ErrParse 가격/무게 문자열을 해석할 수 없음
var ErrParse = errors.New("parse error")

// ParseError 해석에 실패한 입력을 담는다
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// rupiah Rp 접두사, "." 천 단위 구분, 소수 없음
var rupiah = money.NewFormatter(0, ",", ".", "Rp", "$1")

// NormalizePrice "Rp1.041.000", "1,041,000" 같은 통화 문자열을 정수 금액으로 변환한다.
// 숫자 이외의 문자는 모두 버리며 (맨 앞 부호 제외) 소수 단위는 없다
func NormalizePrice(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)

	var b strings.Builder
	b.Grow(len(trimmed))
	for i, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case i == 0 && (r == '-' || r == '+'):
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if strings.TrimLeft(cleaned, "+-") == "" {
		return decimal.Zero, &ParseError{Input: s, Reason: "no digits"}
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &ParseError{Input: s, Reason: err.Error()}
	}
	return amount, nil
}

// FormatRupiah 정수 루피아 표기 (소수점 이하 반올림)
func FormatRupiah(amount decimal.Decimal) string {
	return rupiah.Format(amount.Round(0).IntPart())
}
