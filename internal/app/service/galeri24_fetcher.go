package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/ikkim/gold-portfolio-backend/config"
	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/pkg/logger"
)

// ErrNoPriceData 페이지는 받았지만 시세표 영역이 없음 (사이트 연결 실패와 구분)
var ErrNoPriceData = errors.New("price table not found")

// PriceSource 현재 시세 조회. 실패도 PriceSnapshot(Success=false)로 반환하며 panic 하지 않는다
type PriceSource interface {
	Fetch(ctx context.Context) model.PriceSnapshot
}

// Galeri24 시세 페이지 구조
var (
	galeri24Section   = `div[id="GALERI 24"]`
	galeri24Grid      = []string{"grid", "divide-neutral-200", "border-neutral-200"}
	galeri24Row       = []string{"grid", "grid-cols-5", "divide-x", "lg:hover:bg-neutral-50", "transition-all"}
	galeri24NarrowCol = []string{"p-3", "col-span-1", "whitespace-nowrap", "w-fit"}
	galeri24WideCol   = []string{"p-3", "col-span-2", "whitespace-nowrap", "w-fit"}
)

// Galeri24Fetcher galeri24.co.id 시세 스크래퍼
type Galeri24Fetcher struct {
	client *resty.Client
	url    string
	now    func() time.Time
}

// NewGaleri24Fetcher 시세 스크래퍼 생성
func NewGaleri24Fetcher(cfg *config.ScraperConfig) *Galeri24Fetcher {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml")

	return &Galeri24Fetcher{
		client: client,
		url:    cfg.SourceURL,
		now:    time.Now,
	}
}

// Fetch 시세 페이지를 받아 무게별 시세표로 변환
func (f *Galeri24Fetcher) Fetch(ctx context.Context) (snapshot model.PriceSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Price fetch panicked", fmt.Errorf("%v", r), map[string]interface{}{
				"url": f.url,
			})
			snapshot = model.NewFailedSnapshot(fmt.Errorf("price fetch panicked: %v", r), false)
		}
	}()

	resp, err := f.client.R().SetContext(ctx).Get(f.url)
	if err != nil {
		logger.Warn("Failed to reach price source", map[string]interface{}{
			"url":   f.url,
			"error": err.Error(),
		})
		return model.NewFailedSnapshot(err, false)
	}
	if !resp.IsSuccess() {
		err := fmt.Errorf("unexpected status %d from %s", resp.StatusCode(), f.url)
		logger.Warn("Price source returned error status", map[string]interface{}{
			"url":    f.url,
			"status": resp.StatusCode(),
		})
		return model.NewFailedSnapshot(err, false)
	}

	quotes, err := ParseGaleri24(bytes.NewReader(resp.Body()))
	if err != nil {
		noData := errors.Is(err, ErrNoPriceData) || errors.Is(err, ErrParse)
		logger.Warn("Price table unreadable on source page", map[string]interface{}{
			"url":     f.url,
			"error":   err.Error(),
			"no_data": noData,
		})
		return model.NewFailedSnapshot(err, noData)
	}

	logger.Debug("Fetched gold prices", map[string]interface{}{
		"weights": len(quotes),
	})
	return model.NewSuccessSnapshot(f.now(), quotes)
}

// ParseGaleri24 HTML 에서 무게별 시세를 추출한다.
// 열이 정확히 3개가 아닌 행은 건너뛰고, 숫자를 읽을 수 없는 행이 있으면 표 전체를 실패로 본다 (ErrParse)
func ParseGaleri24(r io.Reader) (map[model.WeightKey]model.PriceQuote, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("read price page: %w", err)
	}

	section := doc.Find(galeri24Section).First()
	if section.Length() == 0 {
		return nil, ErrNoPriceData
	}

	grid := section.Find("div").FilterFunction(withClasses(galeri24Grid)).First()
	if grid.Length() == 0 {
		return nil, ErrNoPriceData
	}

	quotes := make(map[model.WeightKey]model.PriceQuote)
	var rowErr error
	grid.Find("div").FilterFunction(withClasses(galeri24Row)).EachWithBreak(func(i int, row *goquery.Selection) bool {
		cols := columnTexts(row)
		if len(cols) != 3 {
			return true
		}

		quote, err := parseQuoteRow(cols)
		if err != nil {
			rowErr = fmt.Errorf("price row %d: %w", i, err)
			return false
		}
		quotes[model.NewWeightKey(quote.Weight)] = quote
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	return quotes, nil
}

// columnTexts 좁은 열(무게) 다음 넓은 열(판매가, 매입가) 순서
func columnTexts(row *goquery.Selection) []string {
	var texts []string
	for _, classes := range [][]string{galeri24NarrowCol, galeri24WideCol} {
		row.Find("div").FilterFunction(withClasses(classes)).Each(func(_ int, col *goquery.Selection) {
			texts = append(texts, strings.TrimSpace(col.Text()))
		})
	}
	return texts
}

func parseQuoteRow(cols []string) (model.PriceQuote, error) {
	weight, err := model.ParseGrams(cols[0])
	if err != nil {
		return model.PriceQuote{}, &ParseError{Input: cols[0], Reason: err.Error()}
	}
	sell, err := NormalizePrice(cols[1])
	if err != nil {
		return model.PriceQuote{}, err
	}
	buy, err := NormalizePrice(cols[2])
	if err != nil {
		return model.PriceQuote{}, err
	}
	return model.NewPriceQuote(weight, sell, buy), nil
}

func withClasses(classes []string) func(int, *goquery.Selection) bool {
	return func(_ int, s *goquery.Selection) bool {
		for _, c := range classes {
			if !s.HasClass(c) {
				return false
			}
		}
		return true
	}
}
