package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/internal/app/repository"
	"github.com/ikkim/gold-portfolio-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	maxImportErrors   = 10
	maxImportQuantity = 1000
)

var (
	ErrUnsupportedImportFormat = errors.New("unsupported file format. Use CSV or Excel (.xlsx)")
	ErrEmptyImportFile         = errors.New("import file has no header row")
	ErrArchiveDisabled         = errors.New("export archive storage is not configured")
)

// 가져오기 열 이름 후보 (소문자, 앞에서부터 우선)
var (
	weightColumns   = []string{"weight", "berat", "gram", "gr"}
	priceColumns    = []string{"purchase price", "purchase_price", "price", "harga", "harga_beli", "cost", "total purchase cost", "total_purchase_cost"}
	dateColumns     = []string{"purchase date", "purchase_date", "date", "tanggal", "tanggal_beli"}
	notesColumns    = []string{"notes", "note", "catatan", "keterangan", "type", "jenis"}
	quantityColumns = []string{"quantity", "qty", "jumlah"}
)

var exportHeader = []string{"Purchase Date", "Weight", "Quantity", "Purchase Price", "Notes"}

// 가져오기 파일에서 허용하는 날짜 형식
var importDateLayouts = []string{model.DateLayout, "2006/01/02", "02-01-2006", "02/01/2006"}

var (
	dotGrouped   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	commaGrouped = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
)

// ImportResult 가져오기 결과. Errors 는 최대 10개
type ImportResult struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

// ArchiveResult 내보내기 보관 결과
type ArchiveResult struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Holdings  int       `json:"holdings"`
}

// ExportArchiver 내보낸 파일을 외부 저장소에 올린다
type ExportArchiver interface {
	Upload(ctx context.Context, key, contentType string, body []byte) error
	PresignGet(ctx context.Context, key string) (url string, expiresAt time.Time, err error)
	ObjectKey(filename string) string
}

// HoldingTransferService 보유분 가져오기/내보내기
type HoldingTransferService interface {
	Import(filename string, r io.Reader) (*ImportResult, error)
	ExportCSV(w io.Writer) (int, error)
	ArchiveCSV(ctx context.Context) (*ArchiveResult, error)
}

type holdingTransferService struct {
	holdings repository.HoldingRepository
	archiver ExportArchiver
	now      func() time.Time
	newID    func() (string, error)
}

// NewHoldingTransferService archiver 가 nil 이면 보관 기능은 ErrArchiveDisabled 를 반환한다
func NewHoldingTransferService(holdings repository.HoldingRepository, archiver ExportArchiver) HoldingTransferService {
	return &holdingTransferService{
		holdings: holdings,
		archiver: archiver,
		now:      model.NowInZone,
		newID:    newHoldingID,
	}
}

// Import CSV 또는 XLSX 파일에서 보유분을 가져온다.
// 행 단위 오류는 결과에 모으고, 읽을 수 있는 행은 한 트랜잭션으로 저장한다
func (s *holdingTransferService) Import(filename string, r io.Reader) (*ImportResult, error) {
	var (
		rows []map[string]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = readCSVRows(r)
	case ".xlsx", ".xlsm":
		rows, err = readXLSXRows(r)
	default:
		return nil, ErrUnsupportedImportFormat
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &ImportResult{Errors: []string{}}
	var (
		holdings []model.Holding
		txns     []model.Transaction
		allErrs  int
	)

	for i, row := range rows {
		rowNum := i + 2 // 1행은 헤더
		parsed, quantity, err := parseImportRow(row, now)
		if err != nil {
			allErrs++
			if len(result.Errors) < maxImportErrors {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", rowNum, err.Error()))
			}
			continue
		}

		for q := 0; q < quantity; q++ {
			id, err := s.newID()
			if err != nil {
				return nil, fmt.Errorf("generate holding id: %w", err)
			}
			h := parsed
			h.ID = id
			h.CreatedAt = now
			holdings = append(holdings, h)
			txns = append(txns, *buyTransaction(&h))
		}
	}

	if err := s.holdings.CreateBatch(holdings, txns); err != nil {
		return nil, err
	}
	result.Imported = len(holdings)

	logger.Info("Holdings imported", map[string]interface{}{
		"file":     filename,
		"rows":     len(rows),
		"imported": result.Imported,
		"errors":   allErrs,
	})
	return result, nil
}

func readCSVRows(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyImportFile
	}
	// Excel 이 저장한 UTF-8 BOM 제거
	records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	return recordsToRows(records), nil
}

func readXLSXRows(r io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(f.GetActiveSheetIndex())
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	if sheetName == "" {
		return nil, ErrEmptyImportFile
	}

	// 날짜 셀은 일련번호 그대로 받아 직접 변환한다
	records, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyImportFile
	}
	return recordsToRows(records), nil
}

// recordsToRows 첫 행을 소문자 헤더로 삼아 행을 맵으로 바꾼다. 빈 행은 건너뛴다
func recordsToRows(records [][]string) []map[string]string {
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		blank := true
		for i, name := range header {
			if name == "" || i >= len(rec) {
				continue
			}
			v := strings.TrimSpace(rec[i])
			if v != "" {
				blank = false
			}
			if _, seen := row[name]; !seen {
				row[name] = v
			}
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows
}

func findValue(row map[string]string, names []string) string {
	for _, name := range names {
		if v := row[name]; v != "" {
			return v
		}
	}
	return ""
}

func parseImportRow(row map[string]string, now time.Time) (model.Holding, int, error) {
	weightRaw := findValue(row, weightColumns)
	priceRaw := findValue(row, priceColumns)
	if weightRaw == "" || priceRaw == "" {
		return model.Holding{}, 0, errors.New("Missing weight or price")
	}

	weight, err := model.ParseGrams(weightRaw)
	if err != nil {
		return model.Holding{}, 0, err
	}
	price, err := parseImportPrice(priceRaw)
	if err != nil {
		return model.Holding{}, 0, err
	}

	date, err := parseImportDate(findValue(row, dateColumns), now)
	if err != nil {
		return model.Holding{}, 0, err
	}

	quantity := 1
	if raw := findValue(row, quantityColumns); raw != "" {
		if q, err := strconv.ParseFloat(raw, 64); err == nil {
			quantity = int(q)
		}
	}
	if quantity < 1 || quantity > maxImportQuantity {
		return model.Holding{}, 0, fmt.Errorf("quantity must be between 1 and %d, got %s", maxImportQuantity, findValue(row, quantityColumns))
	}

	notes := findValue(row, notesColumns)
	if notes == "" {
		notes = model.NewWeightKey(weight).String() + "g"
	}

	return model.Holding{
		Weight:        weight,
		PurchasePrice: price,
		PurchaseDate:  date,
		Notes:         notes,
	}, quantity, nil
}

// parseImportPrice "Rp42,118,275", "42.118.275", "42,118.50", 4500000 같은 표기를 모두 허용.
// 구분자가 둘 다 있으면 뒤에 오는 쪽을 소수점으로 본다
func parseImportPrice(raw string) (decimal.Decimal, error) {
	s := strings.NewReplacer("Rp", "", "rp", "", "IDR", "", `"`, "", "'", "", " ", "").Replace(raw)

	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")
	switch {
	case hasDot && hasComma:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasDot && dotGrouped.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	case hasComma && commaGrouped.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case hasComma:
		s = strings.Replace(s, ",", ".", 1)
	}

	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ParseError{Input: raw, Reason: "not a price"}
	}
	if price.IsNegative() {
		return decimal.Zero, &ParseError{Input: raw, Reason: "negative price"}
	}
	return price, nil
}

// parseImportDate 비어 있으면 오늘. Excel 날짜 일련번호도 허용
func parseImportDate(raw string, now time.Time) (string, error) {
	if raw == "" {
		return now.Format(model.DateLayout), nil
	}

	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return "", &ParseError{Input: raw, Reason: "not a date"}
		}
		return t.Format(model.DateLayout), nil
	}

	candidate := raw
	if len(candidate) > 10 {
		candidate = candidate[:10]
	}
	for _, layout := range importDateLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			return t.Format(model.DateLayout), nil
		}
	}
	return "", &ParseError{Input: raw, Reason: "not a date"}
}

// ExportCSV 매입일 순으로 보유분을 CSV 로 쓴다. 한 행이 보유분 하나이므로 Quantity 는 항상 1
func (s *holdingTransferService) ExportCSV(w io.Writer) (int, error) {
	holdings, err := s.holdings.FindAllByPurchaseDate()
	if err != nil {
		return 0, err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return 0, err
	}
	for _, h := range holdings {
		record := []string{
			h.PurchaseDate,
			model.NewWeightKey(h.Weight).String(),
			"1",
			h.PurchasePrice.String(),
			h.Notes,
		}
		if err := writer.Write(record); err != nil {
			return 0, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, err
	}
	return len(holdings), nil
}

// ArchiveCSV 내보낸 CSV 를 외부 저장소에 올리고 다운로드 URL 을 반환한다
func (s *holdingTransferService) ArchiveCSV(ctx context.Context) (*ArchiveResult, error) {
	if s.archiver == nil {
		return nil, ErrArchiveDisabled
	}

	var buf bytes.Buffer
	count, err := s.ExportCSV(&buf)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("gold_portfolio_%s.csv", s.now().Format("20060102_150405"))
	key := s.archiver.ObjectKey(filename)
	if err := s.archiver.Upload(ctx, key, "text/csv", buf.Bytes()); err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}

	url, expiresAt, err := s.archiver.PresignGet(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}

	logger.Info("Portfolio export archived", map[string]interface{}{
		"key":      key,
		"holdings": count,
	})
	return &ArchiveResult{Key: key, URL: url, ExpiresAt: expiresAt, Holdings: count}, nil
}
