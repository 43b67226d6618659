package controller

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/internal/app/service"
	apperrors "github.com/ikkim/gold-portfolio-backend/internal/errors"
	"github.com/ikkim/gold-portfolio-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

const (
	exportFilename = "gold_portfolio.csv"
	maxImportSize  = 10 << 20
)

// PortfolioController 포트폴리오 컨트롤러
type PortfolioController struct {
	portfolio service.PortfolioService
	transfer  service.HoldingTransferService
}

// NewPortfolioController 포트폴리오 컨트롤러 생성
func NewPortfolioController(portfolio service.PortfolioService, transfer service.HoldingTransferService) *PortfolioController {
	return &PortfolioController{
		portfolio: portfolio,
		transfer:  transfer,
	}
}

// AddHoldingRequest 보유분 추가 요청. 금액은 숫자와 문자열 모두 허용
type AddHoldingRequest struct {
	Weight        *decimal.Decimal `json:"weight"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	PurchaseDate  string           `json:"purchase_date"`
	Notes         string           `json:"notes"`
}

// UpdateHoldingRequest 보유분 수정 요청. 0 이나 빈 값은 무시
type UpdateHoldingRequest struct {
	Weight        *decimal.Decimal `json:"weight"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	PurchaseDate  string           `json:"purchase_date"`
	Notes         string           `json:"notes"`
}

// DeleteHoldingRequest 매도가가 0보다 크면 매도로 기록
type DeleteHoldingRequest struct {
	SellPrice *decimal.Decimal `json:"sell_price"`
}

// GetPortfolio 보유 목록과 거래 원장 조회
// @Summary 포트폴리오 조회
// @Tags portfolio
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/portfolio [get]
func (ctrl *PortfolioController) GetPortfolio(c *gin.Context) {
	portfolio, err := ctrl.portfolio.GetPortfolio()
	if err != nil {
		logger.Error("Failed to load portfolio", err)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "portfolio")
		return
	}
	if portfolio.Holdings == nil {
		portfolio.Holdings = []model.Holding{}
	}
	if portfolio.Transactions == nil {
		portfolio.Transactions = []model.Transaction{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    portfolio,
	})
}

// AddHolding 보유분 추가
// @Summary 보유분 추가
// @Description 보유분을 추가하고 BUY 거래를 기록합니다
// @Tags portfolio
// @Accept json
// @Produce json
// @Param request body AddHoldingRequest true "보유분"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/portfolio/holdings [post]
func (ctrl *PortfolioController) AddHolding(c *gin.Context) {
	var req AddHoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request body")
		return
	}

	input := service.HoldingInput{
		PurchaseDate: req.PurchaseDate,
		Notes:        req.Notes,
	}
	if req.Weight != nil {
		input.Weight = *req.Weight
	}
	if req.PurchasePrice != nil {
		input.PurchasePrice = *req.PurchasePrice
	}

	holding, err := ctrl.portfolio.AddHolding(input)
	if err != nil {
		ctrl.respondHoldingError(c, err, "add holding")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    holding,
	})
}

// UpdateHolding 보유분 수정
// @Summary 보유분 수정
// @Tags portfolio
// @Accept json
// @Produce json
// @Param id path string true "보유분 ID"
// @Param request body UpdateHoldingRequest true "수정할 값"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/portfolio/holdings/{id} [put]
func (ctrl *PortfolioController) UpdateHolding(c *gin.Context) {
	var req UpdateHoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request body")
		return
	}

	holding, err := ctrl.portfolio.UpdateHolding(c.Param("id"), req.toUpdate())
	if err != nil {
		ctrl.respondHoldingError(c, err, "update holding")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    holding,
	})
}

func (r UpdateHoldingRequest) toUpdate() model.HoldingUpdate {
	var update model.HoldingUpdate
	if r.Weight != nil && !r.Weight.IsZero() {
		update.Weight = r.Weight
	}
	if r.PurchasePrice != nil && !r.PurchasePrice.IsZero() {
		update.PurchasePrice = r.PurchasePrice
	}
	if date := strings.TrimSpace(r.PurchaseDate); date != "" {
		update.PurchaseDate = &date
	}
	if r.Notes != "" {
		notes := r.Notes
		update.Notes = &notes
	}
	return update
}

// DeleteHolding 보유분 매도/삭제
// @Summary 보유분 매도 또는 삭제
// @Description sell_price 가 0보다 크면 SELL, 아니면 DELETE 거래를 기록합니다
// @Tags portfolio
// @Accept json
// @Produce json
// @Param id path string true "보유분 ID"
// @Param request body DeleteHoldingRequest false "매도가"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/portfolio/holdings/{id} [delete]
func (ctrl *PortfolioController) DeleteHolding(c *gin.Context) {
	var req DeleteHoldingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request body")
			return
		}
	}

	sellPrice := decimal.Zero
	if req.SellPrice != nil {
		sellPrice = *req.SellPrice
	}

	txn, err := ctrl.portfolio.DeleteHolding(c.Param("id"), sellPrice)
	if err != nil {
		ctrl.respondHoldingError(c, err, "delete holding")
		return
	}

	message := "Holding deleted successfully"
	if txn.Type == model.TransactionSell {
		message = "Holding sold successfully"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
	})
}

// GetSummary 현재 시세 기준 포트폴리오 평가
// @Summary 포트폴리오 평가
// @Description 시세 조회 실패 시에도 200 으로 응답하며 success=false 를 반환합니다
// @Tags portfolio
// @Produce json
// @Success 200 {object} model.PortfolioSummary
// @Router /api/portfolio/summary [get]
func (ctrl *PortfolioController) GetSummary(c *gin.Context) {
	summary, err := ctrl.portfolio.GetSummary(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrPricesUnavailable) {
			c.JSON(http.StatusOK, apperrors.ErrorResponse{
				Success: false,
				Error:   "Could not fetch current prices",
				Code:    apperrors.PriceUnavailable,
			})
			return
		}
		logger.Error("Failed to build portfolio summary", err)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "portfolio summary")
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ExportCSV 보유분 CSV 다운로드
// @Summary 포트폴리오 CSV 내보내기
// @Tags portfolio
// @Produce text/csv
// @Success 200 {file} file
// @Router /api/portfolio/export [get]
func (ctrl *PortfolioController) ExportCSV(c *gin.Context) {
	var buf bytes.Buffer
	if _, err := ctrl.transfer.ExportCSV(&buf); err != nil {
		logger.Error("Failed to export portfolio", err)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "export")
		return
	}

	c.Header("Content-Disposition", "attachment;filename="+exportFilename)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// ArchiveExport CSV 를 S3 에 보관하고 다운로드 URL 반환
// @Summary 포트폴리오 CSV 보관
// @Tags portfolio
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/portfolio/export/archive [post]
func (ctrl *PortfolioController) ArchiveExport(c *gin.Context) {
	result, err := ctrl.transfer.ArchiveCSV(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrArchiveDisabled) {
			apperrors.ServiceUnavailable(c, apperrors.ExportArchiveDisabled, "Export archive is not configured")
			return
		}
		logger.Error("Failed to archive portfolio export", err)
		apperrors.RespondWithError(c, http.StatusBadGateway, apperrors.ExportArchiveFailed, "Failed to archive export")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// ImportHoldings CSV/XLSX 파일에서 보유분 가져오기
// @Summary 보유분 가져오기
// @Description multipart "file" 필드로 CSV 또는 XLSX 파일을 받아 보유분을 추가합니다
// @Tags portfolio
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV 또는 XLSX"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/portfolio/import [post]
func (ctrl *PortfolioController) ImportHoldings(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		apperrors.BadRequest(c, apperrors.ImportFileRequired, "No file uploaded")
		return
	}
	if fileHeader.Filename == "" {
		apperrors.BadRequest(c, apperrors.ImportFileRequired, "No file selected")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		apperrors.InternalError(c, "Failed to read uploaded file")
		return
	}
	defer file.Close()

	result, err := ctrl.transfer.Import(fileHeader.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedImportFormat):
			apperrors.BadRequest(c, apperrors.ImportUnsupportedType, err.Error())
		case errors.Is(err, service.ErrEmptyImportFile):
			apperrors.BadRequest(c, apperrors.ImportEmptyFile, err.Error())
		default:
			logger.Error("Failed to import holdings", err, logger.Fields{"filename": fileHeader.Filename})
			apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "import")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"imported": result.Imported,
		"errors":   result.Errors,
	})
}

// respondHoldingError 서비스 에러를 HTTP 응답으로 변환
func (ctrl *PortfolioController) respondHoldingError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, service.ErrHoldingNotFound):
		apperrors.NotFound(c, apperrors.HoldingNotFound, "Holding not found")
	case errors.Is(err, service.ErrInvalidHolding):
		apperrors.BadRequest(c, apperrors.HoldingInvalid, err.Error())
	default:
		logger.Error("Holding operation failed", err, logger.Fields{"operation": context})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, context)
	}
}
