package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/internal/app/service"
	apperrors "github.com/ikkim/gold-portfolio-backend/internal/errors"
	"github.com/ikkim/gold-portfolio-backend/pkg/logger"
)

// PriceController 금 시세 컨트롤러
type PriceController struct {
	prices       service.PriceSource
	priceHistory service.PriceHistoryService
}

// NewPriceController 금 시세 컨트롤러 생성
func NewPriceController(prices service.PriceSource, priceHistory service.PriceHistoryService) *PriceController {
	return &PriceController{
		prices:       prices,
		priceHistory: priceHistory,
	}
}

// GetPrices 현재 시세 조회
// @Summary 현재 금 시세 조회
// @Description Galeri24 시세표를 조회합니다. 조회 실패도 200 으로 응답하며 success=false 로 구분합니다
// @Tags prices
// @Produce json
// @Success 200 {object} model.PriceSnapshot
// @Router /api/prices [get]
func (ctrl *PriceController) GetPrices(c *gin.Context) {
	snapshot := ctrl.prices.Fetch(c.Request.Context())
	c.JSON(http.StatusOK, snapshot)
}

// RecordPrices 시세 기록 주기를 즉시 한 번 실행
// @Summary 시세 즉시 기록
// @Tags prices
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Router /api/prices/record [post]
func (ctrl *PriceController) RecordPrices(c *gin.Context) {
	result, err := ctrl.priceHistory.RecordHourly(c.Request.Context())
	if err != nil {
		logger.Warn("Manual price record failed", logger.Fields{"error": err.Error()})
		apperrors.RespondWithError(c, http.StatusBadGateway, apperrors.PriceUnavailable, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetPriceHistory 시세 이력 조회
// @Summary 시세 이력 조회
// @Description 최근 N일(1~365, 기본 30) 동안의 시세 변경 이력을 오래된 순으로 조회합니다
// @Tags prices
// @Produce json
// @Param days query int false "조회 기간(일)" default(30)
// @Param weight query string false "무게(그램)" default(1)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/price-history [get]
func (ctrl *PriceController) GetPriceHistory(c *gin.Context) {
	days, err := strconv.Atoi(c.Query("days"))
	if err != nil {
		days = service.DefaultHistoryDays
	}

	weight, err := model.ParseGrams(c.DefaultQuery("weight", "1"))
	if err != nil {
		apperrors.BadRequest(c, apperrors.PriceInvalidWeight, "Invalid weight")
		return
	}

	history, days, err := ctrl.priceHistory.GetHistory(weight, days)
	if err != nil {
		logger.Error("Failed to load price history", err)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "price history")
		return
	}
	if history == nil {
		history = []model.PriceHistory{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"days":    days,
		"count":   len(history),
		"data":    history,
	})
}
