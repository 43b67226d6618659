package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/internal/app/repository"
	"github.com/ikkim/gold-portfolio-backend/internal/app/service"
	"github.com/ikkim/gold-portfolio-backend/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryArchiver struct {
	objects map[string][]byte
}

func (a *memoryArchiver) ObjectKey(filename string) string { return "exports/" + filename }

func (a *memoryArchiver) Upload(_ context.Context, key, _ string, body []byte) error {
	a.objects[key] = body
	return nil
}

func (a *memoryArchiver) PresignGet(_ context.Context, key string) (string, time.Time, error) {
	return "https://bucket.example/" + key, time.Now().Add(15 * time.Minute), nil
}

type portfolioTestEnv struct {
	router       *gin.Engine
	source       *stubPriceSource
	holdings     repository.HoldingRepository
	transactions repository.TransactionRepository
}

func setupPortfolioControllerTest(t *testing.T, archiver service.ExportArchiver) *portfolioTestEnv {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	env := &portfolioTestEnv{
		source:       &stubPriceSource{snapshot: oneGramSnapshot(1100000, 1000000)},
		holdings:     repository.NewHoldingRepository(testDB),
		transactions: repository.NewTransactionRepository(testDB),
	}

	portfolioService := service.NewPortfolioService(env.holdings, env.transactions, env.source)
	transferService := service.NewHoldingTransferService(env.holdings, archiver)
	portfolioController := NewPortfolioController(portfolioService, transferService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/portfolio")
	api.GET("", portfolioController.GetPortfolio)
	api.POST("/holdings", portfolioController.AddHolding)
	api.PUT("/holdings/:id", portfolioController.UpdateHolding)
	api.DELETE("/holdings/:id", portfolioController.DeleteHolding)
	api.GET("/summary", portfolioController.GetSummary)
	api.GET("/export", portfolioController.ExportCSV)
	api.POST("/export/archive", portfolioController.ArchiveExport)
	api.POST("/import", portfolioController.ImportHoldings)
	env.router = router

	return env
}

func (env *portfolioTestEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	var response map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	}
	return w, response
}

func (env *portfolioTestEnv) addHolding(t *testing.T, body string) string {
	t.Helper()
	w, response := env.do(t, http.MethodPost, "/api/portfolio/holdings", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return response["data"].(map[string]interface{})["id"].(string)
}

func TestPortfolioController_AddHolding(t *testing.T) {
	env := setupPortfolioControllerTest(t, nil)

	w, response := env.do(t, http.MethodPost, "/api/portfolio/holdings",
		`{"weight": 5, "purchase_price": "5200000", "purchase_date": "2026-03-01", "notes": "Antam"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, response["success"])
	data := response["data"].(map[string]interface{})
	assert.NotEmpty(t, data["id"])
	assert.Equal(t, float64(5), data["weight"])
	assert.Equal(t, float64(5200000), data["purchase_price"])
	assert.Equal(t, "2026-03-01", data["purchase_date"])

	txns, err := env.transactions.FindAll()
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, model.TransactionBuy, txns[0].Type)
}

func TestPortfolioController_AddHolding_Invalid(t *testing.T) {
	env := setupPortfolioControllerTest(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing weight", `{"purchase_price": 1000}`},
		{"bad date", `{"weight": 1, "purchase_price": 1000, "purchase_date": "01/02/2026"}`},
		{"malformed json", `{"weight":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := env.do(t, http.MethodPost, "/api/portfolio/holdings", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, response["success"])
		})
	}
}

func TestPortfolioController_GetPortfolio(t *testing.T) {
	env := setupPortfolioControllerTest(t, nil)

	w, response := env.do(t, http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := response["data"].(map[string]interface{})
	assert.Len(t, data["holdings"], 0)
	assert.Len(t, data["transactions"], 0)

	env.addHolding(t, `{"weight": 1, "purchase_price": 1000000, "purchase_date": "2026-01-01"}`)
	env.addHolding(t, `{"weight": 2, "purchase_price": 2000000, "purchase_date": "2026-02-01"}`)

	_, response = env.do(t, http.MethodGet, "/api/portfolio", "")
	data = response["data"].(map[string]interface{})
	holdings := data["holdings"].([]interface{})
	require.Len(t, holdings, 2)
	assert.Equal(t, "2026-02-01", holdings[0].(map[string]interface{})["purchase_date"])
	assert.Len(t, data["transactions"], 2)
}

func TestPortfolioController_UpdateHolding_IgnoresEmptyValues(t *testing.T) {
	env := setupPortfolioControllerTest(t, nil)
	id := env.addHolding(t, `{"weight": 1, "purchase_price": 1000000, "purchase_date": "2026-01-01", "notes": "first"}`)

	w, response := env.do(t, http.MethodPut, "/api/portfolio/holdings/"+id,
		`{"weight": 0, "purchase_price": 1050000, "purchase_date": "", "notes": ""}`)

	require.Equal(t, http.StatusOK, w.Code)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["weight"])
	assert.Equal(t, float64(1050000), data["purchase_price"])
	assert.Equal(t, "2026-01-01", data["purchase_date"])
	assert.Equal(t, "first", data["notes"])

	stored, err := env.holdings.FindByID(id)
	require.NoError(t, err)
	assert.True(t, stored.PurchasePrice.Equal(decimal.NewFromInt(1050000)))
}

func TestPortfolioController_UpdateHolding_NotFound(t *testing.T) {
	env := setupPortfolioControllerTest(t, nil)

	w, response := env.do(t, http.MethodPut, "/api/portfolio/holdings/missing", `{"notes": "x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Holding not found", response["error"])
}

func TestPortfolioController_DeleteHolding(t *testing.T) {
	env := setupPortfolioControllerTest(t, nil)
	soldID := env.addHolding(t, `{"weight": 1, "purchase_price": 1000000}`)
	deletedID := env.addHolding(t, `{"weight": 2, "purchase_price": 2000000}`)

	w, response := env.do(t, http.MethodDelete, "/api/portfolio/holdings/"+soldID, `{"sell_price": 1100000}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Holding sold successfully", response["message"])

	w, response = env.do(t, http.MethodDelete, "/api/portfolio/holdings/"+deletedID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Holding deleted successfully", response["message"])

	w, response = env.do(t, http.MethodDelete, "/api/portfolio/holdings/"+deletedID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, response["success"])

	txns, err := env.transactions.FindAll()
	require.NoError(t, err)
	require.Len(t, txns, 4)
	assert.Equal(t, model.TransactionDelete, txns[0].Type)
	assert.Equal(t, model.TransactionSell, txns[1].Type)
	assert.True(t, txns[1].Price.Equal(decimal.NewFromInt(1100000)))
}

func TestPortfolioController_GetSummary(t *testing.T) {
	env := setupPortfolioControllerTest(t, nil)
	env.addHolding(t, `{"weight": 2, "purchase_price": 1800000, "purchase_date": "2026-01-01"}`)

	w, response := env.do(t, http.MethodGet, "/api/portfolio/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, response["success"])
	assert.NotEmpty(t, response["prices_update"])

	summary := response["summary"].(map[string]interface{})
	assert.Equal(t, float64(2), summary["total_weight"])
	assert.Equal(t, float64(2000000), summary["total_current_value"])
	assert.Equal(t, float64(200000), summary["total_profit_loss"])
	assert.Equal(t, 11.11, summary["total_profit_loss_pct"])
	assert.Equal(t, float64(1), summary["holdings_count"])

	holdings := response["holdings"].([]interface{})
	require.Len(t, holdings, 1)
	assert.Equal(t, float64(2200000), holdings[0].(map[string]interface{})["current_sell"])
}

func TestPortfolioController_GetSummary_PricesUnavailable(t *testing.T) {
	env := setupPortfolioControllerTest(t, nil)
	env.source.snapshot = model.NewFailedSnapshot(service.ErrNoPriceData, true)

	w, response := env.do(t, http.MethodGet, "/api/portfolio/summary", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, response["success"])
	assert.Equal(t, "Could not fetch current prices", response["error"])
}

func TestPortfolioController_ExportCSV(t *testing.T) {
	env := setupPortfolioControllerTest(t, nil)
	env.addHolding(t, `{"weight": 0.5, "purchase_price": 600000, "purchase_date": "2026-02-01", "notes": "gift"}`)

	w, _ := env.do(t, http.MethodGet, "/api/portfolio/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment;filename=gold_portfolio.csv", w.Header().Get("Content-Disposition"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2026-02-01,0.5,1,600000,gift", lines[1])
}

func TestPortfolioController_ArchiveExport(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := setupPortfolioControllerTest(t, nil)
		w, response := env.do(t, http.MethodPost, "/api/portfolio/export/archive", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, false, response["success"])
	})

	t.Run("uploaded", func(t *testing.T) {
		archiver := &memoryArchiver{objects: map[string][]byte{}}
		env := setupPortfolioControllerTest(t, archiver)
		env.addHolding(t, `{"weight": 1, "purchase_price": 1000000}`)

		w, response := env.do(t, http.MethodPost, "/api/portfolio/export/archive", "")
		require.Equal(t, http.StatusOK, w.Code)
		data := response["data"].(map[string]interface{})
		assert.Equal(t, float64(1), data["holdings"])
		assert.Contains(t, data["url"], "https://bucket.example/exports/gold_portfolio_")
		assert.Len(t, archiver.objects, 1)
	})
}

func multipartRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/portfolio/import", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestPortfolioController_ImportHoldings(t *testing.T) {
	env := setupPortfolioControllerTest(t, nil)

	csvData := "Weight,Price,Date,Quantity,Notes\n" +
		"1,1000000,2026-01-10,2,Antam\n" +
		"abc,1000,2026-01-10,,\n"

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, multipartRequest(t, "holdings.csv", csvData))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, true, response["success"])
	assert.Equal(t, float64(2), response["imported"])
	errs := response["errors"].([]interface{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Row 3")

	stored, err := env.holdings.FindAll()
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestPortfolioController_ImportHoldings_Rejected(t *testing.T) {
	env := setupPortfolioControllerTest(t, nil)

	tests := []struct {
		name     string
		filename string
		content  string
		code     string
	}{
		{"no file", "", "", "IMPORT_FILE_REQUIRED"},
		{"unsupported type", "holdings.txt", "weight\n1", "IMPORT_UNSUPPORTED_TYPE"},
		{"empty csv", "holdings.csv", "", "IMPORT_EMPTY_FILE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, multipartRequest(t, tt.filename, tt.content))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, false, response["success"])
			assert.Equal(t, tt.code, response["code"])
		})
	}
}
