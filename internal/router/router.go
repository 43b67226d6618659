package router

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/gold-portfolio-backend/config"
	"github.com/ikkim/gold-portfolio-backend/internal/app/controller"
	"github.com/ikkim/gold-portfolio-backend/internal/db"
	"github.com/ikkim/gold-portfolio-backend/internal/middleware"
)

type Router struct {
	priceController     *controller.PriceController
	portfolioController *controller.PortfolioController
	store               db.Store
	config              *config.Config
}

func NewRouter(
	priceController *controller.PriceController,
	portfolioController *controller.PortfolioController,
	store db.Store,
	cfg *config.Config,
) *Router {
	return &Router{
		priceController:     priceController,
		portfolioController: portfolioController,
		store:               store,
		config:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"message":  "Gold portfolio API is running",
			"database": r.store.Status(),
		})
	})

	// 프론트엔드 정적 파일
	if dir := r.config.Server.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			router.Static("/static", dir)
			router.StaticFile("/", filepath.Join(dir, "index.html"))
		}
	}

	api := router.Group("/api")
	{
		api.GET("/prices", r.priceController.GetPrices)
		api.POST("/prices/record", r.priceController.RecordPrices)
		api.GET("/price-history", r.priceController.GetPriceHistory)

		portfolio := api.Group("/portfolio")
		{
			portfolio.GET("", r.portfolioController.GetPortfolio)
			portfolio.GET("/summary", r.portfolioController.GetSummary)
			portfolio.POST("/holdings", r.portfolioController.AddHolding)
			portfolio.PUT("/holdings/:id", r.portfolioController.UpdateHolding)
			portfolio.DELETE("/holdings/:id", r.portfolioController.DeleteHolding)
			portfolio.GET("/export", r.portfolioController.ExportCSV)
			portfolio.POST("/export/archive", r.portfolioController.ArchiveExport)
			portfolio.POST("/import", r.portfolioController.ImportHoldings)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
