package router

import (
	"time"

	"tillcore/internal/config"
	"tillcore/internal/handler"
	"tillcore/internal/infra"
	"tillcore/internal/middleware"
	"tillcore/internal/repository"
	"tillcore/internal/service"
	"tillcore/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, pspCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.Metrics())
	r.Use(otelgin.Middleware("tillcore"))
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	var gateway service.ProviderGateway
	if cfg.PSPBaseURL != "" {
		gateway = infra.NewPSPClient(cfg.PSPBaseURL, pspCB)
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	cashRepo := repository.NewCashRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	intentRepo := repository.NewIntentRepository(db)

	// Worker dispatcher — injected into services that enqueue async events
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	ledgerSvc := service.NewCashLedgerService(cashRepo, paymentRepo, dispatcher)
	intentSvc := service.NewPaymentIntentService(intentRepo, orderRepo, paymentRepo, cfg.Currency)
	processor := service.NewPaymentService(paymentRepo, orderRepo, ledgerSvc, intentSvc, gateway, dispatcher)
	settlementSvc := service.NewSettlementService(orderRepo, paymentRepo, intentSvc, processor)

	// ── Handlers ─────────────────────────────────────────────────────────────
	cashH := handler.NewCashHandler(ledgerSvc)
	settlementH := handler.NewSettlementHandler(settlementSvc)
	intentH := handler.NewIntentHandler(intentSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, pspCB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	idemMW := middleware.Idempotency(rdb)
	v1 := r.Group("/v1", jwtMW)
	{
		// Roles: cashier, supervisor, admin — declared per-endpoint
		cash := v1.Group("/cash")
		{
			cash.POST("/sessions", middleware.RequireRole("cashier", "supervisor", "admin"), cashH.OpenSession)
			cash.GET("/sessions", middleware.RequireRole("supervisor", "admin"), cashH.ListSessions)
			cash.GET("/sessions/:id", middleware.RequireRole("cashier", "supervisor", "admin"), cashH.GetSession)
			cash.POST("/sessions/:id/close", middleware.RequireRole("cashier", "supervisor", "admin"), cashH.CloseSession)
			cash.POST("/sessions/:id/reopen", middleware.RequireRole("supervisor", "admin"), cashH.ReopenSession)
			cash.POST("/movements", middleware.RequireRole("cashier", "supervisor", "admin"), cashH.CreateMovement)
			cash.POST("/counts", middleware.RequireRole("cashier", "supervisor", "admin"), cashH.CreateCount)
			cash.GET("/reports/daily", middleware.RequireRole("supervisor", "admin"), cashH.DailyReport)
		}

		orders := v1.Group("/orders", middleware.RequireRole("cashier", "supervisor", "admin"))
		{
			orders.GET("/:id/reconcile", settlementH.Reconcile)
			orders.POST("/:id/intent", intentH.CreateOrGet)
			orders.GET("/:id/payments", settlementH.ListPayments)
			orders.POST("/:id/payments", idemMW, settlementH.Capture)
			orders.POST("/:id/payments/:paymentID/refund", idemMW, settlementH.Refund)
			orders.GET("/:id/payments/:paymentID/transactions", settlementH.ListTransactions)
		}

		v1.GET("/intents/:id", middleware.RequireRole("cashier", "supervisor", "admin"), intentH.GetByID)
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
