package v1

import (
	"github.com/gin-gonic/gin"

	appctx "provision/internal/core/context"
	"provision/internal/domain/audit"
	"provision/internal/domain/auth"
	"provision/internal/domain/catalogs/item"
	"provision/internal/domain/catalogs/location"
	"provision/internal/domain/catalogs/supplier"
	"provision/internal/domain/documents/delivery"
	"provision/internal/domain/documents/issue"
	"provision/internal/domain/documents/transfer"
	"provision/internal/domain/ledger"
	"provision/internal/domain/ncr"
	"provision/internal/domain/notification"
	"provision/internal/domain/period"
	"provision/internal/domain/pricing"
	"provision/internal/domain/reconciliation"
	"provision/internal/domain/reports"
	"provision/internal/infrastructure/http/v1/handlers"
	"provision/internal/infrastructure/http/v1/middleware"
	"provision/internal/infrastructure/storage/postgres"
	"provision/internal/infrastructure/storage/postgres/catalog_repo"
	"provision/internal/infrastructure/storage/postgres/document_repo"
	"provision/internal/infrastructure/storage/postgres/ledger_repo"
	"provision/internal/infrastructure/storage/postgres/ncr_repo"
	"provision/internal/infrastructure/storage/postgres/notification_repo"
	"provision/internal/infrastructure/storage/postgres/period_repo"
	"provision/internal/infrastructure/storage/postgres/pricing_repo"
	"provision/internal/infrastructure/storage/postgres/reconciliation_repo"
	"provision/internal/infrastructure/storage/postgres/report_repo"
	"provision/pkg/logger"
	"provision/pkg/numerator"
)

// RouterConfig holds the wiring for the HTTP API.
type RouterConfig struct {
	// TxManager runs repository calls and transactions on the pool
	TxManager *postgres.TxManager

	// Pool is the database connection pool (health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// AuthService for authentication endpoints
	AuthService *auth.Service

	// Numerator generates document and catalog numbers
	Numerator *numerator.Service

	// Auditor records document postings and closes
	Auditor audit.Recorder

	// Dispatcher delivers domain events to notification sinks
	Dispatcher *notification.Dispatcher

	// Rules compiles notification rule expressions
	Rules *notification.RuleEngine
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	api := router.Group("/api/v1")
	{
		registerAuthRoutes(api, cfg)

		protected := api.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		registerCatalogRoutes(protected, cfg)
		registerDocumentRoutes(protected, cfg)
		registerPeriodRoutes(protected, cfg)
		registerNCRRoutes(protected, cfg)
		registerStockRoutes(protected, cfg)
		registerReportRoutes(protected, cfg)
		registerNotificationRoutes(protected, cfg)
	}

	return router
}

// registerAuthRoutes registers authentication endpoints.
func registerAuthRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.AuthService == nil {
		return
	}

	baseHandler := handlers.NewBaseHandler()
	authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)

	public := rg.Group("/auth")

	protected := rg.Group("/auth")
	protected.Use(middleware.Auth(cfg.JWTValidator))

	authHandler.RegisterRoutes(public, protected)
}

// registerCatalogRoutes registers the master data endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	catalogs := rg.Group("/catalog")
	baseHandler := handlers.NewBaseHandler()
	supervisor := middleware.RequireRole(appctx.RoleSupervisor)

	// --- LOCATIONS ---
	{
		repo := catalog_repo.NewLocationRepo(cfg.TxManager)
		service := location.NewService(repo, cfg.TxManager, cfg.Numerator)
		handler := handlers.NewLocationHandler(baseHandler, service)

		group := catalogs.Group("/locations")
		RegisterCatalogRoutes(group, handler)
		group.POST("/:id/active", supervisor, handler.SetActive)
	}

	// --- ITEMS ---
	{
		repo := catalog_repo.NewItemRepo(cfg.TxManager)
		service := item.NewService(repo, cfg.TxManager, cfg.Numerator)
		handler := handlers.NewItemHandler(baseHandler, service)

		group := catalogs.Group("/items")
		RegisterCatalogRoutes(group, handler)
		group.POST("/:id/active", supervisor, handler.SetActive)
	}

	// --- SUPPLIERS ---
	{
		repo := catalog_repo.NewSupplierRepo(cfg.TxManager)
		service := supplier.NewService(repo, cfg.TxManager, cfg.Numerator)
		handler := handlers.NewSupplierHandler(baseHandler, service)

		group := catalogs.Group("/suppliers")
		RegisterCatalogRoutes(group, handler)
		group.POST("/:id/active", supervisor, handler.SetActive)
	}
}

// registerDocumentRoutes registers delivery, issue and transfer endpoints.
// Postings are location-scoped (POST /locations/:id/deliveries), reads
// live under the document collections.
func registerDocumentRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	locations := rg.Group("/locations")
	baseHandler := handlers.NewBaseHandler()

	locationRepo := catalog_repo.NewLocationRepo(cfg.TxManager)
	itemRepo := catalog_repo.NewItemRepo(cfg.TxManager)
	supplierRepo := catalog_repo.NewSupplierRepo(cfg.TxManager)

	ledgerSvc := ledger.NewService(ledger_repo.NewStockRepo(cfg.TxManager))
	pricingSvc := pricing.NewService(pricing_repo.NewPriceRepo(cfg.TxManager), itemRepo)
	periodSvc := period.NewService(period_repo.NewPeriodRepo(cfg.TxManager), locationRepo, pricingSvc, cfg.TxManager)
	ncrSvc := ncr.NewService(ncr_repo.NewNCRRepo(cfg.TxManager), cfg.Numerator, cfg.TxManager, cfg.Auditor)

	// --- DELIVERIES ---
	{
		repo := document_repo.NewDeliveryRepo(cfg.TxManager)
		service := delivery.NewService(repo, ledgerSvc, pricingSvc, ncrSvc, periodSvc,
			locationRepo, supplierRepo, itemRepo, cfg.Numerator, cfg.TxManager, cfg.Auditor, cfg.Dispatcher)
		handler := handlers.NewDeliveryHandler(baseHandler, service)

		locations.POST("/:id/deliveries", handler.Create)
		locations.GET("/:id/deliveries", handler.List)

		group := rg.Group("/deliveries")
		group.GET("", handler.List)
		group.GET("/:id", handler.Get)
	}

	// --- ISSUES ---
	{
		repo := document_repo.NewIssueRepo(cfg.TxManager)
		service := issue.NewService(repo, ledgerSvc, periodSvc,
			locationRepo, itemRepo, cfg.Numerator, cfg.TxManager, cfg.Auditor, cfg.Dispatcher)
		handler := handlers.NewIssueHandler(baseHandler, service)

		locations.POST("/:id/issues", handler.Create)
		locations.GET("/:id/issues", handler.List)

		group := rg.Group("/issues")
		group.GET("", handler.List)
		group.GET("/:id", handler.Get)
	}

	// --- TRANSFERS ---
	{
		repo := document_repo.NewTransferRepo(cfg.TxManager)
		service := transfer.NewService(repo, ledgerSvc, periodSvc,
			locationRepo, itemRepo, cfg.Numerator, cfg.TxManager, cfg.Auditor, cfg.Dispatcher)
		handler := handlers.NewTransferHandler(baseHandler, service)

		group := rg.Group("/transfers")
		group.GET("", handler.List)
		group.GET("/:id", handler.Get)
		group.POST("", handler.Create)
		group.PATCH("/:id/approve", middleware.RequireRole(appctx.RoleSupervisor), handler.Approve)
	}
}

// registerPeriodRoutes registers period lifecycle and reconciliation endpoints.
func registerPeriodRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	admin := middleware.RequireRole(appctx.RoleAdmin)
	supervisor := middleware.RequireRole(appctx.RoleSupervisor)

	locationRepo := catalog_repo.NewLocationRepo(cfg.TxManager)
	itemRepo := catalog_repo.NewItemRepo(cfg.TxManager)
	periodRepo := period_repo.NewPeriodRepo(cfg.TxManager)

	ledgerSvc := ledger.NewService(ledger_repo.NewStockRepo(cfg.TxManager))
	pricingSvc := pricing.NewService(pricing_repo.NewPriceRepo(cfg.TxManager), itemRepo)
	periodSvc := period.NewService(periodRepo, locationRepo, pricingSvc, cfg.TxManager)

	reconSvc := reconciliation.NewService(reconciliation.ServiceConfig{
		Repo:       reconciliation_repo.NewReconciliationRepo(cfg.TxManager),
		Periods:    periodSvc,
		PeriodRepo: periodRepo,
		Deliveries: document_repo.NewDeliveryRepo(cfg.TxManager),
		Issues:     document_repo.NewIssueRepo(cfg.TxManager),
		Transfers:  document_repo.NewTransferRepo(cfg.TxManager),
		Ledger:     ledgerSvc,
		NCRs:       ncr_repo.NewNCRRepo(cfg.TxManager),
		TxManager:  cfg.TxManager,
		Auditor:    cfg.Auditor,
		Dispatcher: cfg.Dispatcher,
	})

	periodHandler := handlers.NewPeriodHandler(baseHandler, periodSvc, pricingSvc)
	reconHandler := handlers.NewReconciliationHandler(baseHandler, reconSvc)

	periods := rg.Group("/periods")
	periods.GET("", periodHandler.List)
	periods.GET("/:id", periodHandler.Get)
	periods.POST("", admin, periodHandler.Open)

	periods.GET("/:id/locations", periodHandler.Locations)
	periods.POST("/:id/locations/:locationId/ready", supervisor, periodHandler.MarkReady)

	periods.GET("/:id/prices", periodHandler.Prices)
	periods.GET("/:id/prices/:itemId", periodHandler.ItemPrice)

	periods.GET("/:id/reconciliation", reconHandler.ListByPeriod)
	periods.GET("/:id/reconciliation/:locationId", reconHandler.Get)
	periods.PUT("/:id/reconciliation/:locationId", supervisor, reconHandler.Save)
	periods.POST("/:id/close", admin, reconHandler.Close)
}

// registerNCRRoutes registers non-conformance report endpoints.
func registerNCRRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()

	locationRepo := catalog_repo.NewLocationRepo(cfg.TxManager)
	itemRepo := catalog_repo.NewItemRepo(cfg.TxManager)
	pricingSvc := pricing.NewService(pricing_repo.NewPriceRepo(cfg.TxManager), itemRepo)
	periodSvc := period.NewService(period_repo.NewPeriodRepo(cfg.TxManager), locationRepo, pricingSvc, cfg.TxManager)
	ncrSvc := ncr.NewService(ncr_repo.NewNCRRepo(cfg.TxManager), cfg.Numerator, cfg.TxManager, cfg.Auditor)

	handler := handlers.NewNCRHandler(baseHandler, ncrSvc, periodSvc)

	ncrs := rg.Group("/ncrs")
	ncrs.GET("", handler.List)
	ncrs.GET("/:id", handler.Get)
	ncrs.POST("", handler.Create)
	ncrs.PATCH("/:id/status", middleware.RequireRole(appctx.RoleSupervisor), handler.UpdateStatus)
}

// registerStockRoutes registers stock ledger endpoints.
func registerStockRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	ledgerSvc := ledger.NewService(ledger_repo.NewStockRepo(cfg.TxManager))
	handler := handlers.NewStockHandler(baseHandler, ledgerSvc)

	stock := rg.Group("/stock")
	stock.GET("/:locationId", handler.ListByLocation)
	stock.GET("/:locationId/value", handler.Value)
	stock.GET("/:locationId/items/:itemId", handler.Position)
	stock.PUT("/:locationId/items/:itemId/levels", middleware.RequireRole(appctx.RoleSupervisor), handler.SetLevels)
}

// registerReportRoutes registers reporting endpoints.
func registerReportRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	service := reports.NewService(report_repo.NewReportRepo(cfg.TxManager))
	handler := handlers.NewReportHandler(baseHandler, service)

	reportsGroup := rg.Group("/reports")
	reportsGroup.GET("/stock-on-hand", handler.GetStockOnHand)
	reportsGroup.GET("/period-movement/:periodId", handler.GetPeriodMovement)
	reportsGroup.GET("/reconciliation", handler.GetReconciliationReport)
	reportsGroup.GET("/document-journal", handler.GetDocumentJournal)
}

// registerNotificationRoutes registers notification subscription endpoints.
func registerNotificationRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	service := notification.NewService(notification_repo.NewSettingRepo(cfg.TxManager), cfg.Rules, cfg.TxManager)
	handler := handlers.NewNotificationHandler(baseHandler, service)

	notifications := rg.Group("/notifications", middleware.RequireRole(appctx.RoleAdmin))
	notifications.GET("", handler.List)
	notifications.GET("/:id", handler.Get)
	notifications.POST("", handler.Create)
	notifications.PUT("/:id", handler.Update)
	notifications.DELETE("/:id", handler.Delete)
}
