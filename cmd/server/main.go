package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pharmadist-backend/internal/accounting"
	"pharmadist-backend/internal/admin"
	"pharmadist-backend/internal/approval"
	"pharmadist-backend/internal/audit"
	"pharmadist-backend/internal/auth"
	"pharmadist-backend/internal/config"
	"pharmadist-backend/internal/crm"
	"pharmadist-backend/internal/database"
	"pharmadist-backend/internal/dispatch"
	"pharmadist-backend/internal/inventory"
	"pharmadist-backend/internal/locks"
	"pharmadist-backend/internal/models"
	"pharmadist-backend/internal/orders"
	"pharmadist-backend/internal/receivables"
	"pharmadist-backend/internal/reports"
	"pharmadist-backend/internal/returns"
	"pharmadist-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg := config.Load()
	log := config.GetLogger()
	database.Init(cfg)

	rdb, err := locks.Connect(context.Background(), cfg.RedisAddress)
	if err != nil {
		log.WithField("module", "main").Fatalf("could not connect to redis: %v", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	// CORS_ORIGINS is a comma separated list
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	registerRoutes(app, cfg)

	go func() {
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			log.WithField("module", "main").Fatalf("server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.WithField("module", "main").Errorf("shutdown: %v", err)
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"error": fe.Message,
		})
	}
	var ve *validation.FieldsError
	if errors.As(err, &ve) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  ve.Error(),
			"fields": ve.Fields,
		})
	}
	config.LogError(config.GetLogger(), "main", "errorHandler", c.Method()+" "+c.Path(), nil, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Unexpected server error",
	})
}

func registerRoutes(app *fiber.App, cfg *config.Config) {
	var (
		admins      = auth.RequireRole(models.RoleAdmin)
		approvers   = auth.RequireRole(models.RoleAdmin, models.RoleManager)
		stock       = auth.RequireRole(models.RoleAdmin, models.RoleManager, models.RoleWarehouse)
		dispatchers = auth.RequireRole(models.RoleAdmin, models.RoleManager, models.RoleSales, models.RoleWarehouse)
		sales       = auth.RequireRole(models.RoleAdmin, models.RoleManager, models.RoleSales)
		finance     = auth.RequireRole(models.RoleAdmin, models.RoleManager, models.RoleAccounts)
		ledger      = auth.RequireRole(models.RoleAdmin, models.RoleAccounts)
	)

	challans := dispatch.NewService(database.DB)
	materialReturns := returns.NewService(database.DB)

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/bootstrap-admin", auth.BootstrapAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Users
	protected.Get("/admin/users", admins, admin.ListUsersHandler())
	protected.Post("/admin/users", admins, admin.CreateUserHandler())
	protected.Put("/admin/users/:id", admins, admin.UpdateUserHandler())

	// Products & batches
	protected.Get("/products", inventory.ListProductsHandler())
	protected.Get("/products/:id/fifo", inventory.FIFOHandler())
	protected.Post("/products", stock, inventory.CreateProductHandler())
	protected.Put("/products/:id", stock, inventory.UpdateProductHandler())
	protected.Delete("/products/:id", stock, inventory.DeleteProductHandler())

	protected.Get("/batches", inventory.ListBatchesHandler())
	protected.Post("/batches", stock, inventory.CreateBatchHandler())
	protected.Post("/batches/import", stock, inventory.ImportReceiptHandler())
	protected.Delete("/batches/:id", stock, inventory.DeleteBatchHandler())

	// Customers & appointments
	protected.Get("/customers", crm.ListCustomersHandler())
	protected.Post("/customers", sales, crm.CreateCustomerHandler())
	protected.Put("/customers/:id", sales, crm.UpdateCustomerHandler())
	protected.Delete("/customers/:id", sales, crm.DeleteCustomerHandler())
	protected.Get("/customers/:id/outstanding", finance, receivables.OutstandingHandler())

	protected.Get("/appointments", sales, crm.ListAppointmentsHandler())
	protected.Post("/appointments", sales, crm.CreateAppointmentHandler())
	protected.Put("/appointments/:id/reschedule", sales, crm.RescheduleAppointmentHandler())
	protected.Patch("/appointments/:id/status", sales, crm.AppointmentStatusHandler())

	// Sales orders
	protected.Get("/sales-orders", dispatchers, orders.ListOrdersHandler())
	protected.Get("/sales-orders/:id", dispatchers, orders.GetOrderHandler())
	protected.Post("/sales-orders", sales, orders.CreateOrderHandler())
	protected.Post("/sales-orders/:id/cancel", sales, orders.CancelOrderHandler())

	// Delivery challans
	protected.Get("/delivery-challans", dispatchers, dispatch.ListChallansHandler())
	protected.Get("/delivery-challans/:id", dispatchers, dispatch.GetChallanHandler())
	protected.Post("/delivery-challans", dispatchers, dispatch.CreateChallanHandler(challans))
	protected.Put("/delivery-challans/:id", dispatchers, dispatch.UpdateChallanHandler(challans))
	protected.Delete("/delivery-challans/:id", dispatchers, dispatch.DeleteChallanHandler(challans))
	protected.Post("/delivery-challans/:id/approve", approvers, dispatch.DecideChallanHandler(challans, approval.ActionApprove))
	protected.Post("/delivery-challans/:id/reject", approvers, dispatch.DecideChallanHandler(challans, approval.ActionReject))

	// Material returns
	protected.Get("/material-returns", dispatchers, returns.ListReturnsHandler())
	protected.Get("/material-returns/:id", dispatchers, returns.GetReturnHandler())
	protected.Post("/material-returns", dispatchers, returns.CreateReturnHandler(materialReturns))
	protected.Put("/material-returns/:id", dispatchers, returns.UpdateReturnHandler(materialReturns))
	protected.Delete("/material-returns/:id", dispatchers, returns.DeleteReturnHandler(materialReturns))
	protected.Post("/material-returns/:id/approve", approvers, returns.DecideReturnHandler(materialReturns, approval.ActionApprove))
	protected.Post("/material-returns/:id/reject", approvers, returns.DecideReturnHandler(materialReturns, approval.ActionReject))

	// Invoices & payments
	protected.Get("/invoices", finance, receivables.ListInvoicesHandler())
	protected.Get("/invoices/:id", finance, receivables.GetInvoiceHandler())
	protected.Post("/invoices", finance, receivables.CreateInvoiceHandler())
	protected.Delete("/invoices/:id", finance, receivables.DeleteInvoiceHandler())

	protected.Get("/payments", finance, receivables.ListPaymentsHandler())
	protected.Get("/payments/suggest", finance, receivables.SuggestAllocationsHandler())
	protected.Post("/payments", finance, receivables.CreatePaymentHandler())
	protected.Post("/payments/:id/allocations", finance, receivables.AllocatePaymentHandler())
	protected.Delete("/payments/:id", finance, receivables.DeletePaymentHandler())

	// Journal
	protected.Get("/journal-entries", ledger, accounting.ListEntriesHandler())
	protected.Get("/journal-entries/trial-balance", ledger, accounting.TrialBalanceHandler())
	protected.Post("/journal-entries", ledger, accounting.CreateEntryHandler())
	protected.Delete("/journal-entries/:id", ledger, accounting.DeleteEntryHandler())

	// Reports
	protected.Get("/reports/receivables.xlsx", finance, reports.ReceivablesReportHandler())
	protected.Get("/reports/expiry.xlsx", stock, reports.ExpiryReportHandler(cfg))

	// Audit
	protected.Get("/audit-logs", admins, audit.ListAuditLogsHandler())
	protected.Post("/audit-logs/:id/undo", admins, audit.UndoAuditLogHandler())
}
