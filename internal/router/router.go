// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/machinesoul11/yg-backend-sub001/internal/config"
	"github.com/machinesoul11/yg-backend-sub001/internal/handlers"
	"github.com/machinesoul11/yg-backend-sub001/internal/middleware"
	"github.com/machinesoul11/yg-backend-sub001/internal/services"
)

// Services bundles every constructed service so main can share them between
// the HTTP surface and the background sweep.
type Services struct {
	Ownership  *services.OwnershipService
	Conflicts  *services.ConflictService
	Events     *services.EventService
	Billing    *services.BillingService
	Contracts  *services.ContractService
	Pricing    *services.PricingEngine
	Licenses   *services.LicenseService
	Amendments *services.AmendmentService
	Extensions *services.ExtensionService
	Renewals   *services.RenewalService
	Scheduler  *services.SchedulerService
}

// BuildServices wires the service graph in dependency order.
func BuildServices(db *gorm.DB, cfg *config.Config) (*Services, error) {
	ownership := services.NewOwnershipService(db)
	conflicts := services.NewConflictService(db)
	events := services.NewEventService(db, cfg)
	billing := services.NewBillingService(db, cfg)
	pricing := services.NewPricingEngine(cfg.Engine)

	contracts, err := services.NewContractService(cfg)
	if err != nil {
		return nil, err
	}

	licenses := services.NewLicenseService(db, cfg, ownership, conflicts, events, billing, contracts)
	amendments := services.NewAmendmentService(db, cfg, ownership, conflicts, licenses, events, billing)
	extensions := services.NewExtensionService(db, cfg, ownership, conflicts, licenses, pricing, events, billing)
	renewals := services.NewRenewalService(db, cfg, conflicts, licenses, pricing, events)
	scheduler := services.NewSchedulerService(db, cfg, licenses, amendments, extensions, renewals, events)

	return &Services{
		Ownership:  ownership,
		Conflicts:  conflicts,
		Events:     events,
		Billing:    billing,
		Contracts:  contracts,
		Pricing:    pricing,
		Licenses:   licenses,
		Amendments: amendments,
		Extensions: extensions,
		Renewals:   renewals,
		Scheduler:  scheduler,
	}, nil
}

// SetupRouter builds the HTTP surface over the service graph.
func SetupRouter(db *gorm.DB, cfg *config.Config, svc *Services) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	licenseHandler := handlers.NewLicenseHandler(svc.Licenses, svc.Conflicts, svc.Billing)
	amendmentHandler := handlers.NewAmendmentHandler(svc.Amendments)
	extensionHandler := handlers.NewExtensionHandler(svc.Extensions)
	renewalHandler := handlers.NewRenewalHandler(svc.Renewals)
	ownershipHandler := handlers.NewOwnershipHandler(svc.Ownership)

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthRequired())
	v1.Use(middleware.AuditLogMiddleware(db))
	{
		licenses := v1.Group("/licenses")
		{
			licenses.GET("", licenseHandler.SearchLicenses)
			licenses.GET("/stats", licenseHandler.GetStats)
			licenses.POST("/check-conflicts", licenseHandler.CheckConflicts)
			licenses.GET("/:id", licenseHandler.GetLicense)
			licenses.GET("/:id/history", licenseHandler.GetStatusHistory)
			licenses.GET("/:id/agreement", licenseHandler.GetAgreement)
			licenses.GET("/:id/transactions", licenseHandler.GetTransactions)
			licenses.GET("/:id/amendments", amendmentHandler.ListAmendments)
			licenses.GET("/:id/extensions", extensionHandler.ListExtensions)
			licenses.GET("/:id/renewal/eligibility", renewalHandler.CheckEligibility)
			licenses.GET("/:id/renewal/offers", renewalHandler.ListOffers)

			write := licenses.Group("")
			write.Use(middleware.WriteRateLimit())
			{
				write.POST("", licenseHandler.CreateLicense)
				write.POST("/:id/submit", licenseHandler.SubmitLicense)
				write.POST("/:id/approvals", licenseHandler.RecordApproval)
				write.POST("/:id/signature", licenseHandler.CaptureSignature)
				write.PUT("/:id/terminate", licenseHandler.TerminateLicense)
				write.PUT("/:id/dispute", licenseHandler.DisputeLicense)
				write.POST("/:id/amendments", amendmentHandler.ProposeAmendment)
				write.POST("/:id/extensions", extensionHandler.RequestExtension)
				write.POST("/:id/renewal/offer", renewalHandler.GenerateOffer)
				write.POST("/:id/renewal/preview", renewalHandler.PreviewPricing)
				write.POST("/:id/renewal/accept", renewalHandler.AcceptOffer)
				write.POST("/:id/renewal/decline", renewalHandler.DeclineOffer)
			}

			admin := licenses.Group("")
			admin.Use(middleware.AdminRequired())
			{
				admin.PUT("/:id/resolve-dispute", licenseHandler.ResolveDispute)
				admin.PUT("/:id/suspend", licenseHandler.SuspendLicense)
				admin.PUT("/:id/reinstate", licenseHandler.ReinstateLicense)
			}
		}

		amendments := v1.Group("/amendments")
		{
			amendments.GET("/:id", amendmentHandler.GetAmendment)
			amendments.POST("/:id/approvals", amendmentHandler.RecordApproval)
		}

		extensions := v1.Group("/extensions")
		{
			extensions.POST("/:id/approvals", extensionHandler.RecordApproval)
		}

		assets := v1.Group("/assets")
		{
			assets.GET("/:id/owners", ownershipHandler.GetOwners)
		}
	}

	return r
}
