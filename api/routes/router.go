package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/clinicvax-backend/api/controllers"
	"github.com/angelmondragon/clinicvax-backend/api/middleware"
	"github.com/angelmondragon/clinicvax-backend/internal/budgets"
	"github.com/angelmondragon/clinicvax-backend/internal/campaigns"
	"github.com/angelmondragon/clinicvax-backend/internal/catalog"
	"github.com/angelmondragon/clinicvax-backend/internal/pricetables"
	"github.com/angelmondragon/clinicvax-backend/internal/pricing"
	"github.com/angelmondragon/clinicvax-backend/internal/quotes"
	"github.com/angelmondragon/clinicvax-backend/pkg/config"
	"github.com/angelmondragon/clinicvax-backend/pkg/db"
	"github.com/angelmondragon/clinicvax-backend/pkg/enums"
	"github.com/angelmondragon/clinicvax-backend/pkg/logger"
	"github.com/angelmondragon/clinicvax-backend/pkg/redis"
)

// Services groups the domain services the HTTP surface dispatches to.
type Services struct {
	Catalog     catalog.Service
	PriceTables pricetables.Service
	Pricing     pricing.Service
	Campaigns   campaigns.Service
	Quotes      quotes.Service
	Budgets     budgets.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	idempotencyStore redis.IdempotencyStore,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	managerOnly := middleware.RequireRole(logg, enums.MemberRoleManager)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.TenantContext(logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/vaccines", func(r chi.Router) {
			r.Get("/", controllers.VaccineList(svc.Catalog, logg))
			r.With(managerOnly).Post("/", controllers.VaccineCreate(svc.Catalog, logg))
		})

		r.Route("/price-tables", func(r chi.Router) {
			r.Get("/", controllers.PriceTableList(svc.PriceTables, logg))
			r.With(managerOnly).Post("/", controllers.PriceTableCreate(svc.PriceTables, logg))
			r.Route("/{tableID}", func(r chi.Router) {
				r.Get("/", controllers.PriceTableGet(svc.PriceTables, logg))
				r.With(managerOnly).Patch("/", controllers.PriceTableUpdate(svc.PriceTables, logg))
				r.With(managerOnly).Post("/default", controllers.PriceTableSetDefault(svc.PriceTables, logg))
				r.Get("/prices", controllers.PriceList(svc.Pricing, logg))
				r.With(managerOnly).Post("/prices", controllers.PriceCreate(svc.Pricing, logg))
				r.Get("/resolve", controllers.PriceResolve(svc.Pricing, logg))
			})
		})
		r.With(managerOnly).Delete("/prices/{priceID}", controllers.PriceDeactivate(svc.Pricing, logg))

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", controllers.CampaignList(svc.Campaigns, logg))
			r.Get("/best", controllers.CampaignBestDiscount(svc.Campaigns, logg))
			r.With(managerOnly).Post("/", controllers.CampaignCreate(svc.Campaigns, logg))
			r.Get("/{campaignID}", controllers.CampaignGet(svc.Campaigns, logg))
			r.With(managerOnly).Put("/{campaignID}", controllers.CampaignUpdate(svc.Campaigns, logg))
			r.With(managerOnly).Delete("/{campaignID}", controllers.CampaignDelete(svc.Campaigns, logg))
		})

		r.Post("/quotes", controllers.QuoteCreate(svc.Quotes, logg))

		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", controllers.BudgetList(svc.Budgets, logg))
			r.Post("/", controllers.BudgetCreate(svc.Budgets, logg))
			r.Get("/number/{number}", controllers.BudgetGetByNumber(svc.Budgets, logg))
			r.Get("/{budgetID}", controllers.BudgetGet(svc.Budgets, logg))
		})
	})

	return r
}
