package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/middleware"
	"github.com/mmoldabe-dev/subtrack/internal/result"
	"github.com/mmoldabe-dev/subtrack/internal/scheduler"
	"github.com/mmoldabe-dev/subtrack/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type ReadinessChecker interface {
	CheckReady(ctx context.Context) error
}

type Services struct {
	Subscriptions service.SubscriptionServiceInterface
	Dashboard     service.DashboardServiceInterface
	Departments   service.DepartmentServiceInterface
	Catalog       service.CatalogServiceInterface
	AuditLog      service.AuditLogServiceInterface
	Users         service.UserServiceInterface
}

type RouterConfig struct {
	Auth           *middleware.Authenticator
	InternalSecret string
	AllowedOrigins []string
}

type Handler struct {
	subs        service.SubscriptionServiceInterface
	dashboard   service.DashboardServiceInterface
	departments service.DepartmentServiceInterface
	catalog     service.CatalogServiceInterface
	auditLog    service.AuditLogServiceInterface
	users       service.UserServiceInterface
	ready       ReadinessChecker
	log         *slog.Logger
}

func NewHandler(services Services, ready ReadinessChecker, log *slog.Logger) *Handler {
	return &Handler{
		subs:        services.Subscriptions,
		dashboard:   services.Dashboard,
		departments: services.Departments,
		catalog:     services.Catalog,
		auditLog:    services.AuditLog,
		users:       services.Users,
		ready:       ready,
		log:         log.With(slog.String("component", "delivery/http")),
	}
}

func (h *Handler) SetupRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LoggingMiddleware(h.log))
	r.Use(middleware.RecoverMiddleware(h.log))
	r.Use(middleware.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.InternalSecretHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.With(middleware.InternalSecret(cfg.InternalSecret)).Post("/system/sweep", h.runSweep)

	writers := middleware.RequireRole(domain.RoleAdmin, domain.RoleManager)

	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth.Middleware)
		r.Use(middleware.JSONMiddleware)

		r.Get("/dashboard", h.getDashboard)

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", h.listSubscriptions)
			r.Get("/kpi", h.getKPIs)
			r.Get("/top", h.getTopByPrice)
			r.Get("/upcoming", h.getUpcomingRenewals)
			r.Get("/{id}", h.getSubscription)
			r.With(writers).Post("/", h.createSubscription)
			r.With(writers).Patch("/{id}", h.updateSubscription)
			r.With(writers).Delete("/{id}", h.deleteSubscription)
		})

		r.Route("/departments", func(r chi.Router) {
			r.Get("/", h.listDepartments)
			r.Get("/spend", h.getSpendByDepartment)
			r.With(writers).Post("/", h.createDepartment)
			r.With(writers).Patch("/{id}", h.updateDepartment)
			r.With(writers).Delete("/{id}", h.deleteDepartment)
		})

		r.Route("/services", func(r chi.Router) {
			r.Get("/", h.listServices)
			r.With(writers).Post("/", h.createService)
			r.With(writers).Patch("/{id}", h.updateService)
			r.With(writers).Delete("/{id}", h.deleteService)
		})

		admins := middleware.RequireRole(domain.RoleAdmin)
		r.With(admins).Get("/logs", h.listLogs)
		r.With(admins).Post("/users", h.createUser)
	})

	return r
}

// fail logs server-side failures and writes the error envelope.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if domain.KindOf(err) == domain.KindInternal {
		h.log.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
	result.WriteError(w, err)
}

// health godoc
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]any
// @Failure      503  {object}  map[string]any
// @Router       /health [get]
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.ready.CheckReady(ctx); err != nil {
		h.log.Warn("readiness check failed", slog.String("error", err.Error()))
		result.WriteStatus(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	result.Write(w, http.StatusOK, result.OK(map[string]string{"status": "ok"}))
}

// runSweep godoc
// @Summary      Run the due-date sweep
// @Description  Expires ended subscriptions and flags due ones as RENEWAL_PENDING.
// @Tags         system
// @Produce      json
// @Param        X-Internal-Secret  header  string  true  "internal secret"
// @Success      200  {object}  map[string]any
// @Failure      403  {object}  map[string]any
// @Failure      500  {object}  map[string]any
// @Router       /system/sweep [post]
func (h *Handler) runSweep(w http.ResponseWriter, r *http.Request) {
	res, err := scheduler.RunSweep(r.Context(), h.subs, h.log)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result.Write(w, http.StatusOK, result.OK(res))
}
