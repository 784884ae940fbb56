package main

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medcrm/clinic/internal/config"
	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/domain/billing"
	"github.com/medcrm/clinic/internal/domain/clinic"
	"github.com/medcrm/clinic/internal/domain/identity"
	"github.com/medcrm/clinic/internal/domain/notification"
	"github.com/medcrm/clinic/internal/domain/patient"
	"github.com/medcrm/clinic/internal/domain/reporting"
	"github.com/medcrm/clinic/internal/domain/scheduling"
	"github.com/medcrm/clinic/internal/platform/analytics"
	"github.com/medcrm/clinic/internal/platform/auth"
	"github.com/medcrm/clinic/internal/platform/blobstore"
	"github.com/medcrm/clinic/internal/platform/db"
	"github.com/medcrm/clinic/internal/platform/middleware"
	"github.com/medcrm/clinic/internal/platform/openapi"
	"github.com/medcrm/clinic/internal/platform/websocket"
)

// services is the wired domain layer shared by the server and the CLI.
type services struct {
	tokens        *auth.TokenIssuer
	identity      *identity.Service
	clinic        *clinic.Catalog
	patients      *patient.Service
	scheduling    *scheduling.Service
	billing       *billing.Service
	notifications *notification.Service
	reporting     *reporting.Service
}

func newServices(pool *pgxpool.Pool, cfg *config.Config, loc *time.Location, revoked auth.RevocationStore,
	photos clinic.PhotoStore, pusher notification.Pusher, logger zerolog.Logger) *services {
	tx := db.NewTxRunner(pool)
	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})

	identitySvc := identity.NewService(identity.NewUserRepoPG(pool), tokens, revoked)
	clinicSvc := clinic.NewCatalog(
		clinic.NewDepartmentRepoPG(pool),
		clinic.NewDoctorRepoPG(pool),
		clinic.NewServiceRepoPG(pool),
		identitySvc, photos, tx,
	)
	patientSvc := patient.NewService(patient.NewRepoPG(pool), loc)
	notificationSvc := notification.NewService(notification.NewRepoPG(pool), pusher)
	schedulingSvc := scheduling.NewService(scheduling.NewRepoPG(pool), clinicSvc, patientSvc, notificationSvc, tx, logger, loc)
	billingSvc := billing.NewService(billing.NewRepoPG(pool), tx, logger)
	reportingSvc := reporting.NewService(reporting.NewRepoPG(pool), clinicSvc, schedulingSvc, patientSvc, loc)

	return &services{
		tokens:        tokens,
		identity:      identitySvc,
		clinic:        clinicSvc,
		patients:      patientSvc,
		scheduling:    schedulingSvc,
		billing:       billingSvc,
		notifications: notificationSvc,
		reporting:     reportingSvc,
	}
}

type serverDeps struct {
	pool    *pgxpool.Pool
	checks  []db.Check
	revoked auth.RevocationStore
	hub     *websocket.Hub
	media   blobstore.Store
}

const apiVersion = "1.0.0"

// wsPath is exempt from the request timeout; the connection outlives it.
const wsPath = "/api/v1/ws"

func newServer(cfg *config.Config, logger zerolog.Logger, svc *services, deps serverDeps) *echo.Echo {
	loc, _ := cfg.Location()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	if cfg.RequestTimeout > 0 {
		e.Use(echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
			Skipper: func(c echo.Context) bool { return c.Path() == wsPath },
			Timeout: cfg.RequestTimeout,
		}))
	}

	usage := analytics.NewTracker()
	e.Use(analytics.Middleware(usage))
	e.Use(auth.JWTMiddleware(auth.JWTConfig{
		Tokens:  svc.tokens,
		Revoked: deps.revoked,
		Skipper: auth.AuthSkipper,
		Logger:  logger,
	}))
	e.Use(access.Middleware(svc.clinic))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(deps.pool, deps.checks...))

	api := e.Group("/api/v1")
	loginGuard := middleware.RateLimit(middleware.LoginRateLimitConfig())

	identity.NewHandler(svc.identity).RegisterRoutes(api, loginGuard)
	clinic.NewHandler(svc.clinic).RegisterRoutes(api)
	patient.NewHandler(svc.patients).RegisterRoutes(api)
	scheduling.NewHandler(svc.scheduling).RegisterRoutes(api)
	billing.NewHandler(svc.billing, loc).RegisterRoutes(api)
	notification.NewHandler(svc.notifications).RegisterRoutes(api)
	reporting.NewHandler(svc.reporting).RegisterRoutes(api)
	websocket.NewHandler(deps.hub, svc.tokens, deps.revoked, cfg.CORSOrigins).RegisterRoutes(api)
	blobstore.NewHandler(deps.media).RegisterRoutes(e)
	analytics.NewHandler(usage).RegisterRoutes(api.Group("/admin", auth.RequireRole(string(access.RoleAdmin))))
	openapi.NewGenerator(e, "Clinic API", apiVersion, auth.IsPublicPath).RegisterRoutes(api)

	return e
}
