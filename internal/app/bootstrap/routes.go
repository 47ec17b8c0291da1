// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	alertfeature "github.com/dalemusser/anomalyhub/internal/app/features/alert"
	auditlogfeature "github.com/dalemusser/anomalyhub/internal/app/features/auditlog"
	authgooglefeature "github.com/dalemusser/anomalyhub/internal/app/features/authgoogle"
	camerafeature "github.com/dalemusser/anomalyhub/internal/app/features/camera"
	dashboardfeature "github.com/dalemusser/anomalyhub/internal/app/features/dashboard"
	errorsfeature "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/anomalyhub/internal/app/features/health"
	loginfeature "github.com/dalemusser/anomalyhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/anomalyhub/internal/app/features/logout"
	registerfeature "github.com/dalemusser/anomalyhub/internal/app/features/register"
	settingsfeature "github.com/dalemusser/anomalyhub/internal/app/features/settings"
	systemusersfeature "github.com/dalemusser/anomalyhub/internal/app/features/systemusers"
	"github.com/dalemusser/anomalyhub/internal/app/store/audit"
	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"github.com/dalemusser/anomalyhub/internal/app/system/detection"
	"github.com/dalemusser/anomalyhub/internal/app/system/guard"
	"github.com/dalemusser/anomalyhub/internal/app/system/limits"
	"github.com/dalemusser/anomalyhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// guardExempt lists path prefixes the route guard never intercepts. They
// either need no session or enforce their own.
var guardExempt = []string{
	"/static/",
	"/health",
	"/auth/google",
	"/logout",
	"/forbidden",
	"/unauthorized",
}

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. It initializes the template engine,
// applies session, CSRF and route-guard middleware, and mounts every
// feature router.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := deps.Services
	if svc == nil || svc.Identity == nil || svc.Resolver == nil {
		return nil, errors.New("build handler: services not initialized; Startup must run first")
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	// Roles come from the resolver, which the auth-state hub keeps fresh.
	sessionMgr.SetResolver(svc.Resolver)

	// Initialize and boot the template engine once at startup.
	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	errLog := errorsfeature.NewErrorLogger(logger)
	detectionClient := detection.NewClient(appCfg.DetectionURL)

	svc.LoginLimiter = ratelimit.NewLoginLimiter()
	svc.ResetLimiter = ratelimit.NewResetLimiter()

	r := chi.NewRouter()

	// Health check and static assets sit outside sessions and CSRF.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, appCfg.IdentityBackend, detectionClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	r.Group(func(r chi.Router) {
		r.Use(limits.FormBody(limits.MaxFormSize))
		if !secure {
			// gorilla/csrf assumes TLS; plain-http dev requests must say otherwise.
			r.Use(markPlaintext)
		}
		r.Use(csrf.Protect(
			[]byte(appCfg.CSRFKey),
			csrf.Secure(secure),
			csrf.Path("/"),
			csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logger.Warn("csrf check failed",
					zap.String("path", r.URL.Path),
					zap.Error(csrf.FailureReason(r)))
				errorsfeature.RenderForbidden(w, r, "Your form expired. Please reload the page and try again.", r.URL.Path)
			})),
		))

		// Global auth middleware: resolves the cookie into a session and, once
		// the role is known, a SessionUser.
		r.Use(sessionMgr.LoadSessionUser)
		r.Use(guard.Middleware(auth.CurrentSession, logger, guardExempt...))

		// Authentication
		loginHandler := loginfeature.NewHandler(svc.Identity, sessionMgr, errLog, svc.Audit,
			svc.LoginLimiter, svc.ResetLimiter,
			appCfg.GoogleEnabled(), appCfg.IdentityBackend == BackendMongo, logger)
		r.Mount("/login", loginfeature.Routes(loginHandler))

		registerHandler := registerfeature.NewHandler(svc.Identity, sessionMgr, errLog, svc.Audit, logger)
		r.Mount("/register", registerfeature.Routes(registerHandler))

		if appCfg.GoogleEnabled() {
			googleHandler := authgooglefeature.NewHandler(svc.Identity, sessionMgr, svc.OAuthState, svc.Audit,
				appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, logger)
			r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))
		}

		logoutHandler := logoutfeature.NewHandler(svc.Identity, sessionMgr, svc.Audit, logger)
		r.Mount("/logout", logoutfeature.Routes(logoutHandler))

		// Error pages
		errorsHandler := errorsfeature.NewHandler()
		r.Get("/forbidden", errorsHandler.Forbidden)
		r.Get("/unauthorized", errorsHandler.Unauthorized)

		// Signed-in areas
		cameraHandler := camerafeature.NewHandler(detectionClient, errLog, logger)
		r.Mount("/camera", camerafeature.Routes(cameraHandler, sessionMgr))

		alertHandler := alertfeature.NewHandler(svc.Identity, errLog, logger)
		r.Mount("/alert", alertfeature.Routes(alertHandler, sessionMgr))

		settingsHandler := settingsfeature.NewHandler(svc.Identity, sessionMgr, errLog, svc.Audit, logger)
		r.Mount("/settings", settingsfeature.Routes(settingsHandler, sessionMgr))

		sysUsersHandler := systemusersfeature.NewHandler(svc.Identity, errLog, svc.Audit, logger)
		r.Mount("/system-users", systemusersfeature.Routes(sysUsersHandler, sessionMgr))

		auditHandler := auditlogfeature.NewHandler(audit.New(deps.MongoDatabase), svc.Identity, errLog, logger)
		r.Mount("/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

		// Dashboard owns "/", "/dashboard/logs" and "/video".
		dashboardHandler := dashboardfeature.NewHandler(detectionClient, appCfg.DetectionPollInterval, logger)
		r.Mount("/", dashboardfeature.Routes(dashboardHandler, sessionMgr))
	})

	return r, nil
}

func markPlaintext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			r = csrf.PlaintextHTTPRequest(r)
		}
		next.ServeHTTP(w, r)
	})
}
