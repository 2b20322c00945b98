// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, API-key authentication, plan quotas, rate limiting,
// and activity recording.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-legal-assistant-backend/internal/config"
	"github.com/tbourn/go-legal-assistant-backend/internal/http/handlers"
	"github.com/tbourn/go-legal-assistant-backend/internal/http/middleware"
	"github.com/tbourn/go-legal-assistant-backend/internal/services"
)

// Services bundles the application services the router depends on. All
// fields are required except Activity, which may be nil to disable request
// recording (tests).
type Services struct {
	Auth     *services.AuthService
	Quota    *services.QuotaService
	Chat     *services.ChatService
	Document *services.DocumentService
	Activity *services.ActivityRecorder
	Replay   *services.ReplayStore
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting,
// CORS and security headers, health and metrics endpoints, the unauthenticated
// /auth surface, and the API-key-protected versioned API.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with credential/PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Gzip compression
//  6. Metrics
//  7. Rate limiter (per account/IP)
//  8. CORS and security headers
//
// On the protected group: APIKeyAuth resolves the account, ActivityLog
// snapshots the request, QuotaGate admits or rejects (exempt prefixes
// bypass), then handlers run.
func RegisterRoutes(r *gin.Engine, svcs Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction. The API key can ride the query
	// string, so masking the header alone is not enough; the query scrubber
	// handles ?apiKey=.
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderAPIKey},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Compress responses; transcripts and generated answers are text.
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per account/IP (edge abuse control; the
	// plan quota below is the product-level admission decision)
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByAccountOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderAPIKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderAPIKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeBadRequest, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	chatH := handlers.NewChatHandlers(svcs.Chat)
	docH := handlers.NewDocumentHandlers(svcs.Document)
	authH := handlers.NewAuthHandlers(svcs.Auth)

	// First-party surface: no API key required.
	auth := r.Group("/auth")
	{
		auth.POST("/signup", authH.Signup)
		auth.POST("/login", authH.Login)
	}

	// Exempt prefixes are absolute request paths; the default "/chat" covers
	// the first-party conversational surface below.
	exempt := make([]string, 0, len(cfg.Quota.ExemptPaths))
	for _, p := range cfg.Quota.ExemptPaths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		exempt = append(exempt, p)
	}

	// guard applies the protected-surface chain: key resolution, activity
	// recording, idempotent-retry replay, then plan-quota admission. The
	// replay step sits before the quota gate so a replayed response never
	// consumes quota.
	guard := func(g *gin.RouterGroup) {
		g.Use(middleware.APIKeyAuth(svcs.Auth))
		if svcs.Activity != nil {
			g.Use(middleware.ActivityLog(svcs.Activity))
		}
		if svcs.Replay != nil {
			g.Use(middleware.Idempotency(svcs.Replay))
		}
		g.Use(middleware.QuotaGate(svcs.Quota, exempt))
	}

	// API-key-protected programmatic surface (plan-metered).
	api := groupWithPrefix(r, cfg.APIBasePath)
	guard(api)
	{
		// Chat
		api.POST("/chat", chatH.Chat)
		api.GET("/conversations", chatH.ListConversations)
		api.GET("/conversations/:id", chatH.GetConversation)

		// Documents
		api.POST("/documents", docH.Analyze)
		api.POST("/documents/query", docH.Query)

		// Usage summary rides the activity ledger.
		if svcs.Activity != nil {
			api.GET("/usage", handlers.NewUsageHandlers(svcs.Activity).Usage)
		}
	}

	// First-party conversational surface: key-resolved and recorded like the
	// versioned endpoint, but plan-unlimited via the exempt prefix list. Only
	// mounted when it does not collide with the versioned chat route.
	if joinPath(cfg.APIBasePath, "/chat") != "/chat" {
		chat := r.Group("/chat")
		guard(chat)
		chat.POST("", chatH.Chat)
	}

	// Key management rides a session token, not an API key: a caller with
	// an expired key must still be able to mint a fresh one.
	keys := r.Group(joinPath(cfg.APIBasePath, "/keys"))
	keys.Use(middleware.SessionAuth(svcs.Auth))
	{
		keys.POST("", authH.IssueKey)
		keys.GET("", authH.ListKeys)
		keys.DELETE("/:id", authH.RevokeKey)
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath concatenates a base path and a suffix, treating "/" as root.
func joinPath(base, suffix string) string {
	if base == "" || base == "/" {
		return suffix
	}
	return base + suffix
}
