package api

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/constituant/constituant/app/apperror"
	"github.com/constituant/constituant/app/metrics"
	"github.com/gin-gonic/gin"
)

// ServerOptions toggle the optional route groups and the vote throttle.
type ServerOptions struct {
	APIAccessKey string
	VoteRate     float64
	VoteBurst    int
}

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, opts ServerOptions) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health", "/metrics"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, opts)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, opts ServerOptions) {
	r.GET("/health", handler.GetHealth)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/feeds/bills.rss", handler.GetFeed)

	public := r.Group("/api")
	{
		public.GET("/bills", handler.ListBills)
		public.GET("/results", handler.GetResults)
		public.POST("/vote", throttle(opts.VoteRate, opts.VoteBurst), handler.CastVote)
	}

	adminEnabled := handler.AdminPassword != ""
	if adminEnabled {
		public.POST("/admin/bill", handler.ManageBill)
	} else {
		slog.Info("Manual bill endpoint disabled (ADMIN_PASSWORD not set)")
	}

	apiEnabled := opts.APIAccessKey != ""
	if apiEnabled {
		admin := r.Group("/api/admin")
		admin.Use(authMiddleware(opts.APIAccessKey))
		{
			admin.GET("/pending", handler.ListPending)
			admin.POST("/pending/:id/approve", handler.ApprovePending)
			admin.POST("/pending/:id/reject", handler.RejectPending)
			admin.GET("/imports", handler.ListImports)
			admin.POST("/ingest", handler.TriggerIngest)
		}
		slog.Info("Review endpoints enabled with authentication")
	} else {
		slog.Info("Review endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"bills":   "/api/bills?level=<all|eu|france>&status=<status>",
			"results": "/api/results?bill_id=<id>",
			"vote":    "/api/vote (POST)",
			"feed":    "/feeds/bills.rss?level=<eu|france>",
			"health":  "/health",
			"metrics": "/metrics",
		}

		if adminEnabled {
			endpoints["admin_bill"] = "/api/admin/bill (POST, requires admin_password)"
		}
		if apiEnabled {
			endpoints["pending"] = "/api/admin/pending (requires X-API-Key header)"
			endpoints["approve"] = "/api/admin/pending/<id>/approve (POST, requires X-API-Key header)"
			endpoints["reject"] = "/api/admin/pending/<id>/reject (POST, requires X-API-Key header)"
			endpoints["imports"] = "/api/admin/imports (requires X-API-Key header)"
			endpoints["ingest"] = "/api/admin/ingest (POST, requires X-API-Key header)"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "Constituant",
			"version":     handler.Version,
			"description": "Vote citoyen sur les projets de loi français et européens",
			"endpoints":   endpoints,
			"api_status": map[string]any{
				"enabled":       apiEnabled,
				"auth_required": apiEnabled,
				"header":        "X-API-Key",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// authMiddleware accepts the key from X-API-Key or Authorization: Bearer.
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			status, body := apperror.ToHTTP(apperror.ErrUnauthorized.WithMessage("Clé API requise (en-tête X-API-Key ou Authorization: Bearer <clé>)"))
			c.AbortWithStatusJSON(status, body)
			return
		}

		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiAccessKey)) != 1 {
			status, body := apperror.ToHTTP(apperror.ErrUnauthorized.WithMessage("Clé API invalide"))
			c.AbortWithStatusJSON(status, body)
			return
		}

		c.Next()
	}
}
