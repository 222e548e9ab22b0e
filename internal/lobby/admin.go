package lobby

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/nimctl/internal/auth"
	"github.com/danmuck/nimctl/internal/match"
	"github.com/danmuck/nimctl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

// AdminHandler serves health, metrics and lobby state as JSON.
func (s *Service) AdminHandler() http.Handler {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware("nimd"))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.cfg.CORSOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": "nimd",
			"version": version,
		})
	})

	routes := r.Group("/")
	if token := strings.TrimSpace(s.cfg.AdminToken); token != "" {
		routes.Use(requireToken(auth.StaticToken{Token: token}))
	}
	routes.GET("/metrics", gin.WrapH(promhttp.Handler()))
	routes.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"sessions": s.Sessions(),
		})
	})
	routes.GET("/sessions/results", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"results": resultViews(s.Results()),
		})
	})
	routes.GET("/lobby", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Snapshot())
	})
	return r
}

func requireToken(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.CheckBearer(v, c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

type resultView struct {
	SessionID  string `json:"session_id"`
	Winner     int    `json:"winner"`
	WinnerName string `json:"winner_name"`
	Forfeit    bool   `json:"forfeit"`
	Board      string `json:"board"`
	Moves      int    `json:"moves"`
	Duration   string `json:"duration"`
}

func resultViews(results []match.Result) []resultView {
	out := make([]resultView, 0, len(results))
	for _, r := range results {
		out = append(out, resultView{
			SessionID:  r.SessionID,
			Winner:     r.Winner,
			WinnerName: r.WinnerName,
			Forfeit:    r.Forfeit,
			Board:      r.Board.String(),
			Moves:      r.Moves,
			Duration:   r.Duration.String(),
		})
	}
	return out
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}

// serveHTTP runs handler on addr until ctx is done.
func (s *Service) serveHTTP(ctx context.Context, addr string, handler http.Handler, name string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Str("addr", ln.Addr().String()).Str("server", name).Msg("lobby.http_listening")

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
