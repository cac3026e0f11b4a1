// Package http serves the dashboard pages and the JSON API.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"spendalyzer/internal/budget"
	"spendalyzer/internal/core"
	"spendalyzer/internal/log"
	"spendalyzer/internal/middleware/ratelimit"
	"spendalyzer/internal/middleware/security"
	"spendalyzer/internal/middleware/trace"
	"spendalyzer/internal/services"
	"spendalyzer/internal/session"
	appweb "spendalyzer/web"
)

// Dashboard is the controller the handlers drive.
type Dashboard interface {
	Ensure(ctx context.Context, id string) (session.Session, error)
	View(ctx context.Context, id string, period core.Period) (services.View, error)
	LoadUpload(ctx context.Context, id, filename string, raw []byte) (services.LoadResult, error)
	LoadSample(ctx context.Context, id string) (services.LoadResult, error)
	SetRules(ctx context.Context, id string, rules []budget.Rule) error
	AddRule(ctx context.Context, id string, rule budget.Rule) error
	RemoveRule(ctx context.Context, id string, index int) error
	SetOverallBudget(ctx context.Context, id string, amount core.Money) error
	SelectPeriod(ctx context.Context, id string, p core.Period) error
}

// Options tune the server. Zero values fall back to defaults.
type Options struct {
	Addr             string
	MaxUploadBytes   int64
	UploadsPerMinute int
}

const defaultMaxUpload = 10 << 20

type Server struct {
	http.Server
	templates *template.Template
	dash      Dashboard
	logger    *log.Logger
	maxUpload int64
	limiter   *ratelimit.Limiter
	detector  *security.Detector

	shutdownOnce sync.Once
}

// NewServer builds the router. Template parse errors are logged and leave
// the page routes answering 500; health checks keep working.
func NewServer(opts Options, dash Dashboard, logger *log.Logger) *Server {
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}

	s := &Server{
		dash:      dash,
		logger:    logger,
		maxUpload: opts.MaxUploadBytes,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.UploadsPerMinute}),
		detector:  security.NewDetector(logger),
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.WithComponent(log.ComponentTemplate).Error("Failed to parse templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes() http.Handler {
	tracer := trace.NewMiddleware(s.logger, s.detector.ClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(tracer.Middleware)
	r.Use(headers.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(s.limiter.Middleware(s.detector.ClientIP, s.handleRateLimited))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	if static, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		files := http.StripPrefix("/static/", http.FileServer(http.FS(static)))
		r.Handle("/static/*", security.StaticAssetMiddleware(3600)(files))
	}

	r.Group(func(r chi.Router) {
		r.Use(security.NoStore)
		r.Use(s.withSession)

		r.Get("/", s.handleIndex)
		r.Post("/upload", s.handleUpload)
		r.Post("/sample", s.handleSample)
		r.Post("/budget", s.handleBudget)
		r.Post("/period", s.handlePeriod)
		r.Post("/rules", s.handleReplaceRules)
		r.Post("/rules/add", s.handleAddRule)
		r.Post("/rules/{index}/delete", s.handleDeleteRule)

		r.Route("/api", func(r chi.Router) {
			r.Get("/ledger", s.handleAPILedger)
			r.Get("/evaluation", s.handleAPIEvaluation)
			r.Get("/rules", s.handleAPIRules)
			r.Put("/rules", s.handleAPIPutRules)
			r.Put("/budget", s.handleAPIPutBudget)
			r.Post("/upload", s.handleAPIUpload)
			r.Post("/sample", s.handleAPISample)
		})
	})
	return r
}

// Limiter exposes the rate limiter so its cleanup loop can be run.
func (s *Server) Limiter() *ratelimit.Limiter {
	return s.limiter
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "HTTP server shutting down", log.FieldOperation, log.OpShutdown)
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil || s.dash == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldPath, r.URL.Path)
	msg := "Too many requests. Please wait a minute and try again."
	if isAPI(r) {
		writeJSONError(w, http.StatusTooManyRequests, msg)
		return
	}
	ErrorResponse(http.StatusTooManyRequests, msg).Write(w)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money":   func(m core.Money) string { return m.String() },
		"fixed":   func(m core.Money) string { return m.Fixed() },
		"percent": func(p float64) string { return fmt.Sprintf("%.0f%%", p*100) },
		"width":   func(p float64) string { return fmt.Sprintf("%.1f%%", p*100) },
		"comma":   func(n int) string { return humanize.Comma(int64(n)) },
		"join":    strings.Join,
		"over":    func(p float64) bool { return p >= 1 },
		"cell":    cellValue,
	}
}

// cellValue renders one ledger column of a transaction.
func cellValue(t core.Transaction, col string) string {
	switch col {
	case "date":
		return t.Date.String()
	case "amount":
		return t.Amount.Fixed()
	case "description":
		return t.Description
	}
	return t.Extras[col]
}
