// Package http serves the bookkeeping UI: an HTMX front end over the ledger,
// document, catalog and settings services, plus CSV exports and a sync-status
// view of the outbox.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"contabile/internal/amqp"
	"contabile/internal/cache"
	"contabile/internal/core"
	"contabile/internal/log"
	"contabile/internal/remote"
	"contabile/internal/services"
	"contabile/internal/storage"
	appweb "contabile/web"
)

const (
	partialTimeout = 7 * time.Second

	txCacheSize  = 100
	docCacheSize = 100
	cacheTTL     = 5 * time.Minute
	cacheSweep   = 10 * time.Minute
)

// Deps are the collaborators the server renders and writes through. Nudger
// and Auth are optional; nil disables the sync wake-up and the hosted-account
// actions respectively.
type Deps struct {
	Store     *storage.Store
	Ledger    *services.LedgerService
	Documents *services.DocumentService
	Catalog   *services.CatalogService
	Settings  *services.SettingsService
	Recurring *services.RecurringService
	Nudger    *amqp.Client
	Auth      remote.Authenticator
}

type Server struct {
	http.Server

	store     *storage.Store
	ledger    *services.LedgerService
	documents *services.DocumentService
	catalog   *services.CatalogService
	settings  *services.SettingsService
	recurring *services.RecurringService
	nudger    *amqp.Client
	auth      remote.Authenticator

	templates *template.Template
	logger    *log.Logger

	rateLimiter *rateLimiter
	secMetrics  securityMetrics

	txCache  *cache.LRUCache[[]core.Transaction]
	docCache *cache.LRUCache[[]core.Document]
	caches   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes, templates and caches, returning a
// ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:       deps.Store,
		ledger:      deps.Ledger,
		documents:   deps.Documents,
		catalog:     deps.Catalog,
		settings:    deps.Settings,
		recurring:   deps.Recurring,
		nudger:      deps.Nudger,
		auth:        deps.Auth,
		logger:      log.New(log.Config{Component: log.ComponentHTTP}),
		rateLimiter: newRateLimiter(),
		txCache:     cache.NewLRUCache[[]core.Transaction](txCacheSize, cacheTTL),
		docCache:    cache.NewLRUCache[[]core.Document](docCacheSize, cacheTTL),
		caches:      cache.NewManager(),
	}
	s.caches.Register(s.txCache)
	s.caches.Register(s.docCache)
	s.caches.StartCleanup(cacheSweep)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	// Dashboard and report partials
	mux.HandleFunc("/ui/summary", s.withSecurityHeaders(s.handleSummary))
	mux.HandleFunc("/ui/trend", s.withSecurityHeaders(s.handleTrend))
	mux.HandleFunc("/ui/customers", s.withSecurityHeaders(s.handleCustomers))
	mux.HandleFunc("/ui/vendors", s.withSecurityHeaders(s.handleVendors))
	mux.HandleFunc("/ui/categories", s.withSecurityHeaders(s.handleCategories))
	mux.HandleFunc("/ui/transactions", s.withSecurityHeaders(s.handleTransactionList))
	mux.HandleFunc("/ui/transactions/edit", s.withSecurityHeaders(s.handleTransactionEditForm))
	mux.HandleFunc("/ui/documents", s.withSecurityHeaders(s.handleDocumentList))
	mux.HandleFunc("/ui/documents/edit", s.withSecurityHeaders(s.handleDocumentEditForm))
	mux.HandleFunc("/ui/products", s.withSecurityHeaders(s.handleProductList))
	mux.HandleFunc("/ui/products/edit", s.withSecurityHeaders(s.handleProductEditForm))
	mux.HandleFunc("/ui/services", s.withSecurityHeaders(s.handleServiceList))
	mux.HandleFunc("/ui/services/edit", s.withSecurityHeaders(s.handleServiceEditForm))
	mux.HandleFunc("/ui/recurring", s.withSecurityHeaders(s.handleRecurringList))
	mux.HandleFunc("/ui/recurring/edit", s.withSecurityHeaders(s.handleRecurringEditForm))
	mux.HandleFunc("/ui/settings", s.withSecurityHeaders(s.handleSettingsForm))
	mux.HandleFunc("/ui/sync-status", s.withSecurityHeaders(s.handleSyncStatus))

	// Writes
	mux.HandleFunc("/transactions", s.withSecurityHeaders(s.handleCreateTransaction))
	mux.HandleFunc("/transactions/update", s.withSecurityHeaders(s.handleUpdateTransaction))
	mux.HandleFunc("/transactions/delete", s.withSecurityHeaders(s.handleDeleteTransaction))
	mux.HandleFunc("/documents", s.withSecurityHeaders(s.handleCreateDocument))
	mux.HandleFunc("/documents/update", s.withSecurityHeaders(s.handleUpdateDocument))
	mux.HandleFunc("/documents/status", s.withSecurityHeaders(s.handleDocumentStatus))
	mux.HandleFunc("/documents/delete", s.withSecurityHeaders(s.handleDeleteDocument))
	mux.HandleFunc("/products", s.withSecurityHeaders(s.handleCreateProduct))
	mux.HandleFunc("/products/update", s.withSecurityHeaders(s.handleUpdateProduct))
	mux.HandleFunc("/products/delete", s.withSecurityHeaders(s.handleDeleteProduct))
	mux.HandleFunc("/services", s.withSecurityHeaders(s.handleCreateService))
	mux.HandleFunc("/services/update", s.withSecurityHeaders(s.handleUpdateService))
	mux.HandleFunc("/services/delete", s.withSecurityHeaders(s.handleDeleteService))
	mux.HandleFunc("/recurring", s.withSecurityHeaders(s.handleCreateRecurring))
	mux.HandleFunc("/recurring/update", s.withSecurityHeaders(s.handleUpdateRecurring))
	mux.HandleFunc("/recurring/delete", s.withSecurityHeaders(s.handleDeleteRecurring))
	mux.HandleFunc("/settings", s.withSecurityHeaders(s.handleSaveSettings))
	mux.HandleFunc("/settings/reset-password", s.withSecurityHeaders(s.handlePasswordReset))
	mux.HandleFunc("/sync/retry", s.withSecurityHeaders(s.handleSyncRetry))

	// CSV downloads
	mux.HandleFunc("/export/transactions.csv", s.withSecurityHeaders(s.handleExportTransactions))
	mux.HandleFunc("/export/customers.csv", s.withSecurityHeaders(s.handleExportCustomers))
	mux.HandleFunc("/export/vendors.csv", s.withSecurityHeaders(s.handleExportVendors))
	mux.HandleFunc("/export/categories.csv", s.withSecurityHeaders(s.handleExportCategories))
	mux.HandleFunc("/export/trend.csv", s.withSecurityHeaders(s.handleExportTrend))
	mux.HandleFunc("/export/documents.csv", s.withSecurityHeaders(s.handleExportDocuments))

	return s
}

// withSecurityHeaders adds security headers, rate limiting and request
// logging around a handler.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := log.NewContext(r.Context(), s.logger.With(
			log.FieldRequestID, requestID,
			log.FieldClientIP, clientIP,
		))
		r = r.WithContext(ctx)

		s.logger.RequestStart(ctx, r, requestID, clientIP)

		if detectSuspiciousRequest(r, &s.secMetrics) {
			s.logger.WarnContext(ctx, "Suspicious request detected",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}

		// Writes are rate limited; reads stay cheap through the caches.
		if r.Method == http.MethodPost || r.Method == http.MethodDelete {
			if !s.rateLimiter.allow(clientIP, &s.secMetrics) {
				s.logger.WarnContext(ctx, "Rate limit exceeded",
					log.FieldClientIP, clientIP,
					log.FieldMethod, r.Method,
					log.FieldPath, r.URL.Path)
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.RequestEnd(ctx, r, requestID, clientIP, rw.statusCode, time.Since(start))
	}
}

// responseWriter captures the status code for the completion log line.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown stops the HTTP listener and the background cache and rate-limiter
// sweeps. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// invalidateViews drops every cached listing after a write so the next
// partial render sees the change.
func (s *Server) invalidateViews() {
	s.caches.PurgeAll()
}
