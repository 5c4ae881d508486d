package application

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/automationsAC/property-creator-v3/internal/airtable"
	"github.com/automationsAC/property-creator-v3/internal/api"
	"github.com/automationsAC/property-creator-v3/internal/config"
	"github.com/automationsAC/property-creator-v3/internal/metrics"
	"github.com/automationsAC/property-creator-v3/internal/records"
)

const metricsNamespace = "property_creator"

const userAgent = "property-creator/1.0"

// App encapsulates the application dependencies and HTTP server.
type App struct {
	root   http.Handler
	logger *zap.Logger
	server *http.Server
}

// Option configures New.
type Option func(*options)

type options struct {
	records    api.RecordService
	httpClient *http.Client
}

// WithRecordService replaces the Airtable-backed record service, primarily
// for tests. Credentials are not required when it is set.
func WithRecordService(svc api.RecordService) Option {
	return func(o *options) {
		o.records = svc
	}
}

// WithHTTPClient sets the client used for upstream calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var m *metrics.Metrics
	if cfg.EnableMetrics {
		m = metrics.New(metricsNamespace)
	}

	svc := o.records
	if svc == nil {
		table, err := newTable(cfg.Airtable, o.httpClient)
		if err != nil {
			return nil, err
		}
		svc = records.New(table, logger, records.WithMetrics(m))
	}

	handler := api.NewHandler(svc, logger)
	apiRouter := api.NewRouter(handler, api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	rootHandler, err := BuildRootHandler(cfg, apiRouter, logger, m)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP handler: %w", err)
	}

	return &App{
		root:   rootHandler,
		logger: logger,
		server: NewServer(cfg, rootHandler),
	}, nil
}

func newTable(cfg config.AirtableConfig, hc *http.Client) (*airtable.Table, error) {
	if cfg.APIKey == "" || cfg.BaseID == "" || cfg.TableID == "" {
		return nil, errors.New("airtable credentials are not configured")
	}

	clientOpts := []airtable.Option{
		airtable.WithUserAgent(userAgent),
		airtable.WithTypecast(cfg.Typecast),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, airtable.WithBaseURL(cfg.BaseURL))
	}
	if hc != nil {
		clientOpts = append(clientOpts, airtable.WithHTTPClient(hc))
	} else if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, airtable.WithTimeout(cfg.Timeout))
	}

	return airtable.NewClient(cfg.APIKey, clientOpts...).Table(cfg.BaseID, cfg.TableID), nil
}

// BuildRootHandler constructs the root HTTP handler: liveness routes, the
// OpenAPI document, metrics and the record API under {API_V1_STR}/airtable.
// A nil m disables the metrics endpoint and middleware.
func BuildRootHandler(cfg config.Config, apiHandler http.Handler, logger *zap.Logger, m *metrics.Metrics) (http.Handler, error) {
	openAPI, err := api.OpenAPI(cfg.ProjectName, cfg.APIV1Str)
	if err != nil {
		return nil, err
	}

	compress, err := gzhttp.NewWrapper(gzhttp.MinSize(gzipMinSize))
	if err != nil {
		return nil, fmt.Errorf("gzip wrapper: %w", err)
	}

	r := chi.NewRouter()
	r.Use(api.RequestID)
	if cfg.EnableRequestLogging {
		r.Use(api.Logging(logger))
	}
	r.Use(api.Metrics(m))
	r.Use(api.Recovery(logger))
	r.Use(api.CORS)
	r.Use(func(next http.Handler) http.Handler { return compress(next) })

	r.NotFound(api.NotFound)
	r.MethodNotAllowed(api.MethodNotAllowed)

	r.Get("/", api.Welcome)
	r.Get("/health", api.Health)
	r.Get(cfg.APIV1Str+"/openapi.json", openAPI)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}
	r.Mount(cfg.APIV1Str+"/airtable", apiHandler)

	return r, nil
}

const gzipMinSize = 1024

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.root
}
