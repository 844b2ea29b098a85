package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/config"
	"github.com/five82/toolroom/internal/data"
	"github.com/five82/toolroom/internal/export"
	"github.com/five82/toolroom/internal/logger"
	"github.com/five82/toolroom/internal/metrics"
	"github.com/five82/toolroom/internal/mockapi"
	"github.com/five82/toolroom/internal/prefs"
	"github.com/five82/toolroom/internal/query"
	"github.com/five82/toolroom/internal/state"
	"github.com/five82/toolroom/internal/ui"
	"github.com/five82/toolroom/internal/workflow"
)

// Options configure the toolroom application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses ~/.config/toolroom/prefs.toml
	PollEvery  int    // seconds; zero uses default
	Demo       bool   // run against an in-process backend with generated data
	ExportPath string // write a workbook and exit instead of starting the UI
}

// Run boots toolroom until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	if err := config.LoadDotenv(); err != nil {
		return err
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := logger.New(logger.Options{Dir: cfg.LogDir, Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLog()

	userPrefs := prefs.Load(opts.PrefsPath)
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = "~/.config/toolroom/prefs.toml"
	}

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Warn("metrics listener stopped", logger.String("addr", cfg.MetricsAddr), logger.ErrorF(err))
			}
		}()
	}

	var tokens api.TokenStore = &api.FileTokenStore{Path: cfg.CredentialsPath}
	if opts.Demo {
		url, err := startDemoBackend(ctx, log)
		if err != nil {
			return err
		}
		cfg.APIURL, cfg.APIKey = url, mockapi.DefaultAPIKey
		tokens = &api.MemoryTokenStore{}
	}

	expired := make(chan struct{}, 1)
	client, err := api.NewClient(api.Options{
		BaseURL:   cfg.APIURL,
		APIKey:    cfg.APIKey,
		Timeout:   cfg.RequestTimeout,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Tokens:    tokens,
		Logger:    log,
		Metrics:   m,
		OnSessionExpired: func() {
			select {
			case expired <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	store := state.NewStore()
	defer store.Close()
	q := query.NewClient(store, query.WithLogger(log), query.WithMetrics(m))
	layer := data.New(q, data.ServicesFrom(client), log)

	thresholds := workflow.Thresholds{
		IntervalHours: cfg.Maintenance.IntervalHours,
		WarningHours:  cfg.Maintenance.WarningHours,
	}

	if opts.ExportPath != "" {
		if opts.Demo {
			if _, err := layer.Login(ctx, "admin", "admin"); err != nil {
				return fmt.Errorf("demo login: %w", err)
			}
		}
		return exportWorkbook(ctx, layer, client, opts.ExportPath, thresholds)
	}

	interval := defaultPollInterval
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Second
	}
	poller := &Poller{
		Source:   LayerRefresher{Layer: layer},
		Store:    store,
		Interval: interval,
		Log:      log,
		Active:   client.Authenticated,
	}
	poller.Start(ctx)

	log.Info("starting",
		logger.String("api", client.BaseURL()),
		logger.Bool("demo", opts.Demo),
		logger.Duration("poll", interval),
	)

	return ui.Run(ui.Options{
		Context:        ctx,
		Layer:          layer,
		Session:        client,
		Config:         &cfg,
		Prefs:          userPrefs,
		PrefsPath:      prefsPath,
		Thresholds:     thresholds,
		SessionExpired: expired,
		Logger:         log,
	})
}

// startDemoBackend serves a seeded mock backend on a loopback port and
// returns its API base URL.
func startDemoBackend(ctx context.Context, log *zap.Logger) (string, error) {
	backend := mockapi.NewBackend()
	if err := mockapi.Seed(backend, mockapi.SeedOptions{}); err != nil {
		return "", fmt.Errorf("seed demo data: %w", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen for demo backend: %w", err)
	}
	srv := &http.Server{
		Handler:           mockapi.NewServer(backend, mockapi.Options{RequireAuth: true, Logger: log}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("demo backend stopped", logger.ErrorF(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return "http://" + ln.Addr().String() + "/api", nil
}

// exportWorkbook writes the machine and parts lists to path.
func exportWorkbook(ctx context.Context, layer *data.Layer, session ui.Session, path string, th workflow.Thresholds) error {
	if !session.Authenticated() {
		return errors.New("export needs a saved session; sign in once from the UI")
	}
	machines := layer.Machines(ctx)
	if machines.Err != nil {
		return fmt.Errorf("load machines: %w", machines.Err)
	}
	parts := layer.Parts(ctx)
	if parts.Err != nil {
		return fmt.Errorf("load parts: %w", parts.Err)
	}
	return export.WriteFile(path, export.Workbook{Machines: machines.Data, Parts: parts.Data, Thresholds: th})
}
