package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"dealscan-engine/internal/config"
	"dealscan-engine/internal/dedup"
	"dealscan-engine/internal/domain"
	"dealscan-engine/internal/events"
	"dealscan-engine/internal/health"
	"dealscan-engine/internal/httpapi"
	"dealscan-engine/internal/notify"
	"dealscan-engine/internal/scan"
	"dealscan-engine/internal/scrape"
	"dealscan-engine/internal/scrape/leboncoin"
	"dealscan-engine/internal/secrets"
	"dealscan-engine/internal/store"
)

func main() {
	var (
		dataDir    = flag.String("data", envOr("DEALSCAN_DATA_DIR", "."), "data directory (db, user config, lock)")
		defaultCfg = flag.String("config", filepath.Join("config", "config.yml"), "shipped default config")
		addr       = flag.String("addr", "127.0.0.1:38472", "HTTP listen address")
		once       = flag.Bool("once", false, "run a single scan cycle and exit")
	)
	flag.Parse()

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	// One engine per data dir; a second instance would fight over the rate
	// limiter state and hammer the sources.
	lock := flock.New(filepath.Join(*dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("lock: %v", err)
	}
	if !locked {
		log.Fatalf("another engine is already running in %s", *dataDir)
	}
	defer lock.Unlock() //nolint:errcheck

	userCfgPath, err := config.EnsureUserConfig(*dataDir, *defaultCfg)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		raw, err := config.Load(userCfgPath)
		if err != nil {
			return config.Config{}, err
		}
		normalized, vr := config.NormalizeAndValidate(raw)
		for _, warning := range vr.Warnings {
			log.Printf("[config] warning: %s", warning)
		}
		if !vr.OK() {
			return config.Config{}, errors.New("invalid config: " + vr.Errors[0])
		}
		return normalized, nil
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	cfgVal.Store(cfg)

	dbPath := filepath.Join(*dataDir, "dealscan.db")
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := store.Migrate(db.Pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Dedup index, warmed from the store so a restart never renotifies.
	index := dedup.NewIndex(db)
	exact, soft, err := db.Fingerprints(ctx)
	if err != nil {
		log.Fatalf("preload fingerprints: %v", err)
	}
	index.Preload(exact, soft)
	log.Printf("[main] dedup index warmed with %d fingerprints", len(exact))

	// Health tracker: per-source limits plus a separate gate for detail pages.
	tracker := health.NewTracker(health.Config{})
	for name, sc := range cfg.Sources {
		if !sc.Enabled {
			continue
		}
		hc := scan.TrackerConfig(sc)
		tracker.Configure(name, hc)
		tracker.Configure(name+"#detail", hc)
	}
	if states, err := db.LoadSourceStates(ctx); err != nil {
		log.Printf("[main] restore source states: %v", err)
	} else if len(states) > 0 {
		tracker.Restore(states)
	}

	// Scraper plugins.
	registry := scrape.NewRegistry()
	if sc, ok := cfg.Sources[leboncoin.SourceName]; ok && sc.Enabled {
		if err := registry.Register(leboncoin.New(leboncoin.Config{SearchURL: sc.SearchURL})); err != nil {
			log.Fatal(err)
		}
	}

	// Notification channels.
	router := notify.NewRouter(alertRoutes(cfg))
	if cfg.Notify.Discord.Enabled {
		url, err := secrets.GetWebhookURL(cfg.Notify.Discord)
		if err != nil {
			log.Printf("[main] discord disabled: %v", err)
		} else {
			router.Register(notify.NewDiscord(url, cfg.Notify.Discord.Username))
		}
	}
	if cfg.Notify.NATS.Enabled {
		nc, err := notify.NewNATS(cfg.Notify.NATS.URL, cfg.Notify.NATS.Subject)
		if err != nil {
			log.Printf("[main] nats disabled: %v", err)
		} else {
			defer nc.Close()
			router.Register(nc)
		}
	}

	hub := events.NewHub()
	orch := scan.NewOrchestrator(cfg, registry, tracker, index, db, router, hub)

	if *once {
		orch.RunCycle(ctx)
		return
	}

	var scanStatus atomic.Value
	scanStatus.Store(httpapi.ScanStatus{})

	mux := httpapi.NewMux(httpapi.Deps{
		DB:           db,
		Hub:          hub,
		Tracker:      tracker,
		CfgVal:       &cfgVal,
		ScanStatus:   &scanStatus,
		UserCfgPath:  userCfgPath,
		LoadCfg:      loadCfg,
		RunCycle:     func() { orch.RunCycle(context.Background()) },
		CycleRunning: orch.Running,
	})

	handler := httpapi.Chain(mux,
		httpapi.RequestID,
		httpapi.AccessLog,
		httpapi.Recover,
		httpapi.Cors,
	)

	listenAddr := *addr
	if cfg.App.Port > 0 {
		host, _, err := net.SplitHostPort(listenAddr)
		if err == nil {
			listenAddr = net.JoinHostPort(host, strconv.Itoa(cfg.App.Port))
		}
	}
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Fatal(err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("[main] engine listening on http://%s (db=%s)", ln.Addr(), dbPath)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	// The scan loop owns the shutdown: an in-flight cycle finishes before we
	// tear down the server.
	err = orch.Run(ctx)
	log.Printf("[main] scan loop stopped: %v", err)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] server shutdown: %v", err)
	}
}

func alertRoutes(cfg config.Config) map[domain.AlertLevel][]string {
	routes := make(map[domain.AlertLevel][]string, len(cfg.Notify.Routes))
	for tier, channels := range cfg.Notify.Routes {
		routes[domain.AlertLevel(tier)] = channels
	}
	return routes
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
