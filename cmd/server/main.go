package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	persistlog "machinearena.ai/internal/persistence/log"
	"machinearena.ai/internal/persistence/snapshot"
	"machinearena.ai/internal/sim/tuning"
	"machinearena.ai/internal/sim/world"
	"machinearena.ai/internal/tools/mcp"
	"machinearena.ai/internal/transport/httpapi"
	"machinearena.ai/internal/transport/ws"
)

func main() {
	// .env only provides defaults; real environment variables win.
	_ = godotenv.Load()

	var (
		addr       = flag.String("addr", envString("ARENA_ADDR", ":8080"), "http listen address")
		worldID    = flag.String("world", envString("ARENA_WORLD", ""), "world id (default: tuning world_id)")
		dataDir    = flag.String("data", envString("ARENA_DATA", "./data"), "runtime data directory")
		tuningPath = flag.String("tuning", envString("ARENA_TUNING", "./configs/tuning.yaml"), "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", envBool("ARENA_DISABLE_DB", false), "disable the sqlite action/snapshot index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		mcpListen     = flag.String("mcp_listen", envString("ARENA_MCP_LISTEN", "127.0.0.1:8090"), "MCP http listen address (empty to disable)")
		mcpHMACSecret = flag.String("mcp_hmac_secret", os.Getenv("ARENA_MCP_HMAC_SECRET"), "MCP hmac secret (empty disables request signing)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}
	if *worldID != "" {
		tune.WorldID = *worldID
	}

	worldDir := filepath.Join(*dataDir, "worlds", tune.WorldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index: upsert tuning: %v", err)
		}
	}

	eng := world.New(tune)
	eng.SetLogger(log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lmicroseconds))

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.LatestSnapshot(filepath.Join(worldDir, "snapshots"))
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != tune.WorldID {
			logger.Fatalf("snapshot world id mismatch: world=%s snap=%s", tune.WorldID, snap.Header.WorldID)
		}
		if err := eng.Restore(snap); err != nil {
			logger.Fatalf("restore snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s machines=%d", filepath.Base(snapshotToLoad), len(snap.Machines))
	} else {
		n := eng.InstallLayout()
		logger.Printf("fresh world %s with %d layout obstacles", tune.WorldID, n)
	}

	actionLog := persistlog.NewActionLogger(worldDir)
	defer actionLog.Close()
	eng.AddActionLogger(actionLog)
	if idx != nil {
		eng.AddActionLogger(idx)
	}

	snapCh := make(chan snapshot.WorldV1, 2)
	eng.SetSnapshotSink(snapCh)

	ctx, cancel := signalContext()
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return writeSnapshots(ctx, snapCh, filepath.Join(worldDir, "snapshots"), idx, logger)
	})
	g.Go(func() error {
		return eng.Run(ctx)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(eng, idx))
	api := httpapi.NewServer(httpapi.Config{
		Engine:         eng,
		Index:          indexOrNil(idx),
		Logger:         logger,
		AdminLocalOnly: !envBool("ARENA_ADMIN_REMOTE", false),
	})
	api.Register(mux)
	wsLogger := log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)
	mux.HandleFunc("/v1/view/ws", ws.NewServer(eng, tune.ViewPoll, wsLogger).Handler())

	g.Go(func() error {
		return serve(ctx, &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}, logger)
	})

	if l := strings.TrimSpace(*mcpListen); l != "" {
		mcpLogger := log.New(os.Stdout, "[mcp] ", log.LstdFlags|log.Lmicroseconds)
		mcpSrv, err := mcp.NewServer(mcp.Config{Engine: eng, HMACSecret: strings.TrimSpace(*mcpHMACSecret), Logger: mcpLogger})
		if err != nil {
			logger.Fatalf("mcp: %v", err)
		}
		if *mcpHMACSecret == "" {
			mcpLogger.Printf("request signing disabled; every caller may act for any owner")
		}
		g.Go(func() error {
			return serve(ctx, &http.Server{Addr: l, Handler: mcpSrv.Handler(), ReadHeaderTimeout: 5 * time.Second}, mcpLogger)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("stopped: %v", err)
	}

	// Final snapshot on the way out so restarts lose nothing.
	if err := writeFinalSnapshot(eng, filepath.Join(worldDir, "snapshots"), idx); err != nil {
		logger.Printf("final snapshot: %v", err)
	}
}

func serve(ctx context.Context, srv *http.Server, logger *log.Logger) error {
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()
	logger.Printf("listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
