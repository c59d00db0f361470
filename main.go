package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Banegasn/canvas/assets"
	"github.com/Banegasn/canvas/canvas"
	"github.com/Banegasn/canvas/config"
	"github.com/Banegasn/canvas/engine"
	"github.com/Banegasn/canvas/hub"
	"github.com/Banegasn/canvas/metrics"
	ws "github.com/Banegasn/canvas/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel)
	checkAssetRoot(cfg.AssetRoot)

	board, err := canvas.New(cfg.Width, cfg.Height)
	if err != nil {
		slog.Error("canvas error", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	eng := engine.New(board, hub.New(), engine.WithMetrics(metrics.New(metrics.WithRegistry(registry))))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.Run(ctx)
	}()

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: newRouter(eng, registry, cfg.AssetRoot),
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "width", cfg.Width, "height", cfg.Height)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	<-engineDone
}

func setupLogger(name string) {
	level := slog.LevelInfo
	switch name {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// checkAssetRoot warns when the browser client cannot be served; the
// websocket endpoint works either way.
func checkAssetRoot(root string) bool {
	info, err := os.Stat(filepath.Join(root, "index.html"))
	if err != nil || info.IsDir() {
		slog.Warn("asset root has no index.html, static requests will return 404", "assetRoot", root)
		return false
	}
	slog.Info("serving static files", "assetRoot", root)
	return true
}

func newRouter(eng *engine.Engine, gatherer prometheus.Gatherer, assetRoot string) http.Handler {
	upgrade := wsHandler(eng)
	files := assets.NewHandler(assetRoot)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", upgrade)
	r.Get("/health", healthHandler)
	r.Get("/stats", statsHandler(eng))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// the browser client dials the server root
	r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			upgrade(w, r)
			return
		}
		files.ServeHTTP(w, r)
	}))

	return r
}

func wsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade error", "error", err)
			return
		}

		wsConn := ws.NewConn(uuid.New().String(), conn, eng, eng)
		wsConn.Start()
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type statsResponse struct {
	Online int    `json:"online"`
	Pixels uint64 `json:"pixels"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func statsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := eng.Stats()
		settings := eng.Settings()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(statsResponse{
			Online: stats.Online,
			Pixels: stats.Pixels,
			Width:  settings.Width,
			Height: settings.Height,
		})
	}
}
