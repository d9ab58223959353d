package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"scenecast.dev/internal/config"
	"scenecast.dev/internal/observability"
	"scenecast.dev/internal/protocol"
	"scenecast.dev/internal/protocol/fixture"
	"scenecast.dev/internal/transport/ws"
)

func main() {
	var (
		configPath = flag.String("config", "", "config file (.yaml or .toml, optional)")
		addr       = flag.String("addr", "", "listen address (overrides host.addr)")
		fixtureArg = flag.String("fixture", "", "JSON fixture to stream instead of the demo scene")
		fps        = flag.Int("fps", 0, "frames per second (overrides host.fps)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Host.Addr = *addr
	}
	if *fixtureArg != "" {
		cfg.Host.Fixture = *fixtureArg
	}
	if *fps > 0 {
		cfg.Host.FPS = *fps
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger := observability.InitLogger("scenehost", cfg.Log.Level, cfg.Log.Format)
	observability.RegisterMetrics()

	src, err := newSource(cfg.Host, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("scene source")
	}

	hub := ws.NewHub(ws.Config{
		ClientQueue:     cfg.Host.ClientQueue,
		MaxClients:      cfg.Host.MaxClients,
		MaxMessageBytes: cfg.Host.MaxMessageBytes,
		InputRate:       cfg.Host.InputRate,
		InputBurst:      cfg.Host.InputBurst,
	}, logger.With().Str("component", "hub").Logger())

	ctx, cancel := signalContext()
	defer cancel()

	lp := &loop{hub: hub, src: src, log: logger, interval: cfg.Host.FrameInterval()}
	srv := &http.Server{
		Addr:              cfg.Host.Addr,
		Handler:           newRouter(cfg.Host.Path, hub, lp, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().
			Str("addr", cfg.Host.Addr).
			Str("path", cfg.Host.Path).
			Int("fps", cfg.Host.FPS).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server")
			cancel()
		}
	}()

	lp.run(ctx)

	hub.Close()
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Str("frames", humanize.Comma(int64(lp.frameID()))).Msg("stopped")
}

func newSource(cfg config.HostConfig, logger zerolog.Logger) (source, error) {
	if cfg.Fixture == "" {
		d := newDemo(protocol.Size{Width: cfg.Viewport.Width, Height: cfg.Viewport.Height}, cfg.Viewport.ScaleFactor)
		var n int
		for _, e := range atlasEntries() {
			n += len(e.PixelData)
		}
		logger.Info().Str("atlas", humanize.Bytes(uint64(n))).Msg("serving demo scene")
		return d, nil
	}
	frames, err := fixture.Load(cfg.Fixture)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%s: no frames", cfg.Fixture)
	}
	logger.Info().Str("fixture", cfg.Fixture).Int("frames", len(frames)).Msg("serving fixture")
	return &fixtureSource{frames: frames}, nil
}

func newRouter(scenePath string, hub *ws.Hub, lp *loop, logger zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), observability.RequestLogger(logger), observability.RequestMetricsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ok":       true,
			"clients":  hub.ClientCount(),
			"frame_id": lp.frameID(),
			"atlas":    hub.MirrorSize(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET(scenePath, gin.WrapF(hub.Handler()))
	return r
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
