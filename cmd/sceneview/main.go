package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"scenecast.dev/internal/atlas"
	"scenecast.dev/internal/client"
	"scenecast.dev/internal/config"
	"scenecast.dev/internal/input"
	"scenecast.dev/internal/observability"
	"scenecast.dev/internal/persistence/indexdb"
	"scenecast.dev/internal/persistence/record"
	"scenecast.dev/internal/persistence/upload"
	"scenecast.dev/internal/protocol"
	"scenecast.dev/internal/protocol/fixture"
	"scenecast.dev/internal/protocol/wire"
)

func main() {
	var (
		configPath = flag.String("config", "", "config file (.yaml or .toml, optional)")
		url        = flag.String("url", "", "host WebSocket URL (overrides viewer.url)")
		recordDir  = flag.String("record", "", "directory for frame recordings (overrides viewer.record_dir)")
		indexPath  = flag.String("index", "", "sqlite index path (overrides viewer.index_path)")
		metrics    = flag.String("metrics", "", "metrics listen address (overrides viewer.metrics_addr)")
		fixtureArg = flag.String("fixture", "", "render a JSON fixture once and exit")
		probe      = flag.Bool("probe", false, "send synthetic pointer input while connected")
		logEvery   = flag.Duration("log_every", 5*time.Second, "interval between render log lines")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(2)
	}
	v := &cfg.Viewer
	if *url != "" {
		v.URL = *url
	}
	if *recordDir != "" {
		v.RecordDir = *recordDir
	}
	if *indexPath != "" {
		v.IndexPath = *indexPath
	}
	if *metrics != "" {
		v.MetricsAddr = *metrics
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger := observability.InitLogger("sceneview", cfg.Log.Level, cfg.Log.Format)
	observability.RegisterMetrics()
	renderer := newStatsRenderer(logger, *logEvery)

	if *fixtureArg != "" {
		os.Exit(renderFixture(*fixtureArg, cfg.Viewer, renderer, logger, os.Stdout))
	}

	pcfg := client.PipelineConfig{
		Limits: wire.Limits{MaxMessageBytes: v.MaxMessageBytes},
		Atlas:  atlas.Config{TextureWidth: v.Atlas.TextureWidth, TextureHeight: v.Atlas.TextureHeight},
	}
	if v.RecordDir != "" {
		w := record.NewWriter(v.RecordDir, "frames")
		if v.Upload.Enabled() {
			up, err := newUploader(v, logger)
			if err != nil {
				logger.Fatal().Err(err).Msg("recording upload")
			}
			// Runs after the writer's deferred Close so the last file is queued.
			defer up.Close()
			w.OnFileClosed(up.Enqueue)
		}
		defer w.Close()
		pcfg.Recorder = w
		logger.Info().Str("dir", v.RecordDir).Msg("recording frames")
	}
	if v.IndexPath != "" {
		idx, err := indexdb.OpenSQLite(v.IndexPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", v.IndexPath).Msg("open index")
		}
		defer func() {
			st := idx.Stats()
			if st.DropFrameTotal > 0 || st.DropSessionTotal > 0 {
				logger.Warn().Uint64("frames", st.DropFrameTotal).Uint64("sessions", st.DropSessionTotal).Msg("index rows dropped")
			}
			_ = idx.Close()
		}()
		pcfg.Index = idx
	}
	pipeline := client.NewPipeline(renderer, pcfg, logger.With().Str("component", "pipeline").Logger())

	c := client.New(client.Config{
		URL:            v.URL,
		ReconnectDelay: v.ReconnectDelay(),
		InputQueue:     v.InputQueue,
		Limits:         pcfg.Limits,
		Input: input.Config{
			MultiClickInterval: v.Input.MultiClickInterval(),
			MultiClickRadius:   v.Input.MultiClickRadius,
			LineHeight:         v.Input.LineHeight,
			PageHeight:         v.Input.PageHeight,
		},
		Viewport:    protocol.Size{Width: v.Viewport.Width, Height: v.Viewport.Height},
		ScaleFactor: v.Viewport.ScaleFactor,
	}, pipeline, logger.With().Str("component", "client").Logger())

	ctx, cancel := signalContext()
	defer cancel()

	if v.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              v.MetricsAddr,
			Handler:           newMetricsRouter(c, pipeline, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", v.MetricsAddr).Msg("metrics listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server")
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
	}
	if *probe {
		go runProbe(ctx, c, v.Viewport, logger)
	}

	logger.Info().Str("url", v.URL).Msg("connecting")
	if err := c.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("client stopped")
	}
	logger.Info().Str("stats", pipeline.Stats().String()).Msg("stopped")
	renderer.summary(os.Stdout, pipeline.LastDrawList())
}

// newUploader reads bucket credentials from the environment.
func newUploader(v *config.ViewerConfig, logger zerolog.Logger) (*upload.Uploader, error) {
	c, err := upload.NewClient(upload.ClientConfig{
		Endpoint:        v.Upload.Endpoint,
		Bucket:          v.Upload.Bucket,
		Region:          v.Upload.Region,
		AccessKeyID:     os.Getenv("SCENECAST_S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("SCENECAST_S3_SECRET_ACCESS_KEY"),
	})
	if err != nil {
		return nil, err
	}
	logger.Info().Str("bucket", v.Upload.Bucket).Str("prefix", v.Upload.Prefix).Msg("uploading recordings")
	return upload.NewUploader(c, upload.UploaderConfig{
		BaseDir: v.RecordDir,
		Prefix:  v.Upload.Prefix,
		Workers: v.Upload.Workers,
		Queue:   v.Upload.Queue,
	}, logger.With().Str("component", "upload").Logger()), nil
}

// renderFixture pushes every fixture frame through a fresh pipeline and
// returns the process exit code.
func renderFixture(path string, v config.ViewerConfig, r *statsRenderer, logger zerolog.Logger, out io.Writer) int {
	frames, err := fixture.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load fixture:", err)
		return 1
	}
	p := client.NewPipeline(r, client.PipelineConfig{
		Limits: wire.Limits{MaxMessageBytes: v.MaxMessageBytes},
		Atlas:  atlas.Config{TextureWidth: v.Atlas.TextureWidth, TextureHeight: v.Atlas.TextureHeight},
	}, logger)
	ctx := context.Background()
	for i := range frames {
		p.HandleFrame(ctx, wire.MarshalFrame(&frames[i]))
	}
	st := p.Stats()
	fmt.Fprintf(out, "fixture %s: %s\n", path, st)
	r.summary(out, p.LastDrawList())
	if st.Rendered == 0 {
		return 1
	}
	return 0
}

func newMetricsRouter(c *client.Client, p *client.Pipeline, logger zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), observability.RequestLogger(logger), observability.RequestMetricsMiddleware())
	r.GET("/healthz", func(ctx *gin.Context) {
		st := p.Stats()
		ctx.JSON(http.StatusOK, gin.H{
			"connected":     c.Connected(),
			"rendered":      st.Rendered,
			"stale":         st.Stale,
			"decode_errors": st.DecodeErrors,
			"last_frame_id": st.LastFrameID,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// runProbe moves the pointer around a circle and clicks once a second.
func runProbe(ctx context.Context, c *client.Client, vp config.ViewportConfig, logger zerolog.Logger) {
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	cx, cy := vp.Width/2, vp.Height/2
	r := float64(min(vp.Width, vp.Height)) / 4
	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		a := float64(n) * math.Pi / 40
		x, y := cx+float32(r*math.Cos(a)), cy+float32(r*math.Sin(a))
		var err error
		switch {
		case n%20 == 0:
			err = c.Dispatch(input.ButtonPressed{Button: protocol.ButtonLeft, X: x, Y: y})
		case n%20 == 1:
			err = c.Dispatch(input.ButtonReleased{Button: protocol.ButtonLeft, X: x, Y: y})
		default:
			err = c.Dispatch(input.PointerMoved{X: x, Y: y})
		}
		if err != nil && !errors.Is(err, client.ErrNotConnected) {
			logger.Debug().Err(err).Msg("probe input dropped")
		}
	}
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
