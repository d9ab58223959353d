package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"scenecast.dev/internal/client"
	"scenecast.dev/internal/observability"
	"scenecast.dev/internal/persistence/indexdb"
	"scenecast.dev/internal/persistence/record"
	"scenecast.dev/internal/protocol"
	"scenecast.dev/internal/protocol/fixture"
	"scenecast.dev/internal/protocol/wire"
	"scenecast.dev/internal/scene"
)

type options struct {
	dir       string
	indexPath string
	dumpPath  string
}

func main() {
	var (
		dir       = flag.String("dir", "", "recording directory containing *.rec.zst")
		indexPath = flag.String("index", "", "sqlite index to write replay outcomes to (optional)")
		dumpPath  = flag.String("dump", "", "write the last session's decodable frames as a JSON fixture (optional)")
		logLevel  = flag.String("log_level", "warn", "log level")
	)
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "missing -dir")
		os.Exit(2)
	}
	logger := observability.InitLogger("replay", *logLevel, "console")

	err := replay(options{dir: *dir, indexPath: *indexPath, dumpPath: *dumpPath}, logger, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
}

type summary struct {
	files    int
	sessions int
	frames   int
	bytes    int64
	items    int
	stats    client.PipelineStats
	atlas    int64
}

func replay(opts options, logger zerolog.Logger, out io.Writer) error {
	files, err := record.ListFiles(opts.dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no recordings in %s", opts.dir)
	}

	var sum summary
	sum.files = len(files)
	renderer := scene.RendererFunc(func(_ context.Context, l *scene.DrawList) error {
		sum.items += len(l.Items)
		return nil
	})

	var cfg client.PipelineConfig
	if opts.indexPath != "" {
		idx, err := indexdb.OpenSQLite(opts.indexPath)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
		cfg.Index = idx
	}
	p := client.NewPipeline(renderer, cfg, logger)
	ctx := context.Background()

	var dump []protocol.FrameMessage
	err = record.Each(files, func(rec record.Record) error {
		switch rec.Kind {
		case record.KindSession:
			p.EndSession()
			p.BeginSession(uuid.NewString(), "replay:"+string(rec.Payload))
			sum.sessions++
			dump = dump[:0]
		case record.KindFrame:
			sum.frames++
			sum.bytes += int64(len(rec.Payload))
			if opts.dumpPath != "" {
				if f, err := wire.UnmarshalFrame(append([]byte(nil), rec.Payload...)); err == nil {
					dump = append(dump, *f)
				}
			}
			p.HandleFrame(ctx, rec.Payload)
		default:
			logger.Warn().Uint8("kind", uint8(rec.Kind)).Msg("unknown record kind")
		}
		return nil
	})
	p.EndSession()
	if err != nil {
		return err
	}
	sum.stats = p.Stats()
	sum.atlas = p.AtlasStats().Bytes

	fmt.Fprintf(out, "files=%d sessions=%d frames=%s payload=%s items=%s atlas=%s\n",
		sum.files, sum.sessions, humanize.Comma(int64(sum.frames)), humanize.Bytes(uint64(sum.bytes)),
		humanize.Comma(int64(sum.items)), humanize.Bytes(uint64(sum.atlas)))
	fmt.Fprintln(out, sum.stats.String())

	if opts.dumpPath != "" {
		b, err := fixture.Encode(fmt.Sprintf("replayed from %s", opts.dir), dump)
		if err != nil {
			return fmt.Errorf("encode fixture: %w", err)
		}
		if err := os.WriteFile(opts.dumpPath, b, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %d frames to %s\n", len(dump), opts.dumpPath)
	}
	return nil
}
