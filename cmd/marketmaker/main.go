package main

import (
	"context"
	"flag"
	"log"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/yanun0323/logs"

	"marketmaker/internal/api"
	"marketmaker/internal/chaos"
	"marketmaker/internal/core"
	"marketmaker/internal/feed"
	"marketmaker/internal/journal"
	"marketmaker/internal/obs"
	"marketmaker/internal/ops"
	"marketmaker/internal/paper"
	"marketmaker/internal/signal"
	"marketmaker/internal/state"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	envPath := flag.String("env", "", "Path to .env file (default: ./.env when present)")
	adminAddr := flag.String("admin", "", "Admin API listen address (overrides config)")
	flag.Parse()

	loaded, err := ops.Load(*configPath, *envPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *adminAddr != "" {
		loaded.Admin.Addr = *adminAddr
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, loaded); err != nil {
		logs.Errorf("market maker stopped, err: %+v", err)
		stop()
		os.Exit(1)
	}
	logs.Infof("market maker stopped")
}

func run(ctx context.Context, cfg ops.Loaded) error {
	if cfg.Profiling.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.Profiling.AppName,
			ServerAddress:   cfg.Profiling.ServerAddress,
			Tags:            map[string]string{"symbol": cfg.Symbol},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := obs.NewMetrics(reg)

	latch, err := state.Open(ctx, cfg.Latch, cfg.Symbol)
	if err != nil {
		return err
	}
	defer func() {
		if err := latch.Close(); err != nil {
			logs.Errorf("close latch store, err: %+v", err)
		}
	}()

	faults, err := chaos.NewEngine(cfg.Chaos)
	if err != nil {
		return err
	}
	venue := paper.NewVenue(paper.Config{
		Instrument: cfg.Instrument,
		Position:   cfg.Position,
		Margin:     cfg.Margin,
		Chaos:      faults,
	})
	venue.SetConnected(false)

	var sink journal.Sink = journal.LogSink{}
	if len(cfg.Journal.KafkaBrokers) != 0 {
		ks, err := journal.NewKafkaSink(cfg.Journal.KafkaBrokers, cfg.Journal.KafkaTopic)
		if err != nil {
			return err
		}
		sink = ks
	}
	jr := journal.New(sink, cfg.Journal.Capacity, metrics)
	board := core.NewReportBoard()
	var engineRef core.EngineRef

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Go(func() { jr.Run(ctx) })

	admin := api.NewServer(api.Deps{
		Board:          board,
		Latch:          latch,
		Canceler:       &engineRef,
		Gatherer:       reg,
		Metrics:        metrics,
		Healthy:        venue.StreamConnected,
		AllowedOrigins: cfg.Admin.AllowedOrigins,
	})
	wg.Go(func() {
		if err := admin.Run(ctx, cfg.Admin.Addr); err != nil {
			logs.Errorf("admin api stopped, err: %+v", err)
		}
	})

	trend := signal.NewSource(signal.NewSeries(cfg.HistorySize), cfg.MA1, cfg.MA2)
	traces := obs.NewTraceGenerator(0)

	session := func(ctx context.Context) error {
		stream, err := feed.NewStream(feed.Config{
			URL:          cfg.Feed.URL,
			Symbol:       cfg.Symbol,
			Instrument:   cfg.Instrument,
			Depth:        cfg.Feed.Depth,
			PingInterval: time.Duration(cfg.Feed.PingIntervalMs) * time.Millisecond,
		}, venue)
		if err != nil {
			return err
		}
		engine, err := core.NewEngine(cfg.Engine, core.Deps{
			Market:    venue,
			Client:    venue,
			Trend:     trend,
			Latch:     latch,
			Metrics:   metrics,
			Traces:    traces,
			Observers: []core.Observer{board, jr},
		})
		if err != nil {
			return err
		}
		if err := engine.Init(ctx); err != nil {
			return err
		}
		engineRef.Set(engine)
		return runSession(ctx, stream, engine)
	}

	err = core.NewSupervisor(cfg.Restart, session, metrics).Run(ctx)
	cancel()
	jr.Close()
	wg.Wait()
	return err
}

// runSession starts the engine once the stream is subscribed and runs both
// until either returns, then stops the other one.
func runSession(ctx context.Context, stream *feed.Stream, engine *core.Engine) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	streamErr := make(chan error, 1)
	go func() { streamErr <- stream.Run(ctx) }()

	select {
	case <-stream.Ready():
	case err := <-streamErr:
		return err
	}

	engineErr := make(chan error, 1)
	go func() { engineErr <- engine.Run(ctx) }()

	select {
	case err := <-streamErr:
		cancel()
		<-engineErr
		return err
	case err := <-engineErr:
		cancel()
		<-streamErr
		return err
	}
}
