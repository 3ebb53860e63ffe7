package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/turbine-common/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/norasector/gnmax/pkg/gnmax"
	"github.com/norasector/gnmax/pkg/gnmax/config"
	"github.com/norasector/gnmax/pkg/gnmax/control"
	"github.com/norasector/gnmax/pkg/gnmax/device"
	"github.com/norasector/gnmax/pkg/gnmax/output"
	"github.com/norasector/gnmax/pkg/util"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "gnmax.yaml", "YAML config file")
	flag.Parse()

	opts, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error loading config")
	}

	level, err := zerolog.ParseLevel(opts.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("log_level", opts.LogLevel).Msg("bad log level")
	}
	log.Logger = log.Logger.Level(level)

	log.Info().Str("device", opts.Device).Msg("initializing device...")
	driver, err := gnmax.NewDriver(opts)
	if err != nil {
		log.Fatal().Str("device", opts.Device).Err(err).Msg("failed to create device")
	}

	var writeAPI api.WriteAPI = &util.MockWriteAPI{}
	if opts.InfluxDB.Host != "" {
		client := influxdb2.NewClient(opts.InfluxDB.Host, opts.InfluxDB.Token)
		defer client.Close()
		writeAPI = client.WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)
	}

	sourceOpts := []gnmax.SourceOption{gnmax.WithLogger(log.Logger)}
	if opts.ChunkLimit > 0 {
		sourceOpts = append(sourceOpts, gnmax.WithChunkLimit(opts.ChunkLimit))
	}
	source, err := gnmax.NewSource(driver, gnmax.SourceOptions(opts), sourceOpts...)
	if err != nil {
		log.Fatal().Str("device", opts.Device).Err(err).Msg("failed to start sampler")
	}

	receiver := gnmax.NewReceiver(source,
		gnmax.WithInfluxDB(writeAPI),
		gnmax.WithReceiverLogger(log.Logger),
		gnmax.WithIdleDelay(opts.IdleDelay),
		gnmax.WithMonitor(opts.Monitor.Interval, opts.Monitor.FFTSize, float64(opts.SampleRate)),
	)

	var dest io.Writer = io.Discard
	if opts.RecordLocation != "" {
		f, err := os.Create(opts.RecordLocation)
		if err != nil {
			receiver.Stop()
			log.Fatal().Err(err).Str("path", opts.RecordLocation).Msg("failed to create recording file")
		}
		defer f.Close()
		dest = f
		log.Info().Str("path", opts.RecordLocation).Msg("recording samples")
	}
	sink := output.NewSampleWriter(dest, output.WithMetrics(writeAPI))

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eg, ctx := errgroup.WithContext(rootCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var controlServer *control.Server
	if opts.ControlServer.Port > 0 {
		controlServer = control.NewServer(opts.ControlServer.Port, receiver)
		eg.Go(func() error {
			return controlServer.Run(ctx)
		})
	}

	eg.Go(func() error {
		select {
		case <-sigChan:
			log.Info().Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}

		if controlServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := controlServer.Stop(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("control server shutdown")
			}
		}
		return receiver.Stop()
	})

	// The sink outlives the receiver so the tail of the stream reaches dest.
	sinkCtx, sinkCancel := context.WithCancel(context.Background())
	defer sinkCancel()
	sinkDone := make(chan struct{})

	segments := make(chan *types.SegmentComplex64)
	eg.Go(func() error {
		defer sinkCancel()
		for seg := range segments {
			select {
			case <-sinkDone:
				return nil
			case sink.Receive() <- seg:
			}
		}
		return nil
	})

	eg.Go(func() error {
		defer close(sinkDone)
		if err := sink.Start(sinkCtx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		defer close(segments)
		return receiver.Start(ctx, segments)
	})

	err = eg.Wait()
	switch {
	case err == nil, err == context.Canceled:
	case opts.Device == config.DeviceFile && errors.Is(err, device.ErrRead):
		log.Info().Str("path", opts.PlaybackLocation).Msg("playback finished")
	default:
		log.Fatal().Err(err).Msg("exited program")
	}
}
