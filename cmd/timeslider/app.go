package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/OCAP2/timeslider/internal/config"
	"github.com/OCAP2/timeslider/internal/dispatcher"
	"github.com/OCAP2/timeslider/internal/engine"
	"github.com/OCAP2/timeslider/internal/handlers"
	"github.com/OCAP2/timeslider/internal/logging"
	"github.com/OCAP2/timeslider/internal/marker"
	"github.com/OCAP2/timeslider/internal/markerstore"
	"github.com/OCAP2/timeslider/internal/monitor"
	intOtel "github.com/OCAP2/timeslider/internal/otel"
	"github.com/OCAP2/timeslider/internal/presenter"
	"github.com/OCAP2/timeslider/internal/provider"
	"github.com/OCAP2/timeslider/internal/storage"
	"github.com/OCAP2/timeslider/pkg/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// app holds everything a session opens, in the order it must be closed.
type app struct {
	slogManager *logging.SlogManager
	logger      *slog.Logger
	logFile     *os.File
	otel        *intOtel.Provider
	backend     storage.Backend
	engine      *engine.Engine
	dispatcher  *dispatcher.Dispatcher
	monitor     *monitor.Service
}

func newApp(cmd *cobra.Command, out io.Writer) (*app, error) {
	sessionStart := time.Now()
	a := &app{slogManager: logging.NewSlogManager()}

	a.slogManager.Setup(nil, "info", nil)
	a.logger = a.slogManager.Logger()

	if err := config.Load(flags.configDir); err != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		a.logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}
	applyFlagOverrides(cmd)
	level := config.GetString("logLevel")

	f, path, err := logging.OpenLogFile(config.GetString("logsDir"), sessionStart)
	if err != nil {
		a.logger.Error("Failed to create/open log file!", "error", err, "path", path)
	} else {
		a.logFile = f
		a.logger.Info("Begin logging in logs directory", "path", path)
	}

	var otelLogProvider *sdklog.LoggerProvider
	if oc := config.OTel(); oc.Enabled {
		var sink io.Writer
		if a.logFile != nil {
			sink = a.logFile
		}
		a.otel, err = intOtel.New(intOtel.Config{
			Enabled:        true,
			ServiceName:    oc.ServiceName,
			BatchTimeout:   oc.BatchTimeout,
			MetricInterval: oc.MetricInterval,
			LogWriter:      sink,
			Endpoint:       oc.Endpoint,
			Insecure:       oc.Insecure,
		})
		if err != nil {
			a.logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			otelLogProvider = a.otel.LoggerProvider()
			a.logger.Info("OTel provider initialized", "endpoint", oc.Endpoint)
		}
	}

	if a.logFile != nil {
		a.slogManager.Setup(a.logFile, level, otelLogProvider)
	} else {
		a.slogManager.Setup(nil, level, otelLogProvider)
	}
	a.logger = a.slogManager.Logger()

	if err := a.openEngine(out, level); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) openEngine(out io.Writer, level string) error {
	var err error
	a.backend, err = storage.NewBackend(storage.Dependencies{
		Storage:  config.Storage(),
		DB:       config.DB(),
		Logger:   a.logger,
		DBLogger: logging.NewZerolog(a.slogManager.Writer(), level, "database"),
	})
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	if err := a.backend.Init(); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	store := markerstore.New(markerstore.WithBackend(a.backend), markerstore.WithLogger(a.logger))
	if err := store.Restore(); err != nil {
		a.logger.Warn("Failed to restore marker states", "error", err)
	}

	dc := config.Data()
	var popts []provider.Option
	if dc.Validate {
		popts = append(popts, provider.WithValidation())
	}
	prov, err := provider.LoadFile(dc.Path, popts...)
	if err != nil {
		return fmt.Errorf("loading recordings: %w", err)
	}
	a.logger.Info("Loaded recordings", "path", dc.Path, "tracks", prov.Tracks(), "days", len(prov.Days()))

	mc := config.Marker()
	sched, manual, err := newScheduler(mc)
	if err != nil {
		return err
	}

	tc := config.Timeline()
	renderer := presenter.NewText(out,
		presenter.Verbose(flags.verbose),
		presenter.WithTrackNames(func(t int) string { return prov.Metadata(t).Name }),
	)
	opts := []engine.Option{
		engine.WithLogger(a.logger),
		engine.WithStore(store),
		engine.WithScheduler(sched),
		engine.WithLocation(prov.Location()),
		engine.WithZoom(tc.Zoom),
		engine.WithWidth(tc.Width, tc.MinScaleWidth),
		engine.WithTheme(tc.Theme),
		engine.WithSpeed(mc.Speed),
		engine.WithSweepStale(mc.SweepStale),
		engine.OnActivate(func(act engine.Activation) {
			a.logger.Info("Marker activated", "track", act.Track, "name", act.Metadata.Name, "time", act.Time)
		}),
	}
	if tc.Date != "" {
		d, err := core.ParseDate(tc.Date)
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithDate(d))
	}

	a.engine, err = engine.New(prov, renderer, opts...)
	if err != nil {
		return fmt.Errorf("creating timeline: %w", err)
	}
	a.slogManager.SetViewAttrs(a.engine.ViewAttrs)

	a.dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(
		logging.NewZerolog(a.slogManager.Writer(), level, "dispatcher")))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	handlers.NewService(handlers.Dependencies{
		Engine:   a.engine,
		Logger:   a.logger,
		Manual:   manual,
		Location: prov.Location(),
	}).RegisterHandlers(a.dispatcher)
	monCfg := config.Monitor()
	a.monitor = monitor.NewService(monitor.Dependencies{
		Source:     a.engine,
		Store:      store,
		Backend:    a.backend,
		Logger:     a.logger,
		StatusFile: monCfg.StatusFile,
		Interval:   monCfg.Interval,
	})
	a.registerSessionCommands()

	if err := a.engine.Render(); err != nil {
		return err
	}
	if monCfg.Enabled {
		if err := a.monitor.Start(); err != nil {
			a.logger.Error("Failed to start status monitor", "error", err)
		}
	}
	return nil
}

// registerSessionCommands adds the commands that act on the session rather
// than the timeline.
func (a *app) registerSessionCommands() {
	a.dispatcher.Register("help", func(dispatcher.Event) (any, error) {
		return a.dispatcher.Help() + "quit\n", nil
	})
	a.dispatcher.Register("loglevel", func(e dispatcher.Event) (any, error) {
		return "log level " + a.slogManager.SetLevel(e.Args[0]).String(), nil
	}, dispatcher.MinArgs(1), dispatcher.Usage("debug|info|warn|error"))
	a.dispatcher.Register("status", func(dispatcher.Event) (any, error) {
		return a.monitor.Status()
	})
	a.dispatcher.Register("flush", func(dispatcher.Event) (any, error) {
		if f, ok := a.backend.(storage.Flusher); ok {
			if err := f.Flush(); err != nil {
				return nil, err
			}
		}
		return "flushed", nil
	}, dispatcher.Logged())
}

func newScheduler(mc config.MarkerConfig) (marker.Scheduler, *marker.ManualScheduler, error) {
	switch mc.TickMode {
	case "timer", "":
		return marker.NewTimerScheduler(mc.TickInterval), nil, nil
	case "frame":
		return marker.NewFrameScheduler(mc.FrameInterval), nil, nil
	case "manual":
		m := marker.NewManualScheduler()
		return m, m, nil
	default:
		return nil, nil, fmt.Errorf("%w: tick mode %q", core.ErrInvalidInput, mc.TickMode)
	}
}

func (a *app) close() {
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.engine != nil {
		if err := a.engine.Destroy(); err != nil {
			a.logger.Error("Failed to destroy timeline", "error", err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Error("Failed to close storage", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			a.logger.Error("Failed to shut down OTel", "error", err)
		}
	}
	if err := a.slogManager.Flush(ctx); err != nil {
		a.logger.Error("Failed to flush logs", "error", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}
