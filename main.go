package main

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cam2web/config"
	"cam2web/internal/capture"
	"cam2web/internal/capture/decorator"
	"cam2web/internal/capture/synthetic"
	"cam2web/internal/propsurface"
	"cam2web/internal/supervisor"
	"cam2web/internal/webserver"
)

//go:embed web/index.html
var embeddedIndex []byte

// Application wires every cam2web component together the way the
// teacher's own main.go's Application struct does: one struct holding
// config, logger and every long-lived component, with Start/Stop driving
// their lifecycle.
type Application struct {
	config *config.Config
	logger *zap.Logger

	engine      *capture.Engine
	settings    *propsurface.MapSurface
	camServer   *webserver.Server
	adminServer *webserver.Server
	supervisor  *supervisor.Supervisor
}

func main() {
	cfg := config.Defaults()
	if err := config.LoadTOML(&cfg, "cam2web.toml"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := config.ParseFlags(&cfg, os.Args[1:]); err != nil {
		// The flag set has already printed usage for unknown or malformed
		// flags; range and group errors are reported here.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := createLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting cam2web",
		zap.String("version", config.AppVersion),
		zap.String("go_version", runtime.Version()),
		zap.String("platform", runtime.GOOS+"/"+runtime.GOARCH))

	app, err := NewApplication(&cfg, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGABRT)

	wakeCh := make(chan os.Signal, 1)
	signal.Notify(wakeCh, syscall.SIGCONT, syscall.SIGUSR1)

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start application", zap.Error(err))
	}

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	go func() {
		for {
			select {
			case sig := <-wakeCh:
				logger.Info("received wake signal", zap.String("signal", sig.String()))
				select {
				case app.supervisor.Wake <- struct{}{}:
				default:
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := app.supervisor.Run(ctx); err != nil {
		logger.Error("supervisor exited with error", zap.Error(err))
	}

	app.Stop()
	logger.Info("cam2web stopped")
}

// NewApplication resolves cfg into a fully wired, not-yet-started set of
// components.
func NewApplication(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	resolution := cfg.Resolution()

	source := synthetic.New(resolution.Width, resolution.Height, float64(cfg.FPS), logger.Named("capture"))
	engine := capture.NewEngine(source, cfg.JPEGQuality, false, logger.Named("capture"))
	dec := decorator.New(engine)
	dec.SetTitle(cfg.Title)
	dec.SetTimestampOverlay(true)
	dec.SetCameraTitleOverlay(cfg.Title != "")
	source.SetListener(dec)

	settings := propsurface.NewMapSurface(
		propsurface.Property{Name: "size", Value: fmt.Sprintf("%d", cfg.Size), Min: "0", Max: "7", Default: "5"},
		propsurface.Property{Name: "fps", Value: fmt.Sprintf("%d", cfg.FPS), Min: "1", Max: "30", Default: "15"},
		propsurface.Property{Name: "jpeg", Value: fmt.Sprintf("%d", cfg.JPEGQuality), Min: "1", Max: "100", Default: "85"},
		propsurface.Property{Name: "title", Value: cfg.Title},
	)

	users, err := loadUsers(cfg, logger)
	if err != nil {
		return nil, err
	}

	camServer := webserver.NewServer(fmt.Sprintf(":%d", cfg.Port), cfg.Realm, webserver.Digest, logger.Named("webserver"))
	if users != nil {
		camServer.Users = users
	}

	fallback := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(embeddedIndex)
	})

	camServer.AddHandler("/", webserver.NewStaticHandler(cfg.WebRoot, fallback), cfg.ViewerGroup(), true)
	camServer.AddHandler("/camera/jpeg", &webserver.SnapshotHandler{Source: engine}, cfg.ViewerGroup(), false)
	camServer.AddHandler("/camera/mjpeg", &webserver.MJPEGHandler{
		Source:   engine,
		Interval: time.Second / time.Duration(maxInt(1, cfg.FPS)),
		Logger:   logger.Named("mjpeg"),
	}, cfg.ViewerGroup(), false)
	camServer.AddHandler("/camera/info", &webserver.InformationHandler{Surface: settings}, cfg.ViewerGroup(), false)
	camServer.AddHandler("/camera/config", &webserver.ConfiguratorHandler{Surface: settings}, cfg.ConfiguratorGroup(), false)
	camServer.AddHandler("/camera/properties", &webserver.PropertiesHandler{Surface: settings}, cfg.ConfiguratorGroup(), false)
	camServer.AddHandler("/version", &webserver.VersionHandler{
		Product:  config.AppName,
		Version:  config.AppVersion,
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}, webserver.Anyone, false)

	adminAddr := cfg.AdminAddr
	if adminAddr == "" {
		adminAddr = fmt.Sprintf(":%d", cfg.Port+1)
	}
	adminServer := webserver.NewAdminServer(adminAddr, engine, logger.Named("admin"))
	if users != nil {
		adminServer.Users = users
	}

	if err := propsurface.LoadFromFile(cfg.FcfgPath, settings, logger); err != nil {
		return nil, err
	}
	sup := supervisor.New(engine, settings, cfg.FcfgPath, []string{"size", "fps", "jpeg", "title"}, time.Minute, logger.Named("supervisor"))

	return &Application{
		config:      cfg,
		logger:      logger,
		engine:      engine,
		settings:    settings,
		camServer:   camServer,
		adminServer: adminServer,
		supervisor:  sup,
	}, nil
}

// Start starts the HTTP servers. Capture itself is started by the
// supervisor, matching spec.md's auto-start-on-launch contract.
func (a *Application) Start() error {
	if err := a.camServer.Start(); err != nil {
		return fmt.Errorf("starting camera server: %w", err)
	}
	if a.adminServer != nil {
		if err := a.adminServer.Start(); err != nil {
			return fmt.Errorf("starting admin server: %w", err)
		}
	}
	return nil
}

// Stop shuts down both HTTP servers. Capture shutdown and configuration
// persistence already happened inside Supervisor.Run.
func (a *Application) Stop() {
	if err := a.camServer.Stop(); err != nil {
		a.logger.Error("error stopping camera server", zap.Error(err))
	}
	if a.adminServer != nil {
		if err := a.adminServer.Stop(); err != nil {
			a.logger.Error("error stopping admin server", zap.Error(err))
		}
	}
}

func loadUsers(cfg *config.Config, logger *zap.Logger) (*webserver.UserStore, error) {
	if cfg.HtpassPath == "" {
		return nil, nil
	}
	return webserver.LoadHtdigestFile(cfg.HtpassPath, cfg.Realm, logger)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// createLogger builds a console-encoded, colored zap logger at the
// requested level, matching the teacher's own createLogger(level string).
func createLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}
