package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NeRF-or-Nothing/panowalk"
	"github.com/NeRF-or-Nothing/panowalk/internal/config"
	"github.com/NeRF-or-Nothing/panowalk/internal/log"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/navigation"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/scene"
	"github.com/NeRF-or-Nothing/panowalk/internal/services"
	"github.com/NeRF-or-Nothing/panowalk/internal/web"
)

func main() {
	configPath := flag.String("config", "panowalk.toml", "path to the TOML configuration file")
	envPath := flag.String("env", config.DefaultEnvFile, "path to the .env file")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Error loading configuration: %s", err))
	}

	// Create viewer logger
	logger, err := log.NewLogger(cfg.Log.Development, cfg.Log.Debug, cfg.Log.File)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	registry, err := scene.Default()
	if err != nil {
		logger.Fatal("Error loading scene registry: ", err)
	}
	logger.Infof("Loaded %d scenes, head %q", registry.Len(), registry.Head().Name)

	navigator, err := navigation.NewNavigator(registry, scene.ID(cfg.StartSceneID))
	if err != nil {
		logger.Fatal("Error choosing start scene: ", err)
	}

	assets, err := panowalk.Assets(cfg.AssetsDir)
	if err != nil {
		logger.Fatal("Error opening assets: ", err)
	}

	// Optional navigation event publishing
	var publisher services.NavigationPublisher = services.NopPublisher{}
	if cfg.RabbitMQ.Enabled() {
		mqService, err := services.NewAMPQService(cfg.RabbitMQ.URL(), cfg.RabbitMQ.Queue, logger.Named("amqp"))
		if err != nil {
			logger.Fatal("Error initializing AMPQ service: ", err)
		}
		defer mqService.Shutdown()
		publisher = mqService
	}

	// Initialize services
	frames := services.NewFrameBroadcaster(logger.Named("frames"))
	viewer := services.NewViewerService(
		registry,
		navigator,
		services.NewPresenter(registry, frames, services.DefaultAssetPrefix, logger.Named("presenter")),
		services.NewInteractionService(registry, logger.Named("interaction")),
		services.NewTextureService(assets, logger.Named("textures")),
		publisher,
		logger.Named("viewer"),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	viewerErr := make(chan error, 1)
	go func() { viewerErr <- viewer.Run(ctx) }()

	// Initialize web server
	server := web.NewWebServer(viewer, frames, registry, assets, cfg.CORSOrigins, logger.Named("web"))
	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Run(cfg.Addr()) }()

	fmt.Printf("Viewer running on http://%s\n", cfg.Addr())

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-viewerErr:
		if err != nil {
			logger.Error("Viewer stopped: ", err)
		}
		stop()
	case err := <-serverErr:
		if err != nil {
			logger.Error("Web server stopped: ", err)
		}
		stop()
	}

	if err := server.Shutdown(); err != nil {
		logger.Error("Error shutting down web server: ", err)
	}
}
