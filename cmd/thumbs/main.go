package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"strconv"

	"github.com/DMarby/thumbs/internal/cache/memory"
	"github.com/DMarby/thumbs/internal/cmd"
	"github.com/DMarby/thumbs/internal/health"
	"github.com/DMarby/thumbs/internal/image"
	"github.com/DMarby/thumbs/internal/image/thumbnailer"
	"github.com/DMarby/thumbs/internal/logger"
	"github.com/DMarby/thumbs/internal/metrics"
	"github.com/DMarby/thumbs/internal/storage"
	fileStorage "github.com/DMarby/thumbs/internal/storage/file"
	"github.com/DMarby/thumbs/internal/storage/spaces"
	"github.com/DMarby/thumbs/internal/tracing"

	api "github.com/DMarby/thumbs/internal/thumbapi"

	"github.com/jamiealquiza/envy"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

// Comandline flags
var (
	// Global
	host          = flag.String("host", "127.0.0.1", "host to listen on")
	port          = flag.Int("port", 3030, "port to listen on")
	metricsListen = flag.String("metrics-listen", "127.0.0.1:8082", "metrics listen address")
	loglevel      = zap.LevelFlag("log-level", zap.InfoLevel, "log level (default \"info\") (debug, info, warn, error, dpanic, panic, fatal)")

	// Rendering
	workers = flag.Int("workers", runtime.NumCPU(), "number of thumbnail rendering workers")

	// Cache
	cacheSize = flag.Int("cache-size", memory.DefaultCapacity, "maximum number of thumbnails to keep in the cache")

	// Storage
	storageBackend = flag.String("storage", "file", "which storage backend to use (file, spaces)")

	// Storage - File
	storageFilePath = flag.String("storage-file-path", ".", "path to the file storage")

	// Storage - Spaces
	storageSpacesSpace          = flag.String("storage-spaces-space", "", "digitalocean space to use")
	storageSpacesEndpoint       = flag.String("storage-spaces-endpoint", "", "custom s3 compatible endpoint, defaults to the spaces region endpoint")
	storageSpacesRegion         = flag.String("storage-spaces-region", "", "spaces region")
	storageSpacesAccessKey      = flag.String("storage-spaces-access-key", "", "spaces access key")
	storageSpacesSecretKey      = flag.String("storage-spaces-secret-key", "", "spaces secret key")
	storageSpacesForcePathStyle = flag.Bool("storage-spaces-force-path-style", false, "use path style addressing for the bucket")

	// Tracing
	tracingEnabled = flag.Bool("tracing", false, "export traces over otlp")

	// Healthcheck
	healthCheckImageID = flag.String("health-check-image-id", "", "image ID to request from the storage to check storage health")
)

func main() {
	// Parse environment variables
	envy.Parse("THUMBS")

	// Parse commandline flags
	flag.Parse()

	// Initialize the logger
	log := logger.New(*loglevel)
	defer log.Sync()

	// Set GOMAXPROCS
	maxprocs.Set(maxprocs.Logger(log.Infof))

	// Set up context for shutting down
	shutdownCtx, shutdown := context.WithCancel(context.Background())
	defer shutdown()

	// Initialize tracing
	tracer, err := setupTracer(shutdownCtx, log)
	if err != nil {
		log.Fatalf("error initializing tracing: %s", err)
	}
	defer tracer.Shutdown(context.Background())

	// Initialize the storage
	storage, err := setupStorage()
	if err != nil {
		log.Fatalf("error initializing storage: %s", err)
	}

	// Initialize the result cache once, before serving
	cache, err := memory.New(*cacheSize)
	if err != nil {
		log.Fatalf("error initializing cache: %s", err)
	}
	defer cache.Shutdown()

	// Initialize the thumbnail renderer
	imageProcessorCtx, imageProcessorCancel := context.WithCancel(context.Background())
	defer imageProcessorCancel()

	imageProcessor, err := thumbnailer.New(imageProcessorCtx, log.Named("thumbnailer"), tracer, *workers, storage)
	if err != nil {
		log.Fatalf("error initializing image processor %s", err.Error())
	}

	// Initialize and start the health checker
	checkerCtx, checkerCancel := context.WithCancel(context.Background())
	defer checkerCancel()

	checker := &health.Checker{
		Ctx:     checkerCtx,
		Storage: storage,
		ImageID: *healthCheckImageID,
		Cache:   cache,
		Log:     log.Named("health"),
	}
	go checker.Run()

	// Start and listen on http
	api := &api.API{
		ImageProcessor: imageProcessor,
		Cache:          image.NewCache(tracer, cache),
		HealthChecker:  checker,
		Log:            log,
		Tracer:         tracer,
		HandlerTimeout: cmd.HandlerTimeout,
	}

	listen := net.JoinHostPort(*host, strconv.Itoa(*port))
	server := &http.Server{
		Addr:         listen,
		Handler:      api.Router(),
		ReadTimeout:  cmd.ReadTimeout,
		WriteTimeout: cmd.WriteTimeout,
		ErrorLog:     logger.NewHTTPErrorLog(log),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.Infof("shutting down the http server: %s", err)
			shutdown()
		}
	}()

	log.Infof("http server listening on %s", listen)

	// Start the metrics http server
	go metrics.Serve(shutdownCtx, log, checker, *metricsListen)

	// Wait for shutdown or error
	err = cmd.WaitForInterrupt(shutdownCtx)
	log.Infof("shutting down: %s", err)

	// Shut down http server
	serverCtx, serverCancel := context.WithTimeout(context.Background(), cmd.WriteTimeout)
	defer serverCancel()
	if err := server.Shutdown(serverCtx); err != nil {
		log.Warnf("error shutting down: %s", err)
	}
}

func setupTracer(ctx context.Context, log *logger.Logger) (*tracing.Tracer, error) {
	if !*tracingEnabled {
		return tracing.NewNoop(log, "thumbs"), nil
	}

	return tracing.New(ctx, log, "thumbs")
}

func setupStorage() (storage storage.Provider, err error) {
	switch *storageBackend {
	case "file":
		storage, err = fileStorage.New(*storageFilePath)
	case "spaces":
		storage, err = spaces.New(
			*storageSpacesSpace,
			*storageSpacesEndpoint,
			*storageSpacesRegion,
			*storageSpacesAccessKey,
			*storageSpacesSecretKey,
			*storageSpacesForcePathStyle,
		)
	default:
		err = fmt.Errorf("invalid storage backend")
	}

	return
}
