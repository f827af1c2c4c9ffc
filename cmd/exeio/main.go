package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/philopaterwaheed/exeio/internal/config"
	"github.com/philopaterwaheed/exeio/internal/httpapi"
	"github.com/philopaterwaheed/exeio/internal/logsink"
	"github.com/philopaterwaheed/exeio/internal/pathguard"
	"github.com/philopaterwaheed/exeio/internal/supervisor"
	"github.com/philopaterwaheed/exeio/pkg/hostutil"
)

// version is overridden via -ldflags at build time.
var version = "dev"

var (
	flagHost   string
	flagPort   int
	flagAPIKey string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exeio",
		Short: "exeio",
		Long:  "exeio is a single-host process supervisor: lifecycle management, auto-restart with backoff, periodic scheduling, and a JSON/HTTP control plane.",
		RunE:  runSupervisor,
	}

	cmd.Flags().StringVarP(&flagHost, "host", "H", "127.0.0.1", "Bind host for the control plane")
	cmd.Flags().IntVarP(&flagPort, "port", "P", 8080, "Bind port for the control plane")
	cmd.Flags().StringVarP(&flagAPIKey, "api-key", "k", "", "Shared secret required on every authenticated request (generated if omitted)")

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = "ts"
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	return zap.Must(logConfig.Build())
}

func runSupervisor(cmd *cobra.Command, args []string) error {
	log := newLogger().Named("main")
	defer log.Sync()

	if err := hostutil.ValidateHost(flagHost); err != nil {
		log.Error("invalid bind host", zap.Error(err))
		os.Exit(1)
	}
	if err := hostutil.ValidatePort(flagPort); err != nil {
		log.Error("invalid bind port", zap.Error(err))
		os.Exit(1)
	}

	paths, err := pathguard.Resolve()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}

	guard, err := pathguard.Acquire(log, paths.LockFile)
	if err != nil {
		log.Error("startup aborted", zap.Error(err))
		os.Exit(1)
	}
	// Release the single-instance lock on an unrecovered panic too, not
	// just on a clean /shutdown or SIGINT/SIGTERM (§4.1).
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic, releasing lock", zap.Any("panic", r))
			guard.Release()
			panic(r)
		}
	}()

	apiKey := flagAPIKey
	if apiKey == "" {
		apiKey = generateAPIKey()
		log.Info("generated api key", zap.String("exeio-api-key", apiKey))
	}

	sink := logsink.New(log, flagHost, flagPort)
	store := config.New(log, paths.ConfigFile)
	sup := supervisor.New(log, sink, store, paths.LogsDir)
	sup.LoadPersisted()

	var srv *httpapi.Server
	shutdown := func() {
		sup.Shutdown()
		guard.Release()
		httpapi.ExitAfterFlush(0)
	}

	srv = httpapi.New(log, sup, httpapi.Options{
		Host:    flagHost,
		Port:    flagPort,
		APIKey:  apiKey,
		Version: version,
		DevCORS: os.Getenv("EXEIO_ENV") == "dev",
	}, shutdown)

	installSignalHandlers(log, func() {
		sup.Shutdown()
		guard.Release()
		srv.Shutdown()
		os.Exit(0)
	})

	printBanner(log, flagHost, flagPort, apiKey)

	if err := srv.ListenAndServe(); err != nil {
		guard.Release()
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// installSignalHandlers arranges for SIGINT/SIGTERM to run the same
// teardown as /shutdown, releasing the lock file before the process exits
// (§4.1: "installs cleanup hooks that delete the lock on SIGINT/SIGTERM").
func installSignalHandlers(log *zap.Logger, teardown func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
		teardown()
	}()
}

func generateAPIKey() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing here means the host's entropy source is
		// broken; fall back to a fixed, clearly-marked placeholder rather
		// than starting with no authentication at all.
		return "exeio_philo0000000000000000000000"
	}
	return "exeio_philo" + hex.EncodeToString(buf)
}

// printBanner prints a human-readable startup banner listing every route,
// matching the original daemon's boot-time route listing.
func printBanner(log *zap.Logger, host string, port int, apiKey string) {
	log.Info("exeio supervisor starting",
		zap.String("version", version),
		zap.String("bind", fmt.Sprintf("%s:%d", host, port)),
	)
	fmt.Printf("exeio %s listening on %s:%d\n", version, host, port)
	fmt.Printf("exeio-api-key: %s\n", apiKey)
	fmt.Println("routes:")
	for _, ep := range httpapi.Endpoints() {
		fmt.Printf("  %s\n", ep)
	}
}
