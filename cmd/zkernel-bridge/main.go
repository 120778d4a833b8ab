package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	zkernel "github.com/zcli/zkernel"
	"github.com/zcli/zkernel/bridge"
	"github.com/zcli/zkernel/config"
)

func main() {
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := loggerConfig.Build()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	port := flag.Int("port", 0, "Port to run the bridge on (overrides config)")
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	watch := flag.Bool("watch", true, "Reload configuration on file change")
	flag.Parse()

	cfg, err := config.NewYamlConfig(*configPath, logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	defer cfg.Close()
	if *watch {
		if err := cfg.Watch(); err != nil {
			logger.Warn("Configuration watcher unavailable", zap.Error(err))
		}
	}

	overrideListenAddr := ""
	if *port != 0 {
		overrideListenAddr = fmt.Sprintf(":%d", *port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		logger.Info("Received shutdown signal, stopping bridge...")
		cancel()
	}()

	rt, err := zkernel.NewRuntime(cfg, logger, builtinFunctions(cfg)...)
	if err != nil {
		logger.Fatal("Failed to build runtime", zap.Error(err))
	}
	defer rt.Close()

	server, errChan, err := rt.StartBridge(ctx, overrideListenAddr)
	if err != nil {
		logger.Fatal("Failed to start bridge", zap.Error(err))
	}

	select {
	case startErr := <-errChan:
		if startErr != nil {
			logger.Fatal("Bridge encountered an error", zap.Error(startErr))
		}
		logger.Info("Bridge shutdown initiated cleanly")
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		bridge.ShutdownHTTPServer(shutdownCtx, logger, server)
	}

	logger.Info("Bridge stopped")
}
