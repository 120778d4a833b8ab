package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	zkernel "github.com/zcli/zkernel"
	"github.com/zcli/zkernel/config"
	"github.com/zcli/zkernel/terminal"
)

func main() {
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// Interactive shell: keep the prompt clean unless something breaks.
	loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	logger, err := loggerConfig.Build()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	user := flag.String("user", "local", "User id for the shell session")
	flag.Parse()

	cfg, err := config.NewYamlConfig(*configPath, logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	defer cfg.Close()

	rt, err := zkernel.NewRuntime(cfg, logger,
		zkernel.WithFunction("echo", func(_ context.Context, args map[string]any) (any, error) {
			return args, nil
		}),
		zkernel.WithFunction("now", func(_ context.Context, _ map[string]any) (any, error) {
			return time.Now().UTC().Format(time.RFC3339), nil
		}),
	)
	if err != nil {
		logger.Fatal("Failed to build runtime", zap.Error(err))
	}
	defer rt.Close()

	sess := rt.Sessions.Create(*user, nil)
	repl := terminal.New(rt.Dispatcher, sess, os.Stdin, os.Stdout, logger)

	if err := repl.Run(context.Background()); err != nil {
		logger.Fatal("Shell terminated with error", zap.Error(err))
	}
}
