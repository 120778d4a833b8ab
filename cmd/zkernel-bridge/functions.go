package main

import (
	"context"
	"time"

	zkernel "github.com/zcli/zkernel"
	"github.com/zcli/zkernel/config"
)

// builtinFunctions returns the function set every bridge deployment
// carries: introspection helpers callable as &echo, &server_info, &now.
func builtinFunctions(cfg config.Config) []zkernel.Option {
	return []zkernel.Option{
		zkernel.WithFunction("echo", func(_ context.Context, args map[string]any) (any, error) {
			return args, nil
		}),
		zkernel.WithFunction("now", func(_ context.Context, _ map[string]any) (any, error) {
			return time.Now().UTC().Format(time.RFC3339), nil
		}),
		zkernel.WithFunction("server_info", func(_ context.Context, _ map[string]any) (any, error) {
			name, err := cfg.ServerName()
			if err != nil {
				return nil, err
			}
			version, err := cfg.ServerVersion()
			if err != nil {
				return nil, err
			}
			return map[string]any{"name": name, "version": version}, nil
		}),
	}
}
