package bridge

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/zcli/zkernel/config"
)

// StartHTTPServer starts the HTTP/HTTPS listener for the bridge mux. It
// returns the server instance and a channel that reports listener errors
// occurring after startup; an immediate error is returned when setup fails
// before the listener starts.
func StartHTTPServer(ctx context.Context, logger *zap.Logger, cfg config.Config, mux http.Handler, overrideListenAddr string) (*http.Server, <-chan error, error) {
	if logger == nil {
		return nil, nil, errors.New("logger cannot be nil")
	}
	if cfg == nil {
		return nil, nil, errors.New("config cannot be nil")
	}
	if mux == nil {
		return nil, nil, errors.New("http handler (mux) cannot be nil")
	}

	listenAddr := overrideListenAddr
	if listenAddr == "" {
		var err error
		listenAddr, err = cfg.ListenAddr()
		if err != nil {
			return nil, nil, fmt.Errorf("get listen address: %w", err)
		}
	}

	server := &http.Server{
		Addr:         listenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second, // bridge connections hold long writes
		IdleTimeout:  90 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	sslEnabled, err := cfg.SSLEnabled()
	if err != nil {
		logger.Warn("failed to read SSL setting, assuming disabled", zap.Error(err))
		sslEnabled = false
	}

	var certFile, keyFile string
	isACME := false

	if sslEnabled {
		sslMode, _ := cfg.SSLMode()
		if sslMode == "acme" {
			isACME = true
			domains, err := cfg.SSLAcmeDomains()
			if err != nil || len(domains) == 0 {
				return nil, nil, fmt.Errorf("ACME mode requires at least one domain: %w", err)
			}
			email, _ := cfg.SSLAcmeEmail()
			cacheDir, err := cfg.SSLAcmeCacheDir()
			if err != nil {
				return nil, nil, fmt.Errorf("get ACME cache directory: %w", err)
			}
			if err := os.MkdirAll(cacheDir, 0700); err != nil {
				return nil, nil, fmt.Errorf("create ACME cache directory %q: %w", cacheDir, err)
			}

			certManager := autocert.Manager{
				Prompt:     autocert.AcceptTOS,
				HostPolicy: autocert.HostWhitelist(domains...),
				Email:      email,
				Cache:      autocert.DirCache(cacheDir),
			}
			server.TLSConfig = certManager.TLSConfig()

			// ACME needs an HTTP challenge listener on :80.
			go func() {
				challengeServer := &http.Server{
					Addr:    ":80",
					Handler: certManager.HTTPHandler(nil),
				}
				logger.Info("starting ACME HTTP challenge listener", zap.String("addr", ":80"))
				if err := challengeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("ACME HTTP challenge listener error", zap.Error(err))
				}
			}()
		} else {
			certFile, err = cfg.SSLCertFile()
			if err != nil || certFile == "" {
				return nil, nil, fmt.Errorf("manual SSL mode requires a certificate file: %w", err)
			}
			keyFile, err = cfg.SSLKeyFile()
			if err != nil || keyFile == "" {
				return nil, nil, fmt.Errorf("manual SSL mode requires a private key file: %w", err)
			}
			server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
	}

	listenerErrChan := make(chan error, 1)

	go func() {
		defer close(listenerErrChan)

		if sslEnabled {
			logger.Info("starting HTTPS bridge listener",
				zap.String("addr", listenAddr),
				zap.Bool("acme", isACME),
			)
			var err error
			if isACME {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServeTLS(certFile, keyFile)
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTPS listener error", zap.Error(err))
				listenerErrChan <- err
			}
			return
		}

		logger.Info("starting HTTP bridge listener", zap.String("addr", listenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP listener error", zap.Error(err))
			listenerErrChan <- err
		}
	}()

	return server, listenerErrChan, nil
}

// ShutdownHTTPServer attempts a graceful shutdown of the listener.
func ShutdownHTTPServer(ctx context.Context, logger *zap.Logger, server *http.Server) {
	if server == nil {
		logger.Warn("shutdown requested but server instance is nil")
		return
	}
	logger.Info("shutting down bridge listener")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("bridge listener shutdown failed", zap.Error(err))
		return
	}
	logger.Info("bridge listener shut down gracefully")
}
