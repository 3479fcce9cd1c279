package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chtzvt/tablemapper/cmd/tablemapper/config"
	"github.com/chtzvt/tablemapper/internal/secrets"
	"github.com/sirupsen/logrus"
)

func cmdContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	log.SetLevel(level)
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("log.format: unknown format %q", cfg.Format)
	}
	return log, nil
}

func openKeychain(cfg config.SecretsConfig) (*secrets.Keychain, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("secrets.key is not set (or $TABLEMAPPER_SECRETS__KEY)")
	}
	key, err := secrets.ParseKey(strings.TrimSpace(cfg.Key))
	if err != nil {
		return nil, err
	}
	return secrets.OpenKeychain(cfg.KeychainFile, key)
}

// secretStore resolves sink credentials from the environment first, then the
// keychain when a key is configured.
func secretStore(cfg config.SecretsConfig) (secrets.Store, error) {
	chain := secrets.Chain{secrets.EnvStore{Prefix: cfg.EnvPrefix}}
	if cfg.Key != "" {
		kc, err := openKeychain(cfg)
		if err != nil {
			return nil, err
		}
		chain = append(chain, kc)
	}
	return chain, nil
}

// parseAttrs turns k=v pairs into an attribute map.
func parseAttrs(pairs []string) (map[string]string, error) {
	attrs := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid attribute %q, want key=value", p)
		}
		attrs[k] = v
	}
	return attrs, nil
}
