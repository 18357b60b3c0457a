// Package app wires configuration, storage, the link service and the HTTP
// router together for every entry point.
package app

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/services"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/shortcode"
)

type App struct {
	Config   *config.Config
	Store    repository.Store
	Links    *services.LinkService
	Registry *prometheus.Registry
	Handler  http.Handler
}

// New opens the store named by cfg.DatabaseURL and builds the application on it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	return NewWithStore(cfg, store, domain.RealClock{}), nil
}

// NewWithStore builds the application on an already opened store.
func NewWithStore(cfg *config.Config, store repository.Store, clock domain.Clock) *App {
	links := services.NewLinkService(store, shortcode.NewRandom(), clock, ServiceOptions(cfg))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &App{
		Config:   cfg,
		Store:    store,
		Links:    links,
		Registry: registry,
		Handler:  handler.NewRouter(cfg, links, registry),
	}
}

// ServiceOptions maps configuration onto link service options.
func ServiceOptions(cfg *config.Config) services.Options {
	return services.Options{
		MaxCodeAttempts:  cfg.MaxCodeAttempts,
		DefaultTTL:       cfg.DefaultTTL,
		StoreTimeout:     cfg.StoreTimeout,
		EnforceOwnership: cfg.EnforceOwnership,
	}
}

func (a *App) Close() error {
	return a.Store.Close()
}
