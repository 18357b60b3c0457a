package handler

import (
	"context"
	"net/http"

	"github.com/wadjakorntonsri/go-shortlink/pkg/app"
	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
	"github.com/wadjakorntonsri/go-shortlink/pkg/logger"
)

var mux http.Handler

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger.Init(cfg.LogLevel, "json")

	// Note: On Vercel, local SQLite files are ephemeral; point DATABASE_URL at Turso or Redis.
	application, err := app.New(context.Background(), cfg)
	if err != nil {
		panic(err)
	}
	mux = application.Handler
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
