// Package app provides the main application setup and dependency injection.
package app

import (
	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/extractors"
	streamrelay "stream-resolver-go/pkg/handlers/streams"
	"stream-resolver-go/pkg/httpclient"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/matcher"
	"stream-resolver-go/pkg/metadata"
	"stream-resolver-go/pkg/proxypool"
	"stream-resolver-go/pkg/server"
	"stream-resolver-go/pkg/stremio"
)

// App is the main application container.
type App struct {
	Cfg       *config.Config
	Log       *logging.Logger
	Server    *server.Server
	Fetcher   *httpclient.Client
	Pool      *proxypool.Pool
	Matcher   *matcher.Matcher
	Extractor *extractors.Extractor
}

// New creates and initializes the application.
func New() (*App, error) {
	cfg := config.Load()

	log := logging.New(cfg.LogLevel, cfg.LogJSON, nil)
	log.Info("initializing StreamResolver", "port", cfg.Port, "site", cfg.SiteBase)

	pool := proxypool.New(cfg, log)
	fetcher := httpclient.New(cfg, log, pool)
	meta := metadata.New(cfg, log, fetcher)
	match := matcher.New(cfg, log, fetcher, meta)

	extractor, err := extractors.New(cfg, log, fetcher)
	if err != nil {
		return nil, err
	}

	srv := server.New(cfg, log)

	addon := stremio.NewHandlers(cfg, log, match, extractor)
	addon.RegisterRoutes(srv.Router())

	if cfg.RelayEnabled {
		relay := streamrelay.NewRelay(log, fetcher, cfg.BaseURL)
		relay.RegisterRoutes(srv.Router())
		log.Info("stream relay enabled", "path", "/relay")
	}

	return &App{
		Cfg:       cfg,
		Log:       log,
		Server:    srv,
		Fetcher:   fetcher,
		Pool:      pool,
		Matcher:   match,
		Extractor: extractor,
	}, nil
}

// Run starts the application.
func (a *App) Run() error {
	a.Log.Info("starting StreamResolver server", "port", a.Cfg.Port)
	return a.Server.Start()
}
