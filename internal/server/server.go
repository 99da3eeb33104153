package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/omartood/tafsiir-agent/config"
	"github.com/omartood/tafsiir-agent/internal/cache"
	"github.com/omartood/tafsiir-agent/internal/query"
	"github.com/omartood/tafsiir-agent/internal/telemetry"
	gemini_provider "github.com/omartood/tafsiir-agent/provider/gemini"
)

// Run wires the query service and starts the HTTP API. It fails fast on a
// missing API key so a misconfigured deployment never answers requests.
func Run(cfg *config.Config) error {
	key := cfg.Gemini.ResolveAPIKey()
	if err := config.ValidateAPIKey(key); err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	metrics := telemetry.New()
	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	prov := gemini_provider.NewClient(key, cfg.Gemini.BaseURL, cfg.Gemini.EmbeddingModel,
		cfg.Gemini.Temperature, cfg.Gemini.MaxOutputTokens, cfg.Gemini.Timeout)

	// the embedding cache is optional: without Redis every query pays the
	// embedding network cost, which is an accepted trade-off
	var ec *cache.EmbeddingCache
	if cfg.Redis.Host != "" {
		var err error
		ec, err = cache.NewEmbeddingCache(context.Background(), cfg.Redis)
		if err != nil {
			baseLogger.Printf("embedding cache disabled: %v", err)
			ec = nil
		}
	}

	svc := query.NewService(cfg.Retrieval, cfg.Ingest.StorePath, prov, cfg.Gemini.GenerationModels,
		ec, metrics, log.New(log.Writer(), "[QUERY] ", log.LstdFlags))
	defer svc.Close()

	h := &ChatHandler{
		Service: svc,
		Metrics: metrics,
		Logger:  log.New(log.Writer(), "[CHAT] ", log.LstdFlags),
	}
	api := e.Group("/api")
	h.Register(api)

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
