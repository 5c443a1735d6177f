package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/dpup/prefab"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/mvalues/server/internal/cache"
	"github.com/dpup/mvalues/server/internal/config"
	"github.com/dpup/mvalues/server/internal/services"
)

func main() {
	// Load configuration using Prefab's config system
	appConfig := loadConfig()

	// Background work logs through the same logger as request handlers
	ctx, cancel := context.WithCancel(logging.With(context.Background(), logging.NewProdLogger()))
	defer cancel()

	// Initialize result cache
	var resultCache *cache.ResultCache
	if appConfig.Cache.Enabled {
		resultCache = cache.NewResultCache(appConfig.Cache.TTL)
		if appConfig.Cache.CleanupInterval > 0 {
			resultCache.StartPeriodicCleanup(ctx, appConfig.Cache.CleanupInterval)
		}
	}

	interpolationService, err := services.NewInterpolationService(appConfig, resultCache)
	if err != nil {
		log.Fatalf("Failed to create interpolation service: %v", err)
	}

	log.Printf("M-value interpolation server starting")
	log.Printf("Rounding: %s, unknown marker: %s, batch workers: %d, cache enabled: %t",
		appConfig.Interpolation.Rounding, appConfig.Interpolation.Unknown,
		appConfig.Batch.Workers, appConfig.Cache.Enabled)

	// Server configuration (port, etc.) will be loaded from prefab.yaml/env vars
	server := prefab.New(
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
		prefab.WithHTTPHandlerFunc("/api/v1/interpolate", interpolationService.HandleInterpolate),
		prefab.WithHTTPHandlerFunc("/api/v1/interpolate/batch", interpolationService.HandleBatch),
		prefab.WithHTTPHandlerFunc("/api/v1/stats", interpolationService.HandleStats),
	)

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadConfig loads configuration using Prefab's config system
// Configuration is loaded from prefab.yaml and environment variables with PF__ prefix.
// Missing sections keep their defaults.
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	// Unmarshal specific sections from Prefab's config using exact key paths
	if err := prefab.Config.Unmarshal("interpolation", &appConfig.Interpolation); err != nil {
		log.Fatalf("Failed to unmarshal interpolation section: %v", err)
	}

	if err := prefab.Config.Unmarshal("batch", &appConfig.Batch); err != nil {
		log.Fatalf("Failed to unmarshal batch section: %v", err)
	}

	if err := prefab.Config.Unmarshal("cache", &appConfig.Cache); err != nil {
		log.Fatalf("Failed to unmarshal cache section: %v", err)
	}

	if err := appConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return appConfig
}

// homepageHandler serves a simple HTML homepage at the server root
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	// Only handle the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	html := `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>mvalues</title></head>
<body>
<pre>
mvalues: fills missing M-values along polylines, weighted by distance
between known measures.

POST /api/v1/interpolate        one line as vertices, wkt, wkb or polyline
POST /api/v1/interpolate/batch  a GeoJSON FeatureCollection
<a href="/api/v1/stats">GET  /api/v1/stats</a>              batch and cache counters
</pre>
</body>
</html>`

	if _, err := fmt.Fprint(w, html); err != nil {
		slog.Error("Failed to write homepage HTML", "error", err)
	}
}
