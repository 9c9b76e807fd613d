package api

import (
	"net/http"
	"time"

	"github.com/angelmondragon/localdrop/pkg/config"
)

// NewServer wraps handler in an http.Server listening on the configured port.
func NewServer(cfg *config.Config, port string, handler http.Handler) *http.Server {
	if port == "" {
		port = cfg.App.Port
	}
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.API.Timeout + 10*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
