// Package api exposes the latest update cycle over HTTP.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/kilianp07/octowatt/config"
	"github.com/kilianp07/octowatt/core/logger"
	"github.com/kilianp07/octowatt/infra/metrics"
)

// NewRouter returns the API handler: routes, CORS for the configured origins,
// panic recovery and access logging.
func NewRouter(svc Updater, cfg config.ServerConfig, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop{}
	}
	h := &handler{
		svc:    svc,
		maxAge: time.Duration(cfg.MinRefreshSeconds) * time.Second,
		log:    log,
	}

	r := mux.NewRouter()
	r.HandleFunc("/startpage", h.startPage).Methods(http.MethodGet)
	r.HandleFunc("/starttimes", h.startTimes).Methods(http.MethodGet)
	r.HandleFunc("/consumption", h.consumption).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)
	recovery := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))
	return handlers.LoggingHandler(logWriter{log}, recovery(cors(r)))
}

// logWriter turns access log lines into debug entries.
type logWriter struct{ log logger.Logger }

func (w logWriter) Write(p []byte) (int, error) {
	w.log.Debugf("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
