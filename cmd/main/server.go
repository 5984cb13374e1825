package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CTAG07/kgram/pkg/markov"
)

// Server wires the API handlers onto a single mux.
type Server struct {
	config    *ConfigManager
	logger    *slog.Logger
	store     *markov.Store
	modelAPI  *ModelAPI
	serverAPI *ServerAPI
	apiMux    *http.ServeMux
}

// NewServer creates the server object and registers all routes.
func NewServer(config *ConfigManager, logger *slog.Logger, store *markov.Store) *Server {
	server := &Server{
		config:    config,
		logger:    logger,
		store:     store,
		modelAPI:  NewModelAPI(store, config, logger),
		serverAPI: NewServerAPI(config, logger),
		apiMux:    http.NewServeMux(),
	}

	server.modelAPI.RegisterRoutes(server.apiMux)
	server.serverAPI.RegisterRoutes(server.apiMux)

	return server
}

// ServeHTTP logs each request and hands it to the mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("API request", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	s.apiMux.ServeHTTP(w, r)
}

// serve runs the HTTP API until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, app *App) error {
	server := NewServer(app.config, app.logger, app.store)
	httpServer := &http.Server{
		Addr:              app.config.Get().Server.ApiAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		app.logger.Info("Starting kgram api server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	app.logger.Info("Stopping api server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}
	app.logger.Info("HTTP server stopped.")
	return nil
}

// ServerAPI holds the dependencies for the server management handlers.
type ServerAPI struct {
	config *ConfigManager
	logger *slog.Logger
}

// VersionInfo defines the structure for build/version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// NewServerAPI creates a new instance of the ServerAPI.
func NewServerAPI(config *ConfigManager, logger *slog.Logger) *ServerAPI {
	return &ServerAPI{
		config: config,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/server endpoints and the health check.
func (a *ServerAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", a.handleHealthCheck)
	mux.HandleFunc("/api/server/config", a.handleConfig)
	mux.HandleFunc("/api/server/version", a.handleVersion)
}

// handleConfig gets or updates the configuration.
func (a *ServerAPI) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondWithJSON(w, http.StatusOK, a.config.Get())
	case http.MethodPut:
		var newConfig Config
		if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		if err := a.config.Update(newConfig); err != nil {
			a.logger.Error("Failed to update config", "error", err)
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondWithJSON(w, http.StatusOK, a.config.Get())
	default:
		w.Header().Set("Allow", "GET, PUT")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (a *ServerAPI) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	respondWithJSON(w, http.StatusOK, VersionInfo{Version: Version, Commit: Commit, BuildDate: BuildDate})
}

func (a *ServerAPI) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
