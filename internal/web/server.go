package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/openvault-labs/pcv/internal/logger"
	"github.com/openvault-labs/pcv/internal/state"
	"github.com/openvault-labs/pcv/internal/types"
	"github.com/openvault-labs/pcv/internal/vault"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer handles HTTP requests for vault data visualization
type WebServer struct {
	router *mux.Router
	port   string
	vault  *vault.Vault
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, v *vault.Vault) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		vault:  v,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleGetVaultSummary).Methods("GET")
	api.HandleFunc("/holders/{principal}/rewards", ws.handleGetHolderRewards).Methods("GET")
	api.HandleFunc("/strategies", ws.handleGetStrategies).Methods("GET")
	api.HandleFunc("/receipts", ws.handleGetReceipts).Methods("GET")
	api.HandleFunc("/snapshots", ws.handleGetSnapshots).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := state.TestDBConnection() == nil

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"database":  dbHealthy,
		"runtime": map[string]interface{}{
			"goroutines":      runtime.NumGoroutine(),
			"heap_alloc_mb":   memStats.HeapAlloc / 1024 / 1024,
			"total_alloc_mb":  memStats.TotalAlloc / 1024 / 1024,
			"gc_cycles":       memStats.NumGC,
		},
	}
	ws.writeJSON(w, http.StatusOK, health)
}

// handleGetVaultSummary returns the vault-wide totals snapshot
func (ws *WebServer) handleGetVaultSummary(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, http.StatusOK, ws.vault.Snapshot())
}

// handleGetHolderRewards returns a holder's share balance and accrued rewards
func (ws *WebServer) handleGetHolderRewards(w http.ResponseWriter, r *http.Request) {
	principal := types.Principal(mux.Vars(r)["principal"])
	if principal == "" {
		ws.writeError(w, http.StatusBadRequest, "principal is required")
		return
	}

	response := map[string]interface{}{
		"principal":       principal,
		"shares":          ws.vault.SharesOf(principal).String(),
		"accrued_rewards": ws.vault.AccruedRewards(principal).String(),
	}
	ws.writeJSON(w, http.StatusOK, response)
}

// handleGetStrategies returns the registered strategy unit views
func (ws *WebServer) handleGetStrategies(w http.ResponseWriter, r *http.Request) {
	summary := ws.vault.Snapshot()
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"default_strategy": summary.DefaultStrategy,
		"strategies":       summary.Strategies,
	})
}

// handleGetReceipts returns recent operation receipts from the database
func (ws *WebServer) handleGetReceipts(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	receipts, err := state.GetRecentReceipts(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to load operation receipts")
		ws.writeError(w, http.StatusInternalServerError, "failed to load receipts")
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{"receipts": receipts})
}

// handleGetSnapshots returns recent vault snapshots from the database
func (ws *WebServer) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	snapshots, err := state.GetRecentSnapshots(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to load vault snapshots")
		ws.writeError(w, http.StatusInternalServerError, "failed to load snapshots")
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": snapshots})
}

// parseLimit reads the "limit" query parameter with a default
func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return def
	}
	return limit
}

// writeJSON writes a JSON response
func (ws *WebServer) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (ws *WebServer) writeError(w http.ResponseWriter, status int, message string) {
	ws.writeJSON(w, status, map[string]string{"error": message})
}

// corsMiddleware adds CORS headers to all responses
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		webLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
