package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/elys-network/clvault/internal/app"
	"github.com/elys-network/clvault/internal/logger"
	"github.com/elys-network/clvault/internal/metrics"
	"github.com/elys-network/clvault/internal/state"
	"github.com/elys-network/clvault/internal/types"
	"github.com/elys-network/clvault/internal/vault"
)

// Node is the part of the node the web API serves. Messages reach it only as
// signed transactions.
type Node interface {
	DeliverTx(ctx context.Context, tx types.Tx) (app.Result, error)
	Sequence(ctx context.Context, addr sdk.AccAddress) (uint64, error)
	Query(ctx context.Context, fn func(ctx sdk.Context, k vault.Keeper) error) error
	Pool(ctx context.Context) (types.PoolState, error)
	SetTick(ctx context.Context, tick int64) (int64, error)
	AccrueFees(ctx context.Context, fees0, fees1 sdkmath.Int) (types.Funds, int64, error)
	ChainID() string
	Height() int64
}

// Config holds the configuration of a web server.
type Config struct {
	Addr    string
	Node    Node
	Journal state.Journal
	// Simulation exposes the pool price and fee routes.
	Simulation bool
}

// WebServer serves the vault over HTTP: vault queries, message submission, the
// rebalancer journal and the Prometheus metrics.
type WebServer struct {
	router  *mux.Router
	addr    string
	node    Node
	journal state.Journal
	log     zerolog.Logger
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) (*WebServer, error) {
	if cfg.Node == nil {
		return nil, errors.New("web server needs a node")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Journal == nil {
		cfg.Journal = state.NewNop()
	}

	ws := &WebServer{
		router:  mux.NewRouter(),
		addr:    cfg.Addr,
		node:    cfg.Node,
		journal: cfg.Journal,
		log:     logger.GetForComponent("web_server"),
	}
	ws.setupRoutes(cfg.Simulation)
	return ws, nil
}

// Handler returns the router with every route and middleware installed.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

func (ws *WebServer) setupRoutes(simulation bool) {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods(http.MethodGet)
	ws.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods(http.MethodGet)

	// vault queries
	api.HandleFunc("/vault/info", ws.handleVaultInfo).Methods(http.MethodGet)
	api.HandleFunc("/vault/params", ws.handleParams).Methods(http.MethodGet)
	api.HandleFunc("/vault/token", ws.handleTokenInfo).Methods(http.MethodGet)
	api.HandleFunc("/vault/supply", ws.handleSupply).Methods(http.MethodGet)
	api.HandleFunc("/vault/holders", ws.handleHolders).Methods(http.MethodGet)
	api.HandleFunc("/vault/positions", ws.handlePositions).Methods(http.MethodGet)
	api.HandleFunc("/vault/funds", ws.handleFunds).Methods(http.MethodGet)
	api.HandleFunc("/vault/assets", ws.handleAssets).Methods(http.MethodGet)
	api.HandleFunc("/vault/fees", ws.handleFees).Methods(http.MethodGet)
	api.HandleFunc("/vault/last-rebalance", ws.handleLastRebalance).Methods(http.MethodGet)
	api.HandleFunc("/balance/{address}", ws.handleBalance).Methods(http.MethodGet)
	api.HandleFunc("/pool", ws.handlePool).Methods(http.MethodGet)
	api.HandleFunc("/account/{address}", ws.handleAccount).Methods(http.MethodGet)
	api.HandleFunc("/node", ws.handleNodeInfo).Methods(http.MethodGet)

	// signed transactions
	api.HandleFunc("/tx/{type}", ws.handleTx).Methods(http.MethodPost)

	if simulation {
		api.HandleFunc("/pool/tick", ws.handleSetTick).Methods(http.MethodPost)
		api.HandleFunc("/pool/fees", ws.handleAccrueFees).Methods(http.MethodPost)
	}

	// journal
	api.HandleFunc("/cycles", ws.handleGetCycles).Methods(http.MethodGet)
	api.HandleFunc("/cycles/latest", ws.handleGetLatestCycle).Methods(http.MethodGet)
	api.HandleFunc("/cycles/{id:[0-9]+}", ws.handleGetCycle).Methods(http.MethodGet)
	api.HandleFunc("/receipts", ws.handleGetReceipts).Methods(http.MethodGet)
	api.HandleFunc("/summary", ws.handleGetSummary).Methods(http.MethodGet)

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Serve listens on the configured address until ctx is done, then shuts down.
func (ws *WebServer) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:         ws.addr,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		ws.log.Info().Str("address", ws.addr).Msg("Starting web server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		ws.log.Info().Msg("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("web server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server failed: %w", err)
	}
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		ws.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]any{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		ws.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
