package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gorilla/mux"
	"google.golang.org/grpc/codes"

	"github.com/elys-network/clvault/internal/rpc"
	"github.com/elys-network/clvault/internal/state"
	"github.com/elys-network/clvault/internal/types"
	"github.com/elys-network/clvault/internal/vault"
)

const maxBodyBytes = 1 << 20

// httpStatus maps a node error to an HTTP status through its gRPC code.
func httpStatus(err error) int {
	switch rpc.StatusCode(err) {
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.FailedPrecondition, codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (ws *WebServer) writeNodeError(w http.ResponseWriter, err error, what string) {
	statusCode := httpStatus(err)
	if statusCode == http.StatusInternalServerError {
		ws.log.Error().Err(err).Msg("Failed to " + what)
	}
	ws.writeErrorResponse(w, statusCode, err.Error())
}

// query runs fn on the committed state and writes its result.
func (ws *WebServer) query(w http.ResponseWriter, r *http.Request, fn func(ctx sdk.Context, k vault.Keeper) (any, error)) {
	var out any
	err := ws.node.Query(r.Context(), func(ctx sdk.Context, k vault.Keeper) error {
		var err error
		out, err = fn(ctx, k)
		return err
	})
	if err != nil {
		ws.writeNodeError(w, err, "query vault")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, out)
}

func (ws *WebServer) handleVaultInfo(w http.ResponseWriter, r *http.Request) {
	ws.query(w, r, func(ctx sdk.Context, k vault.Keeper) (any, error) { return k.GetVaultInfo(ctx) })
}

func (ws *WebServer) handleParams(w http.ResponseWriter, r *http.Request) {
	ws.query(w, r, func(ctx sdk.Context, k vault.Keeper) (any, error) { return k.GetParams(ctx) })
}

func (ws *WebServer) handleTokenInfo(w http.ResponseWriter, r *http.Request) {
	ws.query(w, r, func(ctx sdk.Context, k vault.Keeper) (any, error) { return k.GetTokenInfo(ctx) })
}

func (ws *WebServer) handleSupply(w http.ResponseWriter, r *http.Request) {
	ws.query(w, r, func(ctx sdk.Context, k vault.Keeper) (any, error) {
		supply, err := k.TotalSupply(ctx)
		return rpc.SupplyResponse{TotalSupply: supply}, err
	})
}

func (ws *WebServer) handleHolders(w http.ResponseWriter, r *http.Request) {
	ws.query(w, r, func(ctx sdk.Context, k vault.Keeper) (any, error) {
		holders, err := k.Holders(ctx)
		return rpc.HoldersResponse{Holders: holders}, err
	})
}

func (ws *WebServer) handlePositions(w http.ResponseWriter, r *http.Request) {
	ws.query(w, r, func(ctx sdk.Context, k vault.Keeper) (any, error) {
		positions, err := k.GetPositions(ctx)
		return rpc.PositionsResponse{Positions: positions}, err
	})
}

func (ws *WebServer) handleFunds(w http.ResponseWriter, r *http.Request) {
	ws.query(w, r, func(ctx sdk.Context, k vault.Keeper) (any, error) { return k.GetFunds(ctx) })
}

func (ws *WebServer) handleAssets(w http.ResponseWriter, r *http.Request) {
	ws.query(w, r, func(ctx sdk.Context, k vault.Keeper) (any, error) { return k.TotalAssets(ctx) })
}

func (ws *WebServer) handleFees(w http.ResponseWriter, r *http.Request) {
	ws.query(w, r, func(ctx sdk.Context, k vault.Keeper) (any, error) { return k.GetFees(ctx) })
}

func (ws *WebServer) handleLastRebalance(w http.ResponseWriter, r *http.Request) {
	ws.query(w, r, func(ctx sdk.Context, k vault.Keeper) (any, error) {
		record, found, err := k.GetLastRebalance(ctx)
		if err != nil || !found {
			return rpc.LastRebalanceResponse{}, err
		}
		return rpc.LastRebalanceResponse{Found: true, Record: &record}, nil
	})
}

func (ws *WebServer) handleBalance(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	addr, err := sdk.AccAddressFromBech32(address)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid address: "+err.Error())
		return
	}
	ws.query(w, r, func(ctx sdk.Context, k vault.Keeper) (any, error) {
		balance, err := k.BalanceOf(ctx, addr)
		return rpc.BalanceResponse{Address: address, Balance: balance}, err
	})
}

func (ws *WebServer) handlePool(w http.ResponseWriter, r *http.Request) {
	pool, err := ws.node.Pool(r.Context())
	if err != nil {
		ws.writeNodeError(w, err, "read pool")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, pool)
}

func (ws *WebServer) handleAccount(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	addr, err := sdk.AccAddressFromBech32(address)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid address: "+err.Error())
		return
	}
	seq, err := ws.node.Sequence(r.Context(), addr)
	if err != nil {
		ws.writeNodeError(w, err, "read account")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, rpc.AccountResponse{Address: address, Sequence: seq})
}

func (ws *WebServer) handleNodeInfo(w http.ResponseWriter, _ *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, rpc.NodeInfoResponse{ChainID: ws.node.ChainID(), Height: ws.node.Height()})
}

// handleTx decodes a signed transaction of the type named by the path and delivers
// it. The node authenticates the signer before the message runs.
func (ws *WebServer) handleTx(w http.ResponseWriter, r *http.Request) {
	msgType := mux.Vars(r)["type"]
	if !types.KnownMsgType(msgType) {
		ws.writeErrorResponse(w, http.StatusNotFound, "Unknown message type "+msgType)
		return
	}
	var tx types.Tx
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tx); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid "+msgType+" transaction: "+err.Error())
		return
	}
	if tx.Type != msgType {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Transaction type "+tx.Type+" does not match route "+msgType)
		return
	}

	result, err := ws.node.DeliverTx(r.Context(), tx)
	if err != nil {
		ws.writeNodeError(w, err, "deliver "+msgType)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, result)
}

type setTickRequest struct {
	Tick int64 `json:"tick"`
}

func (ws *WebServer) handleSetTick(w http.ResponseWriter, r *http.Request) {
	var req setTickRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid tick request: "+err.Error())
		return
	}
	height, err := ws.node.SetTick(r.Context(), req.Tick)
	if err != nil {
		ws.writeNodeError(w, err, "set tick")
		return
	}
	pool, err := ws.node.Pool(r.Context())
	if err != nil {
		ws.writeNodeError(w, err, "read pool")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]any{
		"height": height,
		"pool":   pool,
	})
}

type accrueFeesRequest struct {
	Amount0 sdkmath.Int `json:"amount0"`
	Amount1 sdkmath.Int `json:"amount1"`
}

func (ws *WebServer) handleAccrueFees(w http.ResponseWriter, r *http.Request) {
	var req accrueFeesRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid fees request: "+err.Error())
		return
	}
	if req.Amount0.IsNil() {
		req.Amount0 = sdkmath.ZeroInt()
	}
	if req.Amount1.IsNil() {
		req.Amount1 = sdkmath.ZeroInt()
	}
	if req.Amount0.IsNegative() || req.Amount1.IsNegative() {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Fee amounts must be non-negative")
		return
	}
	credited, height, err := ws.node.AccrueFees(r.Context(), req.Amount0, req.Amount1)
	if err != nil {
		ws.writeNodeError(w, err, "accrue fees")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]any{
		"height":   height,
		"credited": credited,
	})
}

// parseLimit reads the limit query parameter, falling back to def outside
// 1..MaxPageSize.
func parseLimit(r *http.Request, def int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= state.MaxPageSize {
			return parsed
		}
	}
	return def
}

func (ws *WebServer) writeJournalError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, state.ErrJournalDisabled):
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, state.ErrCycleNotFound):
		ws.writeErrorResponse(w, http.StatusNotFound, "Cycle not found")
	default:
		ws.log.Error().Err(err).Msg("Failed to get " + what)
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve "+what)
	}
}

// handleGetCycles returns the most recent rebalancer cycles
func (ws *WebServer) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20)
	cycles, err := ws.journal.RecentCycles(r.Context(), limit)
	if err != nil {
		ws.writeJournalError(w, err, "cycles")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]any{
		"cycles": cycles,
		"count":  len(cycles),
		"limit":  limit,
	})
}

func (ws *WebServer) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid cycle ID")
		return
	}
	cycle, err := ws.journal.CycleByID(r.Context(), id)
	if err != nil {
		ws.writeJournalError(w, err, "cycle")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

func (ws *WebServer) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	cycles, err := ws.journal.RecentCycles(r.Context(), 1)
	if err != nil {
		ws.writeJournalError(w, err, "latest cycle")
		return
	}
	if len(cycles) == 0 {
		ws.writeErrorResponse(w, http.StatusNotFound, "No cycles found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, cycles[0])
}

func (ws *WebServer) handleGetReceipts(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20)
	receipts, err := ws.journal.RecentReceipts(r.Context(), limit)
	if err != nil {
		ws.writeJournalError(w, err, "receipts")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]any{
		"receipts": receipts,
		"count":    len(receipts),
		"limit":    limit,
	})
}

func (ws *WebServer) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := ws.journal.Summary(r.Context())
	if err != nil {
		ws.writeJournalError(w, err, "journal summary")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, summary)
}

// handleHealth reports the committed height, the journal connection and the
// runtime. The node is DEGRADED when the journal cannot be reached.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	journalHealthy := true
	journalErr := ws.journal.Healthy(r.Context())
	if journalErr != nil {
		journalHealthy = false
	}

	cycleInfo := map[string]any{
		"current_cycle":   0,
		"last_cycle_time": nil,
		"last_rebalanced": false,
	}
	if cycles, err := ws.journal.RecentCycles(r.Context(), 1); err == nil && len(cycles) > 0 {
		cycleInfo["current_cycle"] = cycles[0].CycleNumber
		cycleInfo["last_cycle_time"] = cycles[0].Timestamp
		cycleInfo["last_rebalanced"] = cycles[0].Rebalanced
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !journalHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"height":    ws.node.Height(),
		"system": map[string]any{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"journal": map[string]any{
			"healthy":    journalHealthy,
			"cycle_info": cycleInfo,
		},
	}
	if journalErr != nil {
		response["journal"].(map[string]any)["error"] = journalErr.Error()
	}

	ws.writeJSONResponse(w, statusCode, response)
}
