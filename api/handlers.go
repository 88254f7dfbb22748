/*
handlers.go - HTTP API handlers for the reagent bank engine

PURPOSE:
  Exposes the bank engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the engine.

ENDPOINTS:
  Bank (per connected session):
    POST /api/bank/{requester}/deposit               Deposit everything bankable
    POST /api/bank/{requester}/deposit/{category}    Deposit one category
    POST /api/bank/{requester}/withdraw              Withdraw everything that fits
    POST /api/bank/{requester}/withdraw/{category}   Withdraw one category
    POST /api/bank/{requester}/withdraw/item/{item}  Withdraw one item (one stack)
    GET  /api/bank/{requester}/summary               Per-category overview
    GET  /api/bank/{requester}/categories/{category} One page of a category

  Admin:
    GET  /api/admin/audit    Audit summary (totals, top movers, events)
    POST /api/admin/purge    Purge audit rows for a scope

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid path/query parameters
  - 404: Unknown item
  - 409: Withdrawal refused for capacity
  - 410: Requester disconnected mid-flow
  - 500: Persistence errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/thornwood/reagent-bank/bank"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Bank *bank.Service
}

// NewHandler creates a new handler over the bank engine.
func NewHandler(svc *bank.Service) *Handler {
	return &Handler{Bank: svc}
}

// =============================================================================
// BANK HANDLERS
// =============================================================================

// DepositAll deposits every bankable stack the session holds.
// POST /api/bank/{requester}/deposit
func (h *Handler) DepositAll(w http.ResponseWriter, r *http.Request) {
	id, ok := requesterParam(w, r)
	if !ok {
		return
	}
	res, err := h.Bank.DepositAll(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MoveResponse{Items: toMovedItems(res.Deposited), Empty: res.Empty()})
}

// DepositCategory deposits only items of one category.
// POST /api/bank/{requester}/deposit/{category}
func (h *Handler) DepositCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := requesterParam(w, r)
	if !ok {
		return
	}
	cat, ok := categoryParam(w, r)
	if !ok {
		return
	}
	res, err := h.Bank.DepositCategory(r.Context(), id, cat)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MoveResponse{Items: toMovedItems(res.Deposited), Empty: res.Empty()})
}

// WithdrawAll withdraws as much of every category as fits.
// POST /api/bank/{requester}/withdraw
func (h *Handler) WithdrawAll(w http.ResponseWriter, r *http.Request) {
	id, ok := requesterParam(w, r)
	if !ok {
		return
	}
	res, err := h.Bank.WithdrawAll(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MoveResponse{Items: toMovedItems(res.Withdrawn), Empty: res.Empty()})
}

// WithdrawCategory withdraws as much of one category as fits.
// POST /api/bank/{requester}/withdraw/{category}
func (h *Handler) WithdrawCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := requesterParam(w, r)
	if !ok {
		return
	}
	cat, ok := categoryParam(w, r)
	if !ok {
		return
	}
	res, err := h.Bank.WithdrawCategory(r.Context(), id, cat)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MoveResponse{Items: toMovedItems(res.Withdrawn), Empty: res.Empty()})
}

// WithdrawItem withdraws up to one stack of a single item.
// POST /api/bank/{requester}/withdraw/item/{item}
func (h *Handler) WithdrawItem(w http.ResponseWriter, r *http.Request) {
	id, ok := requesterParam(w, r)
	if !ok {
		return
	}
	item, err := strconv.ParseUint(chi.URLParam(r, "item"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item id", err)
		return
	}
	res, err := h.Bank.WithdrawItem(r.Context(), id, uint32(item))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MoveResponse{Items: toMovedItems(res.Withdrawn), Empty: res.Empty()})
}

// Summary returns the per-category overview for the session's pool.
// GET /api/bank/{requester}/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := requesterParam(w, r)
	if !ok {
		return
	}
	summaries, err := h.Bank.CategorySummaries(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]CategorySummaryDTO, 0, len(summaries))
	for _, c := range bank.Categories() {
		sum := summaries[c.ID]
		dtos = append(dtos, CategorySummaryDTO{
			Category: uint32(c.ID),
			Name:     c.Name,
			Distinct: sum.Distinct,
			Total:    sum.Total,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CategoryPage returns one page of a category's stored items.
// GET /api/bank/{requester}/categories/{category}?page=N  (1-based)
func (h *Handler) CategoryPage(w http.ResponseWriter, r *http.Request) {
	id, ok := requesterParam(w, r)
	if !ok {
		return
	}
	cat, ok := categoryParam(w, r)
	if !ok {
		return
	}
	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid page number", err)
			return
		}
		page = n - 1
	}

	rows, info, err := h.Bank.CategoryRows(r.Context(), id, cat, page)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	items := make([]MovedItemDTO, len(rows))
	for i, row := range rows {
		var name string
		if meta, ok := h.Bank.Item(row.ItemID); ok {
			name = meta.Name
		}
		items[i] = MovedItemDTO{ItemID: row.ItemID, Name: name, Amount: row.Amount}
	}
	writeJSON(w, http.StatusOK, CategoryPageDTO{
		Category:    uint32(cat),
		Name:        cat.Name(),
		Page:        info.Page,
		TotalPages:  info.TotalPages,
		TotalItems:  info.TotalItems,
		TotalAmount: info.TotalAmount,
		Items:       items,
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// AuditSummary returns audit totals, top movers, and a page of events.
// GET /api/admin/audit?account=N[&character=N][&top=N][&page=N][&pageSize=N]
func (h *Handler) AuditSummary(w http.ResponseWriter, r *http.Request) {
	account, err := strconv.ParseUint(r.URL.Query().Get("account"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing account id", err)
		return
	}
	q := bank.AuditQuery{AccountID: uint32(account)}
	if raw := r.URL.Query().Get("character"); raw != "" {
		character, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid character id", err)
			return
		}
		q.CharacterID = uint32(character)
	}
	topN := queryInt(r, "top")
	page := queryInt(r, "page")
	pageSize := queryInt(r, "pageSize")

	report, err := h.Bank.AuditSummary(r.Context(), q, topN, page, pageSize)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dto := AuditReportDTO{
		Totals:      make([]ActionTotalsDTO, len(report.Totals)),
		TopMovers:   make([]MoverDTO, len(report.TopMovers)),
		Events:      make([]AuditEventDTO, len(report.Events)),
		TotalEvents: report.TotalEvents,
		Page:        report.Page,
		PageSize:    report.PageSize,
	}
	for i, t := range report.Totals {
		dto.Totals[i] = ActionTotalsDTO{Action: string(t.Action), Events: t.Events, Total: t.Total}
	}
	for i, m := range report.TopMovers {
		dto.TopMovers[i] = MoverDTO{ItemID: m.ItemID, Name: m.Name, Category: uint32(m.Category), Net: m.Net}
	}
	for i, e := range report.Events {
		dto.Events[i] = AuditEventDTO{
			ID:          e.ID,
			Timestamp:   e.Timestamp,
			AccountID:   e.Key.AccountID,
			CharacterID: e.Key.CharacterID,
			Action:      string(e.Action),
			ItemID:      e.ItemID,
			Category:    uint32(e.Category),
			Delta:       e.Delta,
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// PurgeAudit deletes audit rows for a scope.
// POST /api/admin/purge
func (h *Handler) PurgeAudit(w http.ResponseWriter, r *http.Request) {
	var req PurgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AccountID == 0 {
		writeError(w, http.StatusBadRequest, "accountId is required", nil)
		return
	}

	deleted, err := h.Bank.PurgeAudit(r.Context(),
		bank.AuditQuery{AccountID: req.AccountID, CharacterID: req.CharacterID},
		req.OlderThanSeconds)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PurgeResponse{Deleted: deleted})
}

// =============================================================================
// HELPERS
// =============================================================================

func requesterParam(w http.ResponseWriter, r *http.Request) (bank.RequesterID, bool) {
	raw := chi.URLParam(r, "requester")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid requester id", err)
		return 0, false
	}
	return bank.RequesterID(id), true
}

func categoryParam(w http.ResponseWriter, r *http.Request) (bank.Category, bool) {
	raw := chi.URLParam(r, "category")
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || !bank.IsCategory(uint32(v)) {
		writeError(w, http.StatusBadRequest, "Unknown category", err)
		return 0, false
	}
	return bank.Category(v), true
}

func queryInt(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// writeEngineError maps engine errors to HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bank.ErrStaleRequester):
		writeError(w, http.StatusGone, "Requester disconnected", nil)
	case errors.Is(err, bank.ErrNotFound):
		writeError(w, http.StatusNotFound, "Item not found", nil)
	case errors.Is(err, bank.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, "No space for withdrawal", nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
