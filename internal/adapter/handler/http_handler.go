package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/rl1809/stockledger/internal/core/domain"
	"github.com/rl1809/stockledger/internal/core/service"
)

const maxBodyBytes = 1 << 20

type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	catalog   *service.CatalogService
	movements *service.MovementService
	reports   *service.ReportService
	db        Pinger
	logger    *zap.Logger
}

type MovementHTTPRequest struct {
	ItemID    int64  `json:"item_id"`
	Code      string `json:"qr_code"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes"`
	RequestID string `json:"request_id"`
}

type MovementHTTPResponse struct {
	Message string `json:"message"`
	*domain.MovementResult
}

type errorResponse struct {
	Error      string `json:"error"`
	Field      string `json:"field,omitempty"`
	Available  *int   `json:"available,omitempty"`
	MaxCheckin *int   `json:"max_checkin,omitempty"`
}

func NewHTTPHandler(catalog *service.CatalogService, movements *service.MovementService, reports *service.ReportService, db Pinger, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		catalog:   catalog,
		movements: movements,
		reports:   reports,
		db:        db,
		logger:    logger,
	}
}

// Routes builds the router. Everything under /api requires the identity
// headers set by the auth proxy.
func (h *HTTPHandler) Routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.StripSlashes)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(identity)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.With(requireManager).Post("/", h.CreateItem)
			r.Get("/stats/overview", h.Overview)
			r.Get("/{identifier}", h.GetItem)
			r.Get("/{identifier}/reconcile", h.Reconcile)
			r.With(requireManager).Put("/{identifier}", h.UpdateItem)
			r.With(requireManager).Delete("/{identifier}", h.DeleteItem)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/checkout", h.Checkout)
			r.Post("/checkin", h.Checkin)
			r.Get("/my-history", h.MyHistory)
			r.Get("/stats", h.TransactionStats)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", headerUserID, headerUserName, headerUserRole},
	})
	return c.Handler(r)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.catalog.List(r.Context(), domain.ItemQuery{
		Search: r.URL.Query().Get("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var spec domain.ItemSpec
	if err := decodeBody(w, r, &spec); err != nil {
		h.writeError(w, r, err)
		return
	}

	item, err := h.catalog.Create(r.Context(), spec, actorFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *HTTPHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	detail, err := h.reports.ItemDetail(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *HTTPHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.reports.Reconcile(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var patch domain.ItemPatch
	if err := decodeBody(w, r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	current, err := h.catalog.Resolve(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	item, err := h.catalog.Update(r.Context(), current.ID, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *HTTPHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	current, err := h.catalog.Resolve(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.catalog.Delete(r.Context(), current.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

func (h *HTTPHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.reports.Overview(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.movements.Checkout, "checked out")
}

func (h *HTTPHandler) Checkin(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.movements.Checkin, "checked in")
}

type moveFunc func(context.Context, service.MovementRequest) (*domain.MovementResult, error)

func (h *HTTPHandler) move(w http.ResponseWriter, r *http.Request, fn moveFunc, verb string) {
	var req MovementHTTPRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ref := req.Code
	if req.ItemID > 0 {
		ref = strconv.FormatInt(req.ItemID, 10)
	}
	if ref == "" {
		h.writeError(w, r, &domain.ValidationError{Field: "item", Message: "item_id or qr_code is required"})
		return
	}

	result, err := fn(r.Context(), service.MovementRequest{
		ItemRef:   ref,
		Quantity:  req.Quantity,
		Actor:     actorFrom(r.Context()),
		Note:      req.Notes,
		RequestID: req.RequestID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MovementHTTPResponse{
		Message:        strconv.Itoa(result.Receipt.Quantity) + "x " + result.Item.Name + " " + verb,
		MovementResult: result,
	})
}

func (h *HTTPHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	userID, err := int64Param(r, "user_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	itemID, err := int64Param(r, "item_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.reports.ListTransactions(r.Context(), domain.TransactionQuery{
		Kind:   domain.Kind(r.URL.Query().Get("type")),
		UserID: userID,
		ItemID: itemID,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) MyHistory(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.reports.UserHistory(r.Context(), actorFrom(r.Context()).ID, page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) TransactionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.TransactionStats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	resp := errorResponse{Error: err.Error()}

	var validation *domain.ValidationError
	var insufficient *domain.InsufficientStockError
	var overCapacity *domain.OverCapacityError
	switch {
	case errors.As(err, &validation):
		resp.Field = validation.Field
	case errors.As(err, &insufficient):
		resp.Available = &insufficient.Available
	case errors.As(err, &overCapacity):
		resp.MaxCheckin = &overCapacity.Max
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		resp.Error = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrOverCapacity),
		errors.Is(err, domain.ErrReferencedByTransactions),
		errors.Is(err, domain.ErrDuplicateCode),
		errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageFault):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.ValidationError{Field: "body", Message: "invalid request body: " + err.Error()}
	}
	return nil
}

func pageParams(r *http.Request) (page, limit int, err error) {
	if page, err = intParam(r, "page"); err != nil {
		return 0, 0, err
	}
	if limit, err = intParam(r, "limit"); err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ValidationError{Field: name, Message: "must be an integer"}
	}
	return n, nil
}

func int64Param(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return 0, &domain.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
