package query

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/purgatory-reaper/pkg/app/errors"
	apphttp "github.com/chainsafe/purgatory-reaper/pkg/app/http"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers the read endpoints on the given chi router.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Get("/holdings/{itemID}", apphttp.HandleError(h.getHolding))
	r.Get("/items/{depositor}", apphttp.HandleError(h.listByDepositor))
	r.Get("/reputation/{itemType}", apphttp.HandleError(h.getReputation))
	r.Get("/check/{itemType}", apphttp.HandleError(h.check))
	r.Post("/check-batch", apphttp.HandleError(h.checkBatch))
	r.Get("/malicious", apphttp.HandleError(h.listBy(purgatory.OrderMostMalicious)))
	r.Get("/spam", apphttp.HandleError(h.listBy(purgatory.OrderMostSpam)))
	r.Get("/lowest-reputation", apphttp.HandleError(h.listBy(purgatory.OrderLowestReputation)))
	r.Get("/runs", apphttp.HandleError(h.runs))
	r.Get("/stats", apphttp.HandleError(h.stats))
}

func (h *HTTP) getHolding(w http.ResponseWriter, r *http.Request) error {
	id, err := pathParam(r, "itemID")
	if err != nil {
		return err
	}
	holding, err := h.service.GetHolding(r.Context(), id)
	if err != nil {
		return err
	}
	h.writeJSON(w, http.StatusOK, toHoldingResponse(holding))
	return nil
}

func (h *HTTP) listByDepositor(w http.ResponseWriter, r *http.Request) error {
	depositor, err := pathParam(r, "depositor")
	if err != nil {
		return err
	}
	hs, err := h.service.ListByDepositor(r.Context(), depositor)
	if err != nil {
		return err
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"items": toHoldingResponses(hs)})
	return nil
}

func (h *HTTP) getReputation(w http.ResponseWriter, r *http.Request) error {
	itemType, err := pathParam(r, "itemType")
	if err != nil {
		return err
	}
	rep, err := h.service.GetReputation(r.Context(), itemType)
	if apperrors.Is(err, apperrors.CategoryResourceNotFound) {
		h.writeJSON(w, http.StatusOK, cleanReputation(itemType))
		return nil
	}
	if err != nil {
		return err
	}
	h.writeJSON(w, http.StatusOK, toReputationResponse(rep))
	return nil
}

func (h *HTTP) check(w http.ResponseWriter, r *http.Request) error {
	itemType, err := pathParam(r, "itemType")
	if err != nil {
		return err
	}
	c, err := h.service.IsFlagged(r.Context(), itemType)
	if err != nil {
		return err
	}
	h.writeJSON(w, http.StatusOK, toCheckResponse(c))
	return nil
}

func (h *HTTP) checkBatch(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	var req CheckBatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}

	checks, err := h.service.CheckBatch(r.Context(), req.ItemTypes)
	if err != nil {
		return err
	}
	results := make([]*CheckResponse, len(checks))
	for i, c := range checks {
		results[i] = toCheckResponse(c)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"results": results})
	return nil
}

func (h *HTTP) listBy(order purgatory.ReputationOrder) apphttp.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		limit, err := limitParam(r)
		if err != nil {
			return err
		}
		reps, err := h.service.ListReputations(r.Context(), order, limit)
		if err != nil {
			return err
		}
		h.writeJSON(w, http.StatusOK, map[string]any{"collections": toReputationResponses(reps)})
		return nil
	}
}

func (h *HTTP) runs(w http.ResponseWriter, r *http.Request) error {
	limit, err := limitParam(r)
	if err != nil {
		return err
	}
	runs, err := h.service.GetRunHistory(r.Context(), limit)
	if err != nil {
		return err
	}
	out := make([]*RunResponse, len(runs))
	for i, run := range runs {
		out[i] = toRunResponse(run)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
	return nil
}

func (h *HTTP) stats(w http.ResponseWriter, r *http.Request) error {
	st, err := h.service.Stats(r.Context())
	if err != nil {
		return err
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"stats": toStatsResponse(st)})
	return nil
}

// pathParam returns the unescaped value of a route parameter. Item types
// carry "::" and angle brackets, so clients escape them.
func pathParam(r *http.Request, name string) (string, error) {
	v, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil {
		return "", apperrors.BadRequestError(err, "invalid "+name)
	}
	return v, nil
}

// limitParam parses the optional limit query parameter; zero means default.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperrors.BadRequestError(err, "limit must be a non-negative integer")
	}
	return limit, nil
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	if err := apphttp.WriteJSON(w, status, data); err != nil {
		h.logger.Warn("Failed to write response", zap.Error(err))
	}
}
