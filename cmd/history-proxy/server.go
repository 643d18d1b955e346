package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/courierops/orderhistory/pkg/filter"
	"github.com/courierops/orderhistory/pkg/loader"
	"github.com/courierops/orderhistory/pkg/warmer"
)

// newRouter builds the HTTP surface of the history proxy. All history routes
// are driver-scoped; the filter is carried in query parameters so identical
// views share sessions and cache entries.
func newRouter(svc *loader.Service, wrm *warmer.Warmer, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	h := &handlers{svc: svc, warmer: wrm, logger: logger}
	r.Route("/drivers/{driverID}/orders", func(r chi.Router) {
		r.Get("/", h.getPage)
		r.Post("/more", h.loadMore)
		r.Post("/refresh", h.refresh)
		r.Post("/warm", h.warm)
		r.Get("/count", h.count)
		r.Get("/summary", h.aggregateStats)
	})
	r.Get("/recommendations", h.recommendations)
	r.Get("/perf", h.perfSummaries)
	r.Get("/cache/stats", h.cacheStats)

	return r
}

type handlers struct {
	svc    *loader.Service
	warmer *warmer.Warmer
	logger zerolog.Logger
}

// parseFilter reads the filter from query parameters: start/end (RFC 3339),
// limit, offset. Absent bounds leave the window open; absent limit falls back
// to the default page size.
func parseFilter(r *http.Request) (filter.Filter, error) {
	q := r.URL.Query()

	var start, end *time.Time
	if raw := q.Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter.Filter{}, errors.New("start must be RFC 3339")
		}
		start = &t
	}
	if raw := q.Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter.Filter{}, errors.New("end must be RFC 3339")
		}
		end = &t
	}

	limit := filter.DefaultLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter.Filter{}, errors.New("limit must be an integer")
		}
		limit = n
	}
	offset := 0
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter.Filter{}, errors.New("offset must be an integer")
		}
		offset = n
	}

	return filter.New(start, end, limit, offset)
}

func (h *handlers) getPage(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverID")
	flt, err := parseFilter(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	page, err := h.svc.GetPage(r.Context(), driverID, flt)
	if err != nil {
		h.writeLoadError(w, err)
		return
	}
	w.Header().Set("X-From-Cache", strconv.FormatBool(page.FromCache))
	h.writeJSON(w, http.StatusOK, page)
}

func (h *handlers) loadMore(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverID")
	flt, err := parseFilter(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	session := h.svc.Session(driverID, flt)
	if err := session.LoadMore(r.Context()); err != nil {
		h.writeLoadError(w, err)
		return
	}
	st := session.Snapshot()
	h.writeJSON(w, http.StatusOK, &loader.PageResult{
		Items:       st.Items,
		HasMore:     st.HasMore,
		TotalLoaded: st.TotalLoaded,
	})
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverID")
	flt, err := parseFilter(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	page, err := h.svc.Session(driverID, flt).Refresh(r.Context())
	if err != nil {
		h.writeLoadError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// warm pre-loads the views the advisor recommends given the one the driver
// currently has open.
func (h *handlers) warm(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverID")
	current := filter.Type(r.URL.Query().Get("current"))

	results := h.warmer.WarmDriver(r.Context(), driverID, current)
	warmed := make([]filter.Type, 0, len(results))
	failed := make([]filter.Type, 0)
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res.Type)
		} else {
			warmed = append(warmed, res.Type)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string][]filter.Type{
		"warmed": warmed,
		"failed": failed,
	})
}

func (h *handlers) count(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverID")
	flt, err := parseFilter(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	count, err := h.svc.Count(r.Context(), driverID, flt)
	if err != nil {
		h.writeLoadError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (h *handlers) aggregateStats(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverID")
	flt, err := parseFilter(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	stats, err := h.svc.AggregateStats(r.Context(), driverID, flt)
	if err != nil {
		h.writeLoadError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *handlers) recommendations(w http.ResponseWriter, r *http.Request) {
	current := filter.Type(r.URL.Query().Get("current"))
	recs := h.svc.Recommendations(current)
	if recs == nil {
		recs = []filter.Type{}
	}
	h.writeJSON(w, http.StatusOK, map[string][]filter.Type{"recommendations": recs})
}

func (h *handlers) perfSummaries(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.PerfSummaries())
}

func (h *handlers) cacheStats(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.CacheStats())
}

// writeLoadError maps a load failure to its HTTP status: remote failures are
// 502 with the user-facing message, everything else is 500.
func (h *handlers) writeLoadError(w http.ResponseWriter, err error) {
	var loadErr *loader.LoadError
	if errors.As(err, &loadErr) {
		h.logger.Error().Err(err).Msg("Load failed")
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": loadErr.UserMessage()})
		return
	}
	h.logger.Error().Err(err).Msg("Request failed")
	h.writeError(w, http.StatusInternalServerError, errors.New("internal error"))
}

func (h *handlers) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to encode response")
	}
}
