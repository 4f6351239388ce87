package search

import (
	"context"
	"errors"
	"net/http"

	"sql-search/pkg/db"
	"sql-search/pkg/logger"
	"sql-search/pkg/res"

	"go.uber.org/zap"
)

type ControllerDeps struct {
	*Service
	Logger *zap.Logger
}

type Controller struct {
	*Service
	logger *zap.Logger
}

func NewController(router *http.ServeMux, deps ControllerDeps) *Controller {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{Service: deps.Service, logger: log}
	router.Handle("GET /search", c.Search())
	return c
}

func (c *Controller) Search() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := ParseSearchRequest(r.URL.Query())
		if err != nil {
			res.Json(w, map[string]any{"error": err.Error()}, http.StatusBadRequest)
			return
		}

		payload, err := c.Service.Search(r.Context(), body)
		if err != nil {
			c.fail(w, r, err)
			return
		}
		res.Raw(w, payload, http.StatusOK)
	}
}

func (c *Controller) fail(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), c.logger)
	status, msg := errorStatus(err)

	switch status {
	case http.StatusForbidden:
		log.Error("query execution failed", zap.Error(err))
	case http.StatusServiceUnavailable:
		log.Warn("backend unavailable", zap.Error(err))
		w.Header().Set("Retry-After", "1")
	case http.StatusGatewayTimeout:
		log.Warn("query timed out", zap.Error(err))
	case http.StatusBadRequest:
		res.Json(w, map[string]any{"error": err.Error()}, status)
		return
	default:
		if errors.Is(err, context.Canceled) {
			log.Debug("client went away", zap.Error(err))
		} else {
			log.Error("search failed", zap.Error(err))
		}
	}
	res.Json(w, map[string]any{"error": msg}, status)
}

// errorStatus maps a search error to the response status and the message
// shown to the client. Backend detail never reaches the message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad request"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "query timed out"
	case errors.Is(err, db.ErrQueryFailed):
		return http.StatusForbidden, "query failed"
	case unavailable(err):
		return http.StatusServiceUnavailable, "database unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
