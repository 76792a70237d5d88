package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/domain/categories"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusInternalServerError, "the server encountered a problem")
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, err.Error())
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("not found error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusNotFound, err.Error())
}

func (app *application) conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("conflict response", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusConflict, err.Error())
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized basic error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) forbiddenResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("forbidden", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusForbidden, err.Error())
}

// upstreamErrorResponse reports a failure of the media host or mail relay.
func (app *application) upstreamErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("upstream error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadGateway, "an upstream service failed, please try again")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	app.logger.Warnw("rate limit exceeded", "method", r.Method, "path", r.URL.Path)

	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))

	writeJSONError(w, http.StatusTooManyRequests, fmt.Sprintf("rate limit exceeded, retry after %ds", secs))
}

// categoryErrorResponse maps the hierarchy's error taxonomy onto HTTP.
func (app *application) categoryErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *categories.ValidationError
		notFoundErr   *categories.NotFoundError
		subtreeErr    *categories.SubtreeError
	)
	switch {
	case errors.As(err, &validationErr):
		app.badRequestResponse(w, r, err)
	case errors.As(err, &notFoundErr):
		app.notFoundResponse(w, r, err)
	case errors.As(err, &subtreeErr):
		app.logger.Errorw("category subtree delete aborted", "node", subtreeErr.NodeID, "op", subtreeErr.Op, "error", subtreeErr.Err)
		writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("delete stopped at category %d; part of the subtree may remain", subtreeErr.NodeID))
	default:
		app.internalServerError(w, r, err)
	}
}
