// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wopihost

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/microsoft/wopi-validator-core-sub000/lib/chunked"
	"github.com/microsoft/wopi-validator-core-sub000/lib/wopiclient"
)

// Handler returns the host's HTTP routes:
//
//	POST /wopi/files/{fileID}/contents   chunked-file operations
//	GET  /health                         liveness
func (h *Host) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(h.logRequests)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Route("/wopi/files/{fileID}", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Post("/contents", h.handleContents)
	})
	return router
}

// authenticate rejects requests whose access_token does not match.
func (h *Host) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.accessToken != "" {
			token := r.URL.Query().Get("access_token")
			if subtle.ConstantTimeCompare([]byte(token), []byte(h.accessToken)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid access token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Host) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(wrapped, r)
		h.logger.Debug("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"override", r.Header.Get(wopiclient.HeaderOverride),
			"status", wrapped.Status(),
			"bytes", wrapped.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func (h *Host) handleContents(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	body := http.MaxBytesReader(w, r.Body, h.maxBodySize)

	switch override := r.Header.Get(wopiclient.HeaderOverride); override {
	case wopiclient.OverrideGetChunkedFile:
		response, err := h.GetChunkedFile(fileID, body)
		if err != nil {
			h.writeOperationError(w, r, override, fileID, err)
			return
		}
		w.Header().Set("Content-Type", wopiclient.ContentType)
		w.Header().Set(wopiclient.HeaderItemVersion, strconv.Itoa(h.Version(fileID)))
		w.Write(response)

	case wopiclient.OverridePutChunkedFile:
		result, err := h.PutChunkedFile(fileID, body, r.Header.Get(wopiclient.HeaderLock))
		if err != nil {
			h.writeOperationError(w, r, override, fileID, err)
			return
		}
		w.Header().Set(wopiclient.HeaderItemVersion, strconv.Itoa(result.Version))
		w.WriteHeader(http.StatusOK)

	default:
		writeError(w, http.StatusNotImplemented, "unsupported X-WOPI-Override "+strconv.Quote(override))
	}
}

// writeOperationError maps an operation failure to a WOPI status.
func (h *Host) writeOperationError(w http.ResponseWriter, r *http.Request, override, fileID string, err error) {
	status := http.StatusInternalServerError
	var lockErr *LockMismatchError
	var sizeErr *http.MaxBytesError
	switch {
	case errors.As(err, &lockErr):
		status = http.StatusConflict
		w.Header().Set(wopiclient.HeaderLock, lockErr.Current)
	case errors.Is(err, ErrFileNotFound), errors.Is(err, ErrStreamNotFound):
		status = http.StatusNotFound
	case errors.As(err, &sizeErr):
		status = http.StatusRequestEntityTooLarge
	case chunked.KindOf(err) != 0:
		status = http.StatusBadRequest
	}

	level := slog.LevelWarn
	if status == http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "chunked operation failed",
		"operation", override,
		"file_id", fileID,
		"status", status,
		"error", err,
	)
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set(wopiclient.HeaderServerError, message)
	http.Error(w, http.StatusText(status), status)
}
