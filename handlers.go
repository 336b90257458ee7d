package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tripvista/travel-platform/internal/audit"
	"github.com/tripvista/travel-platform/internal/authn"
	"github.com/tripvista/travel-platform/internal/cache"
	"github.com/tripvista/travel-platform/internal/refresh"
	"github.com/tripvista/travel-platform/internal/storage"
	"github.com/tripvista/travel-platform/internal/store"
	"github.com/tripvista/travel-platform/internal/task"
)

// apiResponse is the envelope every JSON endpoint returns; both frontends
// switch on code rather than the HTTP status alone.
type apiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeResult(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, apiResponse{Code: http.StatusOK, Message: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{Code: status, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// status is already on the wire; log is all that remains
		log.Info().Msgf("failed to write response: %v", err)
	}
}

// requireAdmin enforces admin identity in the handler, where the advisory
// gate left the decision. A nil return means the 401 is already written.
func requireAdmin(w http.ResponseWriter, r *http.Request) *authn.AdminPrincipal {
	principal := authn.AdminFromContext(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "admin authentication required")
		return nil
	}
	audit.Log(r.Context()).Identity = fmt.Sprintf("admin:%d", principal.UserID)
	return principal
}

func handleAdminLogin(users *store.AdminUsers, codec *authn.TokenCodec) http.Handler {
	type request struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	type response struct {
		Token    string `json:"token"`
		UserID   uint64 `json:"user_id"`
		Username string `json:"username"`
		RealName string `json:"real_name"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "username and password required")
			return
		}

		ctx := r.Context()
		user, err := users.FindByUsername(ctx, req.Username)
		if err != nil {
			if !errors.Is(err, store.ErrAdminUserNotFound) {
				log.Error().Err(err).Msg("admin lookup failed")
				writeError(w, http.StatusInternalServerError, "login unavailable")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}

		if !user.Active() || !user.VerifyPassword(req.Password) {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}

		token, err := codec.Issue(authn.TokenTypeAdmin, user.ID, user.Username)
		if err != nil {
			log.Error().Err(err).Msg("token issue failed")
			writeError(w, http.StatusInternalServerError, "login unavailable")
			return
		}

		if err := users.RecordLogin(ctx, user.ID, sourceIP(r), time.Now()); err != nil {
			log.Warn().Err(err).Uint64("user_id", user.ID).Msg("recording login failed")
		}

		audit.Log(ctx).Identity = fmt.Sprintf("admin:%d", user.ID)
		writeResult(w, response{
			Token:    token,
			UserID:   user.ID,
			Username: user.Username,
			RealName: user.RealName,
		})
	})
}

// handleAdminLogout voids the presented token ahead of its JWT expiry. The
// gate has already verified it; logout for an unauthenticated request is a
// no-op success.
func handleAdminLogout(blacklist *authn.Blacklist) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		if requireAdmin(w, r) == nil {
			return
		}

		token, ok := authn.BearerToken(r)
		if ok {
			if err := blacklist.Revoke(r.Context(), token); err != nil {
				log.Warn().Err(err).Msg("token revocation failed")
			}
		}
		writeResult(w, nil)
	})
}

func handleCacheRefresh(dispatcher *refresh.Dispatcher) http.Handler {
	type request struct {
		CacheType string  `json:"cacheType"`
		IDs       []int64 `json:"ids"`
	}
	type response struct {
		TaskID string `json:"taskId"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		if requireAdmin(w, r) == nil {
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}

		cacheType, err := cache.TypeFromCode(req.CacheType)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown cache type %q", req.CacheType))
			return
		}

		taskID, err := dispatcher.Refresh(r.Context(), cacheType, req.IDs)
		if err != nil {
			switch {
			case errors.Is(err, refresh.ErrNotRefreshable):
				writeError(w, http.StatusBadRequest, fmt.Sprintf("cache %q cannot be refreshed", req.CacheType))
			case errors.Is(err, refresh.ErrNoIDs):
				writeError(w, http.StatusBadRequest, "ids required for this cache type")
			default:
				log.Error().Err(err).Str("cache_type", req.CacheType).Msg("refresh dispatch failed")
				writeError(w, http.StatusInternalServerError, "refresh could not be started")
			}
			return
		}

		writeResult(w, response{TaskID: taskID})
	})
}

func handleCacheTaskStatus(tracker *task.Tracker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		if requireAdmin(w, r) == nil {
			return
		}

		status, err := tracker.GetStatus(r.Context(), r.PathValue("taskId"))
		if err != nil {
			if errors.Is(err, task.ErrTaskNotFound) {
				writeError(w, http.StatusNotFound, "task not found")
				return
			}
			log.Error().Err(err).Msg("task lookup failed")
			writeError(w, http.StatusInternalServerError, "task status unavailable")
			return
		}

		writeResult(w, status)
	})
}

func handleCacheTaskList(tracker *task.Tracker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		if requireAdmin(w, r) == nil {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		tasks, err := tracker.ListRecent(r.Context(), limit)
		if err != nil {
			log.Error().Err(err).Msg("task list failed")
			writeError(w, http.StatusInternalServerError, "task list unavailable")
			return
		}

		writeResult(w, tasks)
	})
}

func handleCacheStats(registry *cache.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		if requireAdmin(w, r) == nil {
			return
		}

		stats := registry.Stats()
		out := make(map[string]cache.Stats, len(stats))
		for t, s := range stats {
			out[string(t)] = s
		}
		writeResult(w, out)
	})
}

// handleCacheInvalidate clears one named cache, or every cache when the path
// segment is "all".
func handleCacheInvalidate(registry *cache.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		if requireAdmin(w, r) == nil {
			return
		}

		code := r.PathValue("cacheType")
		if code == "all" {
			registry.InvalidateAll()
			writeResult(w, nil)
			return
		}

		cacheType, err := cache.TypeFromCode(code)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown cache type %q", code))
			return
		}
		if err := registry.InvalidateType(cacheType); err != nil {
			writeError(w, http.StatusInternalServerError, "cache invalidation failed")
			return
		}

		writeResult(w, nil)
	})
}

// handleUpload accepts one multipart image on the shared surface. Either
// identity is acceptable; anonymous uploads are not.
func handleUpload(uploader *storage.Uploader) http.Handler {
	type response struct {
		URL string `json:"url"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		ctx := r.Context()
		admin := authn.AdminFromContext(ctx)
		mini := authn.MiniprogramFromContext(ctx)
		if admin == nil && mini == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if admin != nil {
			audit.Log(ctx).Identity = fmt.Sprintf("admin:%d", admin.UserID)
		} else {
			audit.Log(ctx).Identity = fmt.Sprintf("miniprogram:%d", mini.UserID)
		}

		if uploader == nil {
			writeError(w, http.StatusServiceUnavailable, "uploads are not configured")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "multipart field \"file\" required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable upload")
			return
		}

		url, err := uploader.Upload(ctx, data, header.Filename)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrFileTooLarge):
				writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			case errors.Is(err, storage.ErrFileTypeInvalid):
				writeError(w, http.StatusUnsupportedMediaType, "only images are accepted")
			default:
				log.Error().Err(err).Msg("upload failed")
				writeError(w, http.StatusInternalServerError, "upload failed")
			}
			return
		}

		writeResult(w, response{URL: url})
	})
}

func handleHealthCheck() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func maxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, limit)
	}
}

func sourceIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// drainRequestBody consumes any unread body so HTTP/1 connections can be
// reused.
func drainRequestBody(r *http.Request) {
	if r.Body != nil {
		_, _ = io.CopyN(io.Discard, r.Body, 5*1024*1024)
	}
}
