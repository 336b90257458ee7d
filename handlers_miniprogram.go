package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/tripvista/travel-platform/internal/audit"
	"github.com/tripvista/travel-platform/internal/authn"
	"github.com/tripvista/travel-platform/internal/cache"
	"github.com/tripvista/travel-platform/internal/store"
	"github.com/tripvista/travel-platform/internal/wechat"
)

// CodeExchanger trades a wx.login code for a WeChat session, implemented by
// wechat.Client.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (wechat.Session, error)
}

func handleMiniprogramLogin(exchanger CodeExchanger, users *store.Users, sessions *authn.Sessions) http.Handler {
	type request struct {
		Code string `json:"code"`
	}
	type response struct {
		SessionID string      `json:"sessionId"`
		User      *store.User `json:"user"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		if exchanger == nil {
			writeError(w, http.StatusServiceUnavailable, "mini-program login is not configured")
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
			writeError(w, http.StatusBadRequest, "login code required")
			return
		}

		ctx := r.Context()
		wxSession, err := exchanger.Exchange(ctx, req.Code)
		if err != nil {
			log.Info().Err(err).Msg("login code exchange failed")
			writeError(w, http.StatusUnauthorized, "login code rejected")
			return
		}

		user, err := users.EnsureByOpenID(ctx, wxSession.OpenID, wxSession.UnionID)
		if err != nil {
			log.Error().Err(err).Msg("user provisioning failed")
			writeError(w, http.StatusInternalServerError, "login unavailable")
			return
		}
		if !user.Active() {
			writeError(w, http.StatusForbidden, "account disabled")
			return
		}

		sessionID, err := sessions.Issue(ctx, &authn.Session{
			UserID:     user.ID,
			OpenID:     user.OpenID,
			SessionKey: wxSession.SessionKey,
		})
		if err != nil {
			log.Error().Err(err).Msg("session issue failed")
			writeError(w, http.StatusInternalServerError, "login unavailable")
			return
		}

		audit.Log(ctx).Identity = fmt.Sprintf("miniprogram:%d", user.ID)
		writeResult(w, response{SessionID: sessionID, User: user})
	})
}

// handleMiniprogramLogout invalidates the presented session id. The path is
// on the gate's skip list, so the id is read directly from the request.
func handleMiniprogramLogout(sessions *authn.Sessions, header string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		id := r.Header.Get(header)
		if id == "" {
			if cookie, err := r.Cookie(authn.SessionCookie); err == nil {
				id = cookie.Value
			}
		}
		if id != "" {
			if err := sessions.Invalidate(r.Context(), id); err != nil {
				log.Warn().Err(err).Msg("session invalidation failed")
			}
		}
		writeResult(w, nil)
	})
}

func handleMiniprogramUserInfo(users *store.Users) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		ctx := r.Context()
		principal := authn.MiniprogramFromContext(ctx)
		if principal == nil {
			writeError(w, http.StatusUnauthorized, "session required")
			return
		}
		audit.Log(ctx).Identity = fmt.Sprintf("miniprogram:%d", principal.UserID)

		user, err := users.FindByID(ctx, principal.UserID)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				writeError(w, http.StatusUnauthorized, "session no longer valid")
				return
			}
			log.Error().Err(err).Msg("user lookup failed")
			writeError(w, http.StatusInternalServerError, "profile unavailable")
			return
		}

		writeResult(w, user)
	})
}

// handleHomeData serves the aggregate home payload cache-aside: a miss
// rebuilds the snapshot and stores it for the policy TTL.
func handleHomeData(registry *cache.Registry, home *store.Home) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		ctx := r.Context()
		if value, found, err := registry.Get(ctx, cache.TypeHome, cache.HomeKey); err == nil && found {
			writeResult(w, value)
			return
		}

		snapshot, err := home.Snapshot(ctx)
		if err != nil {
			log.Error().Err(err).Msg("home snapshot failed")
			writeError(w, http.StatusInternalServerError, "home data unavailable")
			return
		}

		if err := registry.Set(ctx, cache.TypeHome, cache.HomeKey, snapshot); err != nil {
			log.Warn().Err(err).Msg("home cache write failed")
		}
		writeResult(w, snapshot)
	})
}

func handleConfigEntry(registry *cache.Registry, configs *store.Configs) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		key := r.PathValue("key")
		ctx := r.Context()

		if value, found, err := registry.Get(ctx, cache.TypeMiniprogram, key); err == nil && found {
			writeResult(w, value)
			return
		}

		entry, err := configs.FindByKey(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrConfigNotFound) {
				writeError(w, http.StatusNotFound, "config entry not found")
				return
			}
			log.Error().Err(err).Str("key", key).Msg("config lookup failed")
			writeError(w, http.StatusInternalServerError, "config unavailable")
			return
		}

		if err := registry.Set(ctx, cache.TypeMiniprogram, key, entry); err != nil {
			log.Warn().Err(err).Msg("config cache write failed")
		}
		writeResult(w, entry)
	})
}

func handleAttractionDetail(registry *cache.Registry, attractions *store.Attractions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		serveDetail(w, r, registry, cache.TypeAttraction, func(ctx context.Context, id int64) (any, error) {
			return attractions.FindByID(ctx, id)
		}, store.ErrAttractionNotFound)
	})
}

func handleProductDetail(registry *cache.Registry, products *store.Products) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		serveDetail(w, r, registry, cache.TypeProduct, func(ctx context.Context, id int64) (any, error) {
			return products.FindByID(ctx, id)
		}, store.ErrProductNotFound)
	})
}

// handleArticleDetail serves articles cache-aside and counts a view per
// reader per anti-spam window. The view window cache carries the
// deduplication: a present marker means this reader was already counted.
func handleArticleDetail(registry *cache.Registry, articles *store.Articles) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed id")
			return
		}

		ctx := r.Context()
		countArticleView(ctx, registry, articles, id, viewerKey(r))

		key := strconv.FormatInt(id, 10)
		if value, found, err := registry.Get(ctx, cache.TypeArticle, key); err == nil && found {
			writeResult(w, value)
			return
		}

		article, err := articles.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrArticleNotFound) {
				writeError(w, http.StatusNotFound, "article not found")
				return
			}
			log.Error().Err(err).Int64("id", id).Msg("article lookup failed")
			writeError(w, http.StatusInternalServerError, "article unavailable")
			return
		}

		if err := registry.Set(ctx, cache.TypeArticle, key, article); err != nil {
			log.Warn().Err(err).Msg("article cache write failed")
		}
		writeResult(w, article)
	})
}

func countArticleView(ctx context.Context, registry *cache.Registry, articles *store.Articles, id int64, viewer string) {
	marker := fmt.Sprintf("%d:%s", id, viewer)
	if _, seen, err := registry.Get(ctx, cache.TypeArticleView, marker); err != nil || seen {
		return
	}

	if err := articles.IncrementViewCount(ctx, id); err != nil {
		if !errors.Is(err, store.ErrArticleNotFound) {
			log.Warn().Err(err).Int64("id", id).Msg("view count increment failed")
		}
		return
	}
	if err := registry.Set(ctx, cache.TypeArticleView, marker, true); err != nil {
		log.Warn().Err(err).Msg("view marker write failed")
	}
}

// viewerKey identifies the reader for view deduplication: the session user
// when present, the source address otherwise.
func viewerKey(r *http.Request) string {
	if principal := authn.MiniprogramFromContext(r.Context()); principal != nil {
		return fmt.Sprintf("u%d", principal.UserID)
	}
	return sourceIP(r)
}

// serveDetail is the shared cache-aside read for id-addressed catalog
// entities.
func serveDetail(
	w http.ResponseWriter,
	r *http.Request,
	registry *cache.Registry,
	cacheType cache.Type,
	fetch func(ctx context.Context, id int64) (any, error),
	notFound error,
) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed id")
		return
	}

	ctx := r.Context()
	key := strconv.FormatInt(id, 10)

	if value, found, err := registry.Get(ctx, cacheType, key); err == nil && found {
		writeResult(w, value)
		return
	}

	value, err := fetch(ctx, id)
	if err != nil {
		if errors.Is(err, notFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		log.Error().Err(err).Str("cache_type", string(cacheType)).Int64("id", id).Msg("detail lookup failed")
		writeError(w, http.StatusInternalServerError, "temporarily unavailable")
		return
	}

	if err := registry.Set(ctx, cacheType, key, value); err != nil {
		log.Warn().Err(err).Msg("detail cache write failed")
	}
	writeResult(w, value)
}
