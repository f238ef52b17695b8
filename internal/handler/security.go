package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
)

// APIKeyHeader carries the admin API key.
const APIKeyHeader = "api_key"

// AdminScope is the scope an API key needs for the admin routes.
const AdminScope = "admin"

// RequireAPIKey rejects requests without a valid admin API key with 401, or
// 403 when the key lacks AdminScope. Lookup failures are answered with 500.
func (h *Handler) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := h.auth.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
		switch {
		case errors.Is(err, auth.ErrUnauthorized):
			zctx.From(r.Context()).Debug("API key rejected", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		case err != nil:
			writeInternal(w, r, err)
			return
		}
		if !info.HasScope(AdminScope) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
