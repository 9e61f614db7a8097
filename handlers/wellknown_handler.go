package handlers

import (
	"net/http"

	"github.com/upb/auth-service/services/token"
	"github.com/upb/auth-service/utils"
	"go.uber.org/zap"
)

// KeyPublisher exposes the public verification keys
type KeyPublisher interface {
	JWKS() token.JWKS
}

// JWKSHandler handles GET /.well-known/jwks.json
func JWKSHandler(keys KeyPublisher, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=300")
		if err := utils.WriteJSON(w, http.StatusOK, keys.JWKS()); err != nil {
			logger.Error("failed to write jwks response", zap.Error(err))
		}
	}
}
