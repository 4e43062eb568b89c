package server

import (
	"context"
	"net/http"
	"strings"

	"geminichat/internal/util"
	"geminichat/pkg/domain"
)

const clientIDHeader = "X-Client-Id"

type identityContextKey struct{}

// IdentityVerifier turns a bearer token into a signed-in identity.
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, token string) (domain.Identity, error)
}

// withIdentity resolves the caller. A bearer token must verify; without one
// the caller is anonymous and keyed by X-Client-Id, which is issued when
// missing or malformed.
func (s *Server) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var identity domain.Identity
		if token, ok := bearerToken(r); ok {
			if s.verifier == nil {
				writeError(w, http.StatusUnauthorized, "sign-in is not configured")
				return
			}
			verified, err := s.verifier.VerifyIdentity(r.Context(), token)
			if err != nil {
				util.LoggerFromContext(r.Context()).Warn("token rejected", "path", r.URL.Path, "err", err)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			identity = verified
		} else {
			clientID := strings.TrimSpace(r.Header.Get(clientIDHeader))
			if !util.ValidID(clientID) {
				clientID = util.NewID()
			}
			w.Header().Set(clientIDHeader, clientID)
			identity = domain.Identity{ID: clientID}
		}
		ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(r *http.Request) domain.Identity {
	identity, _ := r.Context().Value(identityContextKey{}).(domain.Identity)
	return identity
}

// ownerKey namespaces anonymous owners so they never collide with token subjects.
func ownerKey(identity domain.Identity) string {
	if identity.Authenticated {
		return "user:" + identity.ID
	}
	return "anon:" + identity.ID
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
