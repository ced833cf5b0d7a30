package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/reframedb/reframe/api/internal/domain"
	"github.com/reframedb/reframe/api/internal/service/auth"
	jwtpkg "github.com/reframedb/reframe/pkg/jwt"
)

type authContextKey string

type authInfo struct {
	User  *domain.User
	Token string
}

const contextKeyAuth authContextKey = "reframe-auth-info"

const (
	msgProvideToken    = "Provide a valid auth token."
	msgTokenMalformed  = "Bearer token malformed."
	msgTokenExpired    = "Signature expired. Please log in again."
	msgTokenInvalid    = "Invalid token. Please log in again."
	msgTokenBlacklist  = "Token blacklisted. Please log in again."
	msgTryAgain        = "Try again"
	msgSomeErrorOccurs = "Some error occurred. Please try again."
)

var (
	errMissingToken   = errors.New("missing authorization header")
	errMalformedToken = errors.New("malformed authorization header")
)

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth ensures the request carries a valid, unrevoked token for an
// existing user before invoking the handler. missingStatus is the code used
// when no token is supplied at all.
func (r *Router) requireAuth(missingStatus int, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, _, ok := r.ensureAuth(w, req, missingStatus)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth validates the Authorization header and enriches the context.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request, missingStatus int) (context.Context, authInfo, bool) {
	token, err := authToken(req.Header.Get("Authorization"))
	switch {
	case errors.Is(err, errMissingToken):
		writeError(w, missingStatus, msgProvideToken)
		return req.Context(), authInfo{}, false
	case err != nil:
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, msgTokenMalformed)
		return req.Context(), authInfo{}, false
	}

	user, err := r.auth.Authorize(req.Context(), token)
	if err != nil {
		status, msg := authFailure(err)
		if status >= http.StatusInternalServerError {
			r.logger.Error("token validation failed", "error", err, "path", req.URL.Path)
		} else {
			r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
		}
		writeError(w, status, msg)
		return req.Context(), authInfo{}, false
	}
	info := authInfo{User: user, Token: token}
	ctx := context.WithValue(req.Context(), contextKeyAuth, info)
	return ctx, info, true
}

func authFailure(err error) (int, string) {
	switch {
	case errors.Is(err, jwtpkg.ErrTokenExpired):
		return http.StatusUnauthorized, msgTokenExpired
	case errors.Is(err, jwtpkg.ErrTokenInvalid), errors.Is(err, auth.ErrTokenRequired):
		return http.StatusUnauthorized, msgTokenInvalid
	case errors.Is(err, auth.ErrTokenBlacklisted):
		return http.StatusUnauthorized, msgTokenBlacklist
	default:
		return http.StatusInternalServerError, msgTryAgain
	}
}

// authInfoFromContext extracts auth metadata from context.
func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	value := ctx.Value(contextKeyAuth)
	if value == nil {
		return authInfo{}, false
	}
	info, ok := value.(authInfo)
	return info, ok
}

// authToken accepts either a bare token or "Bearer <token>".
func authToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errMissingToken
	}
	parts := strings.Fields(header)
	switch {
	case len(parts) == 1:
		return parts[0], nil
	case len(parts) == 2 && strings.EqualFold(parts[0], "Bearer"):
		return parts[1], nil
	default:
		return "", errMalformedToken
	}
}
