// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"net/http"

	"github.com/taibuivan/companion/internal/platform/apperr"
	"github.com/taibuivan/companion/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/companion/internal/platform/request"
	"github.com/taibuivan/companion/internal/platform/respond"
	"github.com/taibuivan/companion/internal/platform/sec"
)

// RequestAuthenticator resolves a bearer credential into verified claims.
//
// The auth package's Authenticator satisfies it. Implementations must consult
// the session marker, not only the token signature.
type RequestAuthenticator interface {
	AuthenticateRequest(context context.Context, bearer string) (*sec.AuthClaims, error)
}

// Authenticate extracts and verifies the bearer token from the Authorization header.
//
// # Flow
//  1. If the header is absent, the request proceeds as anonymous.
//  2. The "Bearer " prefix is optional and stripped when present.
//  3. The token is verified through [RequestAuthenticator].
//  4. [*sec.AuthClaims] are injected into the request context.
//
// Verification errors are returned as-is so that expired, malformed and
// revoked tokens keep their distinct codes.
func Authenticate(authenticator RequestAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			token := requestutil.BearerToken(request)

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if token == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Token + Session Verification ───────────────────────────────
			claims, err := authenticator.AuthenticateRequest(request.Context(), token)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			// ── 3. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithAuthUser(request.Context(), claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetAuthUser(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}
