// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/companion/internal/users/auth"
)

func newRouter(f *fixture) http.Handler {
	router := chi.NewRouter()
	router.Mount("/api/v1/auth", auth.NewHandler(f.authenticator, f.registration, f.passwordReset).Routes())
	return router
}

// call sends a JSON request and decodes the "data" member of the response.
func call(t *testing.T, handler http.Handler, method, path, bearer string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	request := httptest.NewRequest(method, path, &payload)
	request.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if out != nil && recorder.Code < 300 {
		envelope := struct {
			Data json.RawMessage `json:"data"`
		}{}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return recorder
}

/*
TestHandler_EndToEnd drives the whole lifecycle over HTTP.
*/
func TestHandler_EndToEnd(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	credentials := map[string]any{"email": "a@example.com", "password": "Passw0rd!", "confirm_password": "Passw0rd!"}

	// 1. Register
	var user auth.User
	recorder := call(t, router, http.MethodPost, "/api/v1/auth/register", "", credentials, &user)
	require.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, "a@example.com", user.Email)
	assert.NotContains(t, recorder.Body.String(), "passwordhash")
	assert.NotContains(t, recorder.Body.String(), "$2a$")

	// 2. Login before verification
	recorder = call(t, router, http.MethodPost, "/api/v1/auth/login", "", credentials, nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "EMAIL_NOT_VERIFIED")

	// 3. Verification code, echoed in development
	var issued struct {
		Code string `json:"code"`
	}
	recorder = call(t, router, http.MethodPost, "/api/v1/auth/verification-code", "", map[string]string{"email": "a@example.com"}, &issued)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, issued.Code, 6)

	recorder = call(t, router, http.MethodPost, "/api/v1/auth/verification-code", "", map[string]string{"email": "a@example.com"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get("Retry-After"))

	recorder = call(t, router, http.MethodPost, "/api/v1/auth/verify", "", map[string]string{"email": "a@example.com", "code": issued.Code}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	// 4. Login
	var pair auth.TokenPair
	recorder = call(t, router, http.MethodPost, "/api/v1/auth/login", "", credentials, &pair)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, user.UserID, pair.UserID)

	// 5. Sessions
	var sessions struct {
		Active int `json:"active"`
	}
	recorder = call(t, router, http.MethodGet, "/api/v1/auth/sessions", pair.AccessToken, nil, &sessions)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, sessions.Active)

	// 6. Refresh
	var grant auth.AccessGrant
	recorder = call(t, router, http.MethodPut, "/api/v1/auth/token", "", map[string]string{"refresh_token": pair.RefreshToken}, &grant)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, grant.AccessToken)

	// 7. Logout twice, then every token is refused
	recorder = call(t, router, http.MethodPost, "/api/v1/auth/logout", pair.AccessToken, nil, nil)
	require.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = call(t, router, http.MethodPost, "/api/v1/auth/logout", pair.AccessToken, nil, nil)
	require.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = call(t, router, http.MethodGet, "/api/v1/auth/sessions", grant.AccessToken, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "SESSION_REVOKED")

	recorder = call(t, router, http.MethodPut, "/api/v1/auth/token", "", map[string]string{"refresh_token": pair.RefreshToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "SESSION_REVOKED")
}

/*
TestHandler_Rejections covers malformed bodies and missing credentials.
*/
func TestHandler_Rejections(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"invalid_json", http.MethodPost, "/api/v1/auth/register", "{", http.StatusBadRequest},
		{"missing_refresh_token", http.MethodPut, "/api/v1/auth/token", "{}", http.StatusBadRequest},
		{"logout_without_token", http.MethodPost, "/api/v1/auth/logout", "", http.StatusUnauthorized},
		{"sessions_anonymous", http.MethodGet, "/api/v1/auth/sessions", "", http.StatusUnauthorized},
		{"unknown_reset_email", http.MethodPost, "/api/v1/auth/password-reset/request", `{"email":"ghost@example.com"}`, http.StatusNotFound},
		{"bad_reset_token", http.MethodPost, "/api/v1/auth/password-reset", `{"token":"x","email":"a@example.com","new_password":"N3wPassw0rd!","confirm_password":"N3wPassw0rd!"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			recorder := httptest.NewRecorder()

			router.ServeHTTP(recorder, request)

			assert.Equal(t, tt.wantStatus, recorder.Code)
		})
	}
}

/*
TestHandler_MalformedBearer rejects a bad token before reaching any route.
*/
func TestHandler_MalformedBearer(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	recorder := call(t, router, http.MethodGet, "/api/v1/auth/sessions", "not.a.token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "TOKEN_MALFORMED")
}
