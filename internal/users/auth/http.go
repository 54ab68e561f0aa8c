// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/companion/internal/platform/apperr"
	"github.com/taibuivan/companion/internal/platform/middleware"
	requestutil "github.com/taibuivan/companion/internal/platform/request"
	"github.com/taibuivan/companion/internal/platform/respond"
	"github.com/taibuivan/companion/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the authentication HTTP endpoints.
//
// The handler is a thin mediation layer: it decodes JSON, collects the
// request origin and maps results onto the response envelope. Validation
// lives in the flows so that every caller gets the same rules.
type Handler struct {
	authenticator *Authenticator
	registration  *RegistrationFlow
	passwordReset *PasswordResetFlow
}

// NewHandler constructs a new [Handler].
func NewHandler(authenticator *Authenticator, registration *RegistrationFlow, passwordReset *PasswordResetFlow) *Handler {
	return &Handler{
		authenticator: authenticator,
		registration:  registration,
		passwordReset: passwordReset,
	}
}

// Routes returns a [chi.Router] configured with authentication routes.
//
// # Endpoints
//   - POST /register                : Creates a new account.
//   - POST /verification-code       : Sends an email verification code.
//   - POST /verify                  : Confirms the email with a code.
//   - POST /login                   : Issues an access and a refresh token.
//   - PUT  /token                   : Exchanges a refresh token for an access token.
//   - POST /logout                  : Revokes the session of the presented access token.
//   - POST /password-reset/request  : Mails a reset link.
//   - POST /password-reset          : Sets a new password with a reset token.
//   - GET  /sessions                : Active session count of the caller.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/verification-code", handler.requestVerificationCode)
	router.Post("/verify", handler.verify)
	router.Post("/login", handler.login)
	router.Put("/token", handler.refresh)
	router.Post("/logout", handler.logout)
	router.Post("/password-reset/request", handler.requestPasswordReset)
	router.Post("/password-reset", handler.resetPassword)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(handler.authenticator), middleware.RequireAuth)
		r.Get("/sessions", handler.sessions)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	Email           string `json:"email"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// # Response Payloads

type verificationCodeResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type sessionsResponse struct {
	UserID string `json:"user_id"`
	Active int    `json:"active"`
}

/*
Register handles the creation of a new user account.

POST /api/v1/auth/register

Request:
  - Body: registerRequest (Email, Password, ConfirmPassword)

Response:
  - 201: User: Created user profile
  - 400: VALIDATION_ERROR: Bad input, weak password or duplicate email
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	user, err := handler.registration.Register(request.Context(), RegisterInput{
		Email:           input.Email,
		Password:        input.Password,
		ConfirmPassword: input.ConfirmPassword,
		Origin:          OriginOf(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

/*
RequestVerificationCode sends a 6-digit code to the account email.

POST /api/v1/auth/verification-code

Response:
  - 200: verificationCodeResponse (code only in development)
  - 404: NOT_FOUND: Unknown email
  - 429: TOO_MANY_REQUESTS: Within cooldown
*/
func (handler *Handler) requestVerificationCode(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	code, err := handler.registration.RequestVerificationCode(request.Context(), input.Email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, verificationCodeResponse{
		Message: "Verification code sent",
		Code:    code,
	})
}

/*
Verify confirms a user's email ownership.

POST /api/v1/auth/verify

Response:
  - 200: Success: Email verified
  - 400: INVALID_OR_EXPIRED_CODE
*/
func (handler *Handler) verify(writer http.ResponseWriter, request *http.Request) {
	var input verifyRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.registration.Verify(request.Context(), input.Email, input.Code, OriginOf(request)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Email verified successfully",
	})
}

/*
Login authenticates a user and establishes a session.

POST /api/v1/auth/login

Response:
  - 200: TokenPair
  - 401: INVALID_CREDENTIALS
  - 403: EMAIL_NOT_VERIFIED, ACCOUNT_DELETED or ACCOUNT_BANNED
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	pair, err := handler.authenticator.Login(request.Context(), LoginInput{
		Email:      input.Email,
		Password:   input.Password,
		RememberMe: input.RememberMe,
		Origin:     OriginOf(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, pair)
}

/*
Refresh issues a new access token using a refresh token.

PUT /api/v1/auth/token

Response:
  - 200: AccessGrant
  - 401: TOKEN_EXPIRED, TOKEN_MALFORMED or SESSION_REVOKED
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.RefreshToken == "" {
		respond.Error(writer, request, validate.RequiredError(FieldRefreshToken, "is required"))
		return
	}

	grant, err := handler.authenticator.Refresh(request.Context(), input.RefreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, grant)
}

/*
Logout terminates the session of the presented access token.

POST /api/v1/auth/logout

Description: Reads the Authorization header itself rather than sitting behind
the authentication middleware, so that a token whose session is already
revoked can still log out.

Response:
  - 204: No Content
  - 401: Missing, expired or malformed token
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	token := requestutil.BearerToken(request)
	if token == "" {
		respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
		return
	}

	if err := handler.authenticator.Logout(request.Context(), token, OriginOf(request)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
RequestPasswordReset mails a reset link.

POST /api/v1/auth/password-reset/request

Response:
  - 200: Success: Link sent
  - 404: NOT_FOUND: Unknown email
  - 429: TOO_MANY_REQUESTS: Within cooldown
*/
func (handler *Handler) requestPasswordReset(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.passwordReset.RequestReset(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "A reset link has been sent to your email",
	})
}

/*
ResetPassword completes the password recovery flow.

POST /api/v1/auth/password-reset

Response:
  - 200: Success: Password updated
  - 400: VALIDATION_ERROR: Bad token, email mismatch or weak password
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	err := handler.passwordReset.Reset(request.Context(), ResetInput{
		Token:           input.Token,
		Email:           input.Email,
		NewPassword:     input.NewPassword,
		ConfirmPassword: input.ConfirmPassword,
	}, OriginOf(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password updated successfully",
	})
}

/*
Sessions reports how many logins of the caller are still on record.

GET /api/v1/auth/sessions

Response:
  - 200: sessionsResponse
*/
func (handler *Handler) sessions(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	count, err := handler.authenticator.ActiveSessions(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, sessionsResponse{UserID: userID, Active: count})
}

// OriginOf collects the activity-log origin of request.
func OriginOf(request *http.Request) Origin {
	return Origin{
		IPAddress: requestutil.ClientIP(request),
		UserAgent: request.UserAgent(),
	}
}
