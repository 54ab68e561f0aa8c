// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account provides the HTTP delivery layer for the authenticated
account operations: profile lookup, password change and account deletion.

# Security

Every endpoint sits behind Authenticate and RequireAuth. The acting user is
always taken from the verified token, never from the request body.
*/
package account

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/companion/internal/platform/middleware"
	requestutil "github.com/taibuivan/companion/internal/platform/request"
	"github.com/taibuivan/companion/internal/platform/respond"
	"github.com/taibuivan/companion/internal/platform/validate"
	"github.com/taibuivan/companion/internal/users/auth"
)

// paramUserID is the URL parameter naming the target account.
const paramUserID = "userID"

// Service is the slice of [auth.Authenticator] this handler needs.
type Service interface {
	middleware.RequestAuthenticator
	Me(context context.Context, userID string) (*auth.User, error)
	ChangePassword(context context.Context, userID string, input auth.ChangePasswordInput, origin auth.Origin) error
	DeleteAccount(context context.Context, actorID, targetID string, origin auth.Origin) error
}

// Handler implements the HTTP layer for user account management.
type Handler struct {
	accountService Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] configured with the account endpoints.
//
// # Endpoints
//   - GET    /me        : Profile of the caller.
//   - POST   /password  : Change password.
//   - DELETE /{userID}  : Soft-delete the caller's own account.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Authenticate(handler.accountService), middleware.RequireAuth)

	router.Get("/me", handler.getMe)
	router.Post("/password", handler.changePassword)
	router.Delete("/{userID}", handler.deleteAccount)

	return router
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

/*
GET /api/v1/account/me.

Response:
  - 200: User: Private profile of the caller
  - 401: Authentication required
*/
func (handler *Handler) getMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.Me(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
POST /api/v1/account/password.

Description: Verifies the current password, stores the new one and revokes
the session. The client must log in again.

Response:
  - 200: Success
  - 400: VALIDATION_ERROR: Wrong current password or weak new password
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	err = handler.accountService.ChangePassword(request.Context(), userID, auth.ChangePasswordInput{
		CurrentPassword: input.CurrentPassword,
		NewPassword:     input.NewPassword,
		ConfirmPassword: input.ConfirmPassword,
	}, auth.OriginOf(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		auth.FieldMessage: "Password changed successfully, please log in again",
	})
}

/*
DELETE /api/v1/account/{userID}.

Response:
  - 204: No Content
  - 403: FORBIDDEN: Not the caller's account
  - 404: NOT_FOUND
*/
func (handler *Handler) deleteAccount(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	targetID := requestutil.Param(request, paramUserID)
	if err := handler.accountService.DeleteAccount(request.Context(), actorID, targetID, auth.OriginOf(request)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
