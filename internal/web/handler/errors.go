package handler

import (
	"errors"
	"net/http"

	"github.com/mcoot/ari-accounts/internal/services/account"
	"github.com/mcoot/ari-accounts/internal/web/middleware"
	"github.com/mcoot/ari-accounts/internal/web/templates/layout"
)

// flowStatus maps account flow errors to HTTP status codes
func flowStatus(err error) int {
	switch {
	case errors.Is(err, account.ErrTermsNotAccepted):
		return http.StatusForbidden
	case errors.Is(err, account.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, account.ErrNoSuchUser):
		return http.StatusNotFound
	case errors.Is(err, account.ErrInvalidCredentials), errors.Is(err, account.ErrInvalidSecrets):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

var flowErrors = []error{
	account.ErrTermsNotAccepted,
	account.ErrInvalidRequest,
	account.ErrSignupFailed,
	account.ErrNoSuchUser,
	account.ErrInvalidCredentials,
	account.ErrInvalidSecrets,
	account.ErrServerFailure,
}

// flowFlash turns a flow error into the error notice shown on the form.
// Only known flow errors are echoed to the client.
func flowFlash(err error) *layout.FlashMessage {
	message := account.ErrServerFailure.Error()
	for _, known := range flowErrors {
		if errors.Is(err, known) {
			message = known.Error()
			break
		}
	}
	return &layout.FlashMessage{Type: middleware.FlashError, Message: message}
}
