package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trunov/audiohub/internal/authclient"
)

type APIError struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

func writeJSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(APIError{
		Error: message,
	})
}

func writeMultipartError(w http.ResponseWriter, err error) {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "too large"):
		writeJSONError(w, "uploaded file exceeds maximum allowed size", http.StatusRequestEntityTooLarge)

	case strings.Contains(msg, "content-type isn't multipart/form-data"):
		writeJSONError(w, "invalid content type, expected multipart/form-data", http.StatusBadRequest)

	default:
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}

// authErrorStatus maps auth client failures onto HTTP status codes.
func authErrorStatus(err error) int {
	var statusErr *authclient.StatusError

	switch {
	case errors.Is(err, authclient.ErrNotConfigured):
		return http.StatusInternalServerError
	case errors.Is(err, authclient.ErrMissingToken),
		errors.Is(err, authclient.ErrMissingCredentials),
		errors.Is(err, authclient.ErrInvalidToken),
		errors.Is(err, authclient.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, authclient.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, authclient.ErrServiceTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, authclient.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &statusErr):
		return statusErr.Code
	default:
		return http.StatusInternalServerError
	}
}

func validationErrorsToMap(err error) map[string]string {
	errs := map[string]string{}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range verrs {
			field := e.Field()
			switch e.Tag() {
			case "required":
				errs[field] = "is required"
			case "max":
				errs[field] = "exceeds maximum length"
			default:
				errs[field] = "invalid value"
			}
		}
	} else {
		errs["error"] = err.Error()
	}
	return errs
}

var allowedMIMEs = map[string]struct{}{
	"video/mp4":        {},
	"video/x-msvideo":  {},
	"video/quicktime":  {},
	"video/webm":       {},
	"video/x-matroska": {},
	"video/x-flv":      {},
	"video/x-ms-wmv":   {},
}

func validateMimeType(mimeType string) error {
	if _, ok := allowedMIMEs[mimeType]; !ok {
		return fmt.Errorf("requested file upload with invalid type: %s", mimeType)
	}
	return nil
}
