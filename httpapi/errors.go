package httpapi

import (
	"net/http"

	otpAuth "github.com/MrEthical07/otpAuth"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StatusFor maps an engine error kind to an HTTP status.
func StatusFor(kind otpAuth.Kind) int {
	switch kind {
	case otpAuth.KindValidationFailed:
		return http.StatusBadRequest
	case otpAuth.KindAlreadyExists:
		return http.StatusConflict
	case otpAuth.KindNotFound:
		return http.StatusNotFound
	case otpAuth.KindInvalidCredentials:
		return http.StatusUnauthorized
	case otpAuth.KindNotVerified:
		return http.StatusForbidden
	case otpAuth.KindOtpExpired:
		return http.StatusGone
	case otpAuth.KindOtpMismatch:
		return http.StatusBadRequest
	case otpAuth.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := otpAuth.KindOf(err)
	status := StatusFor(kind)

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "kind", kind.String(), "error", msg)
		if kind == otpAuth.KindUnavailable {
			msg = otpAuth.ErrUnavailable.Message
		} else {
			msg = otpAuth.ErrInternal.Message
		}
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, errorBody{Error: msg, Code: kind.String()})
}
