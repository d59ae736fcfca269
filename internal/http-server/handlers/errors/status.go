package errors

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"mentorgate/internal/mentor"
)

// Status maps a workflow error to an HTTP status code.
func Status(err error) int {
	switch {
	case stderrors.Is(err, mentor.ErrDuplicateCode), stderrors.Is(err, mentor.ErrCodeAlreadyUsed):
		return http.StatusConflict
	case stderrors.Is(err, mentor.ErrInvalidCode), stderrors.Is(err, mentor.ErrRequestNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, mentor.ErrMalformedCode), stderrors.Is(err, mentor.ErrInvalidDecision):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// RedeemStatus maps a redemption result to an HTTP status code.
func RedeemStatus(result mentor.RedeemResult) int {
	switch result.Reason {
	case mentor.ReasonNone:
		return http.StatusCreated
	case mentor.ReasonInvalidCode:
		return http.StatusNotFound
	case mentor.ReasonCodeAlreadyUsed:
		return http.StatusConflict
	default:
		if result.Err != nil && stderrors.Is(result.Err, mentor.ErrMalformedCode) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

// Limit parses the optional limit query parameter; zero means the default.
func Limit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 || limit > 1000 {
		return 0, stderrors.New("limit must be an integer between 0 and 1000")
	}
	return limit, nil
}
