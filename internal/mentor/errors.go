package mentor

import "errors"

var (
	ErrDuplicateCode   = errors.New("mentor code already exists")
	ErrMalformedCode   = errors.New("malformed mentor code")
	ErrInvalidCode     = errors.New("invalid mentor code")
	ErrCodeAlreadyUsed = errors.New("mentor code has already been used")
	ErrRequestNotFound = errors.New("mentor request not found")
	ErrInvalidDecision = errors.New("decision must be approved or rejected")
	ErrReadAfterWrite  = errors.New("transaction read after write")
)

// RejectReason classifies a failed redemption for callers.
type RejectReason string

const (
	ReasonNone            RejectReason = ""
	ReasonInvalidCode     RejectReason = "invalid_code"
	ReasonCodeAlreadyUsed RejectReason = "code_already_used"
	ReasonOther           RejectReason = "other"
)

// RedeemResult is the outcome of RedeemCode. On failure Reason is set and Err carries details.
type RedeemResult struct {
	Success   bool
	RequestId string
	Reason    RejectReason
	Err       error
}

func redeemed(id string) RedeemResult {
	return RedeemResult{Success: true, RequestId: id}
}

func rejected(err error) RedeemResult {
	reason := ReasonOther
	switch {
	case errors.Is(err, ErrInvalidCode):
		reason = ReasonInvalidCode
	case errors.Is(err, ErrCodeAlreadyUsed):
		reason = ReasonCodeAlreadyUsed
	}
	return RedeemResult{Reason: reason, Err: err}
}

// Message is a user-facing description of the result.
func (r RedeemResult) Message() string {
	switch r.Reason {
	case ReasonNone:
		return "Mentor request submitted"
	case ReasonInvalidCode:
		return "Invalid mentor code"
	case ReasonCodeAlreadyUsed:
		return "This code has already been used"
	default:
		if r.Err != nil {
			return r.Err.Error()
		}
		return "Unknown error"
	}
}
