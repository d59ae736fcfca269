package entity

import "time"

// RequestStatus follows pending -> approved | rejected. Both decisions are terminal.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// IsDecision reports whether the status is one an administrator may set.
func (s RequestStatus) IsDecision() bool {
	return s == RequestApproved || s == RequestRejected
}

// MentorRequest records one applicant's successful redemption of a mentor code.
// Identity fields and Code are immutable after creation; only Status changes.
type MentorRequest struct {
	Id          string        `json:"id" bson:"_id"`
	Email       string        `json:"email" bson:"email"`
	UserId      string        `json:"user_id" bson:"user_id"`
	Name        string        `json:"name" bson:"name"`
	Code        string        `json:"code" bson:"code"`
	Status      RequestStatus `json:"status" bson:"status"`
	RequestedAt time.Time     `json:"requested_at" bson:"requested_at"`
}

func NewMentorRequest(id, code string, applicant Applicant, now time.Time) *MentorRequest {
	return &MentorRequest{
		Id:          id,
		Email:       applicant.Email,
		UserId:      applicant.UserId,
		Name:        applicant.Name,
		Code:        code,
		Status:      RequestPending,
		RequestedAt: now,
	}
}

// Applicant rebuilds the assignment record stored on the code.
func (r *MentorRequest) Applicant() Applicant {
	return Applicant{
		UserId: r.UserId,
		Email:  r.Email,
		Name:   r.Name,
	}
}

func (r *MentorRequest) IsPending() bool {
	return r.Status == RequestPending
}
