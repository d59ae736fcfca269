package entity

import (
	"net/http"

	"mentorgate/lib/validate"
)

// Applicant is the identity of a user redeeming a mentor code.
type Applicant struct {
	UserId string `json:"user_id" bson:"user_id" validate:"required,max=128"`
	Email  string `json:"email" bson:"email" validate:"omitempty,email"`
	Name   string `json:"name" bson:"name" validate:"omitempty,max=256"`
}

func (a *Applicant) Validate() error {
	return validate.Struct(a)
}

// RedeemParams is the body of a redemption call.
type RedeemParams struct {
	Code      string    `json:"code" validate:"required"`
	Applicant Applicant `json:"applicant"`
}

func (p *RedeemParams) Bind(_ *http.Request) error {
	return validate.Struct(p)
}

// IssueParams is the body of a code creation call; an empty code asks the server to generate one.
type IssueParams struct {
	Code string `json:"code" validate:"omitempty,max=64"`
}

func (p *IssueParams) Bind(_ *http.Request) error {
	return validate.Struct(p)
}
