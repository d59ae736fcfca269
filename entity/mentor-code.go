package entity

import "time"

type CodeStatus string

const (
	CodeUnused CodeStatus = "unused"
	CodeUsed   CodeStatus = "used"
)

// MentorCode is a single-use invitation token that lets an applicant request the mentor role.
// A code is used if and only if AssignedTo and UsedAt are both set; once used it never
// returns to unused.
type MentorCode struct {
	Code       string     `json:"code" bson:"_id"`
	Status     CodeStatus `json:"status" bson:"status"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	AssignedTo *Applicant `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
	UsedAt     *time.Time `json:"used_at,omitempty" bson:"used_at,omitempty"`
}

func NewMentorCode(code string, now time.Time) *MentorCode {
	return &MentorCode{
		Code:      code,
		Status:    CodeUnused,
		CreatedAt: now,
	}
}

func (c *MentorCode) IsUnused() bool {
	return c.Status == CodeUnused
}

// MarkUsed assigns the code. Assignment and usage time are always set together with the status.
func (c *MentorCode) MarkUsed(to Applicant, at time.Time) {
	c.Status = CodeUsed
	c.AssignedTo = &to
	c.UsedAt = &at
}

// Consistent reports whether status agrees with the assignment fields.
func (c *MentorCode) Consistent() bool {
	assigned := c.AssignedTo != nil && c.UsedAt != nil
	switch c.Status {
	case CodeUsed:
		return assigned
	case CodeUnused:
		return c.AssignedTo == nil && c.UsedAt == nil
	default:
		return false
	}
}
