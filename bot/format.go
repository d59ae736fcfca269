package bot

import (
	"fmt"
	"strings"
	"time"

	"mentorgate/entity"
	"mentorgate/internal/mentor"
)

const timeLayout = "2006-01-02 15:04"

func formatTime(t time.Time) string {
	return Sanitize(t.UTC().Format(timeLayout))
}

func formatCode(code *entity.MentorCode) string {
	line := fmt.Sprintf("`%s` %s, created %s", Sanitize(code.Code), code.Status, formatTime(code.CreatedAt))
	if code.AssignedTo != nil {
		line += fmt.Sprintf("\n    assigned to %s", applicantName(*code.AssignedTo))
	}
	if code.UsedAt != nil {
		line += fmt.Sprintf(" at %s", formatTime(*code.UsedAt))
	}
	return line
}

func formatCodes(codes []*entity.MentorCode, degraded bool) string {
	if len(codes) == 0 {
		return "No mentor codes yet\\. Use /invite to issue one\\."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Mentor codes* \\(%d\\)", len(codes)))
	if degraded {
		sb.WriteString("\n_ordering unavailable_")
	}
	for _, code := range codes {
		sb.WriteString("\n")
		sb.WriteString(formatCode(code))
	}
	return sb.String()
}

func applicantName(a entity.Applicant) string {
	name := a.Name
	if name == "" {
		name = a.UserId
	}
	if a.Email != "" {
		return Sanitize(fmt.Sprintf("%s <%s>", name, a.Email))
	}
	return Sanitize(name)
}

func statusMark(status entity.RequestStatus) string {
	switch status {
	case entity.RequestApproved:
		return "✅"
	case entity.RequestRejected:
		return "❌"
	default:
		return "⏳"
	}
}

func formatRequest(r *entity.MentorRequest) string {
	return fmt.Sprintf("%s %s\ncode `%s`, %s\nid `%s`",
		statusMark(r.Status),
		applicantName(r.Applicant()),
		Sanitize(r.Code),
		formatTime(r.RequestedAt),
		Sanitize(r.Id),
	)
}

func formatRequests(list []*entity.MentorRequest, degraded bool) string {
	if len(list) == 0 {
		return "No mentor requests yet\\."
	}
	counts := mentor.CountByStatus(list)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Mentor requests*\npending %d, approved %d, rejected %d",
		counts[entity.RequestPending],
		counts[entity.RequestApproved],
		counts[entity.RequestRejected],
	))
	if degraded {
		sb.WriteString("\n_ordering unavailable_")
	}
	for _, r := range list {
		sb.WriteString("\n\n")
		sb.WriteString(formatRequest(r))
	}
	return sb.String()
}

func formatReminder(pending []*entity.MentorRequest) string {
	oldest := pending[0]
	for _, r := range pending[1:] {
		if r.RequestedAt.Before(oldest.RequestedAt) {
			oldest = r
		}
	}
	return fmt.Sprintf("%d mentor request\\(s\\) awaiting decision, oldest from %s\\. Use /pending to review\\.",
		len(pending), formatTime(oldest.RequestedAt))
}
