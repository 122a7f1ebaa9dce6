package invoice

import (
	"fmt"
	"time"
)

// Any status may move to any other until the invoice is paid.
var statusTransitions = map[Status][]Status{
	StatusDraft:   {StatusSent, StatusPaid, StatusOverdue},
	StatusSent:    {StatusPaid, StatusOverdue, StatusDraft},
	StatusOverdue: {StatusPaid, StatusSent, StatusDraft},
	StatusPaid:    {},
}

var statusLabels = map[Status]string{
	StatusDraft:   "Draft",
	StatusSent:    "Sent",
	StatusPaid:    "Paid",
	StatusOverdue: "Overdue",
}

var statusBadges = map[Status]string{
	StatusDraft:   "badge-draft",
	StatusSent:    "badge-sent",
	StatusPaid:    "badge-paid",
	StatusOverdue: "badge-overdue",
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// Label returns the display name.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Badge returns the CSS class used by the UI.
func (s Status) Badge() string {
	if badge, ok := statusBadges[s]; ok {
		return badge
	}
	return "badge-unknown"
}

// Next lists the statuses s may move to.
func (s Status) Next() []Status {
	return append([]Status(nil), statusTransitions[s]...)
}

// Editable reports whether invoices in this status accept edits.
func (s Status) Editable() bool {
	return s != StatusPaid
}

// IsOverdue reports whether a sent invoice is past its due date on the given day.
func IsOverdue(inv Invoice, today time.Time) bool {
	if inv.Status != StatusSent {
		return false
	}
	return dayOf(inv.DueDate).Before(dayOf(today))
}

// CheckTransition validates moving inv to the target status on the given day.
func CheckTransition(inv Invoice, to Status, today time.Time) error {
	if !to.Valid() {
		return NewError(KindValidation, fmt.Sprintf("unknown status %q", to), nil)
	}
	from := inv.Status
	if from == to {
		return nil
	}
	allowed := false
	for _, candidate := range statusTransitions[from] {
		if candidate == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return NewError(KindConflict, fmt.Sprintf("cannot change status from %s to %s", from, to), nil)
	}
	if from == StatusOverdue && to == StatusSent && dayOf(inv.DueDate).Before(dayOf(today)) {
		return NewError(KindConflict, "invoice is still past its due date", nil)
	}
	return nil
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
