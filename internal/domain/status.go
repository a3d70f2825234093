package domain

// Status is the publication lifecycle used by status-bearing entities.
// The core does not enforce it generically; entity services opt in through
// their update hooks (see services.ProductService).
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is one of the known lifecycle statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusInactive:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle permits moving from s to
// next. Drafts activate; active and inactive toggle; nothing re-enters
// draft. Soft deletion is terminal and handled outside the status machine.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusActive
	case StatusActive:
		return next == StatusInactive
	case StatusInactive:
		return next == StatusActive
	}
	return false
}
