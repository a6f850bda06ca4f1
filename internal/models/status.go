package models

// RequestStatus represents where a request sits in its lifecycle
type RequestStatus string

const (
	RequestStatusPending        RequestStatus = "PENDING"
	RequestStatusProcessing     RequestStatus = "PROCESSING"
	RequestStatusCompleted      RequestStatus = "COMPLETED"
	RequestStatusRejected       RequestStatus = "REJECTED"
	RequestStatusActionRequired RequestStatus = "ACTION_REQUIRED"
)

// AllRequestStatuses lists every valid status in display order
var AllRequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusProcessing,
	RequestStatusActionRequired,
	RequestStatusCompleted,
	RequestStatusRejected,
}

// requestTransitions is the allowed status graph. Staying in the same status is
// always allowed and is not listed here.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:        {RequestStatusProcessing, RequestStatusActionRequired},
	RequestStatusProcessing:     {RequestStatusCompleted, RequestStatusRejected, RequestStatusActionRequired},
	RequestStatusActionRequired: {RequestStatusProcessing},
	RequestStatusCompleted:      {},
	RequestStatusRejected:       {},
}

var requestStatusLabels = map[RequestStatus]string{
	RequestStatusPending:        "بانتظار المراجعة",
	RequestStatusProcessing:     "قيد التنفيذ",
	RequestStatusCompleted:      "مكتمل",
	RequestStatusRejected:       "مرفوض",
	RequestStatusActionRequired: "بانتظار العميل",
}

// IsValid checks if the status is one of the known values
func (s RequestStatus) IsValid() bool {
	_, ok := requestTransitions[s]
	return ok
}

// IsTerminal reports whether no further transition is modeled from this status
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusRejected
}

// CanTransitionTo reports whether moving from s to target follows the status graph
func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	if !s.IsValid() || !target.IsValid() {
		return false
	}
	if s == target {
		return true
	}
	for _, next := range requestTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one step, excluding s itself
func (s RequestStatus) NextStatuses() []RequestStatus {
	next := requestTransitions[s]
	out := make([]RequestStatus, len(next))
	copy(out, next)
	return out
}

// Label returns the text shown to clients for this status
func (s RequestStatus) Label() string {
	if l, ok := requestStatusLabels[s]; ok {
		return l
	}
	return string(s)
}
