package lifecycle

import (
	"strings"

	"github.com/enjaz/request-service/internal/models"
)

// Filter narrows a triage list. Empty fields match everything.
type Filter struct {
	Status models.RequestStatus
	// Search matches tracking number or client name, case-insensitively.
	Search string
}

// Apply returns the requests matching f, keeping their order.
func (f Filter) Apply(reqs []models.Request) []models.Request {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.Request, 0, len(reqs))
	for _, r := range reqs {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(r.TrackingNumber), q) &&
			!strings.Contains(strings.ToLower(r.UserName), q) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Page returns the 1-based page of reqs and the total page count.
func Page(reqs []models.Request, page, limit int) ([]models.Request, int) {
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := len(reqs) / limit
	if len(reqs)%limit != 0 {
		totalPages++
	}
	// compare page numbers before multiplying so huge pages cannot overflow
	if page-1 >= totalPages {
		return []models.Request{}, totalPages
	}
	start := (page - 1) * limit
	end := len(reqs)
	if limit < end-start {
		end = start + limit
	}
	return reqs[start:end], totalPages
}
