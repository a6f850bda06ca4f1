package models

import (
	"time"
)

// Role identifies what an authenticated principal may do
type Role string

const (
	RoleClient   Role = "client"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// IsStaff returns true for roles that triage requests
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// Principal is the authenticated caller supplied by the identity provider
type Principal struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Agency is a government body offering one or more services
type Agency struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Icon        string `json:"icon" db:"icon"`
	Color       string `json:"color" db:"color"`
}

// Service is a single procurable government transaction
type Service struct {
	ID           string   `json:"id" db:"id"`
	AgencyID     string   `json:"agency_id" db:"agency_id"`
	Title        string   `json:"title" db:"title"`
	Description  string   `json:"description" db:"description"`
	Price        float64  `json:"price" db:"price"`
	Requirements []string `json:"requirements" db:"requirements"`
}

// HasRequirement reports whether label is one of the service's document requirements
func (s *Service) HasRequirement(label string) bool {
	for _, r := range s.Requirements {
		if r == label {
			return true
		}
	}
	return false
}

// Request is a client's submission to have a service performed.
// ServiceTitle and UserName are captured at creation so the request still
// renders after the service is edited or removed.
type Request struct {
	ID             string            `json:"id" db:"id"`
	TrackingNumber string            `json:"tracking_number" db:"tracking_number"`
	UserID         string            `json:"user_id" db:"user_id"`
	UserName       string            `json:"user_name" db:"user_name"`
	ServiceID      string            `json:"service_id" db:"service_id"`
	ServiceTitle   string            `json:"service_title" db:"service_title"`
	Status         RequestStatus     `json:"status" db:"status"`
	Notes          string            `json:"notes,omitempty" db:"notes"`
	Attachments    map[string]string `json:"attachments,omitempty" db:"attachments"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// Message is one entry in a request's conversation thread
type Message struct {
	ID         string    `json:"id" db:"id"`
	RequestID  string    `json:"request_id" db:"request_id"`
	SenderID   string    `json:"sender_id" db:"sender_id"`
	SenderName string    `json:"sender_name" db:"sender_name"`
	Content    string    `json:"content" db:"content"`
	IsAdmin    bool      `json:"is_admin" db:"is_admin"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// StatusChange records one status transition of a request
type StatusChange struct {
	ID        string        `json:"id" db:"id"`
	RequestID string        `json:"request_id" db:"request_id"`
	OldStatus RequestStatus `json:"old_status" db:"old_status"`
	NewStatus RequestStatus `json:"new_status" db:"new_status"`
	ChangedBy string        `json:"changed_by" db:"changed_by"`
	Reason    string        `json:"reason,omitempty" db:"reason"`
	Forced    bool          `json:"forced" db:"forced"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// Stats is derived on demand from the current request set
type Stats struct {
	TotalRequests     int                   `json:"totalRequests"`
	PendingRequests   int                   `json:"pendingRequests"`
	CompletedRequests int                   `json:"completedRequests"`
	Revenue           float64               `json:"revenue"`
	ByStatus          map[RequestStatus]int `json:"by_status"`
}

// Read-side projections

// RequestView is a request as rendered to clients and staff
type RequestView struct {
	Request
	StatusLabel  string          `json:"status_label"`
	Terminal     bool            `json:"terminal"`
	NextStatuses []RequestStatus `json:"next_statuses"`
}

// NewRequestView projects a request onto its display shape
func NewRequestView(r Request) RequestView {
	return RequestView{
		Request:      r,
		StatusLabel:  r.Status.Label(),
		Terminal:     r.Status.IsTerminal(),
		NextStatuses: r.Status.NextStatuses(),
	}
}

// NewRequestViews projects a slice of requests
func NewRequestViews(reqs []Request) []RequestView {
	views := make([]RequestView, 0, len(reqs))
	for _, r := range reqs {
		views = append(views, NewRequestView(r))
	}
	return views
}

// Request/Response models

// AgencyInput carries the editable fields of an agency
type AgencyInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

// ServiceInput carries the editable fields of a service
type ServiceInput struct {
	AgencyID     string   `json:"agency_id" binding:"required"`
	Title        string   `json:"title" binding:"required"`
	Description  string   `json:"description"`
	Price        float64  `json:"price"`
	Requirements []string `json:"requirements"`
}

// CreateRequestRequest represents a client submitting a service request
type CreateRequestRequest struct {
	ServiceID   string            `json:"service_id" binding:"required"`
	Notes       string            `json:"notes"`
	Attachments map[string]string `json:"attachments"`
}

// PostMessageRequest represents a new message on a request thread
type PostMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpdateRequestStatusRequest represents a staff status change
type UpdateRequestStatusRequest struct {
	Status RequestStatus `json:"status" binding:"required"`
	Reason string        `json:"reason,omitempty"`
	Force  bool          `json:"force,omitempty"`
}

// BulkUpdateStatusRequest represents a status change applied to many requests
type BulkUpdateStatusRequest struct {
	RequestIDs []string      `json:"request_ids" binding:"required,min=1"`
	Status     RequestStatus `json:"status" binding:"required"`
	Reason     string        `json:"reason,omitempty"`
	Force      bool          `json:"force,omitempty"`
}

// BulkUpdateResult reports the outcome for one request of a bulk update
type BulkUpdateResult struct {
	RequestID string `json:"request_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// AdminRequestListRequest represents query parameters for the staff triage list
type AdminRequestListRequest struct {
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Status string `form:"status"`
	Search string `form:"search"` // tracking number or client name
}

// AdminRequestListResponse represents a page of the staff triage list
type AdminRequestListResponse struct {
	Requests   []RequestView `json:"requests"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"total_pages"`
}

// AdminRequestDetailResponse represents a request with its history and thread
type AdminRequestDetailResponse struct {
	Request       RequestView    `json:"request"`
	StatusHistory []StatusChange `json:"status_history"`
	Messages      []Message      `json:"messages"`
}

// CatalogListResponse wraps a catalog listing and whether it came from a stale snapshot
type CatalogListResponse struct {
	Data  interface{} `json:"data"`
	Stale bool        `json:"stale"`
}

// PresignAttachmentRequest asks for an upload URL for one requirement document
type PresignAttachmentRequest struct {
	ServiceID   string `json:"service_id" binding:"required"`
	Requirement string `json:"requirement" binding:"required"`
	ContentType string `json:"content_type"`
}

// PresignAttachmentResponse carries the upload URL and the reference to submit
type PresignAttachmentResponse struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AttachmentURLResponse carries a time-limited download URL for one attachment
type AttachmentURLResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
