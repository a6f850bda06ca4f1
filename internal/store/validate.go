package store

import (
	"fmt"
	"strings"

	"github.com/enjaz/request-service/internal/models"
)

// ValidateMessageContent rejects content that is empty after trimming whitespace.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: message content must not be empty", ErrInvalidArgument)
	}
	return nil
}

// ValidateAgency checks the fields of an agency before it is written.
func ValidateAgency(a models.Agency) error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: agency name is required", ErrInvalidArgument)
	}
	return nil
}

// ValidateService checks the fields of a service before it is written.
// Requirement labels must be non-empty and unique within the service.
func ValidateService(s models.Service) error {
	if strings.TrimSpace(s.AgencyID) == "" {
		return fmt.Errorf("%w: agency_id is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: service title is required", ErrInvalidArgument)
	}
	if s.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidArgument)
	}
	seen := make(map[string]struct{}, len(s.Requirements))
	for _, r := range s.Requirements {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("%w: requirement labels must not be empty", ErrInvalidArgument)
		}
		if _, dup := seen[r]; dup {
			return fmt.Errorf("%w: duplicate requirement %q", ErrInvalidArgument, r)
		}
		seen[r] = struct{}{}
	}
	return nil
}
