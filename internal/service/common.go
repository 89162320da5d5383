package service

import (
	"github.com/google/uuid"

	"atelier/pkg/apperr"
)

// Actor is the resolved identity of the caller, supplied by the authorization
// middleware. Services use it for self-protection rules, visibility filtering
// and audit attribution.
type Actor struct {
	ID           uuid.UUID
	IsSuperAdmin bool
	RoleIDs      []uuid.UUID
}

// BulkIDsRequest is the shared payload for bulk lifecycle operations.
type BulkIDsRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func parseID(raw, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid " + label + " id")
	}
	return id, nil
}

// parseIDs parses and deduplicates a list of raw uuid strings.
func parseIDs(raw []string, label string) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool, len(raw))
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := parseID(r, label)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func containsID(ids []uuid.UUID, target uuid.UUID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
