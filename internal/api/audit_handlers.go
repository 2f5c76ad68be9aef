package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/inkwellapp/inkwell-server/internal/audit"
	apperrors "github.com/inkwellapp/inkwell-server/internal/errors"
)

func (s *Server) registerAuditRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listAuditEntries",
		Method:      http.MethodGet,
		Path:        "/api/v1/audit",
		Summary:     "List audit entries",
		Description: "Returns recent catalog audit entries, newest first",
		Tags:        []string{"Audit"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListAuditEntries)
}

// AuditListInput contains filters for listing audit entries.
type AuditListInput struct {
	Authorization string `header:"Authorization"`
	Actor         string `query:"actor" doc:"Filter by actor username"`
	Action        string `query:"action" doc:"Filter by action, e.g. book.add"`
	EntityType    string `query:"entity_type" doc:"Filter by entity type"`
	Limit         int    `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max entries to return"`
	Offset        int    `query:"offset" minimum:"0" doc:"Pagination offset"`
}

// AuditEntryResponse is one audit entry in API responses.
type AuditEntryResponse struct {
	ID         int64     `json:"id" doc:"Entry ID"`
	OccurredAt time.Time `json:"occurred_at" doc:"When the action happened"`
	Actor      string    `json:"actor" doc:"Acting username, or anonymous"`
	Action     string    `json:"action" doc:"Action name, e.g. book.add"`
	EntityType string    `json:"entity_type" doc:"Entity type acted on"`
	EntityID   string    `json:"entity_id" doc:"Entity ID acted on"`
	Summary    string    `json:"summary" doc:"Human-readable summary"`
}

// AuditListResponse contains audit entries in API responses.
type AuditListResponse struct {
	Entries []AuditEntryResponse `json:"entries" doc:"Audit entries, newest first"`
	Total   int64                `json:"total" doc:"Total entries matching the filter"`
}

// AuditListOutput wraps the audit list response for Huma.
type AuditListOutput struct {
	Body AuditListResponse
}

func (s *Server) handleListAuditEntries(ctx context.Context, input *AuditListInput) (*AuditListOutput, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}

	if s.audit == nil {
		return nil, apperrors.NotFound("audit trail is disabled")
	}

	filter := audit.Filter{
		Actor:      input.Actor,
		Action:     input.Action,
		EntityType: input.EntityType,
		Limit:      input.Limit,
		Offset:     input.Offset,
	}

	entries, err := s.audit.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	// Count ignores pagination, so the total reflects the whole filter.
	total, err := s.audit.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count audit entries: %w", err)
	}

	resp := AuditListResponse{
		Entries: make([]AuditEntryResponse, 0, len(entries)),
		Total:   total,
	}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, AuditEntryResponse{
			ID:         entry.ID,
			OccurredAt: entry.OccurredAt,
			Actor:      entry.Actor,
			Action:     entry.Action,
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Summary:    entry.Summary,
		})
	}

	return &AuditListOutput{Body: resp}, nil
}
