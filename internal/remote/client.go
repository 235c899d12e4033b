// Package remote is the client for the system of record: a REST service
// exposing character sheets addressed by stable identifier. The sync engine
// only depends on the Client interface; the HTTP implementation lives in
// http.go.
package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aryklein/sheetsync/internal/models"
)

// Record is the wire form of a sheet. Timestamps travel as ISO-8601 and the
// payload stays raw so it round-trips byte-exactly through this client.
type Record struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"ownerId"`
	SystemID  string          `json:"systemId"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	IsPublic  bool            `json:"isPublic"`
	Deleted   bool            `json:"deleted,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Client describes the remote operations the sync engine needs.
type Client interface {
	// Get fetches one record by id. Absence maps to common.ErrNotFound —
	// it is the create-vs-update discriminator during push.
	Get(ctx context.Context, id string) (*Record, error)

	// Create registers a locally-assigned id with the remote system.
	Create(ctx context.Context, rec *Record) error

	// Update overwrites the remote record addressed by rec.ID.
	Update(ctx context.Context, rec *Record) error

	// ListByOwner fetches the owner's full record set, tombstones included.
	ListByOwner(ctx context.Context, ownerID string) ([]Record, error)
}

// FromSheet converts a local sheet into its wire form.
func FromSheet(s *models.Sheet) (*Record, error) {
	payload, err := s.Payload.Bytes()
	if err != nil {
		return nil, err
	}
	return &Record{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		SystemID:  s.SystemID,
		Name:      s.Name,
		Payload:   payload,
		ImageURL:  s.ImageURL,
		IsPublic:  s.IsPublic,
		Deleted:   s.Deleted,
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
	}, nil
}

// ToSheet converts a wire record into the local model.
func (r *Record) ToSheet() (*models.Sheet, error) {
	payload, err := models.ParsePayload(r.Payload)
	if err != nil {
		return nil, err
	}
	return &models.Sheet{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		SystemID:  r.SystemID,
		Name:      r.Name,
		Payload:   payload,
		ImageURL:  r.ImageURL,
		IsPublic:  r.IsPublic,
		Deleted:   r.Deleted,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}, nil
}
