// Package models defines the data types persisted and synchronized by
// sheetsync: character sheets, their nested payload document, and the
// bookkeeping types the sync engine reports through.
package models

import "time"

// Sheet is a character sheet persisted locally and synced with the server.
//
// The ID is assigned at local creation time (not by the server) so a sheet
// created offline can later be upserted remotely without duplication.
// UpdatedAt is the sole conflict-resolution signal: every local mutation bumps
// it, and a pulled remote copy overwrites it verbatim.
type Sheet struct {
	// ID is a globally unique identifier, stable across local and remote copies.
	ID string

	// OwnerID identifies the user owning the sheet; all queries are scoped by it.
	OwnerID string

	// SystemID names the game system the sheet belongs to (e.g. "dnd5e").
	SystemID string

	// Name is the character name, denormalized out of the payload for
	// filtering and sorting.
	Name string

	// Payload is the nested sheet document (attributes, class, level, notes).
	// The sync engine treats it as an indivisible blob for conflict purposes.
	Payload Payload

	// ImageURL optionally points at a portrait image hosted elsewhere.
	ImageURL string

	// IsPublic marks the sheet as shareable.
	IsPublic bool

	// Deleted marks the sheet as a tombstone, kept so the deletion can
	// propagate to the other store.
	Deleted bool

	// CreatedAt is the immutable creation time in UTC.
	CreatedAt time.Time

	// UpdatedAt is the last modification time in UTC.
	UpdatedAt time.Time
}

// SheetInput carries the caller-supplied fields for creating a sheet.
type SheetInput struct {
	SystemID string
	Name     string
	Payload  Payload
	ImageURL string
	IsPublic bool
}
