package sheets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryklein/sheetsync/internal/common"
	"github.com/aryklein/sheetsync/internal/dbx"
	"github.com/aryklein/sheetsync/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sheetColumns = `id, owner_id, system_id, name, payload_json, image_url, is_public, deleted, created_at, updated_at`

func (r *SQLiteRepository) Create(ctx context.Context, ownerID string, input models.SheetInput) (*models.Sheet, error) {
	now := time.Now().UTC()
	s := &models.Sheet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		SystemID:  input.SystemID,
		Name:      input.Name,
		Payload:   input.Payload.Clone(),
		ImageURL:  input.ImageURL,
		IsPublic:  input.IsPublic,
		CreatedAt: now,
		UpdatedAt: now,
	}

	payload, err := s.Payload.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	query := `INSERT INTO sheets (` + sheetColumns + `)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.OwnerID, s.SystemID, s.Name, payload, s.ImageURL,
		boolToInt(s.IsPublic), 0, s.CreatedAt.UnixNano(), s.UpdatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to insert sheet: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id, ownerID string) (*models.Sheet, error) {
	query := `select ` + sheetColumns + ` from sheets where id=? and owner_id=? and deleted=0`
	return r.getOne(ctx, query, id, ownerID)
}

func (r *SQLiteRepository) GetByIDAny(ctx context.Context, id, ownerID string) (*models.Sheet, error) {
	query := `select ` + sheetColumns + ` from sheets where id=? and owner_id=?`
	return r.getOne(ctx, query, id, ownerID)
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, args ...any) (*models.Sheet, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	s, err := scanSheet(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select sheet: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) List(ctx context.Context, ownerID string, filter ListFilter) ([]models.Sheet, int, error) {
	where := []string{"owner_id = ?", "deleted = 0"}
	args := []any{ownerID}

	if filter.Class != "" {
		where = append(where, "json_extract(payload_json, '$.class') = ?")
		args = append(args, filter.Class)
	}
	if filter.MinLevel != nil {
		where = append(where, "CAST(json_extract(payload_json, '$.level') AS INTEGER) >= ?")
		args = append(args, *filter.MinLevel)
	}
	if filter.MaxLevel != nil {
		where = append(where, "CAST(json_extract(payload_json, '$.level') AS INTEGER) <= ?")
		args = append(args, *filter.MaxLevel)
	}
	if filter.NameContains != "" {
		where = append(where, "lower(name) LIKE '%' || lower(?) || '%'")
		args = append(args, filter.NameContains)
	}

	cond := strings.Join(where, " AND ")

	// Total count before pagination.
	var total int
	countQuery := `select count(*) from sheets where ` + cond
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sheets: %w", err)
	}

	orderCol := "updated_at"
	switch filter.SortBy {
	case SortByName:
		orderCol = "name COLLATE NOCASE"
	case SortByLevel:
		orderCol = "CAST(json_extract(payload_json, '$.level') AS INTEGER)"
	case SortByUpdatedAt, "":
		orderCol = "updated_at"
	}
	dir := "ASC"
	if filter.SortDesc {
		dir = "DESC"
	}

	query := `select ` + sheetColumns + ` from sheets where ` + cond +
		fmt.Sprintf(" order by %s %s, id ASC", orderCol, dir)
	if filter.Limit > 0 {
		query += " limit ? offset ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select sheets: %w", err)
	}
	defer rows.Close()

	result, err := collectSheets(rows)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id, ownerID string, patch models.Payload) (*models.Sheet, error) {
	// The merge is a read-modify-write; when we own the connection pool, run
	// both statements in one transaction so a concurrent sync-cycle write
	// cannot interleave.
	if db, ok := r.db.(*sql.DB); ok {
		var out *models.Sheet
		err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			var e error
			out, e = (&SQLiteRepository{db: tx}).Update(ctx, id, ownerID, patch)
			return e
		})
		return out, err
	}

	current, err := r.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	merged := current.Payload.Merge(patch)
	payload, err := merged.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	current.Payload = merged
	if name, ok := merged["name"].(string); ok {
		current.Name = name
	}
	current.UpdatedAt = time.Now().UTC()

	query := `update sheets set payload_json=?, name=?, updated_at=? where id=? and owner_id=? and deleted=0`
	res, err := r.db.ExecContext(ctx, query, payload, current.Name, current.UpdatedAt.UnixNano(), id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to update sheet: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return nil, common.ErrNotFound
	}
	return current, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id, ownerID string) error {
	query := `update sheets set deleted=1, updated_at=? where id=? and owner_id=? and deleted=0`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC().UnixNano(), id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete sheet: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListUpdatedSince(ctx context.Context, ownerID string, since time.Time) ([]models.Sheet, error) {
	query := `select ` + sheetColumns + ` from sheets where owner_id=? and updated_at > ? order by updated_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, ownerID, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to select changed sheets: %w", err)
	}
	defer rows.Close()
	return collectSheets(rows)
}

func (r *SQLiteRepository) CountUpdatedSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	var n int
	query := `select count(*) from sheets where owner_id=? and updated_at > ?`
	if err := r.db.QueryRowContext(ctx, query, ownerID, since.UnixNano()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count changed sheets: %w", err)
	}
	return n, nil
}

// Upsert writes the sheet by id. On conflict every synchronized column is
// overwritten, timestamps included.
func (r *SQLiteRepository) Upsert(ctx context.Context, s *models.Sheet) error {
	payload, err := s.Payload.Bytes()
	if err != nil {
		return fmt.Errorf("failed to serialize payload: %w", err)
	}

	query := `INSERT INTO sheets (` + sheetColumns + `)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET owner_id = excluded.owner_id,
				system_id = excluded.system_id,
				name = excluded.name,
				payload_json = excluded.payload_json,
				image_url = excluded.image_url,
				is_public = excluded.is_public,
				deleted = excluded.deleted,
				created_at = excluded.created_at,
				updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.OwnerID, s.SystemID, s.Name, payload, s.ImageURL,
		boolToInt(s.IsPublic), boolToInt(s.Deleted), s.CreatedAt.UnixNano(), s.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert sheet: %w", err)
	}
	return nil
}

func collectSheets(rows *sql.Rows) ([]models.Sheet, error) {
	var result []models.Sheet
	for rows.Next() {
		s, err := scanSheet(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanSheet(scan func(dest ...any) error) (*models.Sheet, error) {
	var (
		s                  models.Sheet
		payload            []byte
		isPublic, deleted  int
		createdN, updatedN int64
	)
	if err := scan(&s.ID, &s.OwnerID, &s.SystemID, &s.Name, &payload, &s.ImageURL,
		&isPublic, &deleted, &createdN, &updatedN); err != nil {
		return nil, err
	}

	p, err := models.ParsePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", err)
	}
	s.Payload = p
	s.IsPublic = isPublic != 0
	s.Deleted = deleted != 0
	s.CreatedAt = time.Unix(0, createdN).UTC()
	s.UpdatedAt = time.Unix(0, updatedN).UTC()
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
