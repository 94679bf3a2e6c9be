// Package store wraps the SQLite database holding uploaded files, their
// chunks and embeddings, the proposal review queue, and the approved
// ontology (entities, relations, instances).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Proposal statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// File represents a row in the files table.
type File struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	Mime      string `json:"mime"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Chunk represents a row in the chunks table.
type Chunk struct {
	ID         int64  `json:"id"`
	FileID     int64  `json:"file_id"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
}

// Proposal represents a row in the proposals table. Payload shape depends
// on Type; see the ontology package payload types.
type Proposal struct {
	ID         int64           `json:"id"`
	FileID     int64           `json:"file_id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Status     string          `json:"status"`
	CreatedBy  string          `json:"created_by"`
	ReviewedBy string          `json:"reviewed_by,omitempty"`
	CreatedAt  string          `json:"created_at"`
	ReviewedAt string          `json:"reviewed_at,omitempty"`
}

// Entity represents an approved ontology class.
type Entity struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties"`
}

// Relation represents an approved typed edge between two entities.
type Relation struct {
	ID             int64             `json:"id"`
	SourceEntityID int64             `json:"source_entity_id"`
	TargetEntityID int64             `json:"target_entity_id"`
	RelType        string            `json:"rel_type"`
	Properties     map[string]string `json:"properties"`
}

// Instance represents an approved data record belonging to an entity.
type Instance struct {
	ID         int64             `json:"id"`
	EntityID   int64             `json:"entity_id"`
	Properties map[string]string `json:"properties"`
}

// Store wraps the SQLite database for all kudwa persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec virtual table.
func New(dbPath string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db, embeddingDim: embeddingDim}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- File operations ---

// InsertFile records an uploaded file. Returns the new file ID.
func (s *Store) InsertFile(ctx context.Context, f File) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO files (filename, mime, size_bytes, sha256, status)
		VALUES (?, ?, ?, ?, ?)
	`, f.Filename, f.Mime, f.SizeBytes, f.SHA256, f.Status)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetFileBySHA256 looks up a file by its content hash.
func (s *Store) GetFileBySHA256(ctx context.Context, hash string) (File, error) {
	return s.scanFile(s.db.QueryRowContext(ctx, `
		SELECT id, filename, mime, size_bytes, sha256, status, created_at, updated_at
		FROM files WHERE sha256 = ?
	`, hash))
}

// GetFile looks up a file by ID.
func (s *Store) GetFile(ctx context.Context, id int64) (File, error) {
	return s.scanFile(s.db.QueryRowContext(ctx, `
		SELECT id, filename, mime, size_bytes, sha256, status, created_at, updated_at
		FROM files WHERE id = ?
	`, id))
}

func (s *Store) scanFile(row *sql.Row) (File, error) {
	var f File
	err := row.Scan(&f.ID, &f.Filename, &f.Mime, &f.SizeBytes, &f.SHA256, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, ErrNotFound
	}
	return f, err
}

// ListFiles returns all uploaded files, newest first.
func (s *Store) ListFiles(ctx context.Context) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, mime, size_bytes, sha256, status, created_at, updated_at
		FROM files ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.Filename, &f.Mime, &f.SizeBytes, &f.SHA256, &f.Status, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// UpdateFileStatus transitions a file's processing status.
func (s *Store) UpdateFileStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE files SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, status, id)
	return err
}

// DeleteFile removes a file and its chunks, embeddings, and proposals.
// Approved ontology rows survive; they belong to the ontology, not the file.
func (s *Store) DeleteFile(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// vec0 virtual tables do not participate in FK cascades.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM vec_chunks WHERE chunk_id IN (SELECT id FROM chunks WHERE file_id = ?)
	`, id); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// --- Chunk operations ---

// InsertChunks stores the chunks of a file and returns their IDs in order.
func (s *Store) InsertChunks(ctx context.Context, fileID int64, contents []string) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (file_id, chunk_index, content) VALUES (?, ?, ?)
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(contents))
	for i, content := range contents {
		res, err := stmt.ExecContext(ctx, fileID, i, content)
		if err != nil {
			return nil, fmt.Errorf("inserting chunk %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// InsertEmbedding stores a chunk embedding in the vec0 table.
func (s *Store) InsertEmbedding(ctx context.Context, chunkID int64, embedding []float32) error {
	if len(embedding) != s.embeddingDim {
		return fmt.Errorf("embedding dimension %d does not match configured %d", len(embedding), s.embeddingDim)
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return fmt.Errorf("serializing embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)
	`, chunkID, blob)
	return err
}

// --- Proposal operations ---

// InsertProposal appends a proposal to the review queue.
func (s *Store) InsertProposal(ctx context.Context, fileID int64, proposalType string, payload json.RawMessage, createdBy string) (int64, error) {
	if createdBy == "" {
		createdBy = "system"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO proposals (file_id, type, payload, status, created_by)
		VALUES (?, ?, ?, ?, ?)
	`, fileID, proposalType, string(payload), StatusPending, createdBy)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetProposal looks up a single proposal.
func (s *Store) GetProposal(ctx context.Context, id int64) (Proposal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, file_id, type, payload, status, created_by,
		       COALESCE(reviewed_by, ''), created_at, COALESCE(reviewed_at, '')
		FROM proposals WHERE id = ?
	`, id)

	var p Proposal
	var payload string
	err := row.Scan(&p.ID, &p.FileID, &p.Type, &payload, &p.Status, &p.CreatedBy, &p.ReviewedBy, &p.CreatedAt, &p.ReviewedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Proposal{}, ErrNotFound
	}
	if err != nil {
		return Proposal{}, err
	}
	p.Payload = json.RawMessage(payload)
	return p, nil
}

// ListProposals returns proposals, newest first. An empty status returns
// all; otherwise only proposals in that status.
func (s *Store) ListProposals(ctx context.Context, status string) ([]Proposal, error) {
	query := `
		SELECT id, file_id, type, payload, status, created_by,
		       COALESCE(reviewed_by, ''), created_at, COALESCE(reviewed_at, '')
		FROM proposals`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var proposals []Proposal
	for rows.Next() {
		var p Proposal
		var payload string
		if err := rows.Scan(&p.ID, &p.FileID, &p.Type, &payload, &p.Status, &p.CreatedBy, &p.ReviewedBy, &p.CreatedAt, &p.ReviewedAt); err != nil {
			return nil, err
		}
		p.Payload = json.RawMessage(payload)
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

// UpdateProposalStatus marks a proposal reviewed.
func (s *Store) UpdateProposalStatus(ctx context.Context, id int64, status, reviewedBy string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE proposals SET status = ?, reviewed_by = ?, reviewed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, reviewedBy, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Ontology merge ---

// proposal payload shapes as stored (mirrors the ontology package payloads).
type entityPayload struct {
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties"`
}

type relationPayload struct {
	Source     string            `json:"source"`
	Target     string            `json:"target"`
	RelType    string            `json:"rel_type"`
	Properties map[string]string `json:"properties"`
}

type instancePayload struct {
	Entity     string            `json:"entity"`
	Properties map[string]string `json:"properties"`
}

// MergeProposal inserts an approved proposal's payload into the ontology
// tables. Relations and instances resolve entity names against existing
// entities; an unresolved name is not an error — merged reports false and
// the proposal can still be marked approved, matching the review flow where
// a relation may reference an entity whose own proposal was rejected.
func (s *Store) MergeProposal(ctx context.Context, p Proposal) (merged bool, err error) {
	switch p.Type {
	case "entity":
		var payload entityPayload
		if err := json.Unmarshal(p.Payload, &payload); err != nil {
			return false, fmt.Errorf("decoding entity payload: %w", err)
		}
		props, err := marshalProps(payload.Properties)
		if err != nil {
			return false, err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO entities (name, properties) VALUES (?, ?)
		`, payload.Name, props)
		if err != nil {
			return false, err
		}
		return true, nil

	case "relation":
		var payload relationPayload
		if err := json.Unmarshal(p.Payload, &payload); err != nil {
			return false, fmt.Errorf("decoding relation payload: %w", err)
		}
		sourceID, err := s.FindEntityIDByName(ctx, payload.Source)
		if err != nil {
			return false, nil // unresolved source
		}
		targetID, err := s.FindEntityIDByName(ctx, payload.Target)
		if err != nil {
			return false, nil // unresolved target
		}
		props, err := marshalProps(payload.Properties)
		if err != nil {
			return false, err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO relations (source_entity_id, target_entity_id, rel_type, properties)
			VALUES (?, ?, ?, ?)
		`, sourceID, targetID, payload.RelType, props)
		if err != nil {
			return false, err
		}
		return true, nil

	case "instance":
		var payload instancePayload
		if err := json.Unmarshal(p.Payload, &payload); err != nil {
			return false, fmt.Errorf("decoding instance payload: %w", err)
		}
		entityID, err := s.FindEntityIDByName(ctx, payload.Entity)
		if err != nil {
			return false, nil // unresolved entity
		}
		props, err := marshalProps(payload.Properties)
		if err != nil {
			return false, err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO instances (entity_id, properties) VALUES (?, ?)
		`, entityID, props)
		if err != nil {
			return false, err
		}
		return true, nil

	default:
		return false, fmt.Errorf("unknown proposal type: %s", p.Type)
	}
}

// FindEntityIDByName resolves an entity name to its row ID. With duplicate
// names the earliest row wins.
func (s *Store) FindEntityIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM entities WHERE name = ? ORDER BY id LIMIT 1
	`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

// --- Ontology reads ---

// GetEntities returns all approved entities in insertion order.
func (s *Store) GetEntities(ctx context.Context) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(properties, '{}') FROM entities ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var e Entity
		var props string
		if err := rows.Scan(&e.ID, &e.Name, &props); err != nil {
			return nil, err
		}
		e.Properties = unmarshalProps(props)
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// GetRelations returns all approved relations in insertion order.
func (s *Store) GetRelations(ctx context.Context) ([]Relation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_entity_id, target_entity_id, rel_type, COALESCE(properties, '{}')
		FROM relations ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var relations []Relation
	for rows.Next() {
		var r Relation
		var props string
		if err := rows.Scan(&r.ID, &r.SourceEntityID, &r.TargetEntityID, &r.RelType, &props); err != nil {
			return nil, err
		}
		r.Properties = unmarshalProps(props)
		relations = append(relations, r)
	}
	return relations, rows.Err()
}

// GetInstances returns all approved instances in insertion order.
func (s *Store) GetInstances(ctx context.Context) ([]Instance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, COALESCE(properties, '{}') FROM instances ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []Instance
	for rows.Next() {
		var inst Instance
		var props string
		if err := rows.Scan(&inst.ID, &inst.EntityID, &props); err != nil {
			return nil, err
		}
		inst.Properties = unmarshalProps(props)
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// --- helpers ---

func marshalProps(p map[string]string) (string, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshalling properties: %w", err)
	}
	return string(data), nil
}

// unmarshalProps decodes a properties column, tolerating malformed or
// legacy values by returning an empty map.
func unmarshalProps(s string) map[string]string {
	props := map[string]string{}
	if s == "" {
		return props
	}
	_ = json.Unmarshal([]byte(s), &props)
	return props
}
