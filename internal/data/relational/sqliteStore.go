package relational

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/finsightai/finsight/internal/domain/docmodel"
	"github.com/finsightai/finsight/internal/domain/runmodel"
	"github.com/finsightai/finsight/pkg/logger_i"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	uploaded_at   TIMESTAMP NOT NULL,
	text_content  TEXT NOT NULL DEFAULT '',
	chunk_count   INTEGER NOT NULL DEFAULT 0,
	searchable    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS equity_analyst_runs (
	id           TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL,
	model_name   TEXT NOT NULL,
	model_class  TEXT NOT NULL,
	status       TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	metadata     TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_runs_document ON equity_analyst_runs(document_id, created_at);

CREATE TABLE IF NOT EXISTS equity_analyst_sections (
	id                   TEXT PRIMARY KEY,
	run_id               TEXT NOT NULL,
	section_type         TEXT NOT NULL,
	question_text        TEXT NOT NULL,
	answer               TEXT NOT NULL,
	citations            TEXT NOT NULL DEFAULT '[]',
	response_time_ms     INTEGER NOT NULL DEFAULT 0,
	is_reference_example INTEGER NOT NULL DEFAULT 0,
	created_at           TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sections_run ON equity_analyst_sections(run_id);
`

// Store backs DocumentStore and RunStore with one SQLite database. WAL mode
// keeps concurrent section writers from blocking readers.
type Store struct {
	db     *sql.DB
	path   string
	logger *logger_i.Logger
}

func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "finsight.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{
		db:     db,
		path:   dbPath,
		logger: logger_i.NewLogger("relational_store"),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- docmodel.DocumentStore ---

// SaveDocument upserts the document row. A re-upload resets the searchable
// flag, the document stays hidden from retrieval until re-indexing finishes.
func (s *Store) SaveDocument(ctx context.Context, doc docmodel.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, name, uploaded_at, text_content, chunk_count, searchable)
		VALUES (?, ?, ?, ?, 0, 0)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			uploaded_at = excluded.uploaded_at,
			text_content = excluded.text_content,
			chunk_count = 0,
			searchable = 0`,
		doc.Id, doc.Name, doc.UploadedAt, doc.TextContent)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (docmodel.Document, bool, error) {
	var doc docmodel.Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, uploaded_at, text_content, chunk_count, searchable
		FROM documents WHERE id = ?`, id).
		Scan(&doc.Id, &doc.Name, &doc.UploadedAt, &doc.TextContent, &doc.ChunkCount, &doc.Searchable)
	if errors.Is(err, sql.ErrNoRows) {
		return docmodel.Document{}, false, nil
	}
	if err != nil {
		return docmodel.Document{}, false, fmt.Errorf("getting document: %w", err)
	}
	return doc, true, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]docmodel.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, uploaded_at, chunk_count, searchable
		FROM documents ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []docmodel.Document
	for rows.Next() {
		var doc docmodel.Document
		if err := rows.Scan(&doc.Id, &doc.Name, &doc.UploadedAt, &doc.ChunkCount, &doc.Searchable); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) MarkSearchable(ctx context.Context, id string, chunkCount int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET searchable = 1, chunk_count = ? WHERE id = ?`, chunkCount, id)
	if err != nil {
		return fmt.Errorf("marking document searchable: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document %s not found", id)
	}
	return nil
}

// --- runmodel.RunStore ---

func (s *Store) CreateRun(ctx context.Context, run runmodel.Run) error {
	metadata, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling run metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO equity_analyst_runs (id, document_id, model_name, model_class, status, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Id, run.DocumentId, run.ModelName, run.ModelClass, run.Status, run.CreatedAt, string(metadata))
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (runmodel.Run, bool, error) {
	var run runmodel.Run
	var completedAt sql.NullTime
	var metadata string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, model_name, model_class, status, created_at, completed_at, metadata
		FROM equity_analyst_runs WHERE id = ?`, id).
		Scan(&run.Id, &run.DocumentId, &run.ModelName, &run.ModelClass, &run.Status, &run.CreatedAt, &completedAt, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return runmodel.Run{}, false, nil
	}
	if err != nil {
		return runmodel.Run{}, false, fmt.Errorf("getting run: %w", err)
	}
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &run.Metadata); err != nil {
			s.logger.Error("Unreadable run metadata", "runId", id, "error", err)
		}
	}
	return run, true, nil
}

// FinalizeRun commits the terminal transition only while the run is still
// running, so completed and failed can never be overwritten.
func (s *Store) FinalizeRun(ctx context.Context, id string, status runmodel.RunStatus, completedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE equity_analyst_runs SET status = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		status, completedAt, id, runmodel.RunStatusRunning)
	if err != nil {
		return false, fmt.Errorf("finalizing run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) AppendSection(ctx context.Context, section runmodel.Section) error {
	citations, err := json.Marshal(section.Citations)
	if err != nil {
		return fmt.Errorf("marshalling citations: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO equity_analyst_sections
			(id, run_id, section_type, question_text, answer, citations, response_time_ms, is_reference_example, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		section.Id, section.RunId, section.SectionType, section.QuestionText, section.Answer,
		string(citations), section.ResponseTimeMillis, section.IsReferenceExample, section.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending section: %w", err)
	}
	return nil
}

func (s *Store) ListSections(ctx context.Context, runId string) ([]runmodel.Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, section_type, question_text, answer, citations, response_time_ms, is_reference_example, created_at
		FROM equity_analyst_sections WHERE run_id = ? ORDER BY created_at, id`, runId)
	if err != nil {
		return nil, fmt.Errorf("listing sections: %w", err)
	}
	defer rows.Close()

	var sections []runmodel.Section
	for rows.Next() {
		var section runmodel.Section
		var citations string
		if err := rows.Scan(&section.Id, &section.RunId, &section.SectionType, &section.QuestionText,
			&section.Answer, &citations, &section.ResponseTimeMillis, &section.IsReferenceExample, &section.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning section: %w", err)
		}
		if err := json.Unmarshal([]byte(citations), &section.Citations); err != nil {
			s.logger.Error("Unreadable section citations", "sectionId", section.Id, "error", err)
		}
		sections = append(sections, section)
	}
	return sections, rows.Err()
}

// ListRunsByDocument returns runs newest-first with their section aggregates
// from one grouped query, listing N runs never costs N+1 round-trips.
func (s *Store) ListRunsByDocument(ctx context.Context, documentId string) ([]runmodel.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.document_id, r.model_name, r.model_class, r.status, r.created_at, r.completed_at,
		       COUNT(s.id), COALESCE(AVG(s.response_time_ms), 0)
		FROM equity_analyst_runs r
		LEFT JOIN equity_analyst_sections s ON s.run_id = r.id
		WHERE r.document_id = ?
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.id DESC`, documentId)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var summaries []runmodel.RunSummary
	for rows.Next() {
		var summary runmodel.RunSummary
		var completedAt sql.NullTime
		var avgMillis float64
		if err := rows.Scan(&summary.Id, &summary.DocumentId, &summary.ModelName, &summary.ModelClass,
			&summary.Status, &summary.CreatedAt, &completedAt, &summary.SectionCount, &avgMillis); err != nil {
			return nil, fmt.Errorf("scanning run summary: %w", err)
		}
		if completedAt.Valid {
			summary.CompletedAt = completedAt.Time
		}
		summary.AvgResponseTimeMillis = int64(avgMillis)
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// ListReferenceSections pulls every curated section across all runs for the
// fine-tune dataset export.
func (s *Store) ListReferenceSections(ctx context.Context) ([]runmodel.Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, section_type, question_text, answer, citations, response_time_ms, is_reference_example, created_at
		FROM equity_analyst_sections WHERE is_reference_example = 1 ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing reference sections: %w", err)
	}
	defer rows.Close()

	var sections []runmodel.Section
	for rows.Next() {
		var section runmodel.Section
		var citations string
		if err := rows.Scan(&section.Id, &section.RunId, &section.SectionType, &section.QuestionText,
			&section.Answer, &citations, &section.ResponseTimeMillis, &section.IsReferenceExample, &section.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning section: %w", err)
		}
		if err := json.Unmarshal([]byte(citations), &section.Citations); err != nil {
			s.logger.Error("Unreadable section citations", "sectionId", section.Id, "error", err)
		}
		sections = append(sections, section)
	}
	return sections, rows.Err()
}

func (s *Store) SetReferenceExample(ctx context.Context, sectionId string, isReference bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE equity_analyst_sections SET is_reference_example = ? WHERE id = ?`, isReference, sectionId)
	if err != nil {
		return fmt.Errorf("setting reference example: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("section %s not found", sectionId)
	}
	return nil
}
