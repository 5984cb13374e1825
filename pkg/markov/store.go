package markov

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// SetupSchema initializes the tables the Store needs in the provided database.
// It should be called once on a new database before a Store is created. It is
// idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaModels = `
CREATE TABLE IF NOT EXISTS kgram_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    model_order INTEGER NOT NULL,
    text_length INTEGER NOT NULL
);
`
		schemaChars = `
CREATE TABLE IF NOT EXISTS kgram_chars (
    model_id INTEGER NOT NULL,
    char_text TEXT NOT NULL,
    frequency INTEGER NOT NULL,
    PRIMARY KEY (model_id, char_text)
);
`
		schemaTransitions = `
CREATE TABLE IF NOT EXISTS kgram_transitions (
    model_id INTEGER NOT NULL,
    kgram TEXT NOT NULL,
    next_char TEXT NOT NULL,
    frequency INTEGER NOT NULL,
    PRIMARY KEY (model_id, kgram, next_char)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// If the transaction succeeds, tx.Commit() will be called first, and the rollback will do nothing.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaModels); err != nil {
		return fmt.Errorf("could not create models schema: %w", err)
	}

	if _, err = tx.Exec(schemaChars); err != nil {
		return fmt.Errorf("could not create chars schema: %w", err)
	}

	if _, err = tx.Exec(schemaTransitions); err != nil {
		return fmt.Errorf("could not create transitions schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// ModelInfo holds the metadata of a stored model.
type ModelInfo struct {
	Id     int    `json:"id"`
	Name   string `json:"name"`
	Order  int    `json:"order"`
	Length int    `json:"length"`
}

// Store persists whole trained models in a SQLite database. Models are saved
// and loaded as complete snapshots; a loaded Model is an ordinary immutable
// Model with no tie back to the database.
type Store struct {
	db                 *sql.DB
	stmtGetModelInfo   *sql.Stmt
	stmtGetModels      *sql.Stmt
	stmtGetChars       *sql.Stmt
	stmtGetTransitions *sql.Stmt
	logger             *slog.Logger
}

// NewStore creates a Store over db, whose schema must already be set up with
// SetupSchema. It pre-compiles the read statements, returning an error if any
// preparation fails.
func NewStore(db *sql.DB) (*Store, error) {
	stmtGetModelInfo, err := db.Prepare(`SELECT model_id, model_order, text_length FROM kgram_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetModels, err := db.Prepare(`SELECT model_id, model_name, model_order, text_length FROM kgram_models;`)
	if err != nil {
		return nil, err
	}

	stmtGetChars, err := db.Prepare(`SELECT char_text, frequency FROM kgram_chars WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetTransitions, err := db.Prepare(`SELECT kgram, next_char, frequency FROM kgram_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:                 db,
		stmtGetModelInfo:   stmtGetModelInfo,
		stmtGetModels:      stmtGetModels,
		stmtGetChars:       stmtGetChars,
		stmtGetTransitions: stmtGetTransitions,
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store. The database
// itself is left open.
func (s *Store) Close() {
	_ = s.stmtGetModelInfo.Close()
	_ = s.stmtGetModels.Close()
	_ = s.stmtGetChars.Close()
	_ = s.stmtGetTransitions.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// ModelInfos retrieves metadata for all stored models, keyed by model name.
func (s *Store) ModelInfos(ctx context.Context) (map[string]ModelInfo, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	models := make(map[string]ModelInfo)
	for rows.Next() {
		var model ModelInfo
		if err = rows.Scan(&model.Id, &model.Name, &model.Order, &model.Length); err != nil {
			return nil, err
		}
		models[model.Name] = model
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// ModelInfo retrieves the metadata for a single model. ErrModelNotFound is
// returned if no model has that name.
func (s *Store) ModelInfo(ctx context.Context, name string) (ModelInfo, error) {
	info := ModelInfo{Name: name}
	err := s.stmtGetModelInfo.QueryRowContext(ctx, name).Scan(&info.Id, &info.Order, &info.Length)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelInfo{}, fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	if err != nil {
		return ModelInfo{}, fmt.Errorf("could not get model info for '%s': %w", name, err)
	}
	return info, nil
}

// SaveModel stores m under name, replacing any model already saved under that
// name. The operation is performed within a single transaction.
func (s *Store) SaveModel(ctx context.Context, name string, m *Model) (ModelInfo, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("could not begin transaction for save: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var oldID int
	err = tx.QueryRowContext(ctx, "SELECT model_id FROM kgram_models WHERE model_name = ?", name).Scan(&oldID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return ModelInfo{}, fmt.Errorf("failed to query for model '%s': %w", name, err)
	default:
		if err = deleteModelRows(ctx, tx, oldID); err != nil {
			return ModelInfo{}, err
		}
	}

	res, err := tx.ExecContext(ctx, "INSERT INTO kgram_models (model_name, model_order, text_length) VALUES (?, ?, ?)", name, m.order, m.length)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to insert model '%s': %w", name, err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to read id of model '%s': %w", name, err)
	}
	modelID := int(newID)

	stmtInsertChar, err := tx.PrepareContext(ctx, `INSERT INTO kgram_chars (model_id, char_text, frequency) VALUES (?, ?, ?);`)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to prepare char insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsertChar)

	for _, c := range m.alphabet {
		if _, err = stmtInsertChar.ExecContext(ctx, modelID, string(c), m.charCounts[c]); err != nil {
			return ModelInfo{}, fmt.Errorf("failed to insert char %q: %w", c, err)
		}
	}

	stmtInsertTransition, err := tx.PrepareContext(ctx, `INSERT INTO kgram_transitions (model_id, kgram, next_char, frequency) VALUES (?, ?, ?, ?);`)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to prepare transition insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsertTransition)

	rows := m.sortedTransitions()
	for _, row := range rows {
		if _, err = stmtInsertTransition.ExecContext(ctx, modelID, row.kgram, string(row.next), row.count); err != nil {
			return ModelInfo{}, fmt.Errorf("failed to insert transition (%q -> %q): %w", row.kgram, row.next, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return ModelInfo{}, fmt.Errorf("could not commit model '%s': %w", name, err)
	}

	s.logger.InfoContext(ctx, "Model saved",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("order", m.order),
		slog.Int("chars_saved", len(m.alphabet)),
		slog.Int("transitions_saved", len(rows)),
	)

	return ModelInfo{Id: modelID, Name: name, Order: m.order, Length: m.length}, nil
}

// LoadModel reads the model saved under name and rebuilds it. Stored counts
// are validated like an import; ErrCorruptModel reports a damaged snapshot.
func (s *Store) LoadModel(ctx context.Context, name string) (*Model, error) {
	info, err := s.ModelInfo(ctx, name)
	if err != nil {
		return nil, err
	}

	chars, err := s.loadChars(ctx, info.Id)
	if err != nil {
		return nil, err
	}
	transitions, err := s.loadTransitions(ctx, info.Id)
	if err != nil {
		return nil, err
	}

	m, err := fromCounts(info.Order, info.Length, chars, transitions)
	if err != nil {
		return nil, fmt.Errorf("model '%s': %w", name, err)
	}

	s.logger.DebugContext(ctx, "Model loaded",
		slog.String("model_name", name),
		slog.Int("model_id", info.Id),
		slog.Int("transitions_loaded", len(transitions)),
	)
	return m, nil
}

func (s *Store) loadChars(ctx context.Context, modelID int) (map[rune]int, error) {
	rows, err := s.stmtGetChars.QueryContext(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("could not query chars: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	chars := make(map[rune]int)
	for rows.Next() {
		var text string
		var count int
		if err = rows.Scan(&text, &count); err != nil {
			return nil, err
		}
		c, err := singleRune(text)
		if err != nil {
			return nil, err
		}
		chars[c] = count
	}
	return chars, rows.Err()
}

func (s *Store) loadTransitions(ctx context.Context, modelID int) (map[transitionKey]int, error) {
	rows, err := s.stmtGetTransitions.QueryContext(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("could not query transitions: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	transitions := make(map[transitionKey]int)
	for rows.Next() {
		var kgram, nextText string
		var count int
		if err = rows.Scan(&kgram, &nextText, &count); err != nil {
			return nil, err
		}
		next, err := singleRune(nextText)
		if err != nil {
			return nil, err
		}
		transitions[transitionKey{kgram: kgram, next: next}] = count
	}
	return transitions, rows.Err()
}

// RemoveModel deletes a model and all of its counts from the database. The
// operation is performed within a transaction.
func (s *Store) RemoveModel(ctx context.Context, name string) error {
	info, err := s.ModelInfo(ctx, name)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if err = deleteModelRows(ctx, tx, info.Id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Model removed successfully",
		slog.String("model_name", info.Name),
		slog.Int("model_id", info.Id),
	)

	return tx.Commit()
}

// deleteModelRows removes every row belonging to modelID, counts first.
func deleteModelRows(ctx context.Context, tx *sql.Tx, modelID int) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM kgram_transitions WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to remove transitions for model %d: %w", modelID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM kgram_chars WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to remove chars for model %d: %w", modelID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM kgram_models WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", modelID, err)
	}
	return nil
}
