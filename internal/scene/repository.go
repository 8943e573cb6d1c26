package scene

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/homewise/homewise-core/internal/dispatch"
)

// Repository defines the interface for scene persistence.
type Repository interface {
	// GetByID retrieves a scene by ID.
	// Returns ErrSceneNotFound if the scene does not exist.
	GetByID(ctx context.Context, id string) (*Scene, error)

	// List retrieves all scenes ordered by name.
	List(ctx context.Context) ([]Scene, error)

	// Create inserts a new scene.
	// Returns ErrSceneExists if the ID or name is already taken.
	Create(ctx context.Context, scene *Scene) error

	// Update replaces a scene's name and actions.
	// Returns ErrSceneNotFound if the scene does not exist.
	Update(ctx context.Context, scene *Scene) error

	// Delete removes a scene by ID.
	// Returns ErrSceneNotFound if the scene does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed scene repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sceneColumns = `id, name, actions, created_at, updated_at`

// GetByID retrieves a scene by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Scene, error) {
	query := `SELECT ` + sceneColumns + ` FROM scenes WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	scene, err := scanScene(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSceneNotFound
		}
		return nil, fmt.Errorf("querying scene by id: %w", err)
	}
	return scene, nil
}

// List retrieves all scenes ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Scene, error) {
	query := `SELECT ` + sceneColumns + ` FROM scenes ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying scenes: %w", err)
	}
	defer rows.Close()

	var scenes []Scene
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning scene: %w", err)
		}
		scenes = append(scenes, *scene)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scenes: %w", err)
	}

	return scenes, nil
}

// Create inserts a new scene.
func (r *SQLiteRepository) Create(ctx context.Context, scene *Scene) error {
	actionsJSON, err := json.Marshal(scene.Actions)
	if err != nil {
		return fmt.Errorf("marshalling actions: %w", err)
	}

	now := time.Now().UTC()
	if scene.CreatedAt.IsZero() {
		scene.CreatedAt = now
	}
	scene.UpdatedAt = now

	query := `
		INSERT INTO scenes (id, name, actions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		scene.ID,
		scene.Name,
		string(actionsJSON),
		scene.CreatedAt.Format(time.RFC3339),
		scene.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSceneExists
		}
		return fmt.Errorf("inserting scene: %w", err)
	}

	return nil
}

// Update replaces a scene's name and actions.
func (r *SQLiteRepository) Update(ctx context.Context, scene *Scene) error {
	actionsJSON, err := json.Marshal(scene.Actions)
	if err != nil {
		return fmt.Errorf("marshalling actions: %w", err)
	}

	scene.UpdatedAt = time.Now().UTC()

	query := `UPDATE scenes SET name = ?, actions = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		scene.Name,
		string(actionsJSON),
		scene.UpdatedAt.Format(time.RFC3339),
		scene.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSceneExists
		}
		return fmt.Errorf("updating scene: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSceneNotFound
	}

	return nil
}

// Delete removes a scene by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM scenes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting scene: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSceneNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScene(scanner rowScanner) (*Scene, error) {
	var s Scene
	var actionsJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(&s.ID, &s.Name, &actionsJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.Actions = []dispatch.Action{}
	if err := json.Unmarshal([]byte(actionsJSON), &s.Actions); err != nil {
		return nil, fmt.Errorf("unmarshalling actions: %w", err)
	}

	var parseErr error
	s.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	s.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &s, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
