package automation

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

// Repository defines the interface for rule persistence.
type Repository interface {
	// GetByID retrieves a rule by ID.
	// Returns ErrRuleNotFound if the rule does not exist.
	GetByID(ctx context.Context, id string) (*Rule, error)

	// List retrieves all rules ordered by ID.
	List(ctx context.Context) ([]Rule, error)

	// Create inserts a new rule.
	// Returns ErrRuleExists if the ID is already taken.
	Create(ctx context.Context, rule *Rule) error

	// Update replaces a rule's definition (name, enabled, trigger, actions).
	// Returns ErrRuleNotFound if the rule does not exist.
	Update(ctx context.Context, rule *Rule) error

	// Delete removes a rule by ID.
	// Returns ErrRuleNotFound if the rule does not exist.
	Delete(ctx context.Context, id string) error

	// RecordExecution stamps last_executed and, when counted is true,
	// increments execution_count.
	RecordExecution(ctx context.Context, id string, executedAt time.Time, counted bool) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed rule repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// The trigger column is named trigger_json because TRIGGER is a SQLite keyword.
const ruleColumns = `id, name, enabled, trigger_json, actions, last_executed, execution_count, created_at, updated_at`

// GetByID retrieves a rule by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("querying rule by id: %w", err)
	}
	return rule, nil
}

// List retrieves all rules ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}

	return rules, nil
}

// Create inserts a new rule.
func (r *SQLiteRepository) Create(ctx context.Context, rule *Rule) error {
	triggerJSON, actionsJSON, err := marshalRule(rule)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	query := `
		INSERT INTO rules (id, name, enabled, trigger_json, actions, execution_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		boolToInt(rule.Enabled),
		triggerJSON,
		actionsJSON,
		rule.ExecutionCount,
		rule.CreatedAt.Format(time.RFC3339),
		rule.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrRuleExists
		}
		return fmt.Errorf("inserting rule: %w", err)
	}

	return nil
}

// Update replaces a rule's definition. Execution bookkeeping is
// untouched; that only changes via RecordExecution.
func (r *SQLiteRepository) Update(ctx context.Context, rule *Rule) error {
	triggerJSON, actionsJSON, err := marshalRule(rule)
	if err != nil {
		return err
	}

	rule.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE rules
		SET name = ?, enabled = ?, trigger_json = ?, actions = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		rule.Name,
		boolToInt(rule.Enabled),
		triggerJSON,
		actionsJSON,
		rule.UpdatedAt.Format(time.RFC3339),
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRuleNotFound
	}

	return nil
}

// Delete removes a rule by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRuleNotFound
	}

	return nil
}

// RecordExecution stamps last_executed and optionally bumps execution_count.
func (r *SQLiteRepository) RecordExecution(ctx context.Context, id string, executedAt time.Time, counted bool) error {
	query := `UPDATE rules SET last_executed = ? WHERE id = ?`
	if counted {
		query = `UPDATE rules SET last_executed = ?, execution_count = execution_count + 1 WHERE id = ?`
	}

	result, err := r.db.ExecContext(ctx, query, executedAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("recording execution: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRuleNotFound
	}

	return nil
}

func marshalRule(rule *Rule) (string, string, error) {
	triggerJSON, err := json.Marshal(rule.Trigger)
	if err != nil {
		return "", "", fmt.Errorf("marshalling trigger: %w", err)
	}
	actionsJSON, err := json.Marshal(rule.Actions)
	if err != nil {
		return "", "", fmt.Errorf("marshalling actions: %w", err)
	}
	return string(triggerJSON), string(actionsJSON), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(scanner rowScanner) (*Rule, error) {
	var rule Rule
	var enabled int
	var triggerJSON, actionsJSON string
	var lastExecuted sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&rule.ID,
		&rule.Name,
		&enabled,
		&triggerJSON,
		&actionsJSON,
		&lastExecuted,
		&rule.ExecutionCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled != 0

	if err := json.Unmarshal([]byte(triggerJSON), &rule.Trigger); err != nil {
		return nil, fmt.Errorf("unmarshalling trigger: %w", err)
	}
	rule.Actions = []dispatch.Action{}
	if err := json.Unmarshal([]byte(actionsJSON), &rule.Actions); err != nil {
		return nil, fmt.Errorf("unmarshalling actions: %w", err)
	}

	if lastExecuted.Valid && lastExecuted.String != "" {
		t, err := time.Parse(time.RFC3339, lastExecuted.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_executed: %w", err)
		}
		rule.LastExecuted = &t
	}

	var parseErr error
	rule.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	rule.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &rule, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
