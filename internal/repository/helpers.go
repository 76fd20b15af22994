package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"homestock/internal/database"
	"homestock/internal/models"
)

// ErrDuplicate is returned when an insert or update hits a unique constraint
var ErrDuplicate = errors.New("duplicate record")

// Outcome describes what a guarded write did when it did not simply succeed
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeNotFound
	// OutcomeBlocked means the row exists but a precondition refused the write
	OutcomeBlocked
)

type scanner interface {
	Scan(dest ...any) error
}

// stringList stores a []string as a JSON array in a text column
type stringList []string

func (l stringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *stringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = stringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported tags column type %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// cleanTags trims, drops empties and de-duplicates while keeping order
func cleanTags(tags []string) stringList {
	out := make(stringList, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// setClause accumulates "col = ?" pairs for a partial UPDATE
type setClause struct {
	cols []string
	args []any
}

func (s *setClause) add(col string, value any) {
	s.cols = append(s.cols, col+" = ?")
	s.args = append(s.args, value)
}

func (s *setClause) empty() bool {
	return len(s.cols) == 0
}

func (s *setClause) String() string {
	return strings.Join(s.cols, ", ")
}

// text sets a NOT NULL text column; null clears it to the empty string
func (s *setClause) text(col string, o models.Optional[string]) {
	if !o.Set {
		return
	}
	if o.Null {
		s.add(col, "")
		return
	}
	s.add(col, o.Value)
}

// nullable sets a nullable reference column; null or empty clears it
func (s *setClause) nullable(col string, o models.Optional[string]) {
	if !o.Set {
		return
	}
	if o.Null || o.Value == "" {
		s.add(col, nil)
		return
	}
	s.add(col, o.Value)
}

func (s *setClause) tags(col string, o models.Optional[[]string]) {
	if !o.Set {
		return
	}
	s.add(col, cleanTags(o.Value))
}

// update runs UPDATE table SET ... WHERE id = ? AND family_id = ? and reports whether a row matched.
// An empty clause only checks existence, so callers can return the unchanged record.
func update(ctx context.Context, q database.DBTX, table, familyID, id string, set *setClause) (bool, error) {
	if set.empty() {
		return exists(ctx, q, table, familyID, id)
	}
	set.add("updated_at", nowUTC())

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND family_id = ?", table, set)
	args := append(set.args, id, familyID)
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func exists(ctx context.Context, q database.DBTX, table, familyID, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id = ? AND family_id = ?", table), id, familyID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// reference is a column in another table that points at the row being deleted
type reference struct {
	table  string
	column string
}

// guardedDelete removes a family-scoped row unless any reference still points at it
func guardedDelete(ctx context.Context, db *database.DB, table, familyID, id string, refs ...reference) (Outcome, error) {
	outcome := OutcomeApplied
	err := db.WithTx(ctx, func(tx *database.Tx) error {
		found, err := exists(ctx, tx, table, familyID, id)
		if err != nil {
			return err
		}
		if !found {
			outcome = OutcomeNotFound
			return nil
		}

		for _, ref := range refs {
			var count int
			query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ? AND family_id = ?", ref.table, ref.column)
			if err := tx.QueryRowContext(ctx, query, id, familyID).Scan(&count); err != nil {
				return err
			}
			if count > 0 {
				outcome = OutcomeBlocked
				return nil
			}
		}

		_, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ? AND family_id = ?", table), id, familyID)
		return err
	})
	if err != nil {
		return OutcomeApplied, err
	}
	return outcome, nil
}

// transition moves a row's status from one value to another in a single conditional UPDATE.
// extra holds additional columns to set alongside the status.
func transition(ctx context.Context, q database.DBTX, table, familyID, id, from, to string, extra *setClause) (Outcome, error) {
	set := &setClause{}
	set.add("status", to)
	if extra != nil {
		set.cols = append(set.cols, extra.cols...)
		set.args = append(set.args, extra.args...)
	}
	set.add("updated_at", nowUTC())

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND family_id = ? AND status = ?", table, set)
	args := append(set.args, id, familyID, from)
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return OutcomeApplied, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return OutcomeApplied, err
	}
	if affected > 0 {
		return OutcomeApplied, nil
	}

	found, err := exists(ctx, q, table, familyID, id)
	if err != nil {
		return OutcomeApplied, err
	}
	if !found {
		return OutcomeNotFound, nil
	}
	return OutcomeBlocked, nil
}

func deleteRow(ctx context.Context, q database.DBTX, table, familyID, id string) (bool, error) {
	result, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ? AND family_id = ?", table), id, familyID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
