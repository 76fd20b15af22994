package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"homestock/internal/database"
	"homestock/internal/logging"
)

const backupVersion = "1"

// BackupData is the complete database as written by Export
type BackupData struct {
	Version      string                      `json:"version"`
	ExportedAt   time.Time                   `json:"exported_at"`
	DatabaseType string                      `json:"database_type"`
	Tables       map[string][]map[string]any `json:"tables"`
}

// tableSpec describes how one table is exported and restored
type tableSpec struct {
	name    string
	columns []string
	times   []string
}

// backupTables is in foreign-key order; clearing walks it backwards
var backupTables = []tableSpec{
	{"families", []string{"id", "name", "created_by", "created_at", "updated_at"},
		[]string{"created_at", "updated_at"}},
	{"users", []string{"id", "family_id", "email", "display_name", "role", "discord_id", "created_at", "updated_at"},
		[]string{"created_at", "updated_at"}},
	{"invite_codes", []string{"code", "family_id", "status", "expires_at", "created_by", "created_at", "used_by", "used_at", "revoked_at"},
		[]string{"expires_at", "created_at", "used_at", "revoked_at"}},
	{"item_types", []string{"id", "family_id", "name", "description", "tags", "created_at", "updated_at"},
		[]string{"created_at", "updated_at"}},
	{"locations", []string{"id", "family_id", "name", "description", "tags", "created_at", "updated_at"},
		[]string{"created_at", "updated_at"}},
	{"boxes", []string{"id", "family_id", "name", "description", "location_id", "tags", "created_at", "updated_at"},
		[]string{"created_at", "updated_at"}},
	{"items", []string{"id", "family_id", "name", "description", "type_id", "box_id", "quantity", "memo", "tags", "status",
		"status_changed_at", "status_changed_by", "status_note", "created_by", "created_at", "updated_at"},
		[]string{"status_changed_at", "created_at", "updated_at"}},
	{"tags", []string{"id", "family_id", "name", "color", "created_at", "updated_at"},
		[]string{"created_at", "updated_at"}},
	{"wishlist", []string{"id", "family_id", "name", "description", "type_id", "quantity", "price", "url", "memo", "tags", "priority", "status",
		"status_changed_at", "status_changed_by", "purchased_item_id", "created_by", "created_at", "updated_at"},
		[]string{"status_changed_at", "created_at", "updated_at"}},
}

// BackupService exports and restores every table as JSON, independent of the SQL dialect
type BackupService struct {
	db *database.DB
}

func NewBackupService(db *database.DB) *BackupService {
	return &BackupService{db: db}
}

// Export creates a complete backup of the database to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(ctx, file); err != nil {
		return err
	}
	logging.Info().Str("path", outputPath).Msg("database exported")
	return nil
}

// ExportToWriter writes the backup document to w
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	backup := &BackupData{
		Version:      backupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.db.Dialect.DriverName(),
		Tables:       make(map[string][]map[string]any, len(backupTables)),
	}

	for _, spec := range backupTables {
		rows, err := s.exportTable(ctx, spec)
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", spec.name, err)
		}
		backup.Tables[spec.name] = rows
		logging.Debug().Str("table", spec.name).Int("rows", len(rows)).Msg("exported table")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	return nil
}

func (s *BackupService) exportTable(ctx context.Context, spec tableSpec) ([]map[string]any, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(spec.columns, ", "), spec.name, spec.columns[0])
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(spec.columns))
		ptrs := make([]any, len(spec.columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(spec.columns))
		for i, col := range spec.columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Import restores a database from a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string, clear bool) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file, clear)
}

// ImportFromReader restores a backup in one transaction. With clear set, existing rows are
// deleted first; otherwise rows are added alongside them.
func (s *BackupService) ImportFromReader(ctx context.Context, reader io.Reader, clear bool) error {
	var backup BackupData
	decoder := json.NewDecoder(reader)
	decoder.UseNumber()
	if err := decoder.Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != backupVersion {
		return fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	logging.Info().
		Str("version", backup.Version).
		Time("exported_at", backup.ExportedAt).
		Str("source", backup.DatabaseType).
		Msg("starting database import")

	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		if clear {
			for i := len(backupTables) - 1; i >= 0; i-- {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+backupTables[i].name); err != nil {
					return fmt.Errorf("failed to clear %s: %w", backupTables[i].name, err)
				}
			}
		}
		for _, spec := range backupTables {
			for _, row := range backup.Tables[spec.name] {
				if err := importRow(ctx, tx, spec, row); err != nil {
					return fmt.Errorf("failed to import %s %v: %w", spec.name, row[spec.columns[0]], err)
				}
			}
			logging.Debug().Str("table", spec.name).Int("rows", len(backup.Tables[spec.name])).Msg("imported table")
		}
		return nil
	})
}

func importRow(ctx context.Context, tx *database.Tx, spec tableSpec, row map[string]any) error {
	args := make([]any, len(spec.columns))
	for i, col := range spec.columns {
		value, err := importValue(row[col], slices.Contains(spec.times, col))
		if err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}
		args[i] = value
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(spec.columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", spec.name, strings.Join(spec.columns, ", "), placeholders)
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// importValue converts a decoded JSON value back to something every driver accepts
func importValue(v any, isTime bool) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, nil
		}
		return val.Float64()
	case string:
		if isTime {
			t, err := time.Parse(time.RFC3339Nano, val)
			if err != nil {
				return nil, err
			}
			return t.UTC(), nil
		}
		return val, nil
	default:
		return val, nil
	}
}

