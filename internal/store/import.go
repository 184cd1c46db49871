package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mdlh/mdq/internal/evidence"
)

// Import writes assets into the asset table, creating the table and any
// missing attribute columns first. Existing rows with the same GUID are
// replaced. Only attributes fetched on at least one asset get a column, so
// attributes never fetched stay unknown after a round trip.
// Returns the number of rows written.
func (s *Store) Import(ctx context.Context, assets []evidence.AssetRecord) (int, error) {
	if err := s.ensureTable(ctx); err != nil {
		return 0, err
	}

	var attrs []evidence.Attribute
	for _, attr := range evidence.Attributes() {
		for i := range assets {
			if assets[i].Fetched(attr) {
				attrs = append(attrs, attr)
				break
			}
		}
	}
	if err := s.ensureColumns(ctx, attrs); err != nil {
		return 0, err
	}
	if len(assets) == 0 {
		return 0, nil
	}

	cols := []string{"GUID", "NAME", "QUALIFIED_NAME", "TYPE_NAME", "CONNECTOR_NAME", "DOMAIN_GUIDS", "STATUS"}
	for _, attr := range attrs {
		cols = append(cols, CanonicalColumn(attr))
	}
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = s.dialect.quote(c)
		marks[i] = s.dialect.placeholder(i + 1)
	}
	table := s.dialect.quote(s.table)
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(quoted, ", "), strings.Join(marks, ", "))
	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", table, s.dialect.quote("GUID"), s.dialect.placeholder(1))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}

	for i := range assets {
		a := assets[i].Normalize()
		id := a.ID()
		if id == "" {
			tx.Rollback()
			return 0, fmt.Errorf("asset %d has neither guid nor qualified name", i)
		}

		if _, err := tx.ExecContext(ctx, deleteSQL, id); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("replace asset %s: %w", id, err)
		}

		args := []interface{}{id, a.Name, a.QualifiedName, a.TypeName, a.ConnectorName, encodeList(a.DomainGUIDs), activeStatus}
		for _, attr := range attrs {
			args = append(args, encodeValue(a.Attributes[attr]))
		}
		if _, err := tx.ExecContext(ctx, insertSQL, args...); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("insert asset %d (%s): %w", i, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction (%d assets): %w", len(assets), err)
	}

	if s.backend == "dolt" {
		msg := fmt.Sprintf("mdq import: %d assets", len(assets))
		if _, err := s.db.ExecContext(ctx, "CALL DOLT_COMMIT('-Am', ?)", msg); err != nil {
			s.logger.Warn("dolt commit skipped", "error", err)
		}
	}

	s.logger.Info("evidence imported", "backend", s.backend, "table", s.table,
		"assets", len(assets), "attributes", len(attrs))
	return len(assets), nil
}

func (s *Store) ensureTable(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    %s %s PRIMARY KEY,
    %s TEXT,
    %s TEXT,
    %s TEXT,
    %s TEXT,
    %s TEXT,
    %s TEXT
)`,
		s.dialect.quote(s.table),
		s.dialect.quote("GUID"), s.dialect.keyType,
		s.dialect.quote("NAME"),
		s.dialect.quote("QUALIFIED_NAME"),
		s.dialect.quote("TYPE_NAME"),
		s.dialect.quote("CONNECTOR_NAME"),
		s.dialect.quote("DOMAIN_GUIDS"),
		s.dialect.quote("STATUS"))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) ensureColumns(ctx context.Context, attrs []evidence.Attribute) error {
	physical, err := s.columns(ctx)
	if err != nil {
		return err
	}
	existing := resolve(physical).attributes

	for _, attr := range attrs {
		if _, ok := existing[attr]; ok {
			continue
		}
		q := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
			s.dialect.quote(s.table), s.dialect.quote(CanonicalColumn(attr)), s.columnType(attr))
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("add column for %s: %w", attr, err)
		}
	}
	return nil
}

func (s *Store) columnType(attr evidence.Attribute) string {
	switch evidence.KindOf(attr) {
	case evidence.KindNumber:
		return s.dialect.numberType
	case evidence.KindFlag:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// encodeValue converts a normalised attribute value to a portable SQL
// argument. Lists become JSON array text and times RFC 3339 text.
func encodeValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch x := v.(type) {
	case []string:
		return encodeList(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

func encodeList(items []string) interface{} {
	if items == nil {
		return nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return string(b)
}
