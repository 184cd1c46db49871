package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/mdlh/mdq/internal/evidence"
)

// activeStatus is the STATUS value of live assets.
const activeStatus = "ACTIVE"

// GetEvidence reads the active assets in scopeID. Attributes whose columns
// are missing from the table are left unfetched; NULL cells are fetched
// with no value.
func (s *Store) GetEvidence(ctx context.Context, scopeID string) (*evidence.Bundle, error) {
	if err := evidence.ValidateScope(scopeID); err != nil {
		return nil, err
	}

	physical, err := s.columns(ctx)
	if err != nil {
		return nil, err
	}
	cm := resolve(physical)
	if _, ok := cm.identity[fieldGUID]; !ok {
		if _, ok := cm.identity[fieldQualifiedName]; !ok {
			return nil, fmt.Errorf("table %s has neither GUID nor QUALIFIED_NAME column", s.table)
		}
	}

	// Fixed select order: identity fields, then attributes.
	type target struct {
		field string
		attr  evidence.Attribute
	}
	var (
		selected []string
		targets  []target
	)
	for _, field := range identityOrder {
		if col, ok := cm.identity[field]; ok {
			selected = append(selected, s.dialect.quote(col))
			targets = append(targets, target{field: field})
		}
	}
	for _, attr := range evidence.Attributes() {
		if col, ok := cm.attributes[attr]; ok {
			selected = append(selected, s.dialect.quote(col))
			targets = append(targets, target{attr: attr})
		}
	}

	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selected, ", "), s.dialect.quote(s.table))
	var args []interface{}
	if col, ok := cm.identity[fieldStatus]; ok {
		q += fmt.Sprintf(" WHERE UPPER(%s) = %s", s.dialect.quote(col), s.dialect.placeholder(1))
		args = append(args, activeStatus)
	}
	if col, ok := cm.identity[fieldGUID]; ok {
		q += " ORDER BY " + s.dialect.quote(col)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	var assets []evidence.AssetRecord
	for rows.Next() {
		raw := make([]interface{}, len(targets))
		ptrs := make([]interface{}, len(targets))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", s.table, err)
		}

		asset := evidence.AssetRecord{Attributes: make(map[evidence.Attribute]interface{}, len(cm.attributes))}
		for i, t := range targets {
			v := cellValue(raw[i])
			if t.attr != "" {
				asset.Attributes[t.attr] = evidence.NormalizeValue(t.attr, v)
				continue
			}
			switch t.field {
			case fieldGUID:
				asset.GUID = textCell(v)
			case fieldName:
				asset.Name = textCell(v)
			case fieldQualifiedName:
				asset.QualifiedName = textCell(v)
			case fieldTypeName:
				asset.TypeName = textCell(v)
			case fieldConnector:
				asset.ConnectorName = textCell(v)
			case fieldDomainGUIDs:
				if list := evidence.ParseList(v); len(list) > 0 {
					asset.DomainGUIDs = list
				}
			}
		}

		if evidence.MatchScope(scopeID, asset.QualifiedName) {
			assets = append(assets, asset)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s rows: %w", s.table, err)
	}

	s.logger.Debug("evidence loaded",
		"backend", s.backend, "table", s.table, "scope", scopeID,
		"assets", len(assets), "attributes", len(cm.attributes))

	return &evidence.Bundle{ScopeID: scopeID, Assets: assets}, nil
}

// cellValue turns driver byte slices into strings so the evidence
// normalisers see one representation across backends.
func cellValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func textCell(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
