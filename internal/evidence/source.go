package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Bundle is the evidence returned for one scope.
type Bundle struct {
	ScopeID string        `json:"scope_id" yaml:"scope_id"`
	Assets  []AssetRecord `json:"assets" yaml:"assets"`
}

// Source yields the assets in a scope. Implementations must be idempotent for
// a given scope within one evaluation; retry policy, if any, lives here and
// not in the engines.
type Source interface {
	GetEvidence(ctx context.Context, scopeID string) (*Bundle, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, scopeID string) (*Bundle, error)

// GetEvidence calls f.
func (f SourceFunc) GetEvidence(ctx context.Context, scopeID string) (*Bundle, error) {
	return f(ctx, scopeID)
}

// ErrInvalidScope is returned when a scope pattern cannot be parsed.
var ErrInvalidScope = errors.New("invalid scope")

// ValidateScope checks that a glob scope is well formed.
func ValidateScope(scopeID string) error {
	if !isGlob(scopeID) {
		return nil
	}
	if !doublestar.ValidatePattern(scopeID) {
		return fmt.Errorf("%w: %q", ErrInvalidScope, scopeID)
	}
	return nil
}

// MatchScope reports whether an asset qualified name falls inside scopeID.
//
// Empty, "*", "**" and "all" match everything. Scopes containing glob
// metacharacters are matched with doublestar semantics over the
// '/'-separated qualified name. Any other scope matches the qualified name
// exactly or as a path prefix.
func MatchScope(scopeID, qualifiedName string) bool {
	switch strings.TrimSpace(scopeID) {
	case "", "*", "**", "all":
		return true
	}
	if isGlob(scopeID) {
		ok, err := doublestar.Match(scopeID, qualifiedName)
		return err == nil && ok
	}
	prefix := strings.TrimSuffix(scopeID, "/")
	return qualifiedName == prefix || strings.HasPrefix(qualifiedName, prefix+"/")
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// FilterScope returns the assets that fall inside scopeID, in input order.
func FilterScope(scopeID string, assets []AssetRecord) []AssetRecord {
	out := make([]AssetRecord, 0, len(assets))
	for _, a := range assets {
		if MatchScope(scopeID, a.QualifiedName) {
			out = append(out, a)
		}
	}
	return out
}

// evidenceFile is the on-disk shape read by FileSource.
type evidenceFile struct {
	Assets []AssetRecord `json:"assets" yaml:"assets"`
}

// FileSource reads assets from a YAML or JSON evidence file. The file is
// re-read on every call so that edits are picked up by watchers.
type FileSource struct {
	Path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// GetEvidence loads the file and returns the assets matching scopeID.
func (s *FileSource) GetEvidence(ctx context.Context, scopeID string) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateScope(scopeID); err != nil {
		return nil, err
	}

	assets, err := LoadFile(s.Path)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		ScopeID: scopeID,
		Assets:  FilterScope(scopeID, assets),
	}, nil
}

// LoadFile parses an evidence file. The format is chosen by extension:
// .json is JSON, anything else is YAML.
func LoadFile(path string) ([]AssetRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evidence file: %w", err)
	}

	var file evidenceFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse evidence file %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse evidence file %s: %w", path, err)
		}
	}

	assets := make([]AssetRecord, 0, len(file.Assets))
	for i, a := range file.Assets {
		if a.GUID == "" && a.QualifiedName == "" {
			return nil, fmt.Errorf("parse evidence file %s: asset %d has neither guid nor qualified_name", path, i)
		}
		assets = append(assets, a.Normalize())
	}
	return assets, nil
}

// WriteFile writes assets as an evidence file, YAML or JSON by extension.
func WriteFile(path string, assets []AssetRecord) error {
	file := evidenceFile{Assets: assets}

	var (
		data []byte
		err  error
	)
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		data, err = json.MarshalIndent(file, "", "  ")
	} else {
		data, err = yaml.Marshal(file)
	}
	if err != nil {
		return fmt.Errorf("encode evidence file: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write evidence file: %w", err)
	}
	return nil
}
