// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _\-.]{0,99}$`)

// ValidateIdentifier checks an org, project, table or column id.
//
// Validation rules:
//   - starts with a letter or digit
//   - contains only letters, digits, space, underscore, dash and dot
//   - at most 100 characters
//   - does not contain ".." (ids are used as path segments)
func ValidateIdentifier(id string) error {
	if !identifierPattern.MatchString(id) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return nil
}

// ValidateIdentity validates every component of a table identity.
func ValidateIdentity(id TableIdentity) error {
	for _, part := range []string{id.OrgID, id.ProjectID, id.TableID} {
		if err := ValidateIdentifier(part); err != nil {
			return err
		}
	}
	if _, err := ParseTableKind(string(id.Kind)); err != nil || id.Kind == KindFile {
		return fmt.Errorf("%w: %q", ErrInvalidTableKind, id.Kind)
	}
	return nil
}

// ValidateColumn validates a column specification.
//
// Validation rules:
//   - ID must be a valid identifier and not a state column
//   - embedding columns need an embedding model, a source column and a
//     positive vector length
//   - generated columns need a model
func ValidateColumn(col ColumnSpec) error {
	if err := ValidateIdentifier(col.ID); err != nil {
		return err
	}
	if IsStateColumn(col.ID) {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidColumn, col.ID)
	}
	switch col.Kind {
	case ValuePlain, "":
	case ValueGenerated:
		if col.Gen == nil || col.Gen.Model == "" {
			return fmt.Errorf("%w: %q: generated column needs a model", ErrInvalidColumn, col.ID)
		}
	case ValueEmbedding:
		if col.Gen == nil || col.Gen.EmbeddingModel == "" || col.Gen.SourceColumn == "" {
			return fmt.Errorf("%w: %q: embedding column needs a model and source column", ErrInvalidColumn, col.ID)
		}
		if col.VectorLength <= 0 {
			return fmt.Errorf("%w: %q: vector length must be positive", ErrInvalidColumn, col.ID)
		}
	default:
		return fmt.Errorf("%w: %q: kind %q", ErrInvalidColumn, col.ID, col.Kind)
	}
	return nil
}

// ValidateColumns validates a full column list, including uniqueness.
func ValidateColumns(cols []ColumnSpec) error {
	seen := make(map[string]bool, len(cols))
	for _, col := range cols {
		if err := ValidateColumn(col); err != nil {
			return err
		}
		key := strings.ToLower(col.ID)
		if seen[key] {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, col.ID)
		}
		seen[key] = true
	}
	return nil
}

// IsStateColumn reports whether name is one of the row state columns.
func IsStateColumn(name string) bool {
	return strings.EqualFold(name, ColumnID) || strings.EqualFold(name, ColumnUpdatedAt)
}
