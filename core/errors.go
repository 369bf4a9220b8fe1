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

import "errors"

// Domain errors. These are correctable by the caller and are returned
// without wrapping in opaque errors.
var (
	// ErrInvalidIdentifier indicates a malformed org, project, table or column id.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrInvalidTableKind indicates an unknown table kind.
	ErrInvalidTableKind = errors.New("invalid table kind")

	// ErrSchemaFixed indicates a write into a structurally fixed column.
	ErrSchemaFixed = errors.New("table schema is fixed")

	// ErrUnknownColumn indicates a payload referencing a column the table lacks.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrDuplicateColumn indicates a schema change would create two columns
	// with the same name.
	ErrDuplicateColumn = errors.New("duplicate column")

	// ErrInvalidColumn indicates a malformed column specification.
	ErrInvalidColumn = errors.New("invalid column")

	// ErrTableNotFound indicates the table does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrTableExists indicates a table with the same id already exists.
	ErrTableExists = errors.New("table already exists")

	// ErrRowNotFound indicates the row does not exist.
	ErrRowNotFound = errors.New("row not found")

	// ErrInvalidQuery indicates malformed search parameters.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidParameter indicates an out-of-range request parameter.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrMissingCredential indicates no API key is available for a provider.
	ErrMissingCredential = errors.New("missing provider credential")

	// ErrIngestion is the generic, user-facing upload failure.
	ErrIngestion error = ingestionError{}
)

// IngestionFailureMessage is the text of ErrIngestion.
const IngestionFailureMessage = "Sorry we encountered an issue during embedding. Please try again later."

type ingestionError struct{}

func (ingestionError) Error() string { return IngestionFailureMessage }

var clientErrors = []error{
	ErrInvalidIdentifier,
	ErrInvalidTableKind,
	ErrSchemaFixed,
	ErrUnknownColumn,
	ErrDuplicateColumn,
	ErrInvalidColumn,
	ErrTableNotFound,
	ErrTableExists,
	ErrRowNotFound,
	ErrInvalidQuery,
	ErrInvalidParameter,
	ErrMissingCredential,
	ErrIngestion,
}

// IsClientError reports whether err is a domain error the caller can correct.
func IsClientError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
