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


// Package generation executes row mutations whose columns are computed by
// LLM and embedding calls.
//
// # Execution model
//
// An Executor takes a Request (add new rows, or regenerate existing ones)
// and fans out the computed columns of every row to the model providers:
//
//   - At most RowsBatchSize rows are in flight at once.
//   - Within a row, computed columns run in batches of at most ColsBatchSize.
//     A batch closes early when the next column reads a column of the
//     current batch, so a prompt always sees the values it references.
//
// Hence at most RowsBatchSize × ColsBatchSize provider calls run at any
// instant. The bound exists for provider rate limits.
//
// # Ordering
//
// Results are emitted ordered by (row position, column position) however the
// calls complete. Stream yields one EventCell per computed cell, then one
// EventRow once the row is committed. Breaking out of the loop cancels every
// in-flight call; rows whose EventRow was not yet produced are not written.
// Execute writes all rows in one storage transaction at the end.
//
// # Failures
//
// Schema violations fail the whole request before any provider call. A
// failing cell, including one whose provider has no credential, records its
// error in the row state and leaves the rest of the request running. Only
// when every computed cell failed does the request return
// ErrAllColumnsFailed.
//
// # Reindexing
//
// After a request completes, ShouldReindex decides from the request's intent
// and the table size whether an index rebuild is submitted to the task
// queue. The rebuild runs in the background and its failures are only
// logged.
package generation
