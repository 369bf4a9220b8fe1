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


// Package storage provides the storage abstraction layer for gentable.
//
// This package defines the table engine interfaces the orchestration layer
// consumes. It allows different storage backends to be used interchangeably;
// storage/badger is the bundled implementation.
//
// # Sessions
//
// Storage is addressed by core.Locator, one location per (org, project,
// kind). An Opener hands out Sessions that are scoped to one logical
// operation:
//
//	sess, err := opener.Open(ctx, loc)
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	meta, err := sess.OpenTable(ctx, "my-table")
//
// # Versions and indexes
//
// Every mutation bumps the table version. CreateIndexes, CompactFiles and
// CleanupOldVersions compare against the version they last processed and
// report false when there is nothing to do; the maintenance scheduler counts
// those as skipped.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
