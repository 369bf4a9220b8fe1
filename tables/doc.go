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


// Package tables maps tenant identities to storage locations and models the
// table kinds.
//
// Resolve turns a (org, project, kind, table) identity into a core.Locator.
// It is a pure function: it validates identifiers and joins path segments but
// never touches the filesystem.
//
// Each generative kind is a variant of the Table interface:
//
//   - Action tables have free-form schemas.
//   - Knowledge tables hold document chunks with fixed title and text
//     embedding columns that row updates may not overwrite.
//   - Chat tables hold conversation turns and can rebuild the message thread
//     that feeds multi-turn generation.
//
// Example:
//
//	loc, err := tables.Resolve("db", core.TableIdentity{
//		OrgID: "org", ProjectID: "proj", Kind: core.KindKnowledge, TableID: "docs",
//	})
//	table, err := tables.New(core.KindKnowledge, loc)
//	if err := table.ValidateWrite(tables.OpUpdate, meta, values); err != nil {
//		return err
//	}
package tables
