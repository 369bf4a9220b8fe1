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


// Package search provides hybrid vector and lexical search over tables.
//
// The Searcher embeds the query once per embedding model used by the table,
// hands the vectors and the raw query text to the storage engine, which
// filters rows, ranks them per vector column and lexically, and fuses the
// rankings. When a reranking model is named, the fused candidates are scored
// again by that model before being returned.
//
// Results are converted with core.ToExternal: state columns are stripped and
// values that JSON cannot carry are converted, keeping the original value
// alongside.
package search
