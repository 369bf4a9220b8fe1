// Package ingestion turns uploaded files into knowledge table rows.
//
// A Pipeline handles one upload at a time:
//   - checksum the content and register it in the project's file table
//   - load the file and split it into overlapping chunks
//   - ask a chat model for the document title, falling back to an empty title
//   - embed the title and every chunk for the table's Title Embed and
//     Text Embed columns
//   - insert one row per chunk in a single add request, then rebuild the
//     table's indexes before returning
//
// Either every chunk is inserted or none is. Embedding failures surface as
// core.ErrIngestion, whose message is safe to show to end users.
package ingestion
