package badger

import (
	"encoding/binary"
	"time"
)

// Key prefixes for different data types
const (
	tablePrefix      = "tbl:"
	rowPrefix        = "row:"
	versionPrefix    = "ver:"
	indexPrefix      = "idx:"
	countPrefix      = "cnt:"
	filePrefix       = "file:"
	blobPrefix       = "blob:"
	fileVersionKey   = "filever"
	fileCompactedKey = "filecompacted"
)

// sep terminates a table id inside composite keys. Table ids never contain it.
const sep = 0x00

// makeTableKey generates a key for table metadata.
func makeTableKey(tableID string) []byte {
	return []byte(tablePrefix + tableID)
}

// makeCountKey generates a key for a table's row counter.
func makeCountKey(tableID string) []byte {
	return []byte(countPrefix + tableID)
}

// makeTableScope generates prefix + tableID + sep, the common prefix of all
// composite keys of one table.
func makeTableScope(prefix, tableID string) []byte {
	buf := make([]byte, 0, len(prefix)+len(tableID)+1)
	buf = append(buf, prefix...)
	buf = append(buf, tableID...)
	return append(buf, sep)
}

// makeRowKey generates a key for a row.
// Format: row:tableID\x00rowID
func makeRowKey(tableID, rowID string) []byte {
	return append(makeTableScope(rowPrefix, tableID), rowID...)
}

// rowIDFromKey extracts the row id from a row key.
func rowIDFromKey(tableID string, key []byte) string {
	return string(key[len(rowPrefix)+len(tableID)+1:])
}

// makeVersionKey generates a composite key for a superseded row version.
// Format: ver:tableID\x00timestamp:rowID
func makeVersionKey(tableID string, at time.Time, rowID string) []byte {
	scope := makeTableScope(versionPrefix, tableID)
	buf := make([]byte, len(scope)+8, len(scope)+8+len(rowID))
	offset := copy(buf, scope)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(at.UnixMicro()))
	return append(buf, rowID...)
}

// versionTimeFromKey extracts the timestamp of a version key.
func versionTimeFromKey(tableID string, key []byte) time.Time {
	offset := len(versionPrefix) + len(tableID) + 1
	return time.UnixMicro(int64(binary.BigEndian.Uint64(key[offset : offset+8])))
}

// makeIndexKey generates a key for a column's vector index.
// Format: idx:tableID\x00column
func makeIndexKey(tableID, column string) []byte {
	return append(makeTableScope(indexPrefix, tableID), column...)
}

// makeFileKey generates a key for a file header.
func makeFileKey(id string) []byte {
	return []byte(filePrefix + id)
}

// makeBlobKey generates a key for file content.
func makeBlobKey(id string) []byte {
	return []byte(blobPrefix + id)
}

// tableScopes returns every composite-key prefix owned by a table.
func tableScopes(tableID string) [][]byte {
	return [][]byte{
		makeTableScope(rowPrefix, tableID),
		makeTableScope(versionPrefix, tableID),
		makeTableScope(indexPrefix, tableID),
	}
}
