package ingestion

import (
	"encoding/hex"
	"errors"
	"io"

	"github.com/go-crypt/x/blake2b"
)

// DefaultBlockSize is the read size of Checksum.
const DefaultBlockSize = 1024

// Checksum returns the hex BLAKE2b-512 digest of r, read blockSize bytes at a
// time.
func Checksum(r io.Reader, blockSize int) (string, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	h, err := blake2b.New512(nil)
	if err != nil {
		return "", err
	}
	buf := make([]byte, blockSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
