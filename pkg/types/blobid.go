package types

import (
	"crypto/sha1"
	"database/sql/driver"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
)

// BlobID is the Git blob hash of a window's bytes, so identical content
// scanned in different streams or runs shares an ID.
type BlobID [sha1.Size]byte

// ComputeBlobID hashes content the way `git hash-object` does:
// SHA-1("blob <len>\x00" + content).
func ComputeBlobID(content []byte) BlobID {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)

	var id BlobID
	h.Sum(id[:0])
	return id
}

// ParseBlobID decodes a 40 character hex ID, in either case.
func ParseBlobID(s string) (BlobID, error) {
	var id BlobID
	if len(s) != hex.EncodedLen(len(id)) {
		return id, errors.Errorf("invalid blob ID length: expected %d, got %d", hex.EncodedLen(len(id)), len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return BlobID{}, errors.Wrap(err, "invalid hex string")
	}
	return id, nil
}

func (id BlobID) Hex() string { return hex.EncodeToString(id[:]) }
func (id BlobID) String() string { return id.Hex() }

// MarshalText encodes the ID as lowercase hex, which is also its JSON form.
func (id BlobID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

func (id *BlobID) UnmarshalText(text []byte) error {
	parsed, err := ParseBlobID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value stores the ID as hex text.
func (id BlobID) Value() (driver.Value, error) {
	return id.Hex(), nil
}

// Scan reads an ID stored as hex text.
func (id *BlobID) Scan(value any) error {
	switch v := value.(type) {
	case string:
		return id.UnmarshalText([]byte(v))
	case []byte:
		return id.UnmarshalText(v)
	case nil:
		return errors.New("cannot scan nil into BlobID")
	default:
		return errors.Errorf("cannot scan type %T into BlobID", value)
	}
}
