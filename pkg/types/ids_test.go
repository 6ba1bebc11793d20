package types

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBlobID_MatchesGit(t *testing.T) {
	// Values from `git hash-object --stdin`.
	for content, want := range map[string]string{
		"":               "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391",
		"hello world":    "95d09f2b10159347eece71399a7e2e907ea3df4f",
		"test content\n": "d670460b4b4aece5915caf5c68d12f560a9fe3e4",
	} {
		id := ComputeBlobID([]byte(content))
		assert.Equal(t, want, id.Hex(), "%q", content)
		assert.Equal(t, want, id.String())
	}
}

func TestParseBlobID(t *testing.T) {
	const lower = "0123456789abcdef0123456789abcdef01234567"

	id, err := ParseBlobID(lower)
	require.NoError(t, err)
	assert.Equal(t, lower, id.Hex())

	id, err = ParseBlobID("0123456789ABCDEF0123456789ABCDEF01234567")
	require.NoError(t, err)
	assert.Equal(t, lower, id.Hex())

	for _, bad := range []string{"", lower[:39], lower + "8", "g" + lower[1:]} {
		_, err := ParseBlobID(bad)
		assert.Error(t, err, "%q", bad)
	}
}

func TestBlobID_JSON(t *testing.T) {
	id := ComputeBlobID([]byte("window"))
	data, err := json.Marshal(struct{ Blob BlobID }{id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Blob":"`+id.Hex()+`"}`, string(data))

	var back struct{ Blob BlobID }
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, id, back.Blob)

	assert.Error(t, json.Unmarshal([]byte(`{"Blob":"short"}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`{"Blob":12}`), &back))
}

func TestBlobID_SQL(t *testing.T) {
	id := ComputeBlobID([]byte("row"))
	v, err := id.Value()
	require.NoError(t, err)
	assert.Equal(t, id.Hex(), v)

	var fromString, fromBytes BlobID
	require.NoError(t, fromString.Scan(id.Hex()))
	require.NoError(t, fromBytes.Scan([]byte(id.Hex())))
	assert.Equal(t, id, fromString)
	assert.Equal(t, id, fromBytes)

	assert.ErrorContains(t, fromString.Scan(nil), "nil")
	assert.ErrorContains(t, fromString.Scan(42), "int")
}

func TestRule_ComputeStructuralID(t *testing.T) {
	sum := sha1.Sum([]byte(`AKIA[0-9A-Z]{16}`))
	r := &Rule{ID: "a", Pattern: `AKIA[0-9A-Z]{16}`}
	assert.Equal(t, hex.EncodeToString(sum[:]), r.ComputeStructuralID())

	// Only the pattern counts.
	assert.Equal(t, r.ComputeStructuralID(), (&Rule{ID: "b", Name: "x", Pattern: r.Pattern}).ComputeStructuralID())
	assert.NotEqual(t, r.ComputeStructuralID(), (&Rule{Pattern: `AKIA[0-9A-Z]{17}`}).ComputeStructuralID())

	// Group names are ignored.
	named := &Rule{Pattern: `(?P<user>[a-z]+):(?P<pass>\S+)`}
	plain := &Rule{Pattern: `([a-z]+):(\S+)`}
	assert.Equal(t, plain.ComputeStructuralID(), named.ComputeStructuralID())
}

func TestComputeFindingID(t *testing.T) {
	groups := [][]byte{[]byte("user"), []byte("hunter2")}
	id := ComputeFindingID("rule-sid", groups)

	want := sha1.Sum([]byte("rule-sid\x00" + `["dXNlcg==","aHVudGVyMg=="]`))
	assert.Equal(t, hex.EncodeToString(want[:]), id)

	assert.NotEqual(t, id, ComputeFindingID("other-sid", groups))
	assert.NotEqual(t, id, ComputeFindingID("rule-sid", groups[:1]))
	assert.Len(t, ComputeFindingID("rule-sid", nil), 40)
	assert.NotEqual(t, ComputeFindingID("rule-sid", nil), ComputeFindingID("rule-sid", [][]byte{}))
}

func TestMatch_ComputeStructuralIDLayout(t *testing.T) {
	m := Match{StreamID: "s1", Location: Location{Offset: OffsetSpan{Start: 5, End: 25}}}
	want := sha1.Sum([]byte("rsid\x00s1\x005\x0025"))
	assert.Equal(t, hex.EncodeToString(want[:]), m.ComputeStructuralID("rsid"))
}
