package matcher

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenExtended(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    string
	}{
		{name: "plain pattern untouched", pattern: `\b(key) = (\w+)`, want: `\b(key) = (\w+)`},
		{name: "no whitespace", pattern: `(?x)\bkey\b`, want: `\bkey\b`},
		{
			name: "comments and layout dropped",
			pattern: `(?x)
				(?i) token      (?# literal )
				\s* [:=] \s*    (?# separator )
				([a-f0-9]{32})  (?# value )`,
			want: `(?i)token\s*[:=]\s*([a-f0-9]{32})`,
		},
		{name: "escaped space kept", pattern: `(?x) user\ name \s+`, want: `user\ name\s+`},
		{name: "leading whitespace before flag", pattern: "  (?x) a b", want: "ab"},
		{name: "inline flags removed", pattern: `(?x) (?s) .{0,8} (?m) ^x`, want: `.{0,8}^x`},
		{name: "escaped backslash then space", pattern: `(?x) a\\ b`, want: `a\\b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, flattenExtended(tt.pattern))
		})
	}
}

func TestResolveHit_KnownStart(t *testing.T) {
	re := regexp.MustCompile(`(?P<user>\w+):(\d+)`)
	content := []byte("xx alice:42 yy")

	start, end, sub, err := resolveHit(content, re, 3, 11)
	require.NoError(t, err)
	assert.Equal(t, 3, start)
	assert.Equal(t, 11, end)
	assert.Equal(t, [][]byte{[]byte("alice:42"), []byte("alice"), []byte("42")}, sub)

	_, _, _, err = resolveHit(content, re, 1, 3)
	assert.ErrorIs(t, err, errHitNotFound)
}

func TestResolveHit_UnknownStart(t *testing.T) {
	re := regexp.MustCompile(`id=(\d+)`)
	content := []byte("id=1 id=22 id=333")

	// Engines without start tracking report 0 and the true end.
	start, end, sub, err := resolveHit(content, re, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, start)
	assert.Equal(t, 10, end)
	assert.Equal(t, "22", string(sub[1]))

	start, _, _, err = resolveHit(content, re, 0, 17)
	require.NoError(t, err)
	assert.Equal(t, 11, start)

	_, _, _, err = resolveHit([]byte("nothing"), re, 0, 7)
	assert.ErrorIs(t, err, errHitNotFound)
}

func TestResolveHit_OptionalGroup(t *testing.T) {
	re := regexp.MustCompile(`k(x)?(y)`)
	_, _, sub, err := resolveHit([]byte("ky"), re, 0, 2)
	require.NoError(t, err)
	require.Len(t, sub, 3)
	assert.Nil(t, sub[1])
	assert.Equal(t, "y", string(sub[2]))
}

func TestResolveHit_Bounds(t *testing.T) {
	re := regexp.MustCompile(`a`)
	for _, span := range [][2]int{{-1, 1}, {2, 1}, {0, 5}} {
		_, _, _, err := resolveHit([]byte("aaa"), re, span[0], span[1])
		assert.ErrorContains(t, err, "outside 3 byte window", "%v", span)
	}
}

func TestHitGroups(t *testing.T) {
	re := regexp.MustCompile(`(?P<name>\w+)=(\w+)`)
	content := []byte("host=db1")
	sub := re.FindSubmatch(content)

	groups := hitGroups(sub)
	named := hitNamedGroups(re, sub)
	content[0] = 'X'

	assert.Equal(t, [][]byte{[]byte("host"), []byte("db1")}, groups)
	assert.Equal(t, map[string][]byte{"name": []byte("host")}, named)
	assert.Nil(t, hitGroups(sub[:1]))
}
