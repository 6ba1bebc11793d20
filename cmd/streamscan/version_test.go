package main

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunVersion(t *testing.T) {
	defer func(v, c string) { version, commit, versionShort = v, c, false }(version, commit)
	version, commit = "1.4.0", "abc123"

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, runVersion(cmd, nil))
	assert.Contains(t, buf.String(), "streamscan 1.4.0 (abc123)")
	assert.Contains(t, buf.String(), "serve protocol 2.0.0")
	assert.Contains(t, buf.String(), runtime.GOOS+"/"+runtime.GOARCH)

	buf.Reset()
	versionShort = true
	require.NoError(t, runVersion(cmd, nil))
	assert.Equal(t, "1.4.0\n", buf.String())
}

func TestBuildCommit_Fallback(t *testing.T) {
	defer func(c string) { commit = c }(commit)
	commit = ""
	assert.NotEmpty(t, buildCommit())
}
