package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/imagevise/media/operator"
	"github.com/leeforge/imagevise/media/request"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSignCommand(t *testing.T) {
	out, err := run(t, "sign", "https://images.example.com/a.jpg",
		"--secret", "k1",
		"--pipeline", `[["geom",{"geometry_string":"512x512"}]]`)
	require.NoError(t, err)

	parts := strings.Split(strings.TrimSpace(out), "/")
	require.Len(t, parts, 3)
	req, err := request.VerifyAndDecode(parts[1], parts[2], []string{"k1"}, operator.NewDefaultRegistry())
	require.NoError(t, err)
	assert.Equal(t, "https://images.example.com/a.jpg", req.SourceURL.String())
	assert.Equal(t, 1, req.Pipeline.Len())
}

func TestSignCommandQuery(t *testing.T) {
	out, err := run(t, "sign", "https://images.example.com/a.jpg",
		"--secret", "k1", "--query",
		"--pipeline", `[["expire_after",{"seconds":60}]]`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "?q="), out)
	assert.Contains(t, out, "&sig=")
}

func TestSignRejectsBadPipelines(t *testing.T) {
	reg := operator.NewDefaultRegistry()
	for _, raw := range []string{`not json`, `[]`, `[["nope",{}]]`, `[["geom",{}]]`} {
		_, err := sign("https://images.example.com/a.jpg", raw, "k1", reg)
		assert.Error(t, err, raw)
	}
}

func TestOperatorsCommand(t *testing.T) {
	out, err := run(t, "operators")
	require.NoError(t, err)
	assert.Regexp(t, `geom\s+image`, out)
	assert.Regexp(t, `expire_after\s+metadata`, out)
}
