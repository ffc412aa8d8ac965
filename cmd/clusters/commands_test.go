package main

import (
	"bytes"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/clusters/internal/catalog"
	"github.com/robalobadob/clusters/internal/puzzle"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSkeletonThenCheck(t *testing.T) {
	out, err := run(t, "skeleton", "--groups", "2", "--size", "3", "--date", "2026-04-01")
	require.NoError(t, err)

	var def puzzle.Definition
	require.NoError(t, json.Unmarshal([]byte(out), &def))
	assert.Equal(t, "puzzle-2026-04-01", def.ID)
	assert.Len(t, def.Groups, 2)

	path := writeFile(t, "draft.json", out)
	out, err = run(t, "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ok (save as puzzle-2026-04-01.json)")

	_, err = run(t, "skeleton", "--date", "April")
	assert.Error(t, err)
}

func TestCheckReportsProblems(t *testing.T) {
	path := writeFile(t, "bad.json", "{\n  \"id\": ,\n}")
	out, err := run(t, "check", path)
	assert.ErrorIs(t, err, errInvalid)
	assert.Contains(t, out, "bad.json:2:")

	path = writeFile(t, "uneven.json", `{"groups":[{"items":[{"content":["a"]},{"content":["b"]}]},{"items":[{"content":["c"]}]}]}`)
	out, err = run(t, "check", path)
	assert.ErrorIs(t, err, errInvalid)
	assert.Contains(t, out, "group 2 has 1 items")
}

func TestShareThenDecode(t *testing.T) {
	path := writeFile(t, "p.json", `{"id":"p","title":"Shared","groups":[{"items":[{"content":["x"]}]}]}`)
	out, err := run(t, "share", path, "--base", "https://example.org/clusters/")
	require.NoError(t, err)

	u, err := url.Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "/clusters/index.html", u.Path)

	out, err = run(t, "decode", u.Query().Get("custom"))
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Shared"`)

	_, err = run(t, "decode", "not base64!")
	assert.ErrorIs(t, err, puzzle.ErrMalformedPayload)
}

func TestListBundledPack(t *testing.T) {
	out, err := run(t, "list", "--dir", "")
	require.NoError(t, err)
	var entries []catalog.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Len(t, entries, 3)
}
