package iojson

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLine(&buf, map[string]int{"a": 1}))
	require.NoError(t, WriteLine(&buf, map[string]int{"b": 2}))

	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", buf.String())
}

func TestWrite_Indented(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, map[string]int{"a": 1}))

	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

func TestWrite_UnsupportedValue(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, make(chan int)))
	assert.Empty(t, buf.String())
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteError(&buf, "order not found", map[string]any{"id": "x"}))

	assert.JSONEq(t, `{"message":"order not found","data":{"id":"x"}}`, buf.String())
}

func TestFileReader(t *testing.T) {
	type doc struct {
		Name string `json:"name"`
	}

	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"from-file"}`), 0o644))

	fromFile := &FileReader[doc]{fileFlagValue: path}
	got, err := fromFile.Read()
	require.NoError(t, err)
	assert.Equal(t, "from-file", got.Name)

	fromStdin := &FileReader[doc]{stdin: strings.NewReader(`{"name":"piped"}`)}
	got, err = fromStdin.Read()
	require.NoError(t, err)
	assert.Equal(t, "piped", got.Name)

	broken := &FileReader[doc]{stdin: strings.NewReader(`{`)}
	_, err = broken.Read()
	assert.Error(t, err)

	assert.Equal(t, "file", fromFile.Flag().Name)
}
