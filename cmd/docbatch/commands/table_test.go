package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTable(t *testing.T) {
	var buf bytes.Buffer
	long := strings.Repeat("very long failure message ", 8)
	table := newTable(&buf, "JOB", "KIND", "MESSAGE")
	table.Append([]string{"1", "CORRUPT_INPUT", long})
	table.Append([]string{"12", "IO_FAILURE", "disk full"})
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "JOB"), lines[0])
	assert.Contains(t, lines[1], strings.TrimSpace(long))
	assert.Contains(t, lines[2], "IO_FAILURE")
	assert.NotContains(t, buf.String(), "|")
	assert.NotContains(t, buf.String(), "+")

	// columns line up
	assert.Equal(t, strings.Index(lines[0], "KIND"), strings.Index(lines[1], "CORRUPT_INPUT"))
	assert.Equal(t, strings.Index(lines[0], "KIND"), strings.Index(lines[2], "IO_FAILURE"))
}
