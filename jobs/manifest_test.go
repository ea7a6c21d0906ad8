package jobs

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadManifest(t *testing.T) {
	got, err := ReadManifest(strings.NewReader("233\n\n  239  \n233\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"233", "239", "233"}, got)
}

func TestReadManifestRejectsNonDecimal(t *testing.T) {
	_, err := ReadManifest(strings.NewReader("233\nroot_239\n"))
	assert.Error(t, err)
}

func TestWriteManifest(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteManifest(&buf, []string{"233", "239"}))
	assert.Equal(t, "233\n239\n", buf.String())
}
