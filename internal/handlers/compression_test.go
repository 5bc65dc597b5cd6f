package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressData(t *testing.T) {
	data := []byte(strings.Repeat(`{"title":"Go Developer"}`, 100))

	compressed, err := CompressData(data)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(data))

	out, err := DecompressData(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestDecompressDataRejectsPlainInput(t *testing.T) {
	_, err := DecompressData([]byte("not gzip"))
	assert.Error(t, err)
}
