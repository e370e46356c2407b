package postgres

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditCompression(t *testing.T) {
	svc, err := NewAuditService(nil)
	require.NoError(t, err)

	t.Run("small change sets stay inline", func(t *testing.T) {
		entry := AuditEntry{Changes: json.RawMessage(`{"name":"Dock"}`), CompressionAlgo: CompressionNone}
		svc.compress(&entry)
		assert.Equal(t, CompressionNone, entry.CompressionAlgo)
		assert.Nil(t, entry.ChangesCompressed)
	})

	t.Run("large change sets round trip through zstd", func(t *testing.T) {
		big := json.RawMessage(`{"description":"` + string(bytes.Repeat([]byte("a"), 20*1024)) + `"}`)
		entry := AuditEntry{Changes: big, CompressionAlgo: CompressionNone}

		svc.compress(&entry)
		require.Equal(t, CompressionZstd, entry.CompressionAlgo)
		assert.Nil(t, entry.Changes)
		assert.Less(t, len(entry.ChangesCompressed), len(big))

		require.NoError(t, svc.inflate(&entry))
		assert.Equal(t, []byte(big), []byte(entry.Changes))
		assert.Nil(t, entry.ChangesCompressed)
	})
}
