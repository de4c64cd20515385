package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domingest "github.com/kailas-cloud/mailrag/internal/domain/ingest"
	"github.com/kailas-cloud/mailrag/internal/transport/mailfile"
)

func TestReadMessages_BrokenInputsBecomeFailedResults(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.eml")
	require.NoError(t, os.WriteFile(good,
		[]byte("Message-ID: <a@x>\r\nFrom: bob@x\r\nSubject: Invoice\r\n\r\nTotal is 420 EUR.\r\n"), 0o600))
	dump := filepath.Join(dir, "dump.jsonl")
	require.NoError(t, os.WriteFile(dump, []byte(
		`{"message_id":"j1","body":"one"}`+"\n"+
			`{"message_id":"j2","date":"not a date","body":"two"}`+"\n"+
			`{"message_id":"j3","body":"three"}`+"\n"), 0o600))
	missing := filepath.Join(dir, "missing.eml")

	msgs, failed := readMessages([]string{good, dump, missing}, "alice", mailfile.FormatAuto)

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID()
	}
	assert.Equal(t, []string{"<a@x>", "j1", "j3"}, ids)

	require.Len(t, failed, 2)
	assert.Equal(t, "j2", failed[0].MessageID())
	assert.Equal(t, missing, failed[1].MessageID())
	for _, r := range failed {
		assert.Equal(t, domingest.OutcomeFailed, r.Outcome())
		assert.Equal(t, "alice", r.Owner())
		assert.Error(t, r.Err())
	}
}
