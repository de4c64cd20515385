package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kailas-cloud/mailrag/internal/domain"
	domingest "github.com/kailas-cloud/mailrag/internal/domain/ingest"
)

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, domingest.NewReport([]domingest.Result{
		domingest.NewProcessed("alice", "m1", 3),
		domingest.NewSkipped("alice", "m2"),
		domingest.NewFailed("alice", "m3", errors.New("boom")),
	}))

	out := buf.String()
	assert.Contains(t, out, "processed  alice  m1  (3 chunks)")
	assert.Contains(t, out, "skipped    alice  m2")
	assert.Contains(t, out, "failed     alice  m3  boom")
	assert.Contains(t, out, "1 processed, 1 skipped, 1 failed")
}

func TestPrintAnswer(t *testing.T) {
	var buf bytes.Buffer
	printAnswer(&buf, domain.AnswerRecord{
		Answer:  "420 EUR",
		Verdict: domain.VerdictConfirmed,
		Sources: []domain.ChunkRef{{
			ChunkID:  "c1",
			Source:   domain.SourceRef{MessageID: "<1@x>", From: "billing@shop", Subject: "Invoice"},
			Distance: 0.125,
		}},
	})

	out := buf.String()
	assert.Contains(t, out, "420 EUR\n")
	assert.Contains(t, out, "verdict: confirmed")
	assert.Contains(t, out, `[1] <1@x>  from billing@shop  "Invoice"  (distance 0.1250)`)
}

func TestPrintAnswer_NoSources(t *testing.T) {
	var buf bytes.Buffer
	printAnswer(&buf, domain.AnswerRecord{Answer: "I don't know.", Verdict: domain.VerdictUnknown})
	assert.NotContains(t, buf.String(), "sources:")
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "ingest", "query", "seen", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestVersionCmd_SkipsConfig(t *testing.T) {
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})

	assert.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "mailrag ")
}
