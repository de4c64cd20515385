package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mailrag/internal/domain"
	domingest "github.com/kailas-cloud/mailrag/internal/domain/ingest"
	"github.com/kailas-cloud/mailrag/internal/transport/mailfile"
)

// errIngestFailed is returned when at least one message could not be ingested.
var errIngestFailed = errors.New("some messages failed")

func newIngestCmd(c *cli) *cobra.Command {
	var (
		owner  string
		format string
	)
	cmd := &cobra.Command{
		Use:   "ingest --owner <address> <file>...",
		Short: "Ingest exported messages into the index",
		Long: "Reads RFC 5322 messages (.eml), JSON lines exports or plain text exports, " +
			"chunks and embeds them, and records processed messages in the dedup ledger.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, paths []string) error {
			f, err := mailfile.ParseFormat(format)
			if err != nil {
				return err
			}

			msgs, rejected := readMessages(paths, owner, f)
			c.logger.Info("Read messages",
				zap.Int("files", len(paths)),
				zap.Int("messages", len(msgs)),
				zap.Int("rejected", len(rejected)),
			)

			var results []domingest.Result
			embTokens := 0
			if len(msgs) > 0 {
				a, err := wire(cmd.Context(), c.cfg, c.logger)
				if err != nil {
					return err
				}
				defer a.Close()

				ctx, usage := domain.NewContextWithUsage(cmd.Context())
				results = a.ingest.Ingest(ctx, msgs).Results
				embTokens, _, _ = usage.Totals()
			}
			report := domingest.NewReport(append(results, rejected...))

			c.logger.Info("Ingest finished",
				zap.Int("processed", report.Processed),
				zap.Int("skipped", report.Skipped),
				zap.Int("failed", report.Failed),
				zap.Int("embedding_tokens", embTokens),
			)
			printReport(cmd.OutOrStdout(), report)
			if report.Failed > 0 {
				return fmt.Errorf("%w: %d of %d", errIngestFailed, report.Failed, len(report.Results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "mailbox the messages belong to (used when a record has none)")
	cmd.Flags().StringVar(&format, "format", string(mailfile.FormatAuto), "input format: auto, mail, jsonl, text")
	return cmd
}

// readMessages parses every path. Unreadable files and bad records become failed
// results, so one broken input does not hold back the others.
func readMessages(paths []string, owner string, f mailfile.Format) ([]domain.Message, []domingest.Result) {
	var (
		msgs   []domain.Message
		failed []domingest.Result
	)
	for _, p := range paths {
		batch, rejected := mailfile.ReadFile(p, owner, f)
		msgs = append(msgs, batch...)
		for _, r := range rejected {
			failed = append(failed, domingest.NewFailed(r.Owner, r.MessageID, r.Err))
		}
	}
	return msgs, failed
}

func printReport(w io.Writer, r domingest.Report) {
	for _, res := range r.Results {
		switch res.Outcome() {
		case domingest.OutcomeProcessed:
			fmt.Fprintf(w, "processed  %s  %s  (%d chunks)\n", res.Owner(), res.MessageID(), res.Chunks())
		case domingest.OutcomeSkipped:
			fmt.Fprintf(w, "skipped    %s  %s\n", res.Owner(), res.MessageID())
		case domingest.OutcomeFailed:
			fmt.Fprintf(w, "failed     %s  %s  %v\n", res.Owner(), res.MessageID(), res.Err())
		}
	}
	fmt.Fprintf(w, "\n%d processed, %d skipped, %d failed\n", r.Processed, r.Skipped, r.Failed)
}
