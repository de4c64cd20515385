package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mailrag/internal/domain"
)

func newQueryCmd(c *cli) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question about the ingested mail",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, usage := domain.NewContextWithUsage(cmd.Context())
			rec, err := a.query.SubmitTopK(ctx, strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			emb, prompt, completion := usage.Totals()
			c.logger.Debug("Query tokens",
				zap.Int("embedding_tokens", emb),
				zap.Int("prompt_tokens", prompt),
				zap.Int("completion_tokens", completion),
			)
			printAnswer(cmd.OutOrStdout(), rec)
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of chunks to retrieve (0 uses the configured default)")
	return cmd
}

func printAnswer(w io.Writer, rec domain.AnswerRecord) {
	fmt.Fprintln(w, rec.Answer)
	fmt.Fprintf(w, "\nverdict: %s\n", rec.Verdict)
	if len(rec.Sources) == 0 {
		return
	}
	fmt.Fprintln(w, "sources:")
	for i, s := range rec.Sources {
		fmt.Fprintf(w, "  [%d] %s  from %s  %q  (distance %.4f)\n",
			i+1, s.Source.MessageID, s.Source.From, s.Source.Subject, s.Distance)
	}
}
