package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pageindex-recall/internal/config"
	"github.com/kirillkom/pageindex-recall/internal/core/usecase"
	"github.com/kirillkom/pageindex-recall/internal/infrastructure/segment"
)

func newKeywordsCmd() *cobra.Command {
	var lexiconPath string

	cmd := &cobra.Command{
		Use:   "keywords <query>",
		Short: "Show the keywords the lexical channel would search for",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if lexiconPath == "" {
				lexiconPath = config.Load().LexiconPath
			}
			lexicon, err := config.LoadLexicon(lexiconPath)
			if err != nil {
				return err
			}
			tagger := segment.New()
			if err := tagger.Warm(); err != nil {
				newLogger(cmd.ErrOrStderr()).Warn("segmenter_dictionary_unavailable", "error", err)
			}
			extractor := usecase.NewKeywordExtractor(tagger, usecase.KeywordOptions{
				PriorityTerms: lexicon.PriorityTerms,
				Stopwords:     lexicon.Stopwords,
				TopN:          lexicon.TopN,
			})
			query := strings.Join(args, " ")
			for i, kw := range extractor.Extract(query) {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, kw)
			}
			if usecase.HasPreciseIntent(query) {
				fmt.Fprintln(cmd.OutOrStdout(), "precise intent: yes")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&lexiconPath, "lexicon", "", "Lexicon YAML file (defaults to RECALL_LEXICON_PATH)")
	return cmd
}
