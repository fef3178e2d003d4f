package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/h2wire/hpack"
)

var storyParallel int

var storyCmd = &cobra.Command{
	Use:   "story <file>...",
	Short: "Run hpack-test-case story files against the decoder.",
	Long: `Run one or more hpack-test-case JSON story files. Each story's wire
payloads are decoded in sequence on a single context and the resulting
headers are checked against the story's expectations.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g := new(errgroup.Group)
		g.SetLimit(storyParallel)

		for _, path := range args {
			g.Go(func() error {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				story, err := hpack.ParseStory(data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := hpack.RunStory(story); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				log.Info("Story passed", zap.String("file", path), zap.Int("cases", len(story.Cases)))
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d stories passed\n", len(args))
		return nil
	},
}

func init() {
	storyCmd.Flags().IntVar(&storyParallel, "parallel", 4, "stories decoded concurrently")
	rootCmd.AddCommand(storyCmd)
}
