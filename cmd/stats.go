package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/contagion/internal/report"
)

var statsCmd = &cobra.Command{
	Use:   "stats <graph>",
	Short: "Summarize a graph's shape and weight distribution",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().Int("buckets", report.DefaultBuckets, "weight histogram buckets over [0, 1]")
	statsCmd.Flags().Int("width", 40, "width of the longest histogram bar")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	sess, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	buckets, _ := cmd.Flags().GetInt("buckets")
	width, _ := cmd.Flags().GetInt("width")
	if buckets < 1 {
		return fmt.Errorf("--buckets must be at least 1, got %d", buckets)
	}

	g, err := sess.loadGraph(args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Summarize(g, buckets).Render(width))
	return nil
}
