// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tarantool/small"
)

func newStatsCommand(v *viper.Viper, logger *zap.Logger) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Run a synthetic allocation workload and print a one-shot usage snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			alloc, quota := newAllocator(cfg, logger)
			ctx := small.InjectContextArena(cmd.Context(), newScratchArena(cfg))
			wl := newWorkload(alloc)
			for i := 0; i < steps; i++ {
				wl.step(ctx)
			}

			return printSnapshot(cmd.OutOrStdout(), quota, alloc.Stats())
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 3, "number of workload iterations to run before reporting")
	return cmd
}

func printSnapshot(out io.Writer, quota *small.Quota, snap small.AllocStats) error {
	fmt.Fprintf(out, "quota: used=%d total=%d\n\n", quota.Used(), quota.Total())

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OBJSIZE\tOBJCOUNT\tSLABSIZE\tSLABCOUNT\tUSED\tTOTAL")
	for _, cs := range snap.Classes {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\n",
			cs.ObjSize, cs.ObjCount, cs.SlabSize, cs.SlabCount, cs.Stats.Used, cs.Stats.Total)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\ncache: total=%d\n", snap.Total.Total)
	return nil
}
