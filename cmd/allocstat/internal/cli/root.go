// SPDX-License-Identifier: Apache-2.0

// Package cli wires allocstat's cobra command tree, binding flags through
// pflag/viper the way the config layer of a typical cobra-based service
// does: PersistentFlags registered on the root command and bound into a
// viper instance when the command tree is built, then unmarshaled into a
// plain config struct each subcommand reads from.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// config holds the settings shared by every allocstat subcommand.
type config struct {
	GranularityBytes uint32  `mapstructure:"granularity-bytes"`
	ObjSizeMinBytes  uint32  `mapstructure:"obj-size-min-bytes"`
	AllocFactor      float64 `mapstructure:"alloc-factor"`
	ArenaSlabBytes   int     `mapstructure:"arena-slab-bytes"`
	CacheOrder0Bytes int     `mapstructure:"cache-order0-bytes"`
	QuotaBytes       int64   `mapstructure:"quota-bytes"`
}

// NewRootCommand builds the allocstat command tree.
func NewRootCommand(logger *zap.Logger) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ALLOCSTAT")
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "allocstat",
		Short: "Inspect and export small.SmallAlloc usage statistics",
	}

	flags := root.PersistentFlags()
	flags.Uint32("granularity-bytes", 8, "size class granularity, in bytes")
	flags.Uint32("obj-size-min-bytes", 16, "smallest object size routed to a pool")
	flags.Float64("alloc-factor", 1.3, "desired size class growth factor")
	flags.Int("arena-slab-bytes", 1<<20, "raw slab size requested from the arena")
	flags.Int("cache-order0-bytes", 4096, "smallest ordered slab size in the buddy cache")
	flags.Int64("quota-bytes", 256<<20, "total memory budget for the underlying arena")

	if err := v.BindPFlags(flags); err != nil {
		// Flag names are static and known-good at build time; a bind
		// failure here means a programming error, not a runtime one.
		panic(err)
	}

	root.AddCommand(newStatsCommand(v, logger))
	root.AddCommand(newServeCommand(v, logger))
	return root
}

func loadConfig(v *viper.Viper) (config, error) {
	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, err
	}
	return cfg, nil
}
