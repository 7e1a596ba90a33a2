// SPDX-License-Identifier: Apache-2.0

// Command allocstat exercises a small.SmallAlloc instance and exposes its
// introspection surface either as a one-shot text snapshot or as a
// Prometheus exporter.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tarantool/small/cmd/allocstat/internal/cli"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "allocstat: failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cli.NewRootCommand(logger).Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
