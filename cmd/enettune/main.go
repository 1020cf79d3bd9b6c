// Command enettune tunes the penalty of a standardised elastic-net
// regression by cross-validated grid search and evaluates the chosen model on
// a held-out test set.
package main

import (
	"log/slog"
	"os"

	"github.com/YuminosukeSato/enettune/pkg/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_ = log.SetupLogger(os.Stderr, "error")
		slog.Error("enettune failed", log.ErrAttr(err))
		os.Exit(1)
	}
}
