// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger creates the standard service logger: a JSON handler
// writing to stderr at level. It also sets the default slog logger so
// that third-party code using slog.Info etc. gets the same handler.
func NewLogger(level slog.Leveler) *slog.Logger {
	logger := newJSONLogger(os.Stderr, level)
	slog.SetDefault(logger)
	return logger
}

func newJSONLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
