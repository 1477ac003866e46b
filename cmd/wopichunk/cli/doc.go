// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for the wopichunk binary: a
// tree of [Command] values with pflag flag sets, "did you mean"
// suggestions for mistyped commands and flags, --json output, and the
// terminal-aware logger and styles the commands share.
package cli
