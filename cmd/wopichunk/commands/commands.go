// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the wopichunk command tree.
package commands

import (
	"io"
	"os"

	"github.com/microsoft/wopi-validator-core-sub000/cmd/wopichunk/cli"
)

// env carries the process streams, so tests can run commands against
// buffers.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Root builds and returns the complete wopichunk command tree.
func Root() *cli.Command {
	return newRoot(&env{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr})
}

func newRoot(e *env) *cli.Command {
	return &cli.Command{
		Name: "wopichunk",
		Description: `wopichunk: chunked file transfer for WOPI hosts.

Split files into content-addressed chunks, build and inspect the
frame-encoded bodies of GET_CHUNKED_FILE and PUT_CHUNKED_FILE, send
only the chunks a host is missing, and run an in-memory host to test
against.`,
		HelpOutput: e.stderr,
		Subcommands: []*cli.Command{
			fingerprintCommand(e),
			offsetsCommand(e),
			inspectCommand(e),
			snapshotCommand(e),
			uploadCommand(e),
			downloadCommand(e),
			serveCommand(e),
		},
	}
}
