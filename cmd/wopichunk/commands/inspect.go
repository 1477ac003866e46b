// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/microsoft/wopi-validator-core-sub000/cmd/wopichunk/cli"
	"github.com/microsoft/wopi-validator-core-sub000/lib/chunked"
)

// defaultWidth is the line width when stdout is not a terminal.
const defaultWidth = 120

func inspectCommand(e *env) *cli.Command {
	var (
		output       cli.JSONOutput
		color        string
		maxFrameSize uint64
	)

	return &cli.Command{
		Name:    "inspect",
		Summary: "List the frames of a chunked-file body",
		Description: `List every frame of a GET_CHUNKED_FILE or PUT_CHUNKED_FILE body:
its type, extended header and payload sizes, the message JSON, and for
chunk frames the chunk id and whether the payload matches it.

Chunk identity mismatches are reported, not fatal, so a corrupt body
can still be examined. Framing errors stop the listing and are
reported after the frames read so far.`,
		Usage: "wopichunk inspect [flags] <body>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			flagSet.StringVar(&color, "color", cli.ColorAuto, "color output: auto, always, never")
			flagSet.Uint64Var(&maxFrameSize, "max-frame-size", chunked.DefaultMaxFrameSize, "largest frame to accept, in bytes")
			output.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: wopichunk inspect [flags] <body>")
			}
			if err := cli.ConfigureColor(color); err != nil {
				return err
			}

			input, err := e.openInput(args[0])
			if err != nil {
				return err
			}
			defer input.Close()

			summaries, inspectErr := chunked.Inspect(input, maxFrameSize)

			if done, err := output.EmitJSON(e.stdout, summaries); done {
				if err != nil {
					return err
				}
				return inspectErr
			}
			renderFrames(e.stdout, summaries, terminalWidth())
			if inspectErr != nil {
				return fmt.Errorf("%s: %w", args[0], inspectErr)
			}
			return nil
		},
	}
}

func terminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return defaultWidth
}

// renderFrames writes one line per frame, followed by a totals line.
func renderFrames(w io.Writer, summaries []chunked.FrameSummary, width int) {
	styles := cli.DefaultStyles()
	var payloadBytes uint64
	var chunks, unverified int

	for _, summary := range summaries {
		payloadBytes += uint64(summary.PayloadSize)
		var line strings.Builder
		fmt.Fprintf(&line, "%s %s %s",
			styles.Dim.Render(fmt.Sprintf("#%-3d", summary.Index)),
			styles.Label.Render(fmt.Sprintf("%-11s", summary.TypeName)),
			styles.Dim.Render(fmt.Sprintf("header=%d payload=%s", summary.ExtendedHeaderSize, humanize.IBytes(uint64(summary.PayloadSize)))),
		)
		switch summary.Type {
		case chunked.FrameMessage:
			line.WriteString(" " + summary.Message)
		case chunked.FrameChunk:
			chunks++
			line.WriteString(" " + styles.ID.Render(summary.ChunkID))
			if summary.Verified {
				line.WriteString(" " + styles.Good.Render("ok"))
			} else {
				unverified++
				line.WriteString(" " + styles.Bad.Render("MISMATCH"))
			}
		}
		fmt.Fprintln(w, cli.Truncate(line.String(), width))
	}

	totals := fmt.Sprintf("%d frames, %d chunks, %s payload", len(summaries), chunks, humanize.IBytes(payloadBytes))
	if unverified > 0 {
		totals += ", " + styles.Bad.Render(fmt.Sprintf("%d chunks do not match their ids", unverified))
	}
	fmt.Fprintln(w, styles.Header.Render(totals))
}
