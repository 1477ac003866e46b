// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/microsoft/wopi-validator-core-sub000/cmd/wopichunk/cli"
	"github.com/microsoft/wopi-validator-core-sub000/lib/chunked"
	"github.com/microsoft/wopi-validator-core-sub000/lib/resource"
)

func offsetsCommand(e *env) *cli.Command {
	var (
		output cli.JSONOutput
		write  bool
	)

	return &cli.Command{
		Name:    "offsets",
		Summary: "Derive a Zip chunking offset index from an archive",
		Description: `Print an offset index for a zip archive: offset 0, then the start of
each entry's data. Chunking at these offsets keeps an edit to one
entry from changing the chunks of the others.

With --write, the index is saved next to the archive as PATH.offsets,
where the Zip chunking scheme looks for it.`,
		Usage: "wopichunk offsets [flags] <archive>",
		Examples: []cli.Example{
			{
				Description: "Write deck.pptx.offsets for later uploads",
				Command:     "wopichunk offsets --write deck.pptx",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("offsets", pflag.ContinueOnError)
			flagSet.BoolVar(&write, "write", false, "write PATH.offsets instead of printing")
			output.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: wopichunk offsets [flags] <archive>")
			}
			path := args[0]

			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()
			info, err := file.Stat()
			if err != nil {
				return err
			}
			offsets, err := resource.ZipOffsets(file, info.Size())
			if err != nil {
				return err
			}

			if write {
				var index bytes.Buffer
				if err := chunked.FormatOffsetIndex(&index, offsets); err != nil {
					return err
				}
				indexPath := path + resource.OffsetIndexSuffix
				if err := os.WriteFile(indexPath, index.Bytes(), 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", indexPath, err)
				}
				fmt.Fprintf(e.stderr, "wrote %d offsets to %s\n", len(offsets), indexPath)
				return nil
			}

			if done, err := output.EmitJSON(e.stdout, offsets); done {
				return err
			}
			return chunked.FormatOffsetIndex(e.stdout, offsets)
		},
	}
}
