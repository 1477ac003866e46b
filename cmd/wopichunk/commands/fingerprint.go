// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/microsoft/wopi-validator-core-sub000/cmd/wopichunk/cli"
	"github.com/microsoft/wopi-validator-core-sub000/lib/fingerprint"
)

type fingerprintEntry struct {
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
	Size        int64  `json:"size"`
}

func fingerprintCommand(e *env) *cli.Command {
	var output cli.JSONOutput

	return &cli.Command{
		Name:    "fingerprint",
		Summary: "Print the chunk id of files",
		Description: `Print the 128-bit fingerprint of each file, base64-encoded as it
appears in chunk signatures. With no files, or "-", reads stdin.`,
		Usage: "wopichunk fingerprint [flags] [file...]",
		Examples: []cli.Example{
			{Command: "wopichunk fingerprint report.docx"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("fingerprint", pflag.ContinueOnError)
			output.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				args = []string{"-"}
			}

			entries := make([]fingerprintEntry, 0, len(args))
			for _, path := range args {
				entry, err := e.fingerprintFile(path)
				if err != nil {
					return err
				}
				entries = append(entries, entry)
			}

			if done, err := output.EmitJSON(e.stdout, entries); done {
				return err
			}
			for _, entry := range entries {
				fmt.Fprintf(e.stdout, "%s  %s\n", entry.Fingerprint, entry.Path)
			}
			return nil
		},
	}
}

func (e *env) fingerprintFile(path string) (fingerprintEntry, error) {
	input, err := e.openInput(path)
	if err != nil {
		return fingerprintEntry{}, err
	}
	defer input.Close()

	digest := fingerprint.New()
	size, err := io.Copy(digest, input)
	if err != nil {
		return fingerprintEntry{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return fingerprintEntry{Path: path, Fingerprint: digest.Fingerprint().String(), Size: size}, nil
}
