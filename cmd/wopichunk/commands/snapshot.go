// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/microsoft/wopi-validator-core-sub000/cmd/wopichunk/cli"
	"github.com/microsoft/wopi-validator-core-sub000/lib/snapshot"
)

func snapshotCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:    "snapshot",
		Summary: "Create and examine snapshot files",
		Description: `A snapshot records the content a host is known to hold: each stream's
chunk ids and the bytes of every chunk. Uploads read one as the
last-known content to send only changed chunks; downloads read one as
the chunks already held.`,
		Subcommands: []*cli.Command{
			snapshotCreateCommand(e),
			snapshotShowCommand(e),
		},
	}
}

func snapshotCreateCommand(e *env) *cli.Command {
	var (
		common      commonOptions
		streams     []string
		resources   []string
		outputPath  string
		compression string
	)

	return &cli.Command{
		Name:    "create",
		Summary: "Chunk local files and resources into a snapshot",
		Usage:   "wopichunk snapshot create [flags] -o <snapshot>",
		Examples: []cli.Example{
			{
				Description: "Record the state of a document before editing it",
				Command:     "wopichunk snapshot create --stream MainContent=deck.pptx:zip -o deck.snap",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("create", pflag.ContinueOnError)
			common.addFlags(flagSet)
			flagSet.StringArrayVar(&streams, "stream", nil, "stream from a local file, ID=PATH or ID=PATH:zip (repeatable)")
			flagSet.StringArrayVar(&resources, "resource", nil, "Zip-chunked stream from the resource backend, ID=RESOURCE_ID (repeatable)")
			flagSet.StringVarP(&outputPath, "output", "o", "", "snapshot file to write (required)")
			flagSet.StringVar(&compression, "compression", "", "none, lz4, or zstd (default: transfer.snapshot_compression)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if outputPath == "" {
				return fmt.Errorf("--output is required")
			}
			if len(streams) == 0 && len(resources) == 0 {
				return fmt.Errorf("at least one --stream or --resource is required")
			}
			cfg, err := common.load()
			if err != nil {
				return err
			}
			tag, err := snapshotCompression(cfg, compression)
			if err != nil {
				return err
			}

			named, err := chunkInputs(context.Background(), cfg, streams, resources)
			if err != nil {
				return err
			}
			result := snapshot.New()
			for _, input := range named {
				result.Add(input.streamID, input.stream)
			}

			if err := snapshot.Save(outputPath, result, tag); err != nil {
				return err
			}
			commandLogger(cfg, "snapshot create").Info("snapshot written",
				"path", outputPath,
				"streams", len(result.StreamIDs()),
				"chunks", len(result.Chunks()),
				"compression", tag.String(),
			)
			return nil
		},
	}
}

// snapshotStream is one stream in "snapshot show" output.
type snapshotStream struct {
	StreamID string   `json:"stream_id"`
	Scheme   string   `json:"scheme"`
	Chunks   int      `json:"chunks"`
	Size     uint64   `json:"size"`
	ChunkIDs []string `json:"chunk_ids"`
}

// snapshotSummary is the "snapshot show" result.
type snapshotSummary struct {
	Streams      []snapshotStream `json:"streams"`
	UniqueChunks int              `json:"unique_chunks"`
	StoredBytes  uint64           `json:"stored_bytes"`
}

func summarizeSnapshot(s *snapshot.Snapshot) snapshotSummary {
	summary := snapshotSummary{
		Streams:      []snapshotStream{},
		UniqueChunks: len(s.Chunks()),
		StoredBytes:  s.Chunks().TotalBytes(),
	}
	for _, streamID := range s.StreamIDs() {
		stream, _ := s.Stream(streamID)
		ids := make([]string, len(stream.IDs))
		for i, id := range stream.IDs {
			ids[i] = id.String()
		}
		summary.Streams = append(summary.Streams, snapshotStream{
			StreamID: streamID,
			Scheme:   string(stream.Scheme),
			Chunks:   len(stream.IDs),
			Size:     stream.Size(),
			ChunkIDs: ids,
		})
	}
	return summary
}

func snapshotShowCommand(e *env) *cli.Command {
	var (
		output cli.JSONOutput
		color  string
		ids    bool
	)

	return &cli.Command{
		Name:    "show",
		Summary: "Print the streams and chunks of a snapshot",
		Usage:   "wopichunk snapshot show [flags] <snapshot>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
			flagSet.BoolVar(&ids, "ids", false, "list every chunk id")
			flagSet.StringVar(&color, "color", cli.ColorAuto, "color output: auto, always, never")
			output.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: wopichunk snapshot show [flags] <snapshot>")
			}
			if err := cli.ConfigureColor(color); err != nil {
				return err
			}
			loaded, err := snapshot.Load(args[0])
			if err != nil {
				return err
			}
			summary := summarizeSnapshot(loaded)
			if done, err := output.EmitJSON(e.stdout, summary); done {
				return err
			}

			styles := cli.DefaultStyles()
			for _, stream := range summary.Streams {
				fmt.Fprintf(e.stdout, "%s %s %d chunks, %s\n",
					styles.Header.Render(stream.StreamID),
					styles.Label.Render(stream.Scheme),
					stream.Chunks,
					humanize.IBytes(stream.Size),
				)
				if ids {
					for position, id := range stream.ChunkIDs {
						fmt.Fprintf(e.stdout, "  %s %s\n", styles.Dim.Render(fmt.Sprintf("%4d", position)), styles.ID.Render(id))
					}
				}
			}
			fmt.Fprintf(e.stdout, "%d unique chunks, %s stored\n", summary.UniqueChunks, humanize.IBytes(summary.StoredBytes))
			return nil
		},
	}
}
