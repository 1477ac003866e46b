// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/microsoft/wopi-validator-core-sub000/cmd/wopichunk/cli"
	"github.com/microsoft/wopi-validator-core-sub000/lib/chunked"
	"github.com/microsoft/wopi-validator-core-sub000/lib/config"
	"github.com/microsoft/wopi-validator-core-sub000/lib/snapshot"
)

// uploadReport is the result of "upload".
type uploadReport struct {
	Streams     int    `json:"streams"`
	TotalChunks int    `json:"total_chunks"`
	TotalBytes  uint64 `json:"total_bytes"`
	DeltaChunks int    `json:"delta_chunks"`
	DeltaBytes  uint64 `json:"delta_bytes"`
	BodyBytes   int    `json:"body_bytes"`

	// ItemVersion is set when the body was sent to a host that
	// reported one.
	ItemVersion string `json:"item_version,omitempty"`
}

// namedStream is chunked content bound to its stream id.
type namedStream struct {
	streamID string
	stream   *chunked.ChunkedStream
}

func uploadCommand(e *env) *cli.Command {
	var (
		common         commonOptions
		host           hostOptions
		output         cli.JSONOutput
		streams        []string
		resources      []string
		properties     []string
		propertiesFile string
		lastKnownPath  string
		sessionToken   string
		lock           string
		bodyPath       string
		savePath       string
		compression    string
	)

	return &cli.Command{
		Name:    "upload",
		Summary: "Build a PUT_CHUNKED_FILE body and optionally send it",
		Description: `Chunk each stream, compare it with the last-known content the host
holds, and build an upload body carrying every stream's signature and
only the chunks the host is missing.

Without --last-known every chunk is sent. With --file-id the body is
posted to the configured host; with --output it is written to a file
("-" for stdout). --save-snapshot records the uploaded content as the
last-known state for the next upload.`,
		Usage: "wopichunk upload [flags] (--file-id ID | --output PATH)",
		Examples: []cli.Example{
			{
				Description: "First upload of a document, recording what the host now holds",
				Command:     "wopichunk upload --stream MainContent=deck.pptx:zip --file-id deck --save-snapshot deck.snap",
			},
			{
				Description: "Send only the chunks changed since the last upload",
				Command:     "wopichunk upload --stream MainContent=deck.pptx:zip --last-known deck.snap --file-id deck --save-snapshot deck.snap",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("upload", pflag.ContinueOnError)
			common.addFlags(flagSet)
			host.addFlags(flagSet)
			flagSet.StringArrayVar(&streams, "stream", nil, "stream from a local file, ID=PATH or ID=PATH:zip (repeatable)")
			flagSet.StringArrayVar(&resources, "resource", nil, "Zip-chunked stream from the resource backend, ID=RESOURCE_ID (repeatable)")
			flagSet.StringArrayVar(&properties, "property", nil, "content property, NAME=VALUE[:RETENTION] (repeatable)")
			flagSet.StringVar(&propertiesFile, "properties", "", "JSONC file holding an array of content properties")
			flagSet.StringVar(&lastKnownPath, "last-known", "", "snapshot of the content the host holds")
			flagSet.StringVar(&sessionToken, "session-token", "", "upload session token to commit")
			flagSet.StringVar(&lock, "lock", "", "X-WOPI-Lock value")
			flagSet.StringVarP(&bodyPath, "output", "o", "", "write the body to PATH (\"-\" for stdout)")
			flagSet.StringVar(&savePath, "save-snapshot", "", "write the uploaded content to this snapshot file")
			flagSet.StringVar(&compression, "compression", "", "snapshot compression (default: transfer.snapshot_compression)")
			output.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if host.fileID == "" && bodyPath == "" {
				return fmt.Errorf("one of --file-id or --output is required")
			}
			if len(streams) == 0 && len(resources) == 0 {
				return fmt.Errorf("at least one --stream or --resource is required")
			}
			cfg, err := common.load()
			if err != nil {
				return err
			}
			logger := commandLogger(cfg, "upload")
			ctx := context.Background()

			contentProperties, err := collectProperties(properties, propertiesFile)
			if err != nil {
				return err
			}
			lastKnown, err := loadSnapshotOrEmpty(lastKnownPath)
			if err != nil {
				return err
			}
			named, err := chunkInputs(ctx, cfg, streams, resources)
			if err != nil {
				return err
			}

			request := chunked.UploadRequest{
				Properties:   contentProperties,
				SessionToken: sessionToken,
			}
			for _, input := range named {
				upload := chunked.StreamUpload{
					StreamID: input.streamID,
					Content:  chunked.ChunkedContent(input.stream),
				}
				if known, exists := lastKnown.Stream(input.streamID); exists {
					upload.LastKnown = chunked.ChunkedContent(known)
				}
				request.Streams = append(request.Streams, upload)
			}

			transfer := chunked.NewTransfer(chunked.TransferConfig{
				Logger:       logger,
				MaxFrameSize: cfg.Transfer.MaxFrameSize,
			})
			body, err := transfer.BuildUpload(ctx, request)
			if err != nil {
				return err
			}
			report := uploadReport{
				Streams:     body.Stats.Streams,
				TotalChunks: body.Stats.TotalChunks,
				TotalBytes:  body.Stats.TotalBytes,
				DeltaChunks: body.Stats.DeltaChunks,
				DeltaBytes:  body.Stats.DeltaBytes,
				BodyBytes:   len(body.Body),
			}

			reportOutput := e.stdout
			if bodyPath != "" {
				if bodyPath == "-" {
					reportOutput = e.stderr
				}
				if err := e.writeOutput(bodyPath, body.Body); err != nil {
					return err
				}
			}

			if host.fileID != "" {
				client, err := host.client(cfg, logger)
				if err != nil {
					return err
				}
				response, err := client.PutChunkedFile(ctx, host.fileID, body.Body, lock)
				if err != nil {
					return err
				}
				response.Body.Close()
				report.ItemVersion = response.ItemVersion
				logger.Info("upload committed",
					"file_id", host.fileID,
					"item_version", response.ItemVersion,
					"delta_chunks", report.DeltaChunks,
					"delta_bytes", report.DeltaBytes,
				)
			}

			if savePath != "" {
				tag, err := snapshotCompression(cfg, compression)
				if err != nil {
					return err
				}
				for _, input := range named {
					lastKnown.Add(input.streamID, input.stream)
				}
				if err := snapshot.Save(savePath, lastKnown, tag); err != nil {
					return err
				}
			}

			if done, err := output.EmitJSON(reportOutput, report); done {
				return err
			}
			fmt.Fprintf(reportOutput, "%d streams, %d chunks (%s); sent %d chunks (%s) in a %s body\n",
				report.Streams,
				report.TotalChunks, humanize.IBytes(report.TotalBytes),
				report.DeltaChunks, humanize.IBytes(report.DeltaBytes),
				humanize.IBytes(uint64(report.BodyBytes)),
			)
			if report.ItemVersion != "" {
				fmt.Fprintf(reportOutput, "host item version %s\n", report.ItemVersion)
			}
			return nil
		},
	}
}

// chunkInputs chunks --stream files and --resource resources, in that
// order.
func chunkInputs(ctx context.Context, cfg *config.Config, streams, resources []string) ([]namedStream, error) {
	streamSpecs, err := parseStreamSpecs(streams)
	if err != nil {
		return nil, err
	}
	resourceSpecs, err := parseResourceSpecs(resources)
	if err != nil {
		return nil, err
	}

	var named []namedStream
	for _, spec := range streamSpecs {
		stream, err := chunkFile(spec)
		if err != nil {
			return nil, fmt.Errorf("stream %q: %w", spec.streamID, err)
		}
		named = append(named, namedStream{streamID: spec.streamID, stream: stream})
	}
	if len(resourceSpecs) == 0 {
		return named, nil
	}
	backend, err := openResources(ctx, cfg)
	if err != nil {
		return nil, err
	}
	chunker := chunked.NewChunker(backend)
	for _, spec := range resourceSpecs {
		stream, err := chunker.Chunk(ctx, chunked.ResourceContent(spec.resourceID))
		if err != nil {
			return nil, fmt.Errorf("stream %q: %w", spec.streamID, err)
		}
		named = append(named, namedStream{streamID: spec.streamID, stream: stream})
	}
	return named, nil
}

// writeOutput writes data to path, or to stdout for "-".
func (e *env) writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := e.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
