// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/microsoft/wopi-validator-core-sub000/cmd/wopichunk/cli"
	"github.com/microsoft/wopi-validator-core-sub000/lib/chunked"
	"github.com/microsoft/wopi-validator-core-sub000/lib/fingerprint"
	"github.com/microsoft/wopi-validator-core-sub000/lib/resource"
	"github.com/microsoft/wopi-validator-core-sub000/lib/snapshot"
)

// downloadStream is one reconstructed stream in "download" output.
type downloadStream struct {
	StreamID    string `json:"stream_id"`
	Scheme      string `json:"scheme"`
	Chunks      int    `json:"chunks"`
	Size        int    `json:"size"`
	Fingerprint string `json:"fingerprint"`
}

// downloadReport is the result of "download".
type downloadReport struct {
	Streams        []downloadStream          `json:"streams"`
	Properties     []chunked.ContentProperty `json:"properties"`
	ReceivedChunks int                       `json:"received_chunks"`
	ReceivedBytes  uint64                    `json:"received_bytes"`
	SkippedRanges  int                       `json:"skipped_ranges,omitempty"`
	ItemVersion    string                    `json:"item_version,omitempty"`
	Mismatches     []string                  `json:"mismatches,omitempty"`
}

// parseStreamRequest parses a --stream argument: ID or ID:SCHEME.
func parseStreamRequest(value string, chunksToReturn chunked.ChunksToReturn) (chunked.StreamRequest, error) {
	streamID, tag, hasScheme := strings.Cut(value, ":")
	if streamID == "" {
		return chunked.StreamRequest{}, fmt.Errorf("stream %q: want ID or ID:SCHEME", value)
	}
	request := chunked.StreamRequest{StreamID: streamID, ChunksToReturn: chunksToReturn}
	if hasScheme {
		scheme, err := chunked.ParseScheme(tag)
		if err != nil {
			return chunked.StreamRequest{}, fmt.Errorf("stream %q: %w", value, err)
		}
		request.Scheme = scheme
	}
	return request, nil
}

// parseExpectations reads --expect ID=PATH arguments into expected
// content by stream id.
func parseExpectations(values []string) (map[string][]byte, error) {
	expected := make(map[string][]byte, len(values))
	for _, value := range values {
		streamID, path, found := strings.Cut(value, "=")
		if !found || streamID == "" || path == "" {
			return nil, fmt.Errorf("expect %q: want ID=PATH", value)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("expect %q: %w", value, err)
		}
		expected[streamID] = data
	}
	return expected, nil
}

func downloadCommand(e *env) *cli.Command {
	var (
		common         commonOptions
		host           hostOptions
		output         cli.JSONOutput
		color          string
		streams        []string
		chunksToReturn string
		properties     []string
		knownPath      string
		requestPath    string
		responsePath   string
		outputDir      string
		expectations   []string
		savePath       string
		compression    string
	)

	return &cli.Command{
		Name:    "download",
		Summary: "Build a GET_CHUNKED_FILE request and reconstruct the response",
		Description: `Ask a host for streams and content properties, telling it which chunks
are already held so only missing ones are returned, then rebuild each
stream from the received and known chunks.

The request is sent with --file-id, or written with --output for
another tool to send. A response saved earlier is parsed with
--response. --expect compares a reconstructed stream with a local
file and exits 1 on any difference.`,
		Usage: "wopichunk download [flags] (--file-id ID | --response PATH | --output PATH)",
		Examples: []cli.Example{
			{
				Description: "Fetch a document, sending only the chunk ids already held",
				Command:     "wopichunk download --stream MainContent:Zip --known deck.snap --file-id deck --output-dir out",
			},
			{
				Description: "Check that the host holds exactly the local file",
				Command:     "wopichunk download --stream MainContent --file-id report --expect MainContent=report.docx",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("download", pflag.ContinueOnError)
			common.addFlags(flagSet)
			host.addFlags(flagSet)
			flagSet.StringArrayVar(&streams, "stream", nil, "stream to download, ID or ID:SCHEME (repeatable)")
			flagSet.StringVar(&chunksToReturn, "chunks-to-return", string(chunked.ChunksAll), "All, None, or LastZipChunk")
			flagSet.StringArrayVar(&properties, "property", nil, "content property to return (repeatable)")
			flagSet.StringVar(&knownPath, "known", "", "snapshot of chunks already held")
			flagSet.StringVarP(&requestPath, "output", "o", "", "write the request body to PATH (\"-\" for stdout)")
			flagSet.StringVar(&responsePath, "response", "", "parse a saved response body instead of contacting the host")
			flagSet.StringVar(&outputDir, "output-dir", "", "write each reconstructed stream to DIR/ID")
			flagSet.StringArrayVar(&expectations, "expect", nil, "compare a stream with a local file, ID=PATH (repeatable)")
			flagSet.StringVar(&savePath, "save-snapshot", "", "write the downloaded content to this snapshot file")
			flagSet.StringVar(&compression, "compression", "", "snapshot compression (default: transfer.snapshot_compression)")
			flagSet.StringVar(&color, "color", cli.ColorAuto, "color output: auto, always, never")
			output.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if host.fileID != "" && responsePath != "" {
				return fmt.Errorf("--file-id and --response are mutually exclusive")
			}
			if host.fileID == "" && responsePath == "" && requestPath == "" {
				return fmt.Errorf("one of --file-id, --response, or --output is required")
			}
			if err := cli.ConfigureColor(color); err != nil {
				return err
			}
			cfg, err := common.load()
			if err != nil {
				return err
			}
			logger := commandLogger(cfg, "download")
			ctx := context.Background()

			returnMode, err := chunked.ParseChunksToReturn(chunksToReturn)
			if err != nil {
				return err
			}
			known, err := loadSnapshotOrEmpty(knownPath)
			if err != nil {
				return err
			}
			expected, err := parseExpectations(expectations)
			if err != nil {
				return err
			}

			requests := make([]chunked.StreamRequest, 0, len(streams))
			for _, value := range streams {
				request, err := parseStreamRequest(value, returnMode)
				if err != nil {
					return err
				}
				if stream, exists := known.Stream(request.StreamID); exists {
					request.Known = stream.IDs
				}
				requests = append(requests, request)
			}

			transfer := chunked.NewTransfer(chunked.TransferConfig{
				Logger:       logger,
				MaxFrameSize: cfg.Transfer.MaxFrameSize,
			})
			requestBody, err := transfer.BuildDownloadRequest(properties, requests)
			if err != nil {
				return err
			}
			if requestPath != "" {
				if err := e.writeOutput(requestPath, requestBody); err != nil {
					return err
				}
			}

			var responseBody io.Reader
			var itemVersion string
			switch {
			case host.fileID != "":
				client, err := host.client(cfg, logger)
				if err != nil {
					return err
				}
				response, err := client.GetChunkedFile(ctx, host.fileID, requestBody)
				if err != nil {
					return err
				}
				defer response.Body.Close()
				responseBody = response.Body
				itemVersion = response.ItemVersion
			case responsePath != "":
				input, err := e.openInput(responsePath)
				if err != nil {
					return err
				}
				defer input.Close()
				responseBody = input
			default:
				return nil
			}

			result, err := transfer.ParseDownloadResponse(responseBody, known.Chunks())
			if err != nil {
				return err
			}

			report := downloadReport{
				Streams:        []downloadStream{},
				Properties:     result.Properties,
				ReceivedChunks: len(result.Received),
				ReceivedBytes:  result.Received.TotalBytes(),
				SkippedRanges:  result.SkippedRanges,
				ItemVersion:    itemVersion,
			}
			for _, signature := range result.Signatures {
				content := result.Streams[signature.StreamID]
				report.Streams = append(report.Streams, downloadStream{
					StreamID:    signature.StreamID,
					Scheme:      string(signature.ChunkingScheme),
					Chunks:      len(signature.ChunkSignatures),
					Size:        len(content),
					Fingerprint: fingerprint.Sum(content).String(),
				})
			}

			if outputDir != "" {
				if err := writeStreams(outputDir, result); err != nil {
					return err
				}
			}
			if savePath != "" {
				tag, err := snapshotCompression(cfg, compression)
				if err != nil {
					return err
				}
				for _, signature := range result.Signatures {
					stream, _ := result.StreamChunks(signature.StreamID)
					known.Add(signature.StreamID, stream)
				}
				if err := snapshot.Save(savePath, known, tag); err != nil {
					return err
				}
			}

			verifyErr := result.Verify(expected)
			if verifyErr != nil {
				report.Mismatches = mismatchMessages(verifyErr)
			}

			reportOutput := e.stdout
			if requestPath == "-" {
				reportOutput = e.stderr
			}
			if done, err := output.EmitJSON(reportOutput, report); done {
				if err != nil {
					return err
				}
			} else {
				renderDownload(reportOutput, report)
			}
			if verifyErr != nil {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// mismatchMessages flattens a joined verification error.
func mismatchMessages(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		messages := make([]string, 0, len(joined.Unwrap()))
		for _, inner := range joined.Unwrap() {
			messages = append(messages, inner.Error())
		}
		return messages
	}
	return []string{err.Error()}
}

// writeStreams writes each reconstructed stream to dir/ID. Stream ids
// that are not safe file names are rejected.
func writeStreams(dir string, result *chunked.DownloadResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, signature := range result.Signatures {
		if strings.ContainsAny(signature.StreamID, `/\`) {
			return fmt.Errorf("stream %q: cannot be written to a file", signature.StreamID)
		}
		if err := resource.ValidateID(signature.StreamID); err != nil {
			return fmt.Errorf("stream %q: cannot be written to a file: %w", signature.StreamID, err)
		}
		path := filepath.Join(dir, signature.StreamID)
		if err := os.WriteFile(path, result.Streams[signature.StreamID], 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

func renderDownload(w io.Writer, report downloadReport) {
	styles := cli.DefaultStyles()
	for _, stream := range report.Streams {
		fmt.Fprintf(w, "%s %s %d chunks, %s %s\n",
			styles.Header.Render(stream.StreamID),
			styles.Label.Render(stream.Scheme),
			stream.Chunks,
			humanize.IBytes(uint64(stream.Size)),
			styles.ID.Render(stream.Fingerprint),
		)
	}
	for _, property := range report.Properties {
		fmt.Fprintf(w, "%s = %s %s\n",
			styles.Label.Render(property.Name),
			property.Value,
			styles.Dim.Render(string(property.Retention)),
		)
	}
	summary := fmt.Sprintf("received %d chunks (%s)", report.ReceivedChunks, humanize.IBytes(report.ReceivedBytes))
	if report.ItemVersion != "" {
		summary += ", host item version " + report.ItemVersion
	}
	fmt.Fprintln(w, styles.Dim.Render(summary))
	for _, mismatch := range report.Mismatches {
		fmt.Fprintln(w, styles.Bad.Render(mismatch))
	}
}
