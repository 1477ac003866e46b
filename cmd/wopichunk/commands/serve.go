// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/microsoft/wopi-validator-core-sub000/cmd/wopichunk/cli"
	"github.com/microsoft/wopi-validator-core-sub000/lib/service"
	"github.com/microsoft/wopi-validator-core-sub000/lib/wopihost"
)

// seedSpec is a --seed argument: FILE/STREAM=PATH or
// FILE/STREAM=PATH:zip.
type seedSpec struct {
	fileID string
	stream streamSpec
}

func parseSeedSpec(value string) (seedSpec, error) {
	target, _, _ := strings.Cut(value, "=")
	fileID, _, found := strings.Cut(target, "/")
	if !found || fileID == "" {
		return seedSpec{}, fmt.Errorf("seed %q: want FILE/STREAM=PATH[:zip]", value)
	}
	stream, err := parseStreamSpec(value[len(fileID)+1:])
	if err != nil {
		return seedSpec{}, fmt.Errorf("seed %q: %w", value, err)
	}
	return seedSpec{fileID: fileID, stream: stream}, nil
}

// seedHost loads --seed files and --lock values into host.
func seedHost(host *wopihost.Host, seeds, locks []string) error {
	for _, value := range seeds {
		seed, err := parseSeedSpec(value)
		if err != nil {
			return err
		}
		stream, err := chunkFile(seed.stream)
		if err != nil {
			return fmt.Errorf("seed %q: %w", value, err)
		}
		host.SetStream(seed.fileID, seed.stream.streamID, stream)
	}
	for _, value := range locks {
		fileID, lock, found := strings.Cut(value, "=")
		if !found || fileID == "" || lock == "" {
			return fmt.Errorf("lock %q: want FILE=LOCK", value)
		}
		host.SetLock(fileID, lock)
	}
	return nil
}

func serveCommand(e *env) *cli.Command {
	var (
		common      commonOptions
		listen      string
		accessToken string
		seeds       []string
		locks       []string
		maxBodySize int64
	)

	return &cli.Command{
		Name:    "serve",
		Summary: "Run an in-memory WOPI host for chunked transfers",
		Description: `Serve GET_CHUNKED_FILE and PUT_CHUNKED_FILE on
/wopi/files/{id}/contents, holding every file in memory. Files are
created by their first upload or by --seed.

Logs are JSON on stderr. The server stops cleanly on SIGINT or SIGTERM.`,
		Usage: "wopichunk serve [flags]",
		Examples: []cli.Example{
			{
				Description: "Serve one seeded document with an access token",
				Command:     "wopichunk serve --listen 127.0.0.1:8080 --access-token secret --seed deck/MainContent=deck.pptx:zip",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
			common.addFlags(flagSet)
			flagSet.StringVar(&listen, "listen", "127.0.0.1:8080", "listen address")
			flagSet.StringVar(&accessToken, "access-token", "", "required access_token (default: host.access_token)")
			flagSet.StringArrayVar(&seeds, "seed", nil, "initial stream content, FILE/STREAM=PATH[:zip] (repeatable)")
			flagSet.StringArrayVar(&locks, "lock", nil, "initial file lock, FILE=LOCK (repeatable)")
			flagSet.Int64Var(&maxBodySize, "max-body-size", 0, "largest request body in bytes (default 1 GiB)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			cfg, err := common.load()
			if err != nil {
				return err
			}
			level, _ := cfg.Log.SlogLevel()
			logger := service.NewLogger(level).With("command", "serve")

			if accessToken == "" {
				accessToken = cfg.Host.AccessToken
			}
			host := wopihost.New(wopihost.Config{
				AccessToken:  accessToken,
				MaxFrameSize: cfg.Transfer.MaxFrameSize,
				MaxBodySize:  maxBodySize,
				Logger:       logger,
			})
			if err := seedHost(host, seeds, locks); err != nil {
				return err
			}

			logger.Info("wopi host configured",
				"seeded_streams", len(seeds),
				"access_token_required", accessToken != "",
			)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := service.NewHTTPServer(service.HTTPServerConfig{
				Address: listen,
				Handler: host.Handler(),
				Logger:  logger,
			})
			return server.Serve(ctx)
		},
	}
}
