// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/microsoft/wopi-validator-core-sub000/cmd/wopichunk/cli"
	"github.com/microsoft/wopi-validator-core-sub000/lib/chunked"
	"github.com/microsoft/wopi-validator-core-sub000/lib/config"
	"github.com/microsoft/wopi-validator-core-sub000/lib/resource"
	"github.com/microsoft/wopi-validator-core-sub000/lib/snapshot"
	"github.com/microsoft/wopi-validator-core-sub000/lib/wopiclient"
)

// --- Configuration ---

// commonOptions are the flags shared by commands that read the config.
type commonOptions struct {
	configPath string
	logLevel   string
}

func (o *commonOptions) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.configPath, "config", "", "config file (default: $WOPICHUNK_CONFIG, else built-in defaults)")
	flagSet.StringVar(&o.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

// load reads the config named by --config or WOPICHUNK_CONFIG. With
// neither set, the built-in development defaults apply.
func (o *commonOptions) load() (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case o.configPath != "":
		cfg, err = config.LoadFile(o.configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func commandLogger(cfg *config.Config, command string) *slog.Logger {
	level, _ := cfg.Log.SlogLevel()
	return cli.NewCommandLogger(level).With("command", command)
}

// openResources returns the configured resource backend.
func openResources(ctx context.Context, cfg *config.Config) (chunked.ResourceAccess, error) {
	switch cfg.Resources.Kind {
	case config.ResourcesS3:
		return resource.NewS3FromEnvironment(ctx, cfg.Resources.Region, cfg.Resources.Bucket, cfg.Resources.Prefix)
	default:
		return resource.NewDirectory(cfg.Resources.Root), nil
	}
}

// hostOptions are the flags of commands that talk to a WOPI host.
type hostOptions struct {
	fileID      string
	accessToken string
	hostURL     string
}

func (o *hostOptions) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.fileID, "file-id", "", "send the body to this file on the host")
	flagSet.StringVar(&o.accessToken, "access-token", "", "override host.access_token")
	flagSet.StringVar(&o.hostURL, "host", "", "override host.url")
}

func (o *hostOptions) client(cfg *config.Config, logger *slog.Logger) (*wopiclient.Client, error) {
	baseURL := cfg.Host.URL
	if o.hostURL != "" {
		baseURL = o.hostURL
	}
	accessToken := cfg.Host.AccessToken
	if o.accessToken != "" {
		accessToken = o.accessToken
	}
	timeout, err := cfg.Host.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	return wopiclient.New(wopiclient.Config{
		BaseURL:     baseURL,
		AccessToken: accessToken,
		Timeout:     timeout,
		Logger:      logger,
	})
}

func snapshotCompression(cfg *config.Config, override string) (snapshot.CompressionTag, error) {
	name := cfg.Transfer.SnapshotCompression
	if override != "" {
		name = override
	}
	return snapshot.ParseCompressionTag(name)
}

// --- Stream arguments ---

// streamSpec is a --stream argument: ID=PATH, or ID=PATH:zip to chunk
// the file with the Zip scheme.
type streamSpec struct {
	streamID string
	path     string
	zip      bool
}

func parseStreamSpec(value string) (streamSpec, error) {
	streamID, path, found := strings.Cut(value, "=")
	if !found || streamID == "" || path == "" {
		return streamSpec{}, fmt.Errorf("stream %q: want ID=PATH or ID=PATH:zip", value)
	}
	path, zip := strings.CutSuffix(path, ":zip")
	return streamSpec{streamID: streamID, path: path, zip: zip}, nil
}

func parseStreamSpecs(values []string) ([]streamSpec, error) {
	specs := make([]streamSpec, 0, len(values))
	for _, value := range values {
		spec, err := parseStreamSpec(value)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// chunkFile chunks a local file. Zip files use PATH.offsets when it
// exists and otherwise derive offsets from the archive's entries.
func chunkFile(spec streamSpec) (*chunked.ChunkedStream, error) {
	file, err := os.Open(spec.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if !spec.zip {
		return chunked.FullFile{}.ChunkStream(file)
	}

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	offsets, err := localOffsets(spec.path, file, info.Size())
	if err != nil {
		return nil, err
	}
	stream, err := chunked.ChunkByOffsets(io.NewSectionReader(file, 0, info.Size()), offsets)
	if err != nil {
		return nil, fmt.Errorf("chunking %s: %w", spec.path, err)
	}
	return stream, nil
}

func localOffsets(path string, file io.ReaderAt, size int64) ([]uint64, error) {
	index, err := os.Open(path + resource.OffsetIndexSuffix)
	if errors.Is(err, os.ErrNotExist) {
		offsets, err := resource.ZipOffsets(file, size)
		if err != nil {
			return nil, fmt.Errorf("%s has no offset index and is not a zip archive: %w", path, err)
		}
		return offsets, nil
	}
	if err != nil {
		return nil, err
	}
	defer index.Close()
	return chunked.ParseOffsetIndex(index)
}

// resourceSpec is a --resource argument: ID=RESOURCE_ID, chunked with
// the Zip scheme from the configured resource backend.
type resourceSpec struct {
	streamID   string
	resourceID string
}

func parseResourceSpecs(values []string) ([]resourceSpec, error) {
	specs := make([]resourceSpec, 0, len(values))
	for _, value := range values {
		streamID, resourceID, found := strings.Cut(value, "=")
		if !found || streamID == "" || resourceID == "" {
			return nil, fmt.Errorf("resource %q: want ID=RESOURCE_ID", value)
		}
		if err := resource.ValidateID(resourceID); err != nil {
			return nil, err
		}
		specs = append(specs, resourceSpec{streamID: streamID, resourceID: resourceID})
	}
	return specs, nil
}

// --- Content properties ---

// parseProperty parses NAME=VALUE or NAME=VALUE:RETENTION. A trailing
// ":..." that is not a retention name stays part of the value.
func parseProperty(value string) (chunked.ContentProperty, error) {
	name, rest, found := strings.Cut(value, "=")
	if !found || name == "" {
		return chunked.ContentProperty{}, fmt.Errorf("property %q: want NAME=VALUE[:RETENTION]", value)
	}
	property := chunked.ContentProperty{Name: name, Value: rest, Retention: chunked.RetentionKeepOnContentChange}
	if index := strings.LastIndexByte(rest, ':'); index >= 0 {
		switch suffix := chunked.Retention(rest[index+1:]); suffix {
		case chunked.RetentionKeepOnContentChange, chunked.RetentionDeleteOnContentChange:
			property.Value = rest[:index]
			property.Retention = suffix
		}
	}
	return property, nil
}

// loadPropertiesFile reads a JSONC array of content properties:
//
//	[
//	  // Shown in the file list.
//	  {"Name": "Title", "Value": "Q3 report"},
//	  {"Name": "Preview", "Value": "...", "Retention": "DeleteOnContentChange"},
//	]
func loadPropertiesFile(path string) ([]chunked.ContentProperty, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var properties []chunked.ContentProperty
	if err := json.Unmarshal(jsonc.ToJSON(data), &properties); err != nil {
		return nil, fmt.Errorf("parsing properties file %s: %w", path, err)
	}
	return properties, nil
}

func collectProperties(values []string, file string) ([]chunked.ContentProperty, error) {
	var properties []chunked.ContentProperty
	if file != "" {
		loaded, err := loadPropertiesFile(file)
		if err != nil {
			return nil, err
		}
		properties = append(properties, loaded...)
	}
	for _, value := range values {
		property, err := parseProperty(value)
		if err != nil {
			return nil, err
		}
		properties = append(properties, property)
	}
	return properties, nil
}

// loadSnapshotOrEmpty loads path, or returns an empty snapshot when
// path is empty.
func loadSnapshotOrEmpty(path string) (*snapshot.Snapshot, error) {
	if path == "" {
		return snapshot.New(), nil
	}
	return snapshot.Load(path)
}

// openInput opens path, or returns stdin for "-".
func (e *env) openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(e.stdin), nil
	}
	return os.Open(path)
}
