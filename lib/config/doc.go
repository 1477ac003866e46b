// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the wopichunk
// tools.
//
// Configuration is loaded from a single file specified by either the
// WOPICHUNK_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks and no automatic file
// search.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production without its own section
// logs at warn.
//
// Variable expansion is performed on URL, credential, and resource
// location fields after loading: ${HOME} and ${VAR:-default} patterns
// are expanded. This is how access tokens are kept out of the file.
//
// Key exports:
//
//   - [Config] -- master struct with Host, Resources, Transfer, Log
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- reports every problem at once
//
// This package depends on no other wopichunk packages.
package config
