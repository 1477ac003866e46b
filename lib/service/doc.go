// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the process scaffolding shared by the
// long-running wopichunk commands: an HTTP server with a readiness
// signal and graceful shutdown, and the standard JSON logger.
//
// Commands compose these in their own run functions rather than
// subclassing a framework.
package service
