// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wopiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WOPI header names and override values.
const (
	HeaderOverride    = "X-WOPI-Override"
	HeaderLock        = "X-WOPI-Lock"
	HeaderServerError = "X-WOPI-ServerError"
	HeaderItemVersion = "X-WOPI-ItemVersion"

	OverrideGetChunkedFile = "GET_CHUNKED_FILE"
	OverridePutChunkedFile = "PUT_CHUNKED_FILE"

	// ContentType is the media type of every chunked-file body.
	ContentType = "application/octet-stream"
)

// maxErrorBody bounds how much of a failed response body is kept in
// a StatusError.
const maxErrorBody = 4096

// StatusError is returned when the host answers with a non-2xx status.
type StatusError struct {
	Operation  string
	StatusCode int

	// ServerError is the X-WOPI-ServerError header, if any.
	ServerError string

	// Lock is the X-WOPI-Lock header, set by hosts on 409 lock
	// conflicts.
	Lock string

	// Body is the start of the response body.
	Body string
}

func (err *StatusError) Error() string {
	message := fmt.Sprintf("%s: host returned %d %s", err.Operation, err.StatusCode, http.StatusText(err.StatusCode))
	if err.ServerError != "" {
		message += ": " + err.ServerError
	}
	return message
}

// Config configures a Client.
type Config struct {
	// BaseURL is the host root; requests go to
	// {BaseURL}/wopi/files/{id}/contents. Required.
	BaseURL string

	// AccessToken is sent as the access_token query parameter.
	AccessToken string

	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client

	// Timeout applies when HTTPClient is nil. Zero means no timeout.
	Timeout time.Duration

	// Logger defaults to discarding.
	Logger *slog.Logger
}

// Client calls the chunked-file operations of one WOPI host. It is
// safe for concurrent use.
type Client struct {
	baseURL     *url.URL
	accessToken string
	httpClient  *http.Client
	logger      *slog.Logger
}

// New returns a client for config.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("wopiclient: base URL is required")
	}
	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing host URL %q: %w", config.BaseURL, err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("host URL %q must be http or https", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:     baseURL,
		accessToken: config.AccessToken,
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// Response is a successful chunked-file response. The caller must
// close Body.
type Response struct {
	StatusCode int

	// ItemVersion is the X-WOPI-ItemVersion header, if the host sent
	// one.
	ItemVersion string

	Body io.ReadCloser
}

// ContentsURL returns the contents endpoint of fileID.
func (c *Client) ContentsURL(fileID string) string {
	endpoint := c.baseURL.JoinPath("wopi", "files", fileID, "contents")
	if c.accessToken != "" {
		query := endpoint.Query()
		query.Set("access_token", c.accessToken)
		endpoint.RawQuery = query.Encode()
	}
	return endpoint.String()
}

// GetChunkedFile sends a download request body and returns the host's
// response body.
func (c *Client) GetChunkedFile(ctx context.Context, fileID string, body []byte) (*Response, error) {
	return c.do(ctx, OverrideGetChunkedFile, fileID, body, "")
}

// PutChunkedFile sends an upload body. A non-empty lock is sent as
// X-WOPI-Lock.
func (c *Client) PutChunkedFile(ctx context.Context, fileID string, body []byte, lock string) (*Response, error) {
	return c.do(ctx, OverridePutChunkedFile, fileID, body, lock)
}

func (c *Client) do(ctx context.Context, override, fileID string, body []byte, lock string) (*Response, error) {
	if fileID == "" || strings.Contains(fileID, "/") {
		return nil, fmt.Errorf("%s: invalid file id %q", override, fileID)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ContentsURL(fileID), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", override, err)
	}
	request.Header.Set(HeaderOverride, override)
	request.Header.Set("Content-Type", ContentType)
	if lock != "" {
		request.Header.Set(HeaderLock, lock)
	}

	start := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", override, fileID, err)
	}
	c.logger.Debug("wopi request",
		"operation", override,
		"file_id", fileID,
		"request_bytes", len(body),
		"status", response.StatusCode,
		"duration", time.Since(start),
	)

	if response.StatusCode < 200 || response.StatusCode > 299 {
		defer response.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
		return nil, &StatusError{
			Operation:   override,
			StatusCode:  response.StatusCode,
			ServerError: response.Header.Get(HeaderServerError),
			Lock:        response.Header.Get(HeaderLock),
			Body:        strings.TrimSpace(string(snippet)),
		}
	}

	return &Response{
		StatusCode:  response.StatusCode,
		ItemVersion: response.Header.Get(HeaderItemVersion),
		Body:        response.Body,
	}, nil
}
