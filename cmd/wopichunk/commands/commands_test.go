// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/microsoft/wopi-validator-core-sub000/cmd/wopichunk/cli"
	"github.com/microsoft/wopi-validator-core-sub000/lib/chunked"
	"github.com/microsoft/wopi-validator-core-sub000/lib/config"
	"github.com/microsoft/wopi-validator-core-sub000/lib/fingerprint"
	"github.com/microsoft/wopi-validator-core-sub000/lib/snapshot"
	"github.com/microsoft/wopi-validator-core-sub000/lib/testutil"
	"github.com/microsoft/wopi-validator-core-sub000/lib/wopihost"
)

const testToken = "test-token"

// run executes the command tree against buffers and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvironmentVariable, "")
	var stdout, stderr bytes.Buffer
	root := newRoot(&env{stdin: strings.NewReader(""), stdout: &stdout, stderr: &stderr})
	err := root.Execute(args)
	return stdout.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	output, err := run(t, args...)
	if err != nil {
		t.Fatalf("wopichunk %s: %v", strings.Join(args, " "), err)
	}
	return output
}

func decodeJSON[T any](t *testing.T, output string) T {
	t.Helper()
	var value T
	if err := json.Unmarshal([]byte(output), &value); err != nil {
		t.Fatalf("decoding %q: %v", output, err)
	}
	return value
}

func deckArchive(t *testing.T) []byte {
	t.Helper()
	return testutil.StoredZip(t,
		testutil.Entry{Name: "a.xml", Content: "alpha"},
		testutil.Entry{Name: "b.xml", Content: "bravo"},
	)
}

func startHost(t *testing.T) (*wopihost.Host, string) {
	t.Helper()
	host := wopihost.New(wopihost.Config{AccessToken: testToken})
	server := httptest.NewServer(host.Handler())
	t.Cleanup(server.Close)
	return host, server.URL
}

// --- Argument parsing ---

func TestParseStreamSpec(t *testing.T) {
	spec, err := parseStreamSpec("Main=dir/deck.pptx:zip")
	if err != nil {
		t.Fatalf("parseStreamSpec: %v", err)
	}
	if spec.streamID != "Main" || spec.path != "dir/deck.pptx" || !spec.zip {
		t.Errorf("parseStreamSpec = %+v", spec)
	}

	spec, err = parseStreamSpec("Alt=notes.txt")
	if err != nil {
		t.Fatalf("parseStreamSpec: %v", err)
	}
	if spec.zip || spec.path != "notes.txt" {
		t.Errorf("parseStreamSpec = %+v", spec)
	}

	for _, value := range []string{"", "Main", "=path", "Main="} {
		if _, err := parseStreamSpec(value); err == nil {
			t.Errorf("parseStreamSpec(%q) succeeded", value)
		}
	}
}

func TestParseProperty(t *testing.T) {
	tests := []struct {
		value string
		want  chunked.ContentProperty
	}{
		{"Title=Q3", chunked.ContentProperty{Name: "Title", Value: "Q3", Retention: chunked.RetentionKeepOnContentChange}},
		{"Preview=abc:DeleteOnContentChange", chunked.ContentProperty{Name: "Preview", Value: "abc", Retention: chunked.RetentionDeleteOnContentChange}},
		{"Time=10:30", chunked.ContentProperty{Name: "Time", Value: "10:30", Retention: chunked.RetentionKeepOnContentChange}},
		{"Empty=", chunked.ContentProperty{Name: "Empty", Value: "", Retention: chunked.RetentionKeepOnContentChange}},
	}
	for _, test := range tests {
		got, err := parseProperty(test.value)
		if err != nil {
			t.Errorf("parseProperty(%q): %v", test.value, err)
			continue
		}
		if got != test.want {
			t.Errorf("parseProperty(%q) = %+v, want %+v", test.value, got, test.want)
		}
	}
	if _, err := parseProperty("=value"); err == nil {
		t.Error("parseProperty with empty name succeeded")
	}
}

func TestLoadPropertiesFile(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "properties.jsonc", []byte(`[
  // Shown in the file list.
  {"Name": "Title", "Value": "Q3 report"},
  {"Name": "Preview", "Value": "p", "Retention": "DeleteOnContentChange"},
]`))
	properties, err := collectProperties([]string{"Extra=1"}, path)
	if err != nil {
		t.Fatalf("collectProperties: %v", err)
	}
	if len(properties) != 3 {
		t.Fatalf("got %d properties, want 3", len(properties))
	}
	if properties[1].Retention != chunked.RetentionDeleteOnContentChange {
		t.Errorf("Preview retention = %q", properties[1].Retention)
	}
	if properties[2].Name != "Extra" {
		t.Errorf("flag property = %+v, want it after file properties", properties[2])
	}
}

func TestParseSeedSpec(t *testing.T) {
	seed, err := parseSeedSpec("deck/MainContent=files/deck.pptx:zip")
	if err != nil {
		t.Fatalf("parseSeedSpec: %v", err)
	}
	if seed.fileID != "deck" || seed.stream.streamID != "MainContent" || seed.stream.path != "files/deck.pptx" || !seed.stream.zip {
		t.Errorf("parseSeedSpec = %+v", seed)
	}
	for _, value := range []string{"MainContent=deck.pptx", "/Main=deck", "deck/=x"} {
		if _, err := parseSeedSpec(value); err == nil {
			t.Errorf("parseSeedSpec(%q) succeeded", value)
		}
	}
}

func TestParseStreamRequest(t *testing.T) {
	request, err := parseStreamRequest("Main:Zip", chunked.ChunksLastZipChunk)
	if err != nil {
		t.Fatalf("parseStreamRequest: %v", err)
	}
	if request.StreamID != "Main" || request.Scheme != chunked.SchemeZip || request.ChunksToReturn != chunked.ChunksLastZipChunk {
		t.Errorf("parseStreamRequest = %+v", request)
	}
	if _, err := parseStreamRequest("Main:Rolling", chunked.ChunksAll); err == nil {
		t.Error("unknown scheme accepted")
	}
}

// --- Commands ---

func TestFingerprintCommand(t *testing.T) {
	data := []byte("fingerprinted content")
	path := testutil.WriteFile(t, t.TempDir(), "file.txt", data)

	entries := decodeJSON[[]fingerprintEntry](t, mustRun(t, "fingerprint", "--json", path))
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if want := fingerprint.Sum(data).String(); entries[0].Fingerprint != want {
		t.Errorf("fingerprint = %s, want %s", entries[0].Fingerprint, want)
	}
	if entries[0].Size != int64(len(data)) {
		t.Errorf("size = %d, want %d", entries[0].Size, len(data))
	}
}

func TestOffsetsCommand(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "deck.pptx", deckArchive(t))

	offsets := decodeJSON[[]uint64](t, mustRun(t, "offsets", "--json", path))
	if len(offsets) != 3 || offsets[0] != 0 {
		t.Fatalf("offsets = %v, want 0 and one per entry", offsets)
	}

	mustRun(t, "offsets", "--write", path)
	index, err := os.Open(path + ".offsets")
	if err != nil {
		t.Fatalf("opening written index: %v", err)
	}
	defer index.Close()
	written, err := chunked.ParseOffsetIndex(index)
	if err != nil {
		t.Fatalf("ParseOffsetIndex: %v", err)
	}
	if len(written) != len(offsets) {
		t.Errorf("written index has %d offsets, want %d", len(written), len(offsets))
	}
}

func TestUploadBodyAndInspect(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "doc.txt", []byte("hello, host"))
	bodyPath := filepath.Join(dir, "upload.bin")

	mustRun(t, "upload", "--log-level", "error", "--stream", "Main="+path, "--property", "Title=doc", "-o", bodyPath)

	frames := decodeJSON[[]chunked.FrameSummary](t, mustRun(t, "inspect", "--json", bodyPath))
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want message, chunk, end", len(frames))
	}
	wantTypes := []string{"MessageJSON", "Chunk", "End"}
	for i, frame := range frames {
		if frame.TypeName != wantTypes[i] {
			t.Errorf("frame %d type = %s, want %s", i, frame.TypeName, wantTypes[i])
		}
	}
	if !frames[1].Verified {
		t.Error("chunk frame does not match its id")
	}
	if !strings.Contains(frames[0].Message, `"Title"`) {
		t.Errorf("message %q lacks the content property", frames[0].Message)
	}

	text := mustRun(t, "inspect", "--color", "never", bodyPath)
	if !strings.Contains(text, "3 frames, 1 chunks") {
		t.Errorf("inspect text output:\n%s", text)
	}
}

func TestInspectTruncatedBody(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "doc.txt", []byte("some content"))
	bodyPath := filepath.Join(dir, "upload.bin")
	mustRun(t, "upload", "--log-level", "error", "--stream", "Main="+path, "-o", bodyPath)

	body, err := os.ReadFile(bodyPath)
	if err != nil {
		t.Fatal(err)
	}
	truncatedPath := testutil.WriteFile(t, dir, "truncated.bin", body[:len(body)-chunked.HeaderSize])

	output, err := run(t, "inspect", "--color", "never", truncatedPath)
	if err == nil {
		t.Fatal("inspect of a truncated body succeeded")
	}
	if chunked.KindOf(err) != chunked.KindMalformedFrame {
		t.Errorf("error kind = %v, want MalformedFrame: %v", chunked.KindOf(err), err)
	}
	if !strings.Contains(output, "2 frames") {
		t.Errorf("frames before the error were not listed:\n%s", output)
	}
}

func TestUploadRequiresDestination(t *testing.T) {
	_, err := run(t, "upload", "--stream", "Main=/nonexistent")
	if err == nil || !strings.Contains(err.Error(), "--file-id or --output") {
		t.Errorf("error = %v, want missing destination", err)
	}
}

func TestSnapshotCreateAndShow(t *testing.T) {
	dir := t.TempDir()
	first := testutil.WriteFile(t, dir, "first.txt", []byte("first stream"))
	archive := testutil.WriteFile(t, dir, "deck.pptx", deckArchive(t))
	snapshotPath := filepath.Join(dir, "state.snap")

	mustRun(t, "snapshot", "create", "--log-level", "error",
		"--stream", "Alt="+first,
		"--stream", "Main="+archive+":zip",
		"--compression", "lz4",
		"-o", snapshotPath)

	summary := decodeJSON[snapshotSummary](t, mustRun(t, "snapshot", "show", "--json", snapshotPath))
	if len(summary.Streams) != 2 {
		t.Fatalf("got %d streams, want 2", len(summary.Streams))
	}
	alt, main := summary.Streams[0], summary.Streams[1]
	if alt.StreamID != "Alt" || alt.Scheme != string(chunked.SchemeFullFile) || alt.Chunks != 1 {
		t.Errorf("Alt stream = %+v", alt)
	}
	if main.StreamID != "Main" || main.Scheme != string(chunked.SchemeZip) || main.Chunks != 3 {
		t.Errorf("Main stream = %+v", main)
	}
	if summary.UniqueChunks != 4 {
		t.Errorf("unique chunks = %d, want 4", summary.UniqueChunks)
	}

	text := mustRun(t, "snapshot", "show", "--color", "never", "--ids", snapshotPath)
	if !strings.Contains(text, alt.ChunkIDs[0]) {
		t.Errorf("show --ids output lacks chunk id %s:\n%s", alt.ChunkIDs[0], text)
	}
}

func TestUploadDeltaAgainstHost(t *testing.T) {
	host, hostURL := startHost(t)
	dir := t.TempDir()
	snapshotPath := filepath.Join(dir, "deck.snap")

	original := testutil.StoredZip(t, testutil.Entry{Name: "a.xml", Content: "alpha alpha"}, testutil.Entry{Name: "b.xml", Content: "bravo bravo"})
	archive := testutil.WriteFile(t, dir, "deck.pptx", original)
	hostArgs := []string{"--log-level", "error", "--host", hostURL, "--access-token", testToken, "--file-id", "deck"}

	first := decodeJSON[uploadReport](t, mustRun(t, append([]string{"upload", "--json",
		"--stream", "Main=" + archive + ":zip", "--save-snapshot", snapshotPath}, hostArgs...)...))
	if first.DeltaChunks != first.TotalChunks {
		t.Errorf("first upload sent %d of %d chunks, want all", first.DeltaChunks, first.TotalChunks)
	}
	if first.ItemVersion == "" {
		t.Error("host reported no item version")
	}
	stored, ok := host.Stream("deck", "Main")
	if !ok || !bytes.Equal(stored, original) {
		t.Fatal("host does not hold the uploaded archive")
	}

	edited := testutil.StoredZip(t, testutil.Entry{Name: "a.xml", Content: "alpha alpha"}, testutil.Entry{Name: "b.xml", Content: "BRAVO bravo"})
	testutil.WriteFile(t, dir, "deck.pptx", edited)
	second := decodeJSON[uploadReport](t, mustRun(t, append([]string{"upload", "--json",
		"--stream", "Main=" + archive + ":zip", "--last-known", snapshotPath, "--save-snapshot", snapshotPath}, hostArgs...)...))
	if second.DeltaChunks == 0 || second.DeltaChunks >= second.TotalChunks {
		t.Errorf("edit upload sent %d of %d chunks, want a strict subset", second.DeltaChunks, second.TotalChunks)
	}
	stored, _ = host.Stream("deck", "Main")
	if !bytes.Equal(stored, edited) {
		t.Error("host does not hold the edited archive")
	}

	saved, err := snapshot.Load(snapshotPath)
	if err != nil {
		t.Fatalf("loading saved snapshot: %v", err)
	}
	if stream, ok := saved.Stream("Main"); !ok || stream.Size() != uint64(len(edited)) {
		t.Error("saved snapshot does not record the edited archive")
	}
}

func TestUploadWrongToken(t *testing.T) {
	_, hostURL := startHost(t)
	path := testutil.WriteFile(t, t.TempDir(), "doc.txt", []byte("content"))

	_, err := run(t, "upload", "--log-level", "error", "--host", hostURL, "--access-token", "wrong",
		"--file-id", "doc", "--stream", "Main="+path)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %v, want a 401 status error", err)
	}
}

func TestDownloadFromHost(t *testing.T) {
	_, hostURL := startHost(t)
	dir := t.TempDir()
	content := []byte("the document body")
	path := testutil.WriteFile(t, dir, "doc.txt", content)
	snapshotPath := filepath.Join(dir, "doc.snap")
	hostArgs := []string{"--log-level", "error", "--host", hostURL, "--access-token", testToken, "--file-id", "doc"}

	mustRun(t, append([]string{"upload", "--stream", "Main=" + path, "--property", "Title=doc",
		"--save-snapshot", snapshotPath}, hostArgs...)...)

	outputDir := filepath.Join(dir, "out")
	report := decodeJSON[downloadReport](t, mustRun(t, append([]string{"download", "--json",
		"--stream", "Main", "--property", "Title", "--output-dir", outputDir,
		"--expect", "Main=" + path}, hostArgs...)...))
	if report.ReceivedChunks != 1 {
		t.Errorf("received %d chunks without a snapshot, want 1", report.ReceivedChunks)
	}
	if len(report.Streams) != 1 || report.Streams[0].Fingerprint != fingerprint.Sum(content).String() {
		t.Errorf("streams = %+v", report.Streams)
	}
	if len(report.Properties) != 1 || report.Properties[0].Value != "doc" {
		t.Errorf("properties = %+v", report.Properties)
	}
	written, err := os.ReadFile(filepath.Join(outputDir, "Main"))
	if err != nil || !bytes.Equal(written, content) {
		t.Errorf("output-dir stream = %q, %v", written, err)
	}

	known := decodeJSON[downloadReport](t, mustRun(t, append([]string{"download", "--json",
		"--stream", "Main", "--known", snapshotPath, "--expect", "Main=" + path}, hostArgs...)...))
	if known.ReceivedChunks != 0 {
		t.Errorf("received %d chunks already in the snapshot, want 0", known.ReceivedChunks)
	}
}

func TestDownloadExpectMismatch(t *testing.T) {
	_, hostURL := startHost(t)
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "doc.txt", []byte("host copy"))
	other := testutil.WriteFile(t, dir, "other.txt", []byte("local copy"))
	hostArgs := []string{"--log-level", "error", "--host", hostURL, "--access-token", testToken, "--file-id", "doc"}

	mustRun(t, append([]string{"upload", "--stream", "Main=" + path}, hostArgs...)...)

	output, err := run(t, append([]string{"download", "--color", "never",
		"--stream", "Main", "--expect", "Main=" + other}, hostArgs...)...)
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("error = %v, want exit code 1", err)
	}
	if !strings.Contains(output, "differs from expected content at offset 0") {
		t.Errorf("mismatch not reported:\n%s", output)
	}
}

func TestDownloadRequestAndSavedResponse(t *testing.T) {
	host, _ := startHost(t)
	dir := t.TempDir()
	content := []byte("seeded content")
	stream, err := chunked.FullFile{}.ChunkStream(bytes.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	host.SetStream("doc", "Main", stream)

	requestPath := filepath.Join(dir, "request.bin")
	mustRun(t, "download", "--log-level", "error", "--stream", "Main", "-o", requestPath)

	request, err := os.Open(requestPath)
	if err != nil {
		t.Fatal(err)
	}
	defer request.Close()
	response, err := host.GetChunkedFile("doc", request)
	if err != nil {
		t.Fatalf("GetChunkedFile: %v", err)
	}
	responsePath := testutil.WriteFile(t, dir, "response.bin", response)

	report := decodeJSON[downloadReport](t, mustRun(t, "download", "--json", "--log-level", "error",
		"--stream", "Main", "--response", responsePath))
	if len(report.Streams) != 1 || report.Streams[0].Size != len(content) {
		t.Errorf("streams = %+v", report.Streams)
	}
}

func TestSeedHost(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "doc.txt", []byte("seed"))
	host := wopihost.New(wopihost.Config{})

	if err := seedHost(host, []string{"doc/Main=" + path}, []string{"doc=lock-1"}); err != nil {
		t.Fatalf("seedHost: %v", err)
	}
	if content, ok := host.Stream("doc", "Main"); !ok || string(content) != "seed" {
		t.Errorf("seeded stream = %q, %v", content, ok)
	}
	if err := seedHost(host, nil, []string{"doc"}); err == nil {
		t.Error("lock without a value accepted")
	}
}
