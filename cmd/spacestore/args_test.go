package main

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/persistorai/spacestore/internal/config"
	"github.com/persistorai/spacestore/internal/models"
)

// executeArgs runs a fresh root command with args and stdin, returning the
// captured stdout and any error.
func executeArgs(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

// useMemoryBackend points the commands at a throwaway in-memory badger store.
func useMemoryBackend(t *testing.T) {
	t.Helper()
	t.Setenv(config.FileEnv, "")
	t.Setenv("STORAGE_BACKEND", "badger")
	t.Setenv("BADGER_IN_MEMORY", "true")
	t.Setenv("ACTIVITY_SOURCE", "inprocess")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("PORT", "")
	t.Setenv("LISTEN_HOST", "")
}

const pointFeature = `{"type":"Feature","id":"f1","geometry":{"type":"Point","coordinates":[8,50]},"properties":{"name":"x"}}`

func TestArgValidation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		wantErr string
	}{
		{"write needs a space", []string{"write"}, "", "accepts between 1 and 2 arg(s)"},
		{"get needs space and id", []string{"get", "s1"}, "", "accepts 2 arg(s)"},
		{"history needs space and id", []string{"history"}, "", "accepts 2 arg(s)"},
		{"activity needs a space", []string{"activity"}, "", "accepts 1 arg(s)"},
		{"purge takes at most one space", []string{"activity", "purge", "a", "b"}, "", "accepts at most 1 arg(s)"},
		{"backends takes no args", []string{"backends", "x"}, "", "unknown command"},
		{"bad policy", []string{"write", "s1", "--on-exists", "bogus"}, pointFeature, "unknown onExists"},
		{"bad conflict policy", []string{"write", "s1", "--on-version-conflict", "later"}, pointFeature, "unknown onVersionConflict"},
		{"bad stdin", []string{"write", "s1"}, "not json", "parse feature"},
		{"bad action", []string{"activity", "s1", "--action", "MOVE"}, "", "unknown action"},
		{"bad since", []string{"activity", "s1", "--since", "yesterday"}, "", "--since must be"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			useMemoryBackend(t)

			_, err := executeArgs(t, tc.stdin, tc.args...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestBackendsCmd(t *testing.T) {
	out, err := executeArgs(t, "", "backends", "--format", "quiet")
	if err != nil {
		t.Fatalf("backends: %v", err)
	}
	if out != "badger\npostgres\n" {
		t.Errorf("got %q", out)
	}
}

func TestWriteCmd_Insert(t *testing.T) {
	useMemoryBackend(t)

	out, err := executeArgs(t, pointFeature, "write", "s1", "--author", "alice", "--add-tag", "Roads")
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	var got struct {
		Disposition string `json:"disposition"`
		Record      struct {
			ID        string         `json:"id"`
			Version   int64          `json:"version"`
			Operation string         `json:"operation"`
			Author    string         `json:"author"`
			Props     map[string]any `json:"properties"`
		} `json:"record"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}

	if got.Disposition != "insert" {
		t.Errorf("disposition = %q, want insert", got.Disposition)
	}
	if got.Record.ID != "f1" || got.Record.Version != 1 || got.Record.Operation != "I" {
		t.Errorf("record = %+v", got.Record)
	}
	if got.Record.Author != "alice" {
		t.Errorf("author = %q, want alice", got.Record.Author)
	}
	if got.Record.Props["name"] != "x" {
		t.Errorf("name = %v, want x", got.Record.Props["name"])
	}
	if _, ok := got.Record.Props[models.NamespaceKey]; !ok {
		t.Errorf("record properties lack the namespace")
	}
}

func TestWriteFlags_Request(t *testing.T) {
	f := writeFlags{
		id:          "override",
		onExists:    "retain",
		onNotExists: "error",
		onConflict:  "replace",
		baseVersion: 4,
		partial:     true,
	}

	req, err := f.request("s1", models.Feature{ID: "input"}, true)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if req.Feature.ID != "override" {
		t.Errorf("id = %q, want override", req.Feature.ID)
	}
	if req.OnExists != models.ExistsRetain || req.OnNotExists != models.NotExistsError || req.OnVersionConflict != models.ConflictReplace {
		t.Errorf("policies = %s/%s/%s", req.OnExists, req.OnNotExists, req.OnVersionConflict)
	}
	if req.BaseVersion == nil || *req.BaseVersion != 4 || !req.Partial {
		t.Errorf("base/partial not carried: %+v", req)
	}

	req, err = f.request("s1", models.Feature{ID: "input"}, false)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.BaseVersion != nil {
		t.Error("base version set without the flag")
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("2h", now)
	if err != nil || !got.Equal(now.Add(-2*time.Hour)) {
		t.Errorf("duration: got %v, %v", got, err)
	}

	got, err = parseSince("2024-04-30T00:00:00Z", now)
	if err != nil || !got.Equal(time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp: got %v, %v", got, err)
	}

	if got, err := parseSince("", now); got != nil || err != nil {
		t.Errorf("empty: got %v, %v", got, err)
	}

	if _, err := parseSince("-5m", now); err == nil {
		t.Error("negative duration accepted")
	}
}
