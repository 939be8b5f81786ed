package db

import (
	"testing"
	"time"
)

func secs(n int64) time.Duration { return time.Duration(n) * time.Second }

func TestSchemaVersion(t *testing.T) {
	if got := SchemaVersion(); got < 1 {
		t.Fatalf("SchemaVersion() = %d, want at least 1", got)
	}
}

func TestParseChange(t *testing.T) {
	job, err := parseChange(`{"space":"s1","id":"f1","version":7}`)
	if err != nil {
		t.Fatalf("parseChange: %v", err)
	}
	if job.SpaceID != "s1" || job.FeatureID != "f1" || job.Version != 7 {
		t.Errorf("job = %+v", job)
	}
	if job.Older != nil || job.Younger != nil {
		t.Error("jobs from notifications carry no records")
	}

	for _, bad := range []string{
		`not json`,
		`{"space":"s1","id":"f1"}`,
		`{"id":"f1","version":1}`,
		`{"space":"s1","version":1}`,
	} {
		if _, err := parseChange(bad); err == nil {
			t.Errorf("parseChange(%q) succeeded, want error", bad)
		}
	}
}

func TestNextBackoff(t *testing.T) {
	for _, cur := range []int64{1, 4, 16, 30} {
		d := nextBackoff(secs(cur))
		if d > secs(30)*5/4 {
			t.Errorf("nextBackoff(%ds) = %v exceeds cap with jitter", cur, d)
		}
		if d <= 0 {
			t.Errorf("nextBackoff(%ds) = %v, want positive", cur, d)
		}
	}
}
