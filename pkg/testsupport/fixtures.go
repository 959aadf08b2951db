package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadRecords reads a store-shaped fixture: either {"records": [...]} or a bare array.
func LoadRecords(t testing.TB, path string) []FakeRecord {
	t.Helper()

	data := LoadFixture(t, path)

	var envelope struct {
		Records []FakeRecord `json:"records"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Records != nil {
		return envelope.Records
	}

	var records []FakeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("fixture %s holds neither a record envelope nor a record list: %v", path, err)
	}
	return records
}

// GenerateRecords builds n published records titled "<prefix> <i>".
func GenerateRecords(prefix string, n int) []FakeRecord {
	out := make([]FakeRecord, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, FakeRecord{
			ID: "rec" + prefix + strconv.Itoa(i),
			Fields: map[string]any{
				"Title":  prefix + " " + strconv.Itoa(i),
				"Status": "Published",
				"Order":  float64(i),
			},
		})
	}
	return out
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}
