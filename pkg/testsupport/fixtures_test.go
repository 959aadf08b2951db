package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFixture(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	testContent := []byte("test fixture content")

	if err := os.WriteFile(testFile, testContent, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := LoadFixture(t, testFile)
	if string(result) != string(testContent) {
		t.Errorf("expected %q, got %q", testContent, result)
	}
}

func TestLoadRecords(t *testing.T) {
	tmpDir := t.TempDir()

	envelope := filepath.Join(tmpDir, "envelope.json")
	bare := filepath.Join(tmpDir, "bare.json")
	if err := os.WriteFile(envelope, []byte(`{"records":[{"id":"rec1","fields":{"Title":"A"}}]}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bare, []byte(`[{"id":"rec2","fields":{"Title":"B"}},{"id":"rec3","fields":{}}]`), 0644); err != nil {
		t.Fatal(err)
	}

	if got := LoadRecords(t, envelope); len(got) != 1 || got[0].ID != "rec1" {
		t.Errorf("unexpected envelope records: %+v", got)
	}
	if got := LoadRecords(t, bare); len(got) != 2 || got[1].ID != "rec3" {
		t.Errorf("unexpected bare records: %+v", got)
	}
}

func TestLoadFixtureJSON(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.json")
	if err := os.WriteFile(testFile, []byte(`{"name":"test","value":42}`), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	var result map[string]any
	LoadFixtureJSON(t, testFile, &result)

	if result["name"] != "test" {
		t.Errorf("expected name=test, got %v", result["name"])
	}
	if result["value"] != float64(42) {
		t.Errorf("expected value=42, got %v", result["value"])
	}
}

func TestFixturePath(t *testing.T) {
	if got := FixturePath("ideas.json"); got != filepath.Join("testdata", "ideas.json") {
		t.Errorf("unexpected fixture path %q", got)
	}
}

func getPage(t *testing.T, url string) map[string]any {
	t.Helper()
	status, out := get(t, url)
	if status != http.StatusOK {
		t.Fatalf("status %d: %v", status, out)
	}
	return out
}

func get(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer test")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	return resp.StatusCode, out
}

func TestFakeStore_Paginates(t *testing.T) {
	store := NewFakeStore(t, GenerateRecords("Idea", 5)...)

	first := getPage(t, store.URL()+"/app/Ideas?pageSize=2")
	if n := len(first["records"].([]any)); n != 2 {
		t.Fatalf("expected 2 records, got %d", n)
	}
	offset, _ := first["offset"].(string)
	if offset == "" {
		t.Fatal("expected an offset on the first page")
	}

	last := getPage(t, store.URL()+"/app/Ideas?pageSize=4&offset="+offset)
	if n := len(last["records"].([]any)); n != 3 {
		t.Fatalf("expected 3 records, got %d", n)
	}
	if _, ok := last["offset"]; ok {
		t.Error("last page must not carry an offset")
	}

	if store.Requests() != 2 {
		t.Errorf("expected 2 requests, got %d", store.Requests())
	}
}

func TestFakeStore_ProjectsFields(t *testing.T) {
	store := NewFakeStore(t, GenerateRecords("Idea", 1)...)

	page := getPage(t, store.URL()+"/app/Ideas?fields%5B%5D=Title")
	rec := page["records"].([]any)[0].(map[string]any)
	fields := rec["fields"].(map[string]any)
	if _, ok := fields["Status"]; ok {
		t.Error("unrequested field was served")
	}
	if fields["Title"] != "Idea 1" {
		t.Errorf("unexpected title %v", fields["Title"])
	}
}

func TestEqualsFilter(t *testing.T) {
	filter := EqualsFilter("Title", "Status")
	rec := FakeRecord{ID: "r", Fields: map[string]any{"Title": "O'Brien", "Status": "Published"}}

	if !filter(`AND({Status}='Published', {Title}='O\'Brien')`, rec) {
		t.Error("expected escaped title to match")
	}
	if filter(`{Title}='Other'`, rec) {
		t.Error("expected different title not to match")
	}
	if !filter(`{Category}='AI'`, rec) {
		t.Error("comparisons on other fields must be ignored")
	}
}

func TestGenerateRecords(t *testing.T) {
	records := GenerateRecords("Idea", 12)
	if len(records) != 12 {
		t.Fatalf("expected 12 records, got %d", len(records))
	}
	last := records[11]
	if last.ID != "recIdea12" || last.Fields["Title"] != "Idea 12" || last.Fields["Order"] != float64(12) {
		t.Errorf("unexpected record %+v", last)
	}
}

func TestFakeStore_RejectsUnknownFields(t *testing.T) {
	store := NewFakeStore(t, GenerateRecords("Idea", 2)...)
	store.SetSchema("Title", "Status", "Order")

	tests := []struct {
		name    string
		query   string
		unknown string
	}{
		{name: "known fields", query: "fields%5B%5D=Title&sort%5B0%5D%5Bfield%5D=Order&filterByFormula=%7BStatus%7D%3D%27Published%27"},
		{name: "projection", query: "fields%5B%5D=Title&fields%5B%5D=Name", unknown: "Name"},
		{name: "sort", query: "sort%5B0%5D%5Bfield%5D=Rank", unknown: "Rank"},
		{name: "formula", query: "filterByFormula=%7BFeatured%7D", unknown: "Featured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, store.URL()+"/app/Ideas?"+tt.query)
			if tt.unknown == "" {
				if status != http.StatusOK {
					t.Fatalf("expected 200, got %d: %v", status, body)
				}
				return
			}
			if status != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", status)
			}
			e, _ := body["error"].(map[string]any)
			if e["type"] != "UNKNOWN_FIELD_NAME" {
				t.Errorf("unexpected error body %v", body)
			}
			if msg, _ := e["message"].(string); msg != `Unknown field name: "`+tt.unknown+`"` {
				t.Errorf("unexpected message %q", msg)
			}
		})
	}
}
