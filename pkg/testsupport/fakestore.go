package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// FakeRecord is one row served by FakeStore.
type FakeRecord struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

// FilterFunc decides whether rec matches the filterByFormula of a request.
type FilterFunc func(formula string, rec FakeRecord) bool

// FakeStore is an httptest server speaking the store's list API. It paginates
// with opaque offsets, honours pageSize, maxRecords and fields[], optionally
// enforces a schema, and records every request it receives.
type FakeStore struct {
	mu       sync.Mutex
	records  []FakeRecord
	filter   FilterFunc
	status   int
	delay    time.Duration
	endless  bool
	requests []url.Values
	schema   map[string]struct{}
	server   *httptest.Server
}

// NewFakeStore starts a FakeStore serving records. It is closed on test cleanup.
func NewFakeStore(t testing.TB, records ...FakeRecord) *FakeStore {
	t.Helper()
	f := &FakeStore{records: records}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

// URL is the base URL to configure clients with.
func (f *FakeStore) URL() string {
	return f.server.URL
}

// SetRecords replaces the served records.
func (f *FakeStore) SetRecords(records ...FakeRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
}

// SetFilter installs a formula evaluator. Without one every record matches.
func (f *FakeStore) SetFilter(fn FilterFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = fn
}

// SetSchema declares the table's columns. Once set, a request naming any other
// field in fields[], sort or filterByFormula is rejected with 422, as the real
// store does. Without a schema every field name is accepted.
func (f *FakeStore) SetSchema(fields ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schema = make(map[string]struct{}, len(fields))
	for _, field := range fields {
		f.schema[field] = struct{}{}
	}
}

// FailWith makes every request answer with status. Zero restores normal service.
func (f *FakeStore) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

// Delay holds every response for d.
func (f *FakeStore) Delay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Endless makes every page carry an offset, including empty ones.
func (f *FakeStore) Endless(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endless = on
}

// Requests returns the number of requests served so far.
func (f *FakeStore) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Queries returns a copy of the query of every request served so far.
func (f *FakeStore) Queries() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.requests...)
}

// Reset forgets the recorded requests.
func (f *FakeStore) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = nil
}

func (f *FakeStore) serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f.mu.Lock()
	f.requests = append(f.requests, q)
	records := append([]FakeRecord(nil), f.records...)
	filter, status, delay, endless, schema := f.filter, f.status, f.delay, f.endless, f.schema
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "FAKE_FAILURE", "message": http.StatusText(status)},
		})
		return
	}

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "AUTHENTICATION_REQUIRED"})
		return
	}

	if unknown := unknownField(schema, q); unknown != "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "UNKNOWN_FIELD_NAME", "message": "Unknown field name: \"" + unknown + "\""},
		})
		return
	}

	formula := q.Get("filterByFormula")
	var matched []FakeRecord
	for _, rec := range records {
		if filter == nil || filter(formula, rec) {
			matched = append(matched, rec)
		}
	}
	if limit, err := strconv.Atoi(q.Get("maxRecords")); err == nil && limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	start := 0
	if off := q.Get("offset"); off != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(off, "itr"))
		if err != nil || n < 0 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "LIST_RECORDS_ITERATOR_NOT_AVAILABLE"})
			return
		}
		start = n
	}
	size, err := strconv.Atoi(q.Get("pageSize"))
	if err != nil || size <= 0 || size > 100 {
		size = 100
	}

	end := start + size
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	fields := q["fields[]"]
	page := make([]FakeRecord, 0, end-start)
	for _, rec := range matched[start:end] {
		page = append(page, project(rec, fields))
	}

	resp := map[string]any{"records": page}
	if end < len(matched) || endless {
		resp["offset"] = "itr" + strconv.Itoa(end)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

var fieldRef = regexp.MustCompile(`\{([^{}]+)\}`)

// unknownField returns the first field named by q that is missing from schema.
func unknownField(schema map[string]struct{}, q url.Values) string {
	if schema == nil {
		return ""
	}
	var named []string
	named = append(named, q["fields[]"]...)
	for key, values := range q {
		if strings.HasPrefix(key, "sort[") && strings.HasSuffix(key, "[field]") {
			named = append(named, values...)
		}
	}
	for _, m := range fieldRef.FindAllStringSubmatch(q.Get("filterByFormula"), -1) {
		named = append(named, m[1])
	}
	for _, name := range named {
		if _, ok := schema[name]; !ok {
			return name
		}
	}
	return ""
}

func project(rec FakeRecord, fields []string) FakeRecord {
	if len(fields) == 0 {
		return rec
	}
	out := FakeRecord{ID: rec.ID, CreatedTime: rec.CreatedTime, Fields: map[string]any{}}
	for _, f := range fields {
		if v, ok := rec.Fields[f]; ok {
			out.Fields[f] = v
		}
	}
	return out
}

// EqualsFilter evaluates the {field}='value' comparisons found in a formula for the
// given fields: a record matches when every such comparison holds. Comparisons on
// other fields are ignored.
func EqualsFilter(fields ...string) FilterFunc {
	patterns := make(map[string]*regexp.Regexp, len(fields))
	for _, field := range fields {
		patterns[field] = regexp.MustCompile(`\{` + regexp.QuoteMeta(field) + `\}='((?:[^'\\]|\\.)*)'`)
	}
	return func(formula string, rec FakeRecord) bool {
		for field, re := range patterns {
			for _, m := range re.FindAllStringSubmatch(formula, -1) {
				got, _ := rec.Fields[field].(string)
				if got != unescape(m[1]) {
					return false
				}
			}
		}
		return true
	}
}

func unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
