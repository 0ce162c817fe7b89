package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/gyeonginblue/dailyfeed/internal/config"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestClient(t *testing.T, handler http.HandlerFunc) *PocketBase {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig().Store
	cfg.BaseURL = srv.URL + "/"
	cfg.AuthToken = "secret-token"
	return NewPocketBase(&cfg, testLogger)
}

func TestPocketBaseList(t *testing.T) {
	var gotFilter, gotPerPage, gotAuth string
	pb := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method: %q", r.Method)
		}
		if r.URL.Path != "/api/collections/articles/records" {
			t.Errorf("unexpected path: %q", r.URL.Path)
		}
		gotFilter = r.URL.Query().Get("filter")
		gotPerPage = r.URL.Query().Get("perPage")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"page":1,"perPage":1,"totalItems":3,"totalPages":3,"items":[{"id":"abc"}]}`))
	})

	res, err := pb.List(context.Background(), "articles", ContainsFilter("title", "경기도 보도자료"), 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	assert.Equal(t, res.TotalItems, 3)
	assert.Equal(t, gotFilter, "(title~'경기도 보도자료')")
	assert.Equal(t, gotPerPage, "1")
	assert.Equal(t, gotAuth, "secret-token")
}

func TestPocketBaseCreate(t *testing.T) {
	var got map[string]any
	pb := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %q", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type: %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"id":"rec123","collectionName":"articles"}`))
	})

	rec := types.ArticleRecord{
		Title:       "제목",
		Slug:        "news-20261018090000-deadbeef",
		Status:      types.StatusPublished,
		Tags:        []string{"경기"},
		PublishedAt: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
	id, err := pb.Create(context.Background(), "articles", rec.Fields())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	assert.Equal(t, id, "rec123")
	assert.Equal(t, got["slug"], "news-20261018090000-deadbeef")
	assert.Equal(t, got["status"], "published")
	assert.Equal(t, got["views"], float64(0))
	assert.Equal(t, got["is_headline"], false)
	assert.Equal(t, got["published_at"], "2026-10-18 09:00:00.000Z")
}

func TestPocketBaseCreateRejected(t *testing.T) {
	pb := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":400,"message":"Failed to create record.","data":{"slug":{"code":"validation_not_unique"}}}`))
	})

	_, err := pb.Create(context.Background(), "articles", map[string]any{"title": "x"})
	var se *types.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	assert.Equal(t, se.StatusCode, http.StatusBadRequest)
	assert.Equal(t, se.Op, "create")
	if !strings.Contains(se.Body, "validation_not_unique") {
		t.Errorf("error should carry the response body, got %q", se.Body)
	}
}

func TestPocketBaseAttachFile(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	var gotName, gotField, gotType string
	var gotData []byte

	pb := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("unexpected method: %q", r.Method)
		}
		if r.URL.Path != "/api/collections/articles/records/rec123" {
			t.Errorf("unexpected path: %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		for field, files := range r.MultipartForm.File {
			gotField = field
			gotName = files[0].Filename
			gotType = files[0].Header.Get("Content-Type")
			f, _ := files[0].Open()
			gotData, _ = io.ReadAll(f)
			f.Close()
		}
		w.Write([]byte(`{"id":"rec123"}`))
	})

	if err := pb.AttachFile(context.Background(), "articles", "rec123", "thumbnail", "lead.png", png); err != nil {
		t.Fatalf("AttachFile: %v", err)
	}
	assert.Equal(t, gotField, "thumbnail")
	assert.Equal(t, gotName, "lead.png")
	assert.Equal(t, gotType, "image/png")
	assert.Equal(t, len(gotData), len(png))
}

func TestPocketBaseFileURL(t *testing.T) {
	cfg := config.DefaultConfig().Store
	cfg.BaseURL = "http://127.0.0.1:8090/"
	pb := NewPocketBase(&cfg, testLogger)
	assert.Equal(t, pb.FileURL("articles", "rec123", "lead_x1.jpg"), "http://127.0.0.1:8090/api/files/articles/rec123/lead_x1.jpg")
}

func TestPocketBaseUnreachable(t *testing.T) {
	cfg := config.DefaultConfig().Store
	cfg.BaseURL = "http://127.0.0.1:1"
	cfg.Timeout = time.Second
	pb := NewPocketBase(&cfg, testLogger)

	_, err := pb.List(context.Background(), "articles", "", 1)
	var se *types.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	assert.Equal(t, se.Backend, "pocketbase")
}

func TestContainsFilterEscapesQuotes(t *testing.T) {
	assert.Equal(t, ContainsFilter("title", `도지사's 발언`), `(title~'도지사\'s 발언')`)
}

func TestContainsFilterEscapesWildcards(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"전년 대비 5% 상승, 일자리 정", `(title~'전년 대비 5\% 상승, 일자리 정')`},
		{"snake_case 안내", `(title~'snake\_case 안내')`},
		{`경로 C:\temp 100%`, `(title~'경로 C:\\temp 100\%')`},
	}
	for _, tt := range tests {
		got := ContainsFilter("title", tt.value)
		assert.Equal(t, got, tt.want)
		if strings.Contains(strings.ReplaceAll(got, `\%`, ""), "%") {
			t.Errorf("%q leaves an unescaped %% in the operand", got)
		}
	}
}

func TestJSONLLedgerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.jsonl")
	cfg := &config.LedgerConfig{Type: "jsonl", OutputPath: path}

	for run := 0; run < 2; run++ {
		l, err := NewLedger(cfg, testLogger)
		if err != nil {
			t.Fatalf("NewLedger: %v", err)
		}
		assert.Equal(t, l.Name(), "jsonl")
		err = l.Record(context.Background(),
			Entry{RunID: "run", Kind: EntryItem, Title: "제목", Outcome: "added", Extraction: "fallback"},
			Entry{RunID: "run", Kind: EntrySummary, Stats: map[string]int{"added": 1}},
		)
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var lines []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line is not JSON: %v", err)
		}
		lines = append(lines, e)
	}
	assert.Equal(t, len(lines), 4)
	assert.Equal(t, lines[0].Extraction, "fallback")
	assert.Equal(t, lines[1].Stats["added"], 1)
}

func TestNewLedgerUnknownType(t *testing.T) {
	if _, err := NewLedger(&config.LedgerConfig{Type: "sqlite"}, testLogger); err == nil {
		t.Error("expected error for unknown ledger type")
	}
	l, err := NewLedger(&config.LedgerConfig{Type: "none"}, testLogger)
	if err != nil {
		t.Fatalf("NewLedger(none): %v", err)
	}
	assert.Equal(t, l.Name(), "none")
}
