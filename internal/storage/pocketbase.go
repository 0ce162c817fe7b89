package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/gyeonginblue/dailyfeed/internal/config"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// RecordStore is the record-oriented HTTP store the pipeline writes to.
type RecordStore interface {
	// List runs a filtered query and reports the total match count.
	List(ctx context.Context, collection, filter string, perPage int) (*ListResult, error)

	// Create submits fields as a new record and returns its id.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)

	// AttachFile uploads data into a file field of an existing record.
	AttachFile(ctx context.Context, collection, id, field, filename string, data []byte) error
}

// ListResult is one page of a record query.
type ListResult struct {
	Page       int              `json:"page"`
	PerPage    int              `json:"perPage"`
	TotalItems int              `json:"totalItems"`
	TotalPages int              `json:"totalPages"`
	Items      []map[string]any `json:"items"`
}

// PocketBase is a RecordStore backed by the PocketBase REST API.
type PocketBase struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// NewPocketBase creates a client for the store at cfg.BaseURL.
func NewPocketBase(cfg *config.StoreConfig, logger *slog.Logger) *PocketBase {
	return &PocketBase{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.AuthToken,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With("component", "pocketbase"),
	}
}

func (pb *PocketBase) Name() string { return "pocketbase" }

func (pb *PocketBase) recordsURL(collection string) string {
	return pb.baseURL + "/api/collections/" + url.PathEscape(collection) + "/records"
}

// List queries collection with a PocketBase filter expression.
func (pb *PocketBase) List(ctx context.Context, collection, filter string, perPage int) (*ListResult, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	if perPage > 0 {
		q.Set("perPage", fmt.Sprint(perPage))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pb.recordsURL(collection)+"?"+q.Encode(), nil)
	if err != nil {
		return nil, pb.fail("list", 0, "", err)
	}

	var result ListResult
	if err := pb.do(req, "list", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Create posts fields as JSON and returns the generated record id.
func (pb *PocketBase) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return "", pb.fail("create", 0, "", fmt.Errorf("encode record: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pb.recordsURL(collection), bytes.NewReader(body))
	if err != nil {
		return "", pb.fail("create", 0, "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var created struct {
		ID string `json:"id"`
	}
	if err := pb.do(req, "create", &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", pb.fail("create", 0, "", errors.New("response carried no record id"))
	}

	pb.logger.Debug("record created", "collection", collection, "id", created.ID)
	return created.ID, nil
}

// AttachFile PATCHes a multipart body holding one file field onto record id.
func (pb *PocketBase) AttachFile(ctx context.Context, collection, id, field, filename string, data []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(field), escapeQuotes(filename)))
	h.Set("Content-Type", http.DetectContentType(data))
	part, err := mw.CreatePart(h)
	if err != nil {
		return pb.fail("attach", 0, "", err)
	}
	if _, err := part.Write(data); err != nil {
		return pb.fail("attach", 0, "", err)
	}
	if err := mw.Close(); err != nil {
		return pb.fail("attach", 0, "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, pb.recordsURL(collection)+"/"+url.PathEscape(id), &buf)
	if err != nil {
		return pb.fail("attach", 0, "", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	if err := pb.do(req, "attach", nil); err != nil {
		return err
	}
	pb.logger.Debug("file attached", "collection", collection, "id", id, "field", field, "bytes", len(data))
	return nil
}

// FileURL returns the public URL of a stored file.
func (pb *PocketBase) FileURL(collection, id, filename string) string {
	return fmt.Sprintf("%s/api/files/%s/%s/%s", pb.baseURL,
		url.PathEscape(collection), url.PathEscape(id), url.PathEscape(filename))
}

func (pb *PocketBase) do(req *http.Request, op string, out any) error {
	req.Header.Set("Accept", "application/json")
	if pb.token != "" {
		req.Header.Set("Authorization", pb.token)
	}

	resp, err := pb.client.Do(req)
	if err != nil {
		return pb.fail(op, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pb.fail(op, resp.StatusCode, "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return pb.fail(op, resp.StatusCode, snippet, errors.New(http.StatusText(resp.StatusCode)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return pb.fail(op, resp.StatusCode, "", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (pb *PocketBase) fail(op string, status int, body string, err error) error {
	return &types.StorageError{Backend: "pocketbase", Op: op, StatusCode: status, Body: body, Err: err}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// likeEscaper escapes a value for the store's "~" operator. The operand is
// wrapped in %...% only when it has no unescaped %, so LIKE wildcards in
// the value must be escaped too.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `%`, `\%`, `_`, `\_`)

// ContainsFilter builds a "field contains value" filter expression.
func ContainsFilter(field, value string) string {
	return fmt.Sprintf("(%s~'%s')", field, likeEscaper.Replace(value))
}
