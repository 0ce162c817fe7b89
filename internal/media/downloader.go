package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gyeonginblue/dailyfeed/internal/config"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// ErrNotImage is returned when the payload is not an image.
var ErrNotImage = errors.New("payload is not an image")

// Image is a downloaded lead image held in memory.
type Image struct {
	URL         string        `json:"url"`
	Filename    string        `json:"filename"`
	Data        []byte        `json:"-"`
	ContentType string        `json:"content_type"`
	Hash        string        `json:"hash"`
	Duration    time.Duration `json:"duration"`
}

// Size returns the payload length in bytes.
func (img *Image) Size() int { return len(img.Data) }

// Downloader fetches lead images for upload.
type Downloader struct {
	client     *http.Client
	userAgent  string
	minSize    int64
	maxSize    int64
	downloaded atomic.Int64
	rejected   atomic.Int64
	logger     *slog.Logger
}

// NewDownloader creates an image downloader using the run's image bounds.
func NewDownloader(cfg *config.Config, logger *slog.Logger) *Downloader {
	return &Downloader{
		client:    &http.Client{Timeout: cfg.Run.ImageTimeout},
		userAgent: cfg.Fetcher.UserAgent,
		minSize:   cfg.Run.ImageMinBytes,
		maxSize:   cfg.Run.ImageMaxBytes,
		logger:    logger.With("component", "media_downloader"),
	}
}

// Download fetches rawURL with referer set to the article page. Payloads
// under the minimum size are rejected with types.ErrImageTooSmall since
// they are almost always icons.
func (d *Downloader) Download(ctx context.Context, rawURL, referer string) (*Image, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &types.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("image status %d", resp.StatusCode)}
	}

	if d.maxSize > 0 && resp.ContentLength > d.maxSize {
		d.rejected.Add(1)
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", resp.ContentLength, d.maxSize)
	}

	var reader io.Reader = resp.Body
	if d.maxSize > 0 {
		reader = io.LimitReader(resp.Body, d.maxSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	if d.maxSize > 0 && int64(len(data)) > d.maxSize {
		d.rejected.Add(1)
		return nil, fmt.Errorf("file too large: more than %d bytes", d.maxSize)
	}
	if int64(len(data)) < d.minSize {
		d.rejected.Add(1)
		return nil, fmt.Errorf("%w: %s (%d bytes)", types.ErrImageTooSmall, rawURL, len(data))
	}

	contentType, ok := imageType(resp.Header.Get("Content-Type"), data)
	if !ok {
		d.rejected.Add(1)
		return nil, fmt.Errorf("%w: %s (%s)", ErrNotImage, rawURL, contentType)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	d.downloaded.Add(1)

	img := &Image{
		URL:         rawURL,
		Filename:    imageFilename(rawURL, contentType, hash),
		Data:        data,
		ContentType: contentType,
		Hash:        hash,
		Duration:    time.Since(start),
	}

	d.logger.Debug("image downloaded",
		"url", rawURL,
		"size", humanSize(int64(len(data))),
		"type", contentType,
		"hash", hash[:16],
		"duration", img.Duration,
	)

	return img, nil
}

// Stats returns download statistics.
func (d *Downloader) Stats() map[string]int64 {
	return map[string]int64{
		"downloaded": d.downloaded.Load(),
		"rejected":   d.rejected.Load(),
	}
}

// imageType trusts the sniffed type first; a declared image type is
// accepted only when the bytes do not look like markup or text.
func imageType(declared string, data []byte) (string, bool) {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, true
	}
	declared = strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	if strings.HasPrefix(declared, "image/") && !strings.HasPrefix(sniffed, "text/") {
		return declared, true
	}
	return sniffed, false
}

var imageExt = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/bmp":     ".bmp",
	"image/avif":    ".avif",
	"image/svg+xml": ".svg",
}

// imageFilename keeps the URL's base name when it is a plain image file
// name and otherwise derives one from the content hash.
func imageFilename(rawURL, contentType, hash string) string {
	ext := imageExt[contentType]
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[len(exts)-1]
		}
	}

	if parsed, err := url.Parse(rawURL); err == nil {
		base := path.Base(parsed.Path)
		if isPlainName(base) && imageExt[mime.TypeByExtension(strings.ToLower(path.Ext(base)))] != "" {
			return base
		}
	}
	return "lead_" + hash[:12] + ext
}

func isPlainName(name string) bool {
	if name == "" || name == "." || name == "/" || len(name) > 100 {
		return false
	}
	for _, r := range name {
		if !(r == '.' || r == '-' || r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
