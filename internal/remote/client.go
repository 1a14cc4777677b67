// Package remote talks to the captioning/processing service: it submits one
// job per call and lists the files the service has already produced.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/heimdex/heimdex-clipper/internal/logging"
)

const (
	processPath = "/api/process"
	filesPath   = "/api/files"

	defaultTimeout = 30 * time.Minute
	maxErrorBody   = 4096
)

// ProcessError is a non-2xx answer from the service.
type ProcessError struct {
	StatusCode int
	Body       string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("remote processing failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx).
// Client errors (4xx) are considered permanent.
func (e *ProcessError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// Payload is the flat key/value form of one processing request.
type Payload map[string]string

// Source names the video to process: a local file that is uploaded, or a
// path the service can already read.
type Source struct {
	FilePath  string
	InputPath string
}

// Artifact is a processed file saved locally.
type Artifact struct {
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	DownloadName string `json:"download_name"`
	LocalPath    string `json:"local_path"`
	Size         int64  `json:"size"`
}

// File is one entry of the service's file listing.
type File struct {
	Name      string     `json:"name"`
	Path      string     `json:"path,omitempty"`
	URL       string     `json:"url,omitempty"`
	Size      *int64     `json:"size,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// FileListing is what GET /api/files returns.
type FileListing struct {
	Cuts        []File `json:"cuts"`
	Autocaption []File `json:"autocaption"`
}

func (l FileListing) All() []File {
	out := make([]File, 0, len(l.Cuts)+len(l.Autocaption))
	out = append(out, l.Autocaption...)
	return append(out, l.Cuts...)
}

type Config struct {
	BaseURL   string
	Token     string
	OutputDir string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Client is the HTTP client for the processing service.
type Client struct {
	baseURL    string
	token      string
	outputDir  string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid remote base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL:    base,
		token:      cfg.Token,
		outputDir:  cfg.OutputDir,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logging.WithComponent(logging.OrDiscard(cfg.Logger), "remote"),
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Process submits one job and saves the returned artifact into the output
// directory.
func (c *Client) Process(ctx context.Context, payload Payload, src Source) (*Artifact, error) {
	if src.FilePath == "" && src.InputPath == "" {
		return nil, errors.New("remote process: no source")
	}

	body, contentType := c.multipartBody(payload, src)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+processPath, body)
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	c.decorate(req)

	c.logger.Info("submitting remote job",
		"request_id", req.Header.Get("X-Request-Id"),
		"source", logging.SanitizePath(src.FilePath+src.InputPath),
		"fields", len(payload),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ProcessError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	art := c.describe(resp)
	if err := c.save(resp.Body, art); err != nil {
		return nil, err
	}
	c.logger.Info("remote job finished",
		"filename", art.Filename,
		"size", humanize.Bytes(uint64(art.Size)),
	)
	return art, nil
}

// ListFiles returns the service's existing produced files.
func (c *Client) ListFiles(ctx context.Context) (*FileListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+filesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ProcessError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var listing FileListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode file listing: %w", err)
	}
	return &listing, nil
}

func (c *Client) decorate(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
}

// multipartBody streams the form so uploads are not buffered in memory.
func (c *Client) multipartBody(payload Payload, src Source) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeForm(mw, payload, src)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}

func writeForm(mw *multipart.Writer, payload Payload, src Source) error {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, payload[k]); err != nil {
			return err
		}
	}

	if src.FilePath == "" {
		return mw.WriteField("input_path", src.InputPath)
	}

	f, err := os.Open(src.FilePath)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile("file", filepath.Base(src.FilePath))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

func (c *Client) describe(resp *http.Response) *Artifact {
	art := &Artifact{}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		art.DownloadName = baseName(params["filename"])
	}
	art.Filename = baseName(resp.Header.Get("X-Output-Filename"))
	if art.Filename == "" {
		art.Filename = art.DownloadName
	}
	if art.Filename == "" {
		art.Filename = "processed_" + uuid.NewString()[:8] + ".mp4"
	}
	if art.DownloadName == "" {
		art.DownloadName = art.Filename
	}
	art.URL = resp.Header.Get("X-Output-Url")
	if art.URL == "" {
		art.URL = c.baseURL + filesPath + "/" + url.PathEscape(art.Filename)
	}
	return art
}

// baseName strips any directory part a server-supplied name carries.
func baseName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

func (c *Client) save(r io.Reader, art *Artifact) error {
	dir := c.outputDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(dir, art.Filename)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("download artifact: %w", err)
	}

	art.LocalPath = path
	art.Size = n
	return nil
}
