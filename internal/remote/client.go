// Package remote is the client for the remote content store: media upload,
// field updates, and metadata merge-patches.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// FileUpload is a binary payload attached to an upload request.
type FileUpload struct {
	Name     string
	MimeType string
	Data     []byte
}

// MetadataPatch is the body of a metadata merge-patch request.
type MetadataPatch struct {
	SafeMetadata map[string]any `json:"safe_metadata"`
	Merge        bool           `json:"merge"`
}

// Client abstracts the remote content API. The upload response shape varies
// by deployment; callers resolve the created identifier with ExtractMediaID.
type Client interface {
	Upload(ctx context.Context, fields map[string]any, file *FileUpload) (map[string]any, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	PatchMetadata(ctx context.Context, id string, patch MetadataPatch) error
}

// HTTPClient implements Client over the store's HTTP API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a remote content API client.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Upload creates a media record. With a file the request is multipart; the
// fields travel as form values alongside the binary part. Without a file the
// fields are posted as JSON (the urls field carries the source for
// URL-sourced drafts).
func (c *HTTPClient) Upload(ctx context.Context, fields map[string]any, file *FileUpload) (map[string]any, error) {
	var body io.Reader
	contentType := "application/json"

	if file != nil {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		for key, value := range fields {
			if err := writer.WriteField(key, formValue(value)); err != nil {
				return nil, fmt.Errorf("write field %s: %w", key, err)
			}
		}
		part, err := writer.CreatePart(filePartHeader(file))
		if err != nil {
			return nil, fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, fmt.Errorf("write file part: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("close multipart writer: %w", err)
		}
		body = &buf
		contentType = writer.FormDataContentType()
	} else {
		encoded, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("marshal fields: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/media/upload", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal upload response: %w", err)
	}
	return payload, nil
}

// UpdateFields applies a partial field update to an existing media record.
func (c *HTTPClient) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	return c.patchJSON(ctx, c.baseURL+"/media/"+id, fields)
}

// PatchMetadata merge-patches free-form metadata onto a media record.
func (c *HTTPClient) PatchMetadata(ctx context.Context, id string, patch MetadataPatch) error {
	return c.patchJSON(ctx, c.baseURL+"/media/"+id+"/metadata", patch)
}

func (c *HTTPClient) patchJSON(ctx context.Context, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req)
	return err
}

func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("remote API HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// formValue renders a field value for a multipart form; composite values are
// sent as JSON.
func formValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func filePartHeader(file *FileUpload) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(file.Name)))
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)
	return h
}
