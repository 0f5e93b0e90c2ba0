package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
)

// maxErrorBody bounds how much of an error response is kept for messages.
const maxErrorBody = 1 << 10

type HTTPClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewHTTPClient(baseURL, accessToken string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) RequestUploadTargets(ctx context.Context, req TargetsRequest) (map[string]models.UploadTarget, error) {
	body := struct {
		Files []FileDescriptor `json:"files"`
	}{Files: req.Files}
	if body.Files == nil {
		body.Files = []FileDescriptor{}
	}

	var resp struct {
		Targets map[string]models.UploadTarget `json:"targets"`
	}
	path := submissionsPath(req.CourseID, req.AssignmentID) + "/self/files"
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	for _, f := range req.Files {
		t, ok := resp.Targets[f.ID]
		if !ok || t.URL == "" {
			return nil, fmt.Errorf("%w: no upload target for file %s", ErrInvalidResponse, f.ID)
		}
	}
	return resp.Targets, nil
}

func (c *HTTPClient) NewUploadRequest(ctx context.Context, target models.UploadTarget, path string) (*http.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(target.Params))
	for k := range target.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, target.Params[k]); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	if _, err := mw.CreateFormFile("file", filepath.Base(path)); err != nil {
		_ = f.Close()
		return nil, err
	}
	preamble := append([]byte(nil), buf.Bytes()...)

	buf.Reset()
	if err := mw.Close(); err != nil {
		_ = f.Close()
		return nil, err
	}
	epilogue := append([]byte(nil), buf.Bytes()...)

	body := &fileBody{
		Reader: io.MultiReader(bytes.NewReader(preamble), io.LimitReader(f, st.Size()), bytes.NewReader(epilogue)),
		file:   f,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, body)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	req.ContentLength = int64(len(preamble)) + st.Size() + int64(len(epilogue))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if strings.HasPrefix(target.URL, c.baseURL+"/") {
		c.authorize(req)
	}

	return req, nil
}

func (c *HTTPClient) CreateSubmission(ctx context.Context, req CreateSubmissionRequest) (*SubmissionResult, error) {
	ids := req.FileIDs
	if ids == nil {
		ids = []string{}
	}

	type submission struct {
		SubmissionType string   `json:"submission_type"`
		FileIDs        []string `json:"file_ids"`
		Comment        string   `json:"comment,omitempty"`
	}
	body := struct {
		Submission submission `json:"submission"`
	}{Submission: submission{SubmissionType: "online_upload", FileIDs: ids, Comment: req.Comment}}

	var resp SubmissionResult
	if err := c.doJSON(ctx, http.MethodPost, submissionsPath(req.CourseID, req.AssignmentID), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s; body: %s", mapStatus(resp.StatusCode), resp.Status, strings.TrimSpace(string(b)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
}

func submissionsPath(course, assignment string) string {
	return "/api/v1/courses/" + url.PathEscape(course) + "/assignments/" + url.PathEscape(assignment) + "/submissions"
}

// fileBody closes the underlying file once the transport is done with the body.
type fileBody struct {
	io.Reader
	file *os.File
}

func (b *fileBody) Close() error {
	return b.file.Close()
}
