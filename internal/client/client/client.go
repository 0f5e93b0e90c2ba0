package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
)

// Client is the remote API consumed by the submission pipeline.
type Client interface {
	// RequestUploadTargets asks where each file of a submission has to be
	// uploaded. The result is keyed by FileDescriptor.ID.
	RequestUploadTargets(ctx context.Context, req TargetsRequest) (map[string]models.UploadTarget, error)

	// NewUploadRequest builds the upload request for one local file. The
	// request's ContentLength is always set.
	NewUploadRequest(ctx context.Context, target models.UploadTarget, path string) (*http.Request, error)

	// CreateSubmission submits already uploaded files, in order.
	CreateSubmission(ctx context.Context, req CreateSubmissionRequest) (*SubmissionResult, error)
}

// FileDescriptor describes one file the client is about to upload.
type FileDescriptor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type TargetsRequest struct {
	CourseID     string
	AssignmentID string
	Files        []FileDescriptor
}

type CreateSubmissionRequest struct {
	CourseID     string
	AssignmentID string
	FileIDs      []string
	Comment      string
}

type SubmissionResult struct {
	ID          FlexID    `json:"id"`
	FileIDs     []FlexID  `json:"file_ids"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// FlexID is an identifier the server may encode as a JSON string or number.
type FlexID string

func (id *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("%w: empty id", ErrInvalidResponse)
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: id is neither string nor number", ErrInvalidResponse)
	}
	*id = FlexID(n.String())
	return nil
}

// DecodeFileID extracts the remote file id from an upload response body.
// It fails until the body holds a complete JSON object with a non-empty id.
func DecodeFileID(body []byte) (string, error) {
	var resp struct {
		ID *FlexID `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.ID == nil || *resp.ID == "" {
		return "", fmt.Errorf("%w: missing file id", ErrInvalidResponse)
	}
	return string(*resp.ID), nil
}

// mapStatus converts a non-2xx HTTP status into a sentinel error.
func mapStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return ErrUnavailable
	default:
		return ErrBadRequest
	}
}
