// Package models defines the client-side records of a file submission.
package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by the store when a submission or file item record
// does not exist (never created, or deleted while an upload was in flight).
var ErrNotFound = errors.New("record not found")

// SubmissionState is the lifecycle state of a Submission.
//
//	pending_targets -> uploading -> submitting -> completed | failed
//
// A submission without files goes pending_targets -> submitting directly.
type SubmissionState string

const (
	StatePendingTargets SubmissionState = "pending_targets"
	StateUploading      SubmissionState = "uploading"
	StateSubmitting     SubmissionState = "submitting"
	StateCompleted      SubmissionState = "completed"
	StateFailed         SubmissionState = "failed"
)

// IsTerminal reports whether the state never changes again.
func (s SubmissionState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Submission is one user attempt to submit a set of files to an assignment.
type Submission struct {
	ID           string
	CourseID     string
	AssignmentID string
	Comment      string
	State        SubmissionState

	// Error holds the terminal failure description when State is failed.
	Error string

	// SubmitTriggered is flipped exactly once, by whoever wins the right to
	// call the create-submission endpoint.
	SubmitTriggered bool

	// RemoteID is the id returned by the create-submission endpoint.
	RemoteID string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Items are ordered by Position (insertion order).
	Items []*FileItem
}

// UploadTarget is where and how one file must be uploaded.
type UploadTarget struct {
	URL    string            `json:"upload_url"`
	Params map[string]string `json:"upload_params"`
}

// FileItem is one file within a submission, tracked independently through upload.
type FileItem struct {
	ID           string
	SubmissionID string
	Position     int
	LocalPath    string
	FileName     string
	Size         int64

	// Target is nil until requested from the remote service.
	Target *UploadTarget

	BytesUploaded int64
	BytesToUpload int64

	// APIID and UploadError are mutually exclusive; at most one is ever set.
	APIID       *string
	UploadError *string

	// TaskID identifies the upload task started for this item, empty when
	// no upload was started yet.
	TaskID string
}

// IsFinished reports whether the item reached a result, success or failure.
func (f *FileItem) IsFinished() bool {
	return f.APIID != nil || f.UploadError != nil
}

// IsSucceeded reports whether the item was uploaded and has a remote id.
func (f *FileItem) IsSucceeded() bool {
	return f.APIID != nil
}

// IsUploading reports whether an upload task was started and has not finished.
func (f *FileItem) IsUploading() bool {
	return f.TaskID != "" && !f.IsFinished()
}

// IsReadyToUpload reports whether UploadStarter may start a task for the item.
func (f *FileItem) IsReadyToUpload() bool {
	return f.Target != nil && f.TaskID == "" && !f.IsFinished()
}

// Progress returns the upload completion ratio in [0, 1].
func (f *FileItem) Progress() float64 {
	if f.BytesToUpload <= 0 {
		if f.IsSucceeded() {
			return 1
		}
		return 0
	}
	p := float64(f.BytesUploaded) / float64(f.BytesToUpload)
	if p > 1 {
		return 1
	}
	return p
}
