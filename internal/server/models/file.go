// Package models defines server-side data models persisted in the database.
package models

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a guarded update finds the row in an
	// unexpected state.
	ErrConflict = errors.New("conflict")
)

// Upload statuses of a File.
const (
	UploadPending   = "pending"
	UploadCompleted = "completed"
)

// File describes a file announced for a course assignment. The content itself
// is stored in object storage once uploaded.
type File struct {
	ID           string
	CourseID     string
	AssignmentID string

	// Name is the display name given by the client.
	Name string
	// DeclaredSize is the size the client announced when asking for a target.
	DeclaredSize int64
	// Size is the number of bytes actually received.
	Size int64

	// StorageKey is the object-storage key of the content.
	StorageKey string
	// Checksum is the hex blake2b-256 of the content.
	Checksum string

	// UploadStatus is UploadPending until the content is stored.
	UploadStatus string

	CreatedAt  time.Time
	UploadedAt *time.Time
}

func (f *File) IsUploaded() bool {
	return f.UploadStatus == UploadCompleted
}
