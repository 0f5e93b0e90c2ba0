package filesubmission

import "errors"

var (
	// ErrTargetsUnavailable means upload targets could not be fetched; no
	// upload was started.
	ErrTargetsUnavailable = errors.New("upload targets unavailable")

	// ErrItemNotFound means the file item record vanished while its upload
	// was in flight.
	ErrItemNotFound = errors.New("upload item not found")

	// ErrIncompleteUpload means not every file of the submission was uploaded.
	ErrIncompleteUpload = errors.New("incomplete upload")

	// ErrSubmitFailed means the final create-submission call failed.
	ErrSubmitFailed = errors.New("submit failed")

	// ErrInvalidState means the submission is not in a state that allows the
	// operation.
	ErrInvalidState = errors.New("invalid submission state")
)

const unknownUploadFailure = "Upload failed due to unknown reason."

// UploadError is the failure of a single file upload.
type UploadError struct {
	Reason string
}

func (e *UploadError) Error() string {
	return "upload failed: " + e.Reason
}
