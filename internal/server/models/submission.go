package models

import "time"

// Submission is a set of uploaded files submitted to an assignment.
type Submission struct {
	ID           int64
	CourseID     string
	AssignmentID string
	Comment      string
	// FileIDs keeps the order given by the client.
	FileIDs     []string
	SubmittedAt time.Time
}
