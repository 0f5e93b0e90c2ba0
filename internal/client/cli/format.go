package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
	"github.com/dustin/go-humanize"
)

// nowFn is a test seam for relative times.
var nowFn = time.Now

// formatSubmission is the list line of a submission.
func formatSubmission(s *models.Submission) string {
	return fmt.Sprintf("%s  %s", submissionHeader(s), humanize.RelTime(s.UpdatedAt, nowFn(), "ago", "from now"))
}

func submissionHeader(s *models.Submission) string {
	line := fmt.Sprintf("%s  %s/%s  %-15s", s.ID, s.CourseID, s.AssignmentID, s.State)
	if s.Error != "" {
		line += "  (" + s.Error + ")"
	}
	return line
}

func formatItem(item *models.FileItem) string {
	return fmt.Sprintf("  %2d. %-24s %9s / %-9s %4.0f%%  %s",
		item.Position+1,
		item.FileName,
		humanize.IBytes(uint64(itemSent(item))),
		humanize.IBytes(uint64(item.Size)),
		item.Progress()*100,
		itemStatus(item),
	)
}

// itemSent scales the transferred request bytes, which include multipart
// framing, to the file size.
func itemSent(item *models.FileItem) int64 {
	return int64(item.Progress() * float64(item.Size))
}

func itemStatus(item *models.FileItem) string {
	switch {
	case item.IsSucceeded():
		return "uploaded [" + *item.APIID + "]"
	case item.UploadError != nil:
		return "failed: " + *item.UploadError
	case item.IsUploading():
		return "uploading"
	case item.Target != nil:
		return "queued"
	default:
		return "waiting"
	}
}

// renderSubmission returns the submission header followed by one line per
// file and a totals line.
func renderSubmission(s *models.Submission) []string {
	lines := make([]string, 0, len(s.Items)+3)
	lines = append(lines, submissionHeader(s))
	if s.Comment != "" {
		lines = append(lines, "  comment: "+s.Comment)
	}

	var sent, total int64
	for _, item := range s.Items {
		lines = append(lines, formatItem(item))
		sent += itemSent(item)
		total += item.Size
	}
	lines = append(lines, fmt.Sprintf("  %s file(s), %s of %s sent",
		humanize.Comma(int64(len(s.Items))), humanize.IBytes(uint64(sent)), humanize.IBytes(uint64(total))))
	if s.RemoteID != "" {
		lines = append(lines, "  remote submission: "+s.RemoteID)
	}
	return lines
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
