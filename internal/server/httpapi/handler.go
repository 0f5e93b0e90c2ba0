package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophsubmit/internal/server/models"
	"github.com/dmitrijs2005/gophsubmit/internal/server/services"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// submissionTypeUpload is the only submission type accepted.
const submissionTypeUpload = "online_upload"

// maxFieldSize bounds non-file multipart fields.
const maxFieldSize = 8 << 10

type fileDescriptor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type targetsRequest struct {
	Files []fileDescriptor `json:"files"`
}

type uploadTarget struct {
	URL    string            `json:"upload_url"`
	Params map[string]string `json:"upload_params"`
}

type targetsResponse struct {
	Targets map[string]uploadTarget `json:"targets"`
}

type fileResponse struct {
	ID           string     `json:"id"`
	DisplayName  string     `json:"display_name"`
	Size         int64      `json:"size"`
	Checksum     string     `json:"checksum,omitempty"`
	UploadStatus string     `json:"upload_status,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	UploadedAt   *time.Time `json:"uploaded_at,omitempty"`
	URL          string     `json:"url,omitempty"`
}

type submissionRequest struct {
	Submission struct {
		SubmissionType string   `json:"submission_type"`
		FileIDs        []string `json:"file_ids"`
		Comment        string   `json:"comment"`
	} `json:"submission"`
}

type submissionResponse struct {
	ID           int64     `json:"id"`
	CourseID     string    `json:"course_id"`
	AssignmentID string    `json:"assignment_id"`
	FileIDs      []string  `json:"file_ids"`
	Comment      string    `json:"comment,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

func newSubmissionResponse(s *models.Submission) submissionResponse {
	return submissionResponse{
		ID:           s.ID,
		CourseID:     s.CourseID,
		AssignmentID: s.AssignmentID,
		FileIDs:      s.FileIDs,
		Comment:      s.Comment,
		SubmittedAt:  s.SubmittedAt,
	}
}

// fileIDParam returns the :id path parameter. Ids are UUIDs; anything else
// cannot name a file.
func fileIDParam(c echo.Context) (string, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", errFileNotFound
	}
	return id, nil
}

func (s *HTTPServer) requestTargets(c echo.Context) error {
	var req targetsRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	files := make([]services.FileRequest, 0, len(req.Files))
	for _, f := range req.Files {
		files = append(files, services.FileRequest{ID: f.ID, Name: f.Name, Size: f.Size})
	}

	targets, err := s.service.RequestTargets(c.Request().Context(), c.Param("course"), c.Param("assignment"), files)
	if err != nil {
		return err
	}

	resp := targetsResponse{Targets: make(map[string]uploadTarget, len(targets))}
	for id, t := range targets {
		resp.Targets[id] = uploadTarget{URL: t.URL, Params: t.Params}
	}
	return c.JSON(http.StatusOK, resp)
}

// uploadContent reads a multipart form whose fields precede the "file"
// part and streams the part to the service without buffering the form.
func (s *HTTPServer) uploadContent(c echo.Context) error {
	id, err := fileIDParam(c)
	if err != nil {
		return err
	}

	mr, err := c.Request().MultipartReader()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expected a multipart form")
	}

	var token string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return echo.NewHTTPError(http.StatusBadRequest, "missing file part")
		}
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed multipart form").SetInternal(err)
		}

		switch part.FormName() {
		case "token":
			b, err := io.ReadAll(io.LimitReader(part, maxFieldSize))
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "malformed token field").SetInternal(err)
			}
			token = string(b)
		case "file":
			if token == "" {
				return errMissingToken
			}
			f, err := s.service.Upload(c.Request().Context(), id, token, part, part.Header.Get(echo.HeaderContentType))
			if err != nil {
				return err
			}
			s.logger.Info(c.Request().Context(), "File uploaded", "id", f.ID, "size", f.Size)
			return c.JSON(http.StatusCreated, fileResponse{
				ID:          f.ID,
				DisplayName: f.Name,
				Size:        f.Size,
				Checksum:    f.Checksum,
			})
		}
	}
}

func (s *HTTPServer) createSubmission(c echo.Context) error {
	var req submissionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Submission.SubmissionType != submissionTypeUpload {
		return echo.NewHTTPError(http.StatusBadRequest, "submission_type must be "+submissionTypeUpload)
	}

	for _, id := range req.Submission.FileIDs {
		if _, err := uuid.Parse(id); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid file id "+strconv.Quote(id))
		}
	}

	sub, err := s.service.CreateSubmission(c.Request().Context(), c.Param("course"), c.Param("assignment"),
		req.Submission.Comment, req.Submission.FileIDs)
	if err != nil {
		return err
	}

	s.logger.Info(c.Request().Context(), "Submission created", "id", sub.ID, "files", len(sub.FileIDs))
	return c.JSON(http.StatusCreated, newSubmissionResponse(sub))
}

func (s *HTTPServer) getSubmission(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return errSubmissionNotFound
	}

	sub, err := s.service.GetSubmission(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSubmissionResponse(sub))
}

func (s *HTTPServer) getFile(c echo.Context) error {
	id, err := fileIDParam(c)
	if err != nil {
		return err
	}

	info, err := s.service.GetFile(c.Request().Context(), id)
	if err != nil {
		return err
	}

	size := info.Size
	if !info.IsUploaded() {
		size = info.DeclaredSize
	}
	created := info.CreatedAt
	return c.JSON(http.StatusOK, fileResponse{
		ID:           info.ID,
		DisplayName:  info.Name,
		Size:         size,
		Checksum:     info.Checksum,
		UploadStatus: info.UploadStatus,
		CreatedAt:    &created,
		UploadedAt:   info.UploadedAt,
		URL:          info.DownloadURL,
	})
}
