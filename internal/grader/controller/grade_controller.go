// Package controller exposes the grading HTTP endpoints.
package controller

import (
	"context"
	"io"
	"net/http"
	"strings"

	"gradebox/internal/grader/intake"
	"gradebox/internal/grader/model"
	appErr "gradebox/pkg/errors"
	"gradebox/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultMaxUploadBytes = 32 << 20

// Grader is the service surface the controller drives.
type Grader interface {
	Grade(ctx context.Context, jobID string, sub intake.Submission) (model.Report, error)
	JobStatus(ctx context.Context, jobID string) (model.JobStatus, error)
}

// GradeController handles grading submissions.
type GradeController struct {
	grader         Grader
	maxUploadBytes int64
}

// NewGradeController creates a new controller. maxUploadBytes caps uploaded
// artifacts; zero selects the default.
func NewGradeController(grader Grader, maxUploadBytes int64) *GradeController {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &GradeController{grader: grader, maxUploadBytes: maxUploadBytes}
}

// gradeJSONRequest is the server-to-server payload shape.
type gradeJSONRequest struct {
	StudentCode  string `json:"studentCode"`
	TestFileData string `json:"testFileData"`
	TestFileName string `json:"testFileName"`
}

// Grade accepts one submission, threads it through the pipeline and always
// answers with the jobId attached, whatever the outcome.
func (h *GradeController) Grade(c *gin.Context) {
	jobID := uuid.NewString()

	sub, err := h.parseSubmission(c)
	if err != nil {
		response.Fault(c, jobID, err)
		return
	}

	rep, err := h.grader.Grade(c.Request.Context(), jobID, sub)
	if err != nil {
		response.Fault(c, jobID, err)
		return
	}

	if rep.HasError() {
		// The pipeline succeeded in producing a diagnostic; the grading
		// failed. That is a 200 with the full report, not a server fault.
		body := gin.H{"jobId": jobID}
		for k, v := range rep {
			body[k] = v
		}
		c.JSON(http.StatusOK, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobId":               jobID,
		"success":             true,
		"totalPointsAchieved": rep[model.FieldTotalPoints],
		"maxTotalPoints":      rep[model.FieldMaxPoints],
		"testResults":         rep[model.FieldTestResults],
	})
}

// GetStatus returns the stored status for one job.
func (h *GradeController) GetStatus(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		response.NotFound(c, "Job not found")
		return
	}
	status, err := h.grader.JobStatus(c.Request.Context(), jobID)
	if err != nil {
		customErr := appErr.GetError(err)
		c.JSON(customErr.Code.HTTPStatus(), gin.H{"error": customErr.Error(), "jobId": jobID})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *GradeController) parseSubmission(c *gin.Context) (intake.Submission, error) {
	contentType := c.ContentType()
	if strings.HasPrefix(contentType, "multipart/form-data") {
		return h.parseMultipart(c)
	}
	return h.parseJSON(c)
}

func (h *GradeController) parseMultipart(c *gin.Context) (intake.Submission, error) {
	studentCode := c.PostForm("studentCode")
	if strings.TrimSpace(studentCode) == "" {
		// The code may arrive as a file upload instead of a text field.
		if data, _, err := h.readUpload(c, "studentCode"); err == nil {
			studentCode = string(data)
		}
	}

	data, filename, err := h.readUpload(c, "testFile")
	if err != nil {
		return intake.Submission{}, err
	}
	return intake.Submission{
		StudentCode: studentCode,
		Artifact:    intake.Artifact{Filename: filename, Data: data},
	}, nil
}

func (h *GradeController) parseJSON(c *gin.Context) (intake.Submission, error) {
	var req gradeJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return intake.Submission{}, appErr.Wrap(err, appErr.InvalidParams).
			WithMessage("Invalid request parameters")
	}
	artifact, err := intake.DecodeArtifact(req.TestFileName, req.TestFileData)
	if err != nil {
		return intake.Submission{}, err
	}
	if int64(len(artifact.Data)) > h.maxUploadBytes {
		return intake.Submission{}, appErr.New(appErr.ArtifactTooLarge)
	}
	return intake.Submission{StudentCode: req.StudentCode, Artifact: artifact}, nil
}

func (h *GradeController) readUpload(c *gin.Context, field string) ([]byte, string, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if field == "testFile" {
			return nil, "", appErr.New(appErr.MissingTestArtifact)
		}
		return nil, "", appErr.Wrapf(err, appErr.InvalidParams, "missing upload field %s", field)
	}
	if header.Size > h.maxUploadBytes {
		return nil, "", appErr.New(appErr.ArtifactTooLarge)
	}
	file, err := header.Open()
	if err != nil {
		return nil, "", appErr.Wrapf(err, appErr.InvalidParams, "open upload %s failed", field)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return nil, "", appErr.Wrapf(err, appErr.InvalidParams, "read upload %s failed", field)
	}
	if int64(len(data)) > h.maxUploadBytes {
		return nil, "", appErr.New(appErr.ArtifactTooLarge)
	}
	return data, header.Filename, nil
}
