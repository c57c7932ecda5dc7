package controller

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"gradebox/internal/grader/intake"
	"gradebox/internal/grader/model"
	appErr "gradebox/pkg/errors"

	"github.com/gin-gonic/gin"
)

type fakeGrader struct {
	sub    intake.Submission
	report model.Report
	err    error
	status model.JobStatus
}

func (f *fakeGrader) Grade(ctx context.Context, jobID string, sub intake.Submission) (model.Report, error) {
	f.sub = sub
	return f.report, f.err
}

func (f *fakeGrader) JobStatus(ctx context.Context, jobID string) (model.JobStatus, error) {
	if f.err != nil {
		return model.JobStatus{}, f.err
	}
	return f.status, nil
}

func newRouter(grader Grader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewGradeController(grader, 0)
	router.POST("/grade", h.Grade)
	router.GET("/jobs/:id", h.GetStatus)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/grade", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response failed: %v (body %s)", err, rec.Body.String())
	}
	return body
}

func TestGradeJSONSuccess(t *testing.T) {
	t.Parallel()
	grader := &fakeGrader{report: model.Report{
		"totalPointsAchieved": 8.0,
		"maxTotalPoints":      10.0,
		"testResults":         []any{map[string]any{"name": "t1", "passed": true}},
	}}
	router := newRouter(grader)

	rec := postJSON(t, router, map[string]string{
		"studentCode":  "class Solution {}",
		"testFileData": base64.StdEncoding.EncodeToString([]byte("class SolutionTest {}")),
		"testFileName": "SolutionTest.java",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("expected success flag: %v", body)
	}
	if body["jobId"] == "" || body["jobId"] == nil {
		t.Fatalf("missing jobId: %v", body)
	}
	if body["totalPointsAchieved"] != 8.0 || body["maxTotalPoints"] != 10.0 {
		t.Fatalf("unexpected totals: %v", body)
	}
	if _, ok := body["testResults"].([]any); !ok {
		t.Fatalf("missing testResults: %v", body)
	}
	if grader.sub.Artifact.Filename != "SolutionTest.java" {
		t.Fatalf("artifact not decoded: %+v", grader.sub.Artifact)
	}
}

func TestGradeDiagnosticReportIsOK(t *testing.T) {
	t.Parallel()
	grader := &fakeGrader{report: model.Report{
		"error":               "Autograder execution failed",
		"details":             "Compilation failed: missing semicolon",
		"rawOutput":           "javac exited 1",
		"totalPointsAchieved": 0.0,
		"maxTotalPoints":      1.0,
		"testResults":         []any{},
		"feedback":            "Grading failed - please check your code and try again",
	}}
	router := newRouter(grader)

	rec := postJSON(t, router, map[string]string{
		"studentCode":  "class Solution {}",
		"testFileData": base64.StdEncoding.EncodeToString([]byte("x")),
		"testFileName": "T.java",
	})
	// A diagnostic report is a successful grading exchange, not a server fault.
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Autograder execution failed" {
		t.Fatalf("report fields not passed through: %v", body)
	}
	if body["details"] != "Compilation failed: missing semicolon" {
		t.Fatalf("report fields not passed through: %v", body)
	}
	if body["jobId"] == "" || body["jobId"] == nil {
		t.Fatalf("missing jobId: %v", body)
	}
	if _, ok := body["success"]; ok {
		t.Fatalf("diagnostic response must not claim success: %v", body)
	}
}

func TestGradeValidationFault(t *testing.T) {
	t.Parallel()
	grader := &fakeGrader{err: appErr.New(appErr.MissingStudentCode)}
	router := newRouter(grader)

	rec := postJSON(t, router, map[string]string{
		"studentCode":  "",
		"testFileData": base64.StdEncoding.EncodeToString([]byte("x")),
		"testFileName": "T.java",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Student code is required" {
		t.Fatalf("unexpected error message: %v", body)
	}
	if body["jobId"] == "" || body["jobId"] == nil {
		t.Fatalf("missing jobId: %v", body)
	}
}

func TestGradeCapacityFault(t *testing.T) {
	t.Parallel()
	grader := &fakeGrader{err: appErr.New(appErr.CapacityExhausted)}
	router := newRouter(grader)

	rec := postJSON(t, router, map[string]string{
		"studentCode":  "class Solution {}",
		"testFileData": base64.StdEncoding.EncodeToString([]byte("x")),
		"testFileName": "T.java",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Server busy" {
		t.Fatalf("unexpected error message: %v", body)
	}
}

func TestGradeInternalFaultHidesCause(t *testing.T) {
	t.Parallel()
	grader := &fakeGrader{err: appErr.Newf(appErr.WorkspaceCreateFailed, "mkdir /work: no space left on device")}
	router := newRouter(grader)

	rec := postJSON(t, router, map[string]string{
		"studentCode":  "class Solution {}",
		"testFileData": base64.StdEncoding.EncodeToString([]byte("x")),
		"testFileName": "T.java",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Autograding failed" {
		t.Fatalf("internal faults must use the fixed error string: %v", body)
	}
	if body["details"] != "mkdir /work: no space left on device" {
		t.Fatalf("missing details: %v", body)
	}
}

func TestGradeBadBase64(t *testing.T) {
	t.Parallel()
	grader := &fakeGrader{}
	router := newRouter(grader)

	rec := postJSON(t, router, map[string]string{
		"studentCode":  "class Solution {}",
		"testFileData": "!!!not base64!!!",
		"testFileName": "T.java",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Invalid test artifact encoding" {
		t.Fatalf("unexpected error message: %v", body)
	}
}

func TestGradeMultipart(t *testing.T) {
	t.Parallel()
	grader := &fakeGrader{report: model.Report{
		"totalPointsAchieved": 1.0,
		"maxTotalPoints":      1.0,
		"testResults":         []any{},
	}}
	router := newRouter(grader)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("studentCode", "class Solution {}"); err != nil {
		t.Fatalf("write field failed: %v", err)
	}
	fw, err := w.CreateFormFile("testFile", "SolutionTest.java")
	if err != nil {
		t.Fatalf("create form file failed: %v", err)
	}
	if _, err := fw.Write([]byte("class SolutionTest {}")); err != nil {
		t.Fatalf("write form file failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/grade", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	if grader.sub.StudentCode != "class Solution {}" {
		t.Fatalf("student code not parsed: %+v", grader.sub)
	}
	if grader.sub.Artifact.Filename != "SolutionTest.java" || len(grader.sub.Artifact.Data) == 0 {
		t.Fatalf("test file not parsed: %+v", grader.sub.Artifact)
	}
}

func TestGradeMultipartMissingTestFile(t *testing.T) {
	t.Parallel()
	grader := &fakeGrader{}
	router := newRouter(grader)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("studentCode", "class Solution {}"); err != nil {
		t.Fatalf("write field failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/grade", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Test file is required" {
		t.Fatalf("unexpected error message: %v", body)
	}
}

func TestGetStatus(t *testing.T) {
	t.Parallel()
	grader := &fakeGrader{status: model.JobStatus{
		JobID: "job-42",
		State: model.StateFinished,
	}}
	router := newRouter(grader)

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["job_id"] != "job-42" || body["state"] != string(model.StateFinished) {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestGetStatusNotFound(t *testing.T) {
	t.Parallel()
	grader := &fakeGrader{err: appErr.New(appErr.JobNotFound)}
	router := newRouter(grader)

	req := httptest.NewRequest(http.MethodGet, "/jobs/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["jobId"] != "missing" {
		t.Fatalf("missing jobId: %v", body)
	}
}
