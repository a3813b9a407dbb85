package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/auth"
	"github.com/ternarybob/skillmatch/internal/models"
)

func authedRequest(method, target string, body *bytes.Buffer) *http.Request {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(auth.WithIdentity(req.Context(), "usr_1", "auth0|tester"))
}

func multipartUpload(t *testing.T, field, filename, mimeType string, content []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for k, v := range extra {
		require.NoError(t, writer.WriteField(k, v))
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestResumeUploadQueuesParse(t *testing.T) {
	resumes := newFakeResumeStorage()
	blobs := newFakeObjectStore()
	queue := newFakeQueue()
	handler := NewResumeHandler(resumes, blobs, queue, arbor.NewLogger())

	buf, contentType := multipartUpload(t, "file", "cv.pdf", "application/pdf", []byte("pdf bytes"), nil)
	req := authedRequest(http.MethodPost, "/api/v1/resumes", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.CollectionHandler(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "queued", body["status"])

	id := body["id"].(string)
	row := resumes.rows[id]
	require.NotNil(t, row)
	assert.Equal(t, models.DocumentStatusQueued, row.Status)
	assert.Equal(t, "usr_1", row.UserID)
	assert.Equal(t, "cv.pdf", row.Filename)

	// Bytes land under the generated storage key
	assert.Equal(t, []byte("pdf bytes"), blobs.objects[row.StorageKey])

	require.Len(t, queue.messages[models.QueueParseResume], 1)
	var payload models.ParseResumePayload
	require.NoError(t, json.Unmarshal(queue.messages[models.QueueParseResume][0].Payload, &payload))
	assert.Equal(t, id, payload.ResumeID)
	assert.Equal(t, row.StorageKey, payload.StorageKey)
}

func TestResumeUploadWithoutFile(t *testing.T) {
	handler := NewResumeHandler(newFakeResumeStorage(), newFakeObjectStore(), newFakeQueue(), arbor.NewLogger())

	req := authedRequest(http.MethodPost, "/api/v1/resumes", bytes.NewBufferString("not multipart"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	rec := httptest.NewRecorder()

	handler.CollectionHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeFileRequired, decodeBody(t, rec)["error"])
}

func TestResumeUploadRejectsUnsupportedMime(t *testing.T) {
	handler := NewResumeHandler(newFakeResumeStorage(), newFakeObjectStore(), newFakeQueue(), arbor.NewLogger())

	buf, contentType := multipartUpload(t, "file", "cv.png", "image/png", []byte("png"), nil)
	req := authedRequest(http.MethodPost, "/api/v1/resumes", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.CollectionHandler(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, codeUnsupportedMediaType, decodeBody(t, rec)["error"])
}

func TestResumeUploadEnqueueFailure(t *testing.T) {
	resumes := newFakeResumeStorage()
	queue := newFakeQueue()
	queue.enqueueErr = assert.AnError
	handler := NewResumeHandler(resumes, newFakeObjectStore(), queue, arbor.NewLogger())

	buf, contentType := multipartUpload(t, "file", "cv.pdf", "application/pdf", []byte("pdf"), nil)
	req := authedRequest(http.MethodPost, "/api/v1/resumes", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.CollectionHandler(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The row survives in queued for operational recovery
	require.Len(t, resumes.rows, 1)
	for _, row := range resumes.rows {
		assert.Equal(t, models.DocumentStatusQueued, row.Status)
	}
}

func TestResumeListScopesToOwnerAndTrimsBlobs(t *testing.T) {
	resumes := newFakeResumeStorage()
	resumes.rows["res_mine"] = &models.Resume{
		ID: "res_mine", UserID: "usr_1", Status: models.DocumentStatusReady,
		ParsedSummary: json.RawMessage(`{"profile":{}}`),
		Skills:        []models.CandidateSkill{{Skill: "Go"}},
	}
	resumes.rows["res_other"] = &models.Resume{ID: "res_other", UserID: "usr_2", Status: models.DocumentStatusReady}

	handler := NewResumeHandler(resumes, newFakeObjectStore(), newFakeQueue(), arbor.NewLogger())
	rec := httptest.NewRecorder()
	handler.CollectionHandler(rec, authedRequest(http.MethodGet, "/api/v1/resumes", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var listed []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "res_mine", listed[0]["id"])
	assert.NotContains(t, listed[0], "parsedData")
	assert.NotContains(t, listed[0], "skills")
}

func TestResumeListEmptyIsArray(t *testing.T) {
	handler := NewResumeHandler(newFakeResumeStorage(), newFakeObjectStore(), newFakeQueue(), arbor.NewLogger())
	rec := httptest.NewRecorder()
	handler.CollectionHandler(rec, authedRequest(http.MethodGet, "/api/v1/resumes", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestResumeGetNotOwnedIs404(t *testing.T) {
	resumes := newFakeResumeStorage()
	resumes.rows["res_other"] = &models.Resume{ID: "res_other", UserID: "usr_2", Status: models.DocumentStatusReady}

	handler := NewResumeHandler(resumes, newFakeObjectStore(), newFakeQueue(), arbor.NewLogger())
	rec := httptest.NewRecorder()
	handler.ItemHandler(rec, authedRequest(http.MethodGet, "/api/v1/resumes/res_other", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeNotFound, decodeBody(t, rec)["error"])
}

func TestResumeDelete(t *testing.T) {
	resumes := newFakeResumeStorage()
	resumes.rows["res_1"] = &models.Resume{ID: "res_1", UserID: "usr_1", Status: models.DocumentStatusReady}

	handler := NewResumeHandler(resumes, newFakeObjectStore(), newFakeQueue(), arbor.NewLogger())
	rec := httptest.NewRecorder()
	handler.ItemHandler(rec, authedRequest(http.MethodDelete, "/api/v1/resumes/res_1", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, resumes.rows["res_1"].IsDeleted)

	// Second delete sees no row
	rec = httptest.NewRecorder()
	handler.ItemHandler(rec, authedRequest(http.MethodDelete, "/api/v1/resumes/res_1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResumeItemRejectsNestedPath(t *testing.T) {
	handler := NewResumeHandler(newFakeResumeStorage(), newFakeObjectStore(), newFakeQueue(), arbor.NewLogger())
	rec := httptest.NewRecorder()
	handler.ItemHandler(rec, authedRequest(http.MethodGet, "/api/v1/resumes/res_1/extra", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
