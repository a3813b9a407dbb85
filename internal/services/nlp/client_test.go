package nlp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/common"
	"github.com/ternarybob/skillmatch/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(common.NLPConfig{BaseURL: srv.URL, RequestTimeout: "5s"}, arbor.NewLogger()).(*Client)
}

func TestParseResume(t *testing.T) {
	var gotPath string
	var gotBody models.NLPParseResumeRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(models.NLPResumeAnalysis{
			Skills: []models.NLPSkill{{Skill: "Go"}},
		})
	})

	analysis, err := client.ParseResume(context.Background(), models.NLPParseResumeRequest{
		Filename:   "cv.pdf",
		MimeType:   "application/pdf",
		ContentB64: "aGVsbG8=",
	})
	require.NoError(t, err)

	assert.Equal(t, "/parse/resume", gotPath)
	assert.Equal(t, "cv.pdf", gotBody.Filename)
	require.Len(t, analysis.Skills, 1)
	assert.Equal(t, "Go", analysis.Skills[0].Skill)
}

func TestParseJob(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/parse/job", r.URL.Path)
		json.NewEncoder(w).Encode(models.NLPJobAnalysis{
			Requirements: []models.NLPRequirement{{Skill: "Go"}},
		})
	})

	analysis, err := client.ParseJob(context.Background(), models.NLPParseJobRequest{Text: "We need Go"})
	require.NoError(t, err)
	require.Len(t, analysis.Requirements, 1)
}

func TestMatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/match", r.URL.Path)
		w.Write([]byte(`{"score":0.8,"summary":{"details":[]}}`))
	})

	resp, err := client.Match(context.Background(), models.NLPMatchRequest{})
	require.NoError(t, err)
	require.NotNil(t, resp.Score)
	assert.Equal(t, 0.8, *resp.Score)
}

func TestUpstreamErrorCarriesStatusAndBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"detail":"model loading"}`))
	})

	_, err := client.ParseResume(context.Background(), models.NLPParseResumeRequest{})
	require.Error(t, err)

	var nlpErr *Error
	require.ErrorAs(t, err, &nlpErr)
	assert.Equal(t, http.StatusBadGateway, nlpErr.StatusCode)
	assert.Equal(t, "/parse/resume", nlpErr.Endpoint)
	assert.Contains(t, nlpErr.Body, "model loading")
}

func TestMalformedResponseIsAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{broken`))
	})

	_, err := client.Match(context.Background(), models.NLPMatchRequest{})
	assert.Error(t, err)
}

func TestContextCancellationAborts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ParseJob(ctx, models.NLPParseJobRequest{Text: "x"})
	assert.Error(t, err)
}
