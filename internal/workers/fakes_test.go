package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/skillmatch/internal/models"
)

// In-memory storage fakes shared by the worker tests. Status writes follow
// the same compare-and-set contract as the Postgres storages.

type fakeResumeStorage struct {
	rows    map[string]*models.Resume
	subject string
	failOn  string
}

func newFakeResumeStorage() *fakeResumeStorage {
	return &fakeResumeStorage{rows: make(map[string]*models.Resume), subject: "auth0|tester"}
}

func (f *fakeResumeStorage) Create(ctx context.Context, resume *models.Resume) error {
	if _, ok := f.rows[resume.ID]; ok {
		return nil
	}
	f.rows[resume.ID] = resume
	return nil
}

func (f *fakeResumeStorage) UpdateStatus(ctx context.Context, id string, from, to models.DocumentStatus, parsedSummary json.RawMessage, errMsg string) (bool, error) {
	if f.failOn == "UpdateStatus" {
		return false, errors.New("storage down")
	}
	row, ok := f.rows[id]
	if !ok || row.IsDeleted || row.Status != from {
		return false, nil
	}
	row.Status = to
	if parsedSummary != nil {
		row.ParsedSummary = parsedSummary
	}
	row.ErrorMessage = errMsg
	return true, nil
}

func (f *fakeResumeStorage) GetForUser(ctx context.Context, id, userID string) (*models.Resume, error) {
	row, ok := f.rows[id]
	if !ok || row.IsDeleted || row.UserID != userID {
		return nil, nil
	}
	return row, nil
}

func (f *fakeResumeStorage) ListForUser(ctx context.Context, userID string) ([]*models.Resume, error) {
	var out []*models.Resume
	for _, row := range f.rows {
		if row.UserID == userID && !row.IsDeleted {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeResumeStorage) SoftDelete(ctx context.Context, id, userID string) (bool, error) {
	row, ok := f.rows[id]
	if !ok || row.IsDeleted || row.UserID != userID {
		return false, nil
	}
	row.IsDeleted = true
	return true, nil
}

func (f *fakeResumeStorage) ReplaceSkills(ctx context.Context, resumeID string, skills []models.CandidateSkill) error {
	if f.failOn == "ReplaceSkills" {
		return errors.New("storage down")
	}
	row, ok := f.rows[resumeID]
	if !ok {
		return fmt.Errorf("resume %s not found", resumeID)
	}
	row.Skills = skills
	return nil
}

func (f *fakeResumeStorage) GetWithSubject(ctx context.Context, id string) (*models.Resume, string, error) {
	row, ok := f.rows[id]
	if !ok || row.IsDeleted {
		return nil, "", nil
	}
	return row, f.subject, nil
}

type fakeJobStorage struct {
	rows map[string]*models.Job
}

func newFakeJobStorage() *fakeJobStorage {
	return &fakeJobStorage{rows: make(map[string]*models.Job)}
}

func (f *fakeJobStorage) Create(ctx context.Context, job *models.Job) error {
	f.rows[job.ID] = job
	return nil
}

func (f *fakeJobStorage) UpdateStatus(ctx context.Context, id string, from, to models.DocumentStatus, parsedSummary json.RawMessage, errMsg string) (bool, error) {
	row, ok := f.rows[id]
	if !ok || row.IsDeleted || row.Status != from {
		return false, nil
	}
	row.Status = to
	if parsedSummary != nil {
		row.ParsedSummary = parsedSummary
	}
	row.ErrorMessage = errMsg
	return true, nil
}

func (f *fakeJobStorage) GetForUser(ctx context.Context, id, userID string) (*models.Job, error) {
	row, ok := f.rows[id]
	if !ok || row.IsDeleted || row.UserID != userID {
		return nil, nil
	}
	return row, nil
}

func (f *fakeJobStorage) ListForUser(ctx context.Context, userID string) ([]*models.Job, error) {
	var out []*models.Job
	for _, row := range f.rows {
		if row.UserID == userID && !row.IsDeleted {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeJobStorage) SoftDelete(ctx context.Context, id, userID string) (bool, error) {
	row, ok := f.rows[id]
	if !ok || row.IsDeleted || row.UserID != userID {
		return false, nil
	}
	row.IsDeleted = true
	return true, nil
}

func (f *fakeJobStorage) ReplaceChildren(ctx context.Context, jobID string, requirements []models.Requirement, softSkills []models.SoftSkill) error {
	row, ok := f.rows[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	row.Requirements = requirements
	row.SoftSkills = softSkills
	return nil
}

func (f *fakeJobStorage) GetWithSubject(ctx context.Context, id string) (*models.Job, string, error) {
	row, ok := f.rows[id]
	if !ok || row.IsDeleted {
		return nil, "", nil
	}
	return row, "auth0|tester", nil
}

type fakeMatchStorage struct {
	rows    map[string]*models.MatchJob
	results map[string]*models.MatchResult
}

func newFakeMatchStorage() *fakeMatchStorage {
	return &fakeMatchStorage{
		rows:    make(map[string]*models.MatchJob),
		results: make(map[string]*models.MatchResult),
	}
}

func (f *fakeMatchStorage) Create(ctx context.Context, job *models.MatchJob) error {
	f.rows[job.ID] = job
	return nil
}

func (f *fakeMatchStorage) UpdateStatus(ctx context.Context, id string, from, to models.MatchStatus, errMsg string) (bool, error) {
	row, ok := f.rows[id]
	if !ok || row.Status != from {
		return false, nil
	}
	row.Status = to
	row.ErrorMessage = errMsg
	return true, nil
}

func (f *fakeMatchStorage) Complete(ctx context.Context, matchJobID string, result *models.MatchResult) (bool, error) {
	row, ok := f.rows[matchJobID]
	if !ok || row.Status != models.MatchStatusRunning {
		return false, nil
	}
	f.results[result.ID] = result
	row.Status = models.MatchStatusCompleted
	row.ResultID = result.ID
	row.ErrorMessage = ""
	return true, nil
}

func (f *fakeMatchStorage) GetForUser(ctx context.Context, id, userID string) (*models.MatchJob, error) {
	row, ok := f.rows[id]
	if !ok || row.UserID != userID {
		return nil, nil
	}
	return row, nil
}

func (f *fakeMatchStorage) ListForUser(ctx context.Context, userID string) ([]*models.MatchJob, error) {
	var out []*models.MatchJob
	for _, row := range f.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeMatchStorage) GetResultForUser(ctx context.Context, resultID, userID string) (*models.MatchResult, error) {
	result, ok := f.results[resultID]
	if !ok || result.UserID != userID {
		return nil, nil
	}
	return result, nil
}

func (f *fakeMatchStorage) GetWithSubject(ctx context.Context, id string) (*models.MatchJob, string, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, "", nil
	}
	return row, "auth0|tester", nil
}

type fakeObjectStore struct {
	objects map[string][]byte
	getErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

type fakeNLP struct {
	resumeAnalysis *models.NLPResumeAnalysis
	jobAnalysis    *models.NLPJobAnalysis
	matchResponse  *models.NLPMatchResponse
	err            error

	lastParseResume *models.NLPParseResumeRequest
	lastParseJob    *models.NLPParseJobRequest
	lastMatch       *models.NLPMatchRequest
}

func (f *fakeNLP) ParseResume(ctx context.Context, req models.NLPParseResumeRequest) (*models.NLPResumeAnalysis, error) {
	f.lastParseResume = &req
	if f.err != nil {
		return nil, f.err
	}
	return f.resumeAnalysis, nil
}

func (f *fakeNLP) ParseJob(ctx context.Context, req models.NLPParseJobRequest) (*models.NLPJobAnalysis, error) {
	f.lastParseJob = &req
	if f.err != nil {
		return nil, f.err
	}
	return f.jobAnalysis, nil
}

func (f *fakeNLP) Match(ctx context.Context, req models.NLPMatchRequest) (*models.NLPMatchResponse, error) {
	f.lastMatch = &req
	if f.err != nil {
		return nil, f.err
	}
	return f.matchResponse, nil
}

func mustMessage(t *testing.T, queue string, payload interface{}) *models.QueueMessage {
	t.Helper()
	msg, err := models.NewQueueMessage(queue, payload)
	require.NoError(t, err)
	return &msg
}
