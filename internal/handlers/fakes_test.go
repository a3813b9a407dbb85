package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/skillmatch/internal/models"
)

// In-memory fakes for the handler tests

type fakeQueue struct {
	messages   map[string][]models.QueueMessage
	enqueueErr error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{messages: make(map[string][]models.QueueMessage)}
}

func (f *fakeQueue) Enqueue(ctx context.Context, queue string, msg models.QueueMessage) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.messages[queue] = append(f.messages[queue], msg)
	return nil
}

func (f *fakeQueue) Receive(ctx context.Context, queue string) (*models.QueueMessage, func() error, error) {
	return nil, nil, errors.New("not implemented")
}

func (f *fakeQueue) Extend(ctx context.Context, queue, messageID string, duration time.Duration) error {
	return nil
}

func (f *fakeQueue) Close() error { return nil }

type fakeObjectStore struct {
	objects map[string][]byte
	putErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

type fakeResumeStorage struct {
	rows map[string]*models.Resume
}

func newFakeResumeStorage() *fakeResumeStorage {
	return &fakeResumeStorage{rows: make(map[string]*models.Resume)}
}

func (f *fakeResumeStorage) Create(ctx context.Context, resume *models.Resume) error {
	if _, ok := f.rows[resume.ID]; ok {
		return nil
	}
	resume.CreatedAt = time.Now()
	resume.UpdatedAt = resume.CreatedAt
	f.rows[resume.ID] = resume
	return nil
}

func (f *fakeResumeStorage) UpdateStatus(ctx context.Context, id string, from, to models.DocumentStatus, parsedSummary json.RawMessage, errMsg string) (bool, error) {
	row, ok := f.rows[id]
	if !ok || row.IsDeleted || row.Status != from {
		return false, nil
	}
	row.Status = to
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
	return nil
}

func (f *fakeResumeStorage) GetWithSubject(ctx context.Context, id string) (*models.Resume, string, error) {
	row, ok := f.rows[id]
	if !ok || row.IsDeleted {
		return nil, "", nil
	}
	return row, "auth0|tester", nil
}

type fakeJobStorage struct {
	rows map[string]*models.Job
}

func newFakeJobStorage() *fakeJobStorage {
	return &fakeJobStorage{rows: make(map[string]*models.Job)}
}

func (f *fakeJobStorage) Create(ctx context.Context, job *models.Job) error {
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	f.rows[job.ID] = job
	return nil
}

func (f *fakeJobStorage) UpdateStatus(ctx context.Context, id string, from, to models.DocumentStatus, parsedSummary json.RawMessage, errMsg string) (bool, error) {
	row, ok := f.rows[id]
	if !ok || row.IsDeleted || row.Status != from {
		return false, nil
	}
	row.Status = to
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
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	f.rows[job.ID] = job
	return nil
}

func (f *fakeMatchStorage) UpdateStatus(ctx context.Context, id string, from, to models.MatchStatus, errMsg string) (bool, error) {
	row, ok := f.rows[id]
	if !ok || row.Status != from {
		return false, nil
	}
	row.Status = to
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

type fakeUserStorage struct {
	usage *models.Usage
	count int
	limit int
}

func (f *fakeUserStorage) EnsureUser(ctx context.Context, externalSubject, email string) (*models.User, error) {
	return &models.User{ID: "usr_1", ExternalSubject: externalSubject}, nil
}

func (f *fakeUserStorage) GetBySubject(ctx context.Context, externalSubject string) (*models.User, error) {
	return nil, nil
}

func (f *fakeUserStorage) GetByID(ctx context.Context, id string) (*models.User, error) {
	return nil, nil
}

func (f *fakeUserStorage) IncrementAnnualUsage(ctx context.Context, userID string) (int, int, error) {
	f.count++
	return f.count, f.limit, nil
}

func (f *fakeUserStorage) Usage(ctx context.Context, userID string) (*models.Usage, error) {
	if f.usage != nil {
		return f.usage, nil
	}
	remaining := f.limit - f.count
	if remaining < 0 {
		remaining = 0
	}
	return &models.Usage{AnnualLimit: f.limit, AnnualUsageCount: f.count, Remaining: remaining}, nil
}
