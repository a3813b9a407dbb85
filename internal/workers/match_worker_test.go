package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/models"
)

type matchFixture struct {
	matches *fakeMatchStorage
	resumes *fakeResumeStorage
	jobs    *fakeJobStorage
	nlp     *fakeNLP
	worker  *MatchWorker
}

func newMatchFixture() *matchFixture {
	f := &matchFixture{
		matches: newFakeMatchStorage(),
		resumes: newFakeResumeStorage(),
		jobs:    newFakeJobStorage(),
		nlp: &fakeNLP{
			matchResponse: &models.NLPMatchResponse{
				Score: floatPtr(0.75),
				Summary: models.NLPMatchSummary{
					Details: []models.NLPMatchDetail{
						{Requirement: "Go", Similarity: 0.9, MatchedSkill: "Go"},
					},
				},
			},
		},
	}

	f.matches.rows["mat_1"] = &models.MatchJob{
		ID:       "mat_1",
		UserID:   "usr_1",
		ResumeID: "res_1",
		JobID:    "job_1",
		Status:   models.MatchStatusQueued,
	}
	f.resumes.rows["res_1"] = &models.Resume{
		ID:     "res_1",
		UserID: "usr_1",
		Status: models.DocumentStatusReady,
		Skills: []models.CandidateSkill{{Skill: "Go", ExperienceYears: floatPtr(4)}},
	}
	f.jobs.rows["job_1"] = &models.Job{
		ID:     "job_1",
		UserID: "usr_1",
		Status: models.DocumentStatusReady,
		Requirements: []models.Requirement{
			{Skill: "Go", Importance: 0.9, Inferred: false},
		},
	}

	f.worker = NewMatchWorker(f.matches, f.resumes, f.jobs, f.nlp, arbor.NewLogger())
	return f
}

func matchPayload() models.ComputeMatchPayload {
	return models.ComputeMatchPayload{
		MatchJobID: "mat_1",
		ResumeID:   "res_1",
		JobID:      "job_1",
		UserID:     "usr_1",
	}
}

func TestMatchWorkerSuccess(t *testing.T) {
	f := newMatchFixture()

	require.NoError(t, f.worker.Handle(context.Background(), mustMessage(t, models.QueueComputeMatch, matchPayload())))

	row := f.matches.rows["mat_1"]
	assert.Equal(t, models.MatchStatusCompleted, row.Status)
	require.NotEmpty(t, row.ResultID)

	result := f.matches.results[row.ResultID]
	require.NotNil(t, result)
	assert.Equal(t, 0.75, result.Score)
	assert.Equal(t, "usr_1", result.UserID)

	var summary MatchSummary
	require.NoError(t, json.Unmarshal(result.Summary, &summary))
	assert.Equal(t, 0.75, summary.OverallMatchScore)
	assert.Equal(t, []string{"Go"}, summary.Candidate.Skills)

	// Request carries the normalized skills and requirements
	require.NotNil(t, f.nlp.lastMatch)
	assert.Equal(t, "Go", f.nlp.lastMatch.CandidateSkills[0].Skill)
	assert.Equal(t, 0.9, f.nlp.lastMatch.Requirements[0].Importance)
}

func TestMatchWorkerMissingResumeFails(t *testing.T) {
	f := newMatchFixture()
	f.resumes.rows["res_1"].IsDeleted = true

	err := f.worker.Handle(context.Background(), mustMessage(t, models.QueueComputeMatch, matchPayload()))

	require.Error(t, err)
	assert.Equal(t, models.MatchStatusFailed, f.matches.rows["mat_1"].Status)
	assert.Contains(t, f.matches.rows["mat_1"].ErrorMessage, "res_1")
}

func TestMatchWorkerMissingJobFails(t *testing.T) {
	f := newMatchFixture()
	delete(f.jobs.rows, "job_1")

	err := f.worker.Handle(context.Background(), mustMessage(t, models.QueueComputeMatch, matchPayload()))

	require.Error(t, err)
	assert.Equal(t, models.MatchStatusFailed, f.matches.rows["mat_1"].Status)
}

func TestMatchWorkerNLPFailureFails(t *testing.T) {
	f := newMatchFixture()
	f.nlp.err = errors.New("matcher unavailable")

	err := f.worker.Handle(context.Background(), mustMessage(t, models.QueueComputeMatch, matchPayload()))

	require.Error(t, err)
	assert.Equal(t, models.MatchStatusFailed, f.matches.rows["mat_1"].Status)
	assert.Contains(t, f.matches.rows["mat_1"].ErrorMessage, "matcher unavailable")
}

func TestMatchWorkerDropsMalformedPayload(t *testing.T) {
	f := newMatchFixture()
	msg := &models.QueueMessage{Queue: models.QueueComputeMatch, Payload: json.RawMessage(`not json`)}
	assert.NoError(t, f.worker.Handle(context.Background(), msg))
	assert.Equal(t, models.MatchStatusQueued, f.matches.rows["mat_1"].Status)
}

func TestMatchWorkerDropsSettledJob(t *testing.T) {
	f := newMatchFixture()
	f.matches.rows["mat_1"].Status = models.MatchStatusFailed

	require.NoError(t, f.worker.Handle(context.Background(), mustMessage(t, models.QueueComputeMatch, matchPayload())))
	assert.Nil(t, f.nlp.lastMatch)
	assert.Equal(t, models.MatchStatusFailed, f.matches.rows["mat_1"].Status)
}

func TestMatchWorkerResumesInterruptedRun(t *testing.T) {
	f := newMatchFixture()
	f.matches.rows["mat_1"].Status = models.MatchStatusRunning

	require.NoError(t, f.worker.Handle(context.Background(), mustMessage(t, models.QueueComputeMatch, matchPayload())))
	assert.Equal(t, models.MatchStatusCompleted, f.matches.rows["mat_1"].Status)
}
