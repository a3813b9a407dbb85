package interfaces

import (
	"context"

	"github.com/ternarybob/skillmatch/internal/models"
)

// NLPService is the external parsing and matching collaborator
type NLPService interface {
	ParseResume(ctx context.Context, req models.NLPParseResumeRequest) (*models.NLPResumeAnalysis, error)
	ParseJob(ctx context.Context, req models.NLPParseJobRequest) (*models.NLPJobAnalysis, error)
	Match(ctx context.Context, req models.NLPMatchRequest) (*models.NLPMatchResponse, error)
}
