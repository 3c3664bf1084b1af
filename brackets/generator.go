package brackets

import (
	"context"

	"github.com/Dosada05/livematch/models"
)

type GenerateBracketParams struct {
	Mode         models.TournamentMode
	Participants []string
}

// FirstRound - матчи первого раунда и участники, получившие проход без игры.
type FirstRound struct {
	Matches []models.TournamentMatch
	Byes    []string
}

type BracketGenerator interface {
	GenerateFirstRound(ctx context.Context, params GenerateBracketParams) (*FirstRound, error)

	GetName() string
}
