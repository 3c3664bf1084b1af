package brackets

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"github.com/Dosada05/livematch/models"
	"github.com/google/uuid"
)

var (
	ErrNotEnoughParticipants = errors.New("not enough participants to generate a bracket (minimum 2)")
	ErrUnsupportedMode       = errors.New("bracket generation is not supported for this tournament mode")
	ErrDuplicateParticipant  = errors.New("participant appears more than once")
)

type node struct {
	participantID    string
	isByePlaceholder bool
}

// SingleEliminationGenerator строит первый раунд сетки на выбывание: участники
// в порядке регистрации, свободные слоты до степени двойки становятся проходами.
// Матчи создаются незавершёнными и без победителя; продвижение победителей
// по раундам здесь не выполняется.
type SingleEliminationGenerator struct {
	newID func() string
}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{newID: uuid.NewString}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

func (g *SingleEliminationGenerator) GenerateFirstRound(ctx context.Context, params GenerateBracketParams) (*FirstRound, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Матч хранит ровно двух игроков, поэтому FFA на четверых сюда не подходит.
	if params.Mode != models.ModeOneVOne && params.Mode != models.ModeTwoVTwo {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, params.Mode)
	}

	participants := params.Participants
	n := len(participants)
	if n < 2 {
		return nil, ErrNotEnoughParticipants
	}
	seen := make(map[string]struct{}, n)
	for _, p := range participants {
		if _, dup := seen[p]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateParticipant, p)
		}
		seen[p] = struct{}{}
	}

	sizeOfFullBracket := 1 << bits.Len(uint(n-1))

	nodes := make([]node, sizeOfFullBracket)
	for i := 0; i < sizeOfFullBracket; i++ {
		if i < n {
			nodes[i] = node{participantID: participants[i]}
		} else {
			nodes[i] = node{isByePlaceholder: true}
		}
	}

	round := &FirstRound{
		Matches: make([]models.TournamentMatch, 0, sizeOfFullBracket/2),
		Byes:    make([]string, 0),
	}
	for i := 0; i < len(nodes); i += 2 {
		node1, node2 := nodes[i], nodes[i+1]
		switch {
		case node1.isByePlaceholder && node2.isByePlaceholder:
			continue
		case node2.isByePlaceholder:
			round.Byes = append(round.Byes, node1.participantID)
		case node1.isByePlaceholder:
			round.Byes = append(round.Byes, node2.participantID)
		default:
			id := g.newID()
			match := models.TournamentMatch{
				ID:        &id,
				Player1ID: node1.participantID,
				Player2ID: node2.participantID,
			}
			if err := match.Validate(); err != nil {
				return nil, err
			}
			round.Matches = append(round.Matches, match)
		}
	}
	return round, nil
}
