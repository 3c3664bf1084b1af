package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/livematch/brackets"
	"github.com/Dosada05/livematch/models"
	"github.com/Dosada05/livematch/repositories"
	"github.com/Dosada05/livematch/storage"
	"github.com/google/uuid"
	"github.com/itbasis/go-clock"
)

// TournamentStore - операции репозитория, нужные сервису.
type TournamentStore interface {
	State() repositories.State
	Tournament(id string) (models.Tournament, bool)
	CreateTournament(ctx context.Context, title, description string, mode models.TournamentMode) (string, error)
	AddParticipant(ctx context.Context, tournamentID, participantID string) error
	AddEvent(ctx context.Context, tournamentID string, event models.Event) error
	AppendMatches(ctx context.Context, tournamentID string, build func(models.Tournament) ([]models.TournamentMatch, error)) error
	SetLogoKey(ctx context.Context, tournamentID, logoKey string) error
}

type CreateTournamentInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Mode        string `json:"mode"`
}

type CreateEventInput struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Date         time.Time `json:"date"`
	Participants []string  `json:"participants"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (string, error)
	ListTournaments(ctx context.Context) repositories.State
	GetTournament(ctx context.Context, tournamentID string) (*models.Tournament, error)
	JoinTournament(ctx context.Context, tournamentID, participantID string) error
	ScheduleEvent(ctx context.Context, tournamentID string, input CreateEventInput) (*models.Event, error)
	GenerateBracket(ctx context.Context, tournamentID string) (*brackets.FirstRound, error)
	UploadLogo(ctx context.Context, tournamentID, contentType string, reader io.Reader) (string, error)
}

type tournamentService struct {
	store     TournamentStore
	generator brackets.BracketGenerator
	uploader  storage.FileUploader
	clock     clock.Clock
	logger    *slog.Logger
}

// NewTournamentService собирает сервис. uploader может быть nil - тогда загрузка
// логотипов возвращает ErrUploadsDisabled.
func NewTournamentService(
	store TournamentStore,
	generator brackets.BracketGenerator,
	uploader storage.FileUploader,
	clk clock.Clock,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		store:     store,
		generator: generator,
		uploader:  uploader,
		clock:     clk,
		logger:    logger,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (string, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return "", ErrTournamentTitleRequired
	}
	mode, err := models.ParseTournamentMode(strings.TrimSpace(input.Mode))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTournamentInvalidMode, err)
	}

	id, err := s.store.CreateTournament(ctx, title, strings.TrimSpace(input.Description), mode)
	if err != nil {
		return "", handleRepositoryError(err)
	}
	return id, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context) repositories.State {
	return s.store.State()
}

func (s *tournamentService) GetTournament(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	t, ok := s.store.Tournament(tournamentID)
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return &t, nil
}

func (s *tournamentService) JoinTournament(ctx context.Context, tournamentID, participantID string) error {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return ErrParticipantIDRequired
	}
	if err := s.store.AddParticipant(ctx, tournamentID, participantID); err != nil {
		return handleRepositoryError(err)
	}
	s.logger.InfoContext(ctx, "participant joined tournament", slog.String("tournament_id", tournamentID), slog.String("participant_id", participantID))
	return nil
}

func (s *tournamentService) ScheduleEvent(ctx context.Context, tournamentID string, input CreateEventInput) (*models.Event, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrEventTitleRequired
	}

	id := uuid.NewString()
	event := models.Event{
		ID:           &id,
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		Date:         input.Date.UTC(),
		Participants: trimParticipants(input.Participants),
	}
	if input.Date.IsZero() {
		event.Date = s.clock.Now().UTC()
	}

	if err := s.store.AddEvent(ctx, tournamentID, event); err != nil {
		return nil, handleRepositoryError(err)
	}
	return &event, nil
}

// GenerateBracket строит первый раунд из текущих участников. Победители матчей
// этим сервисом не выставляются.
func (s *tournamentService) GenerateBracket(ctx context.Context, tournamentID string) (*brackets.FirstRound, error) {
	var round *brackets.FirstRound
	err := s.store.AppendMatches(ctx, tournamentID, func(t models.Tournament) ([]models.TournamentMatch, error) {
		if len(t.Matches) > 0 {
			return nil, ErrBracketAlreadyGenerated
		}
		generated, err := s.generator.GenerateFirstRound(ctx, brackets.GenerateBracketParams{
			Mode:         t.Mode,
			Participants: t.Participants,
		})
		if err != nil {
			return nil, err
		}
		round = generated
		return generated.Matches, nil
	})
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	s.logger.InfoContext(ctx, "bracket generated",
		slog.String("tournament_id", tournamentID),
		slog.String("generator", s.generator.GetName()),
		slog.Int("matches", len(round.Matches)),
		slog.Int("byes", len(round.Byes)),
	)
	return round, nil
}

// UploadLogo загружает логотип и записывает его ключ в документ турнира.
// Если турнир не найден, загруженный объект удаляется.
func (s *tournamentService) UploadLogo(ctx context.Context, tournamentID, contentType string, reader io.Reader) (string, error) {
	if s.uploader == nil {
		return "", ErrUploadsDisabled
	}
	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("tournaments/%s/logo-%d%s", tournamentID, s.clock.Now().Unix(), ext)
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return "", fmt.Errorf("failed to upload tournament logo: %w", err)
	}

	if err := s.store.SetLogoKey(ctx, tournamentID, result.Key); err != nil {
		if delErr := s.uploader.Delete(context.WithoutCancel(ctx), result.Key); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete orphaned logo", slog.String("key", result.Key), slog.Any("error", delErr))
		}
		return "", handleRepositoryError(err)
	}
	return result.Location, nil
}

// IsValidationError reports whether err is caused by invalid input.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrValidationFailed,
		ErrTournamentTitleRequired,
		ErrTournamentInvalidMode,
		ErrEventTitleRequired,
		ErrParticipantIDRequired,
		ErrNotEnoughParticipants,
		ErrBracketUnsupportedMode,
		ErrUnsupportedLogoType,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
