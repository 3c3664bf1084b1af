package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/livematch/brackets"
	"github.com/Dosada05/livematch/repositories"
)

// handleRepositoryError переводит ошибки репозитория и генератора в ошибки сервиса.
func handleRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrParticipantExists):
		return ErrAlreadyParticipant
	case errors.Is(err, brackets.ErrNotEnoughParticipants):
		return ErrNotEnoughParticipants
	case errors.Is(err, brackets.ErrUnsupportedMode):
		return fmt.Errorf("%w: %w", ErrBracketUnsupportedMode, err)
	case errors.Is(err, brackets.ErrDuplicateParticipant):
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	default:
		return err
	}
}

func trimParticipants(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// GetExtensionFromContentType возвращает расширение файла для image/* типов.
func GetExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	case "image/svg+xml":
		return ".svg", nil
	default:
		return "", fmt.Errorf("%w: '%s'", ErrUnsupportedLogoType, contentType)
	}
}
