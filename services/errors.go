package services

import "errors"

// Общие ошибки, используемые сервисами и маппингом HTTP.
var (
	// Ресурс не найден
	ErrTournamentNotFound = errors.New("tournament not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed        = errors.New("validation failed")
	ErrTournamentTitleRequired = errors.New("tournament title is required")
	ErrTournamentInvalidMode   = errors.New("invalid tournament mode")
	ErrEventTitleRequired      = errors.New("event title is required")
	ErrParticipantIDRequired   = errors.New("participant id is required")
	ErrNotEnoughParticipants   = errors.New("not enough participants to generate a bracket")
	ErrBracketUnsupportedMode  = errors.New("bracket generation is not supported for this tournament mode")
	ErrUnsupportedLogoType     = errors.New("unsupported logo content type")

	// Ошибки конфликтов
	ErrAlreadyParticipant      = errors.New("participant is already registered for this tournament")
	ErrBracketAlreadyGenerated = errors.New("tournament bracket has already been generated")

	// Недоступные возможности
	ErrUploadsDisabled = errors.New("file uploads are not configured")
)
