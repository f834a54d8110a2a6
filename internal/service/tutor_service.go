package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/pkg/ai"
)

// TutorService answers study questions through the configured AI tutor.
type TutorService interface {
	Ask(ctx context.Context, payload dto.TutorAskRequest, actor Principal) (dto.TutorAskResponse, error)
}

type tutorService struct {
	tutor     ai.Tutor
	fallback  ai.Tutor
	validator *validator.Validate
	policy    *bluemonday.Policy
	logger    zerolog.Logger
}

// NewTutorService constructs the tutor service. A nil tutor answers with the placeholder.
func NewTutorService(tutor ai.Tutor, validate *validator.Validate, logger zerolog.Logger) TutorService {
	fallback := ai.NewPlaceholderTutor()
	if tutor == nil {
		tutor = fallback
	}
	return &tutorService{
		tutor:     tutor,
		fallback:  fallback,
		validator: validate,
		policy:    bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "tutor_service").Logger(),
	}
}

func (s *tutorService) Ask(ctx context.Context, payload dto.TutorAskRequest, actor Principal) (dto.TutorAskResponse, error) {
	payload.Question = strings.TrimSpace(s.policy.Sanitize(payload.Question))
	if err := s.validator.Struct(payload); err != nil {
		return dto.TutorAskResponse{}, err
	}

	answer, err := s.tutor.Ask(ctx, payload.Question)
	if err != nil {
		s.logger.Warn().Err(err).Uint("user_id", actor.ID).Msg("tutor provider failed, using placeholder")
		answer, err = s.fallback.Ask(ctx, payload.Question)
		if err != nil {
			return dto.TutorAskResponse{}, err
		}
	}

	return dto.TutorAskResponse{
		Question: answer.Question,
		Answer:   answer.Answer,
		Source:   answer.Source,
	}, nil
}
