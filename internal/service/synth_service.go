package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"story-server/internal/domain"
	"story-server/internal/generation"
	"story-server/internal/model"
	"story-server/internal/storage"
)

// SynthService serves the ad-hoc single-asset endpoints. Results land in the
// caller's scratch area, outside any story directory, and an existing scratch
// file short-circuits the backend call.
type SynthService struct {
	store          *storage.Store
	collab         Collaborators
	queues         Queues
	effectDuration time.Duration
	logger         zerolog.Logger
}

// NewSynthService creates the ad-hoc synthesis front.
func NewSynthService(store *storage.Store, collab Collaborators, queues Queues, effectDuration time.Duration, logger zerolog.Logger) *SynthService {
	return &SynthService{
		store:          store,
		collab:         collab,
		queues:         queues,
		effectDuration: effectDuration,
		logger:         logger.With().Str("component", "synth_service").Logger(),
	}
}

// Narration synthesizes one narration clip into the scratch slot for index.
func (s *SynthService) Narration(ctx context.Context, identity *model.Identity, text string, index int) ([]byte, string, error) {
	return s.synth(ctx, identity, text, storage.AssetNarration, index, func(ctx context.Context) ([]byte, error) {
		return s.collab.Narration.Synthesize(ctx, text)
	}, s.queues.Narration)
}

// Sound synthesizes one sound effect into the scratch slot for index.
func (s *SynthService) Sound(ctx context.Context, identity *model.Identity, text string, index int, duration time.Duration) ([]byte, string, error) {
	if duration <= 0 {
		duration = s.effectDuration
	}
	return s.synth(ctx, identity, text, storage.AssetEffect, index, func(ctx context.Context) ([]byte, error) {
		return s.collab.Sound.Synthesize(ctx, text, duration, generation.SoundEffect)
	}, s.queues.Sound)
}

// Image synthesizes one illustration into the scratch slot for index.
func (s *SynthService) Image(ctx context.Context, identity *model.Identity, prompt string, index int) ([]byte, string, error) {
	return s.synth(ctx, identity, prompt, storage.AssetImage, index, func(ctx context.Context) ([]byte, error) {
		return s.collab.Image.Synthesize(ctx, prompt)
	}, s.queues.Image)
}

func (s *SynthService) synth(ctx context.Context, identity *model.Identity, text string, kind storage.AssetKind, index int, call func(context.Context) ([]byte, error), queue *generation.Queue) ([]byte, string, error) {
	if identity == nil {
		return nil, "", domain.ErrUnauthorized
	}
	if text == "" {
		return nil, "", fmt.Errorf("%w: text is empty", domain.ErrInvalidInput)
	}
	if index <= 0 {
		return nil, "", fmt.Errorf("%w: index must be positive", domain.ErrInvalidInput)
	}

	scratch := s.store.ScratchPath(identity.Username)
	fileName := storage.AssetFileName(kind, index)

	// Повторный запрос того же слота не ходит в бэкенд
	if s.store.FileExists(scratch, fileName) {
		data, err := s.store.ReadFile(scratch, fileName)
		if err != nil {
			return nil, "", err
		}
		s.logger.Debug().Str("file", fileName).Str("username", identity.Username).Msg("serving cached scratch asset")
		return data, fileName, nil
	}

	var data []byte
	err := queue.Do(ctx, func(ctx context.Context) error {
		var callErr error
		data, callErr = call(ctx)
		return callErr
	})
	if err != nil {
		return nil, "", fmt.Errorf("synthesis call failed: %w", err)
	}

	if err := s.store.EnsureDir(scratch); err != nil {
		return nil, "", fmt.Errorf("failed to create scratch area: %w", err)
	}
	if err := s.store.WriteAsset(scratch, kind, index, data); err != nil {
		return nil, "", fmt.Errorf("failed to store scratch asset: %w", err)
	}
	return data, fileName, nil
}
