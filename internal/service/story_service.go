package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"story-server/internal/domain"
	"story-server/internal/generation"
	"story-server/internal/messaging"
	"story-server/internal/model"
	"story-server/internal/repository"
	"story-server/internal/storage"
)

// Progress event vocabulary published to the "stories" topic.
const (
	topicStories      = "stories"
	typeStoryUpdate   = "story_update"
	typeStoryError    = "story_error"
	typeStoryComplete = "story_complete"
)

// Notifier delivers progress events to one user's open connections.
// Delivery is fire-and-forget: a disconnected client misses events and the
// pipeline never waits.
type Notifier interface {
	SendToUser(username, messageType, topic string, payload interface{})
}

// Collaborators groups the generation backends the pipeline drives.
type Collaborators struct {
	Structurer generation.TextStructurer
	Narration  generation.NarrationSynthesizer
	Sound      generation.SoundSynthesizer
	Image      generation.ImageSynthesizer
}

// Queues serialize access to each collaborator. One queue per collaborator:
// the backends hold large model state and tolerate one in-flight call.
type Queues struct {
	Structurer *generation.Queue
	Narration  *generation.Queue
	Sound      *generation.Queue
	Image      *generation.Queue
}

// Close shuts down all queues.
func (q *Queues) Close() {
	for _, queue := range []*generation.Queue{q.Structurer, q.Narration, q.Sound, q.Image} {
		if queue != nil {
			queue.Close()
		}
	}
}

// StoryService runs the generation pipeline and serves the catalog.
type StoryService interface {
	Generate(ctx context.Context, username, prompt string) (model.StoryHandle, error)
	Regenerate(ctx context.Context, identity *model.Identity, storyID uuid.UUID) error
	GetStory(ctx context.Context, identity *model.Identity, storyID uuid.UUID) (model.Story, map[string]string, error)
	GetAsset(ctx context.Context, identity *model.Identity, storyID uuid.UUID, name string) ([]byte, string, error)
	ListPublic(ctx context.Context, limit, offset int) ([]model.Story, error)
	ListUserStories(ctx context.Context, identity *model.Identity, username string) ([]model.Story, error)
	SetVisibility(ctx context.Context, identity *model.Identity, storyID uuid.UUID, public bool) error
	Delete(ctx context.Context, identity *model.Identity, storyID uuid.UUID) error
}

// Compile-time check
var _ StoryService = (*storyService)(nil)

type storyService struct {
	catalog  repository.StoryCatalog
	users    repository.UserRepository
	store    *storage.Store
	collab   Collaborators
	queues   Queues
	notifier Notifier
	events   messaging.StoryEventPublisher
	logger   zerolog.Logger

	effectDuration time.Duration
	musicDuration  time.Duration

	// Одна активная генерация на пользователя
	mu     sync.Mutex
	active map[string]struct{}
}

// NewStoryService creates the pipeline orchestrator.
func NewStoryService(
	catalog repository.StoryCatalog,
	users repository.UserRepository,
	store *storage.Store,
	collab Collaborators,
	queues Queues,
	notifier Notifier,
	events messaging.StoryEventPublisher,
	effectDuration, musicDuration time.Duration,
	logger zerolog.Logger,
) StoryService {
	if events == nil {
		events = messaging.NopStoryEventPublisher{}
	}
	return &storyService{
		catalog:        catalog,
		users:          users,
		store:          store,
		collab:         collab,
		queues:         queues,
		notifier:       notifier,
		events:         events,
		logger:         logger.With().Str("component", "story_service").Logger(),
		effectDuration: effectDuration,
		musicDuration:  musicDuration,
		active:         make(map[string]struct{}),
	}
}

// Generate validates the request, allocates a story directory and starts the
// pipeline asynchronously. The returned handle identifies the run; progress
// arrives over the notifier.
func (s *storyService) Generate(ctx context.Context, username, prompt string) (model.StoryHandle, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return model.StoryHandle{}, fmt.Errorf("%w: prompt is empty", domain.ErrInvalidInput)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return model.StoryHandle{}, err
	}

	if !s.tryAcquire(username) {
		return model.StoryHandle{}, domain.ErrGenerationInProgress
	}

	// Любой ранний выход до запуска горутины должен снять блокировку
	started := false
	defer func() {
		if !started {
			s.release(username)
		}
	}()

	index, err := s.catalog.NextStoryIndex(ctx, user.ID)
	if err != nil {
		return model.StoryHandle{}, fmt.Errorf("failed to allocate story index: %w", err)
	}

	handle := model.StoryHandle{
		Username: username,
		Index:    index,
		Path:     s.store.StoryPath(username, index),
	}
	if err := s.store.EnsureDir(handle.Path); err != nil {
		return model.StoryHandle{}, fmt.Errorf("failed to create story directory: %w", err)
	}

	runLogger := s.logger.With().Str("username", username).Str("path", handle.Path).Logger()
	runCtx := runLogger.WithContext(context.Background())

	started = true
	go func() {
		defer s.release(username)
		s.runPipeline(runCtx, user, handle, prompt)
	}()

	return handle, nil
}

func (s *storyService) tryAcquire(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[username]; busy {
		return false
	}
	s.active[username] = struct{}{}
	return true
}

func (s *storyService) release(username string) {
	s.mu.Lock()
	delete(s.active, username)
	s.mu.Unlock()
}

// runPipeline is the asynchronous body of a generation run.
func (s *storyService) runPipeline(ctx context.Context, user model.User, handle model.StoryHandle, prompt string) {
	logger := zerolog.Ctx(ctx)
	s.progress(user.Username, "generating story")

	// Этап структуризации: единственный фатальный этап конвейера
	s.progress(user.Username, "generating story structure")
	var raw map[string]string
	err := s.queues.Structurer.Do(ctx, func(ctx context.Context) error {
		var callErr error
		raw, callErr = s.collab.Structurer.Structure(ctx, prompt)
		return callErr
	})
	var doc *domain.Document
	if err == nil {
		doc, err = domain.FromMap(raw)
	}
	if err != nil {
		logger.Error().Err(err).Msg("story structuring failed, aborting run")
		pipelineRunsTotal.WithLabelValues("structuring_failed").Inc()
		// Директория остается сиротой до сверки; записи в каталоге нет
		s.fail(ctx, user.Username, fmt.Sprintf("story structuring failed: %v", err))
		return
	}

	if err := s.store.WriteStructure(handle.Path, doc.ToMap()); err != nil {
		logger.Error().Err(err).Msg("failed to persist structure.json")
		s.fail(ctx, user.Username, "failed to persist story structure")
		return
	}

	seq := doc.Sequence()
	s.runStages(ctx, user.Username, handle.Path, doc, seq)

	// paragraphs.json пишется всегда, даже если часть озвучки не удалась
	if err := s.store.WriteParagraphs(handle.Path, seq.Paragraphs); err != nil {
		logger.Error().Err(err).Msg("failed to persist paragraphs.json")
	}

	title := strings.TrimSpace(doc.Title())
	if title == "" {
		title = "Untitled Story"
	}

	storyID, err := s.catalog.Add(ctx, model.Story{
		UserID:   user.ID,
		Title:    title,
		Path:     handle.Path,
		IsPublic: false,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to add catalog entry")
		s.fail(ctx, user.Username, "failed to index the generated story")
		return
	}

	pipelineRunsTotal.WithLabelValues("complete").Inc()
	logger.Info().Str("story_id", storyID.String()).Str("title", title).Msg("story generation complete")

	payload := map[string]interface{}{
		"message":  "story complete",
		"story_id": storyID,
		"title":    title,
		"url":      handle.URL(),
	}
	s.notifier.SendToUser(user.Username, typeStoryComplete, topicStories, payload)
	s.publish(ctx, model.StoryEvent{
		Type:      typeStoryComplete,
		Username:  user.Username,
		StoryID:   storyID,
		Title:     title,
		URL:       handle.URL(),
		Timestamp: time.Now().UTC(),
	})
}

// runStages drives the asset stages in their fixed order. Individual call
// failures are logged and skipped; the run carries on with whatever assets
// could be produced.
func (s *storyService) runStages(ctx context.Context, username, path string, doc *domain.Document, seq domain.Sequence) {
	logger := zerolog.Ctx(ctx)

	s.progress(username, "generating narration")
	for i, text := range seq.Paragraphs {
		text := text
		var data []byte
		err := s.stageCall(ctx, s.queues.Narration, "narration", func(ctx context.Context) error {
			var callErr error
			data, callErr = s.collab.Narration.Synthesize(ctx, text)
			return callErr
		})
		if err != nil {
			logger.Warn().Err(err).Int("index", i+1).Msg("narration call failed, skipping asset")
			continue
		}
		if err := s.store.WriteAsset(path, storage.AssetNarration, i+1, data); err != nil {
			logger.Error().Err(err).Int("index", i+1).Msg("failed to write narration asset")
		}
	}

	s.progress(username, "generating sound effects")
	for i, prompt := range seq.AudioPrompts {
		prompt := prompt
		var data []byte
		err := s.stageCall(ctx, s.queues.Sound, "effect", func(ctx context.Context) error {
			var callErr error
			data, callErr = s.collab.Sound.Synthesize(ctx, prompt, s.effectDuration, generation.SoundEffect)
			return callErr
		})
		if err != nil {
			logger.Warn().Err(err).Int("index", i+1).Msg("sound effect call failed, skipping asset")
			continue
		}
		if err := s.store.WriteAsset(path, storage.AssetEffect, i+1, data); err != nil {
			logger.Error().Err(err).Int("index", i+1).Msg("failed to write sound effect asset")
		}
	}

	s.progress(username, "generating music")
	if musicPrompt, ok := doc.Music(); ok {
		var data []byte
		err := s.stageCall(ctx, s.queues.Sound, "music", func(ctx context.Context) error {
			var callErr error
			data, callErr = s.collab.Sound.Synthesize(ctx, musicPrompt, s.musicDuration, generation.SoundMusic)
			return callErr
		})
		if err != nil {
			logger.Warn().Err(err).Msg("music call failed, skipping asset")
		} else if err := s.store.WriteAsset(path, storage.AssetMusic, 0, data); err != nil {
			logger.Error().Err(err).Msg("failed to write music asset")
		}
	} else {
		logger.Info().Msg("document has no music tag, skipping music stage")
	}

	s.progress(username, "generating images")
	if thumbPrompt, ok := doc.Thumbnail(); ok {
		var data []byte
		err := s.stageCall(ctx, s.queues.Image, "thumbnail", func(ctx context.Context) error {
			var callErr error
			data, callErr = s.collab.Image.Synthesize(ctx, thumbPrompt)
			return callErr
		})
		if err != nil {
			logger.Warn().Err(err).Msg("thumbnail call failed, skipping asset")
		} else if err := s.store.WriteAsset(path, storage.AssetThumbnail, 0, data); err != nil {
			logger.Error().Err(err).Msg("failed to write thumbnail asset")
		}
	}
	for i, prompt := range seq.ImagePrompts {
		prompt := prompt
		var data []byte
		err := s.stageCall(ctx, s.queues.Image, "image", func(ctx context.Context) error {
			var callErr error
			data, callErr = s.collab.Image.Synthesize(ctx, prompt)
			return callErr
		})
		if err != nil {
			logger.Warn().Err(err).Int("index", i+1).Msg("image call failed, skipping asset")
			continue
		}
		if err := s.store.WriteAsset(path, storage.AssetImage, i+1, data); err != nil {
			logger.Error().Err(err).Int("index", i+1).Msg("failed to write image asset")
		}
	}
}

// stageCall runs one collaborator call through its queue and records metrics.
func (s *storyService) stageCall(ctx context.Context, queue *generation.Queue, stage string, fn func(context.Context) error) error {
	start := time.Now()
	err := queue.Do(ctx, fn)
	stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		stageCallsTotal.WithLabelValues(stage, "error").Inc()
		return err
	}
	stageCallsTotal.WithLabelValues(stage, "ok").Inc()
	return nil
}

func (s *storyService) progress(username, message string) {
	s.notifier.SendToUser(username, typeStoryUpdate, topicStories, map[string]string{"message": message})
}

func (s *storyService) fail(ctx context.Context, username, message string) {
	s.notifier.SendToUser(username, typeStoryError, topicStories, map[string]string{"error": message})
	s.publish(ctx, model.StoryEvent{
		Type:      typeStoryError,
		Username:  username,
		Error:     message,
		Timestamp: time.Now().UTC(),
	})
}

func (s *storyService) publish(ctx context.Context, event model.StoryEvent) {
	if err := s.events.PublishStoryEvent(ctx, event); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to publish story event")
	}
}

// Regenerate re-runs the asset stages of an existing story from its persisted
// structural document. The structurer and the catalog are never touched;
// asset writes are idempotent overwrites.
func (s *storyService) Regenerate(ctx context.Context, identity *model.Identity, storyID uuid.UUID) error {
	story, err := s.catalog.GetByID(ctx, storyID)
	if err != nil {
		return err
	}
	if !IsOwner(identity, story) {
		return domain.ErrForbidden
	}

	rawDoc, err := s.store.ReadStructure(story.Path)
	if err != nil {
		return fmt.Errorf("failed to read story structure: %w", err)
	}
	doc, err := domain.FromMap(rawDoc)
	if err != nil {
		return fmt.Errorf("persisted structure is invalid: %w", err)
	}

	username := identity.Username
	if !s.tryAcquire(username) {
		return domain.ErrGenerationInProgress
	}

	runLogger := s.logger.With().Str("username", username).Str("path", story.Path).Str("story_id", storyID.String()).Logger()
	runCtx := runLogger.WithContext(context.Background())

	go func() {
		defer s.release(username)
		seq := doc.Sequence()
		s.runStages(runCtx, username, story.Path, doc, seq)
		if err := s.store.WriteParagraphs(story.Path, seq.Paragraphs); err != nil {
			runLogger.Error().Err(err).Msg("failed to persist paragraphs.json")
		}
		runLogger.Info().Msg("asset regeneration complete")
		payload := map[string]interface{}{
			"message":  "story complete",
			"story_id": story.ID,
			"title":    story.Title,
			"url":      "/" + story.Path,
		}
		s.notifier.SendToUser(username, typeStoryComplete, topicStories, payload)
	}()

	return nil
}

// GetStory returns the catalog entry and the structural document, subject to
// the visibility rules.
func (s *storyService) GetStory(ctx context.Context, identity *model.Identity, storyID uuid.UUID) (model.Story, map[string]string, error) {
	story, err := s.catalog.GetByID(ctx, storyID)
	if err != nil {
		return model.Story{}, nil, err
	}
	if !CanView(identity, story) {
		return model.Story{}, nil, domain.ErrForbidden
	}
	doc, err := s.store.ReadStructure(story.Path)
	if err != nil {
		return model.Story{}, nil, fmt.Errorf("failed to read story structure: %w", err)
	}
	return story, doc, nil
}

// GetAsset serves one generated file by filename prefix. The prefix match
// lets clients ask for "paragraph_1" without knowing the extension.
func (s *storyService) GetAsset(ctx context.Context, identity *model.Identity, storyID uuid.UUID, name string) ([]byte, string, error) {
	story, err := s.catalog.GetByID(ctx, storyID)
	if err != nil {
		return nil, "", err
	}
	if !CanView(identity, story) {
		return nil, "", domain.ErrForbidden
	}

	fileName, err := s.store.FindByPrefix(story.Path, name)
	if err != nil {
		return nil, "", err
	}
	data, err := s.store.ReadFile(story.Path, fileName)
	if err != nil {
		return nil, "", err
	}
	return data, fileName, nil
}

// ListPublic returns the public catalog page.
func (s *storyService) ListPublic(ctx context.Context, limit, offset int) ([]model.Story, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.catalog.ListPublic(ctx, limit, offset)
}

// ListUserStories returns a user's whole collection; only the owner may list
// it, since it includes private entries.
func (s *storyService) ListUserStories(ctx context.Context, identity *model.Identity, username string) ([]model.Story, error) {
	if identity == nil || identity.Username != username {
		return nil, domain.ErrForbidden
	}
	return s.catalog.ListByOwner(ctx, identity.UserID)
}

// SetVisibility toggles the public flag; owner only.
func (s *storyService) SetVisibility(ctx context.Context, identity *model.Identity, storyID uuid.UUID, public bool) error {
	story, err := s.catalog.GetByID(ctx, storyID)
	if err != nil {
		return err
	}
	if !IsOwner(identity, story) {
		return domain.ErrForbidden
	}
	return s.catalog.SetVisibility(ctx, storyID, public)
}

// Delete removes the catalog row first, then the directory tree. The order
// matters: a crash in between leaves an orphan directory, which the
// reconciliation sweep reclaims, rather than a row pointing at nothing.
func (s *storyService) Delete(ctx context.Context, identity *model.Identity, storyID uuid.UUID) error {
	story, err := s.catalog.GetByID(ctx, storyID)
	if err != nil {
		return err
	}
	if !IsOwner(identity, story) {
		return domain.ErrForbidden
	}

	if err := s.catalog.Delete(ctx, storyID); err != nil {
		return fmt.Errorf("failed to delete catalog entry: %w", err)
	}
	if err := s.store.RemoveTree(story.Path); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error().Err(err).Str("path", story.Path).Msg("failed to remove story directory after catalog delete")
		return fmt.Errorf("failed to remove story directory: %w", err)
	}
	s.logger.Info().Str("story_id", storyID.String()).Str("path", story.Path).Msg("story deleted")
	return nil
}
