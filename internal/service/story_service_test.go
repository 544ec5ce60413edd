package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-server/internal/domain"
	"story-server/internal/generation"
	"story-server/internal/model"
	"story-server/internal/storage"
)

// --- in-memory fakes ---

type memCatalog struct {
	mu      sync.Mutex
	stories map[uuid.UUID]model.Story
	seq     map[uuid.UUID]int

	lastLimit  int
	lastOffset int
}

func newMemCatalog() *memCatalog {
	return &memCatalog{stories: make(map[uuid.UUID]model.Story), seq: make(map[uuid.UUID]int)}
}

func (c *memCatalog) Add(ctx context.Context, story model.Story) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	story.ID = uuid.New()
	story.CreatedAt = time.Now()
	c.stories[story.ID] = story
	return story.ID, nil
}

func (c *memCatalog) GetByID(ctx context.Context, id uuid.UUID) (model.Story, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	story, ok := c.stories[id]
	if !ok {
		return model.Story{}, domain.ErrStoryNotFound
	}
	return story, nil
}

func (c *memCatalog) GetByPath(ctx context.Context, path string) (model.Story, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, story := range c.stories {
		if story.Path == path {
			return story, nil
		}
	}
	return model.Story{}, domain.ErrStoryNotFound
}

func (c *memCatalog) FindByTitleAndOwner(ctx context.Context, title string, ownerID uuid.UUID) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var found model.Story
	for _, story := range c.stories {
		if story.Title == title && story.UserID == ownerID && story.CreatedAt.After(found.CreatedAt) {
			found = story
		}
	}
	if found.ID == uuid.Nil {
		return uuid.Nil, domain.ErrStoryNotFound
	}
	return found.ID, nil
}

func (c *memCatalog) SetVisibility(ctx context.Context, id uuid.UUID, public bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	story, ok := c.stories[id]
	if !ok {
		return domain.ErrStoryNotFound
	}
	story.IsPublic = public
	c.stories[id] = story
	return nil
}

func (c *memCatalog) ListPublic(ctx context.Context, limit, offset int) ([]model.Story, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastLimit, c.lastOffset = limit, offset
	var out []model.Story
	for _, story := range c.stories {
		if story.IsPublic {
			out = append(out, story)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (c *memCatalog) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Story, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Story
	for _, story := range c.stories {
		if story.UserID == ownerID {
			out = append(out, story)
		}
	}
	return out, nil
}

func (c *memCatalog) ListAll(ctx context.Context) ([]model.Story, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Story
	for _, story := range c.stories {
		out = append(out, story)
	}
	return out, nil
}

func (c *memCatalog) Delete(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.stories[id]; !ok {
		return domain.ErrStoryNotFound
	}
	delete(c.stories, id)
	return nil
}

func (c *memCatalog) NextStoryIndex(ctx context.Context, userID uuid.UUID) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq[userID]++
	return c.seq[userID], nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]model.User
}

func newMemUsers(usernames ...string) *memUsers {
	m := &memUsers{users: make(map[string]model.User)}
	for _, name := range usernames {
		m.users[name] = model.User{ID: uuid.New(), Username: name, CreatedAt: time.Now()}
	}
	return m
}

func (m *memUsers) Create(ctx context.Context, user model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return model.User{}, domain.ErrUserAlreadyExists
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	m.users[user.Username] = user
	return user, nil
}

func (m *memUsers) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return model.User{}, domain.ErrUserNotFound
}

func (m *memUsers) GetByUsername(ctx context.Context, username string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[username]
	if !ok {
		return model.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (m *memUsers) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, user := range m.users {
		if user.ID == id {
			delete(m.users, name)
			return nil
		}
	}
	return domain.ErrUserNotFound
}

// recordingNotifier captures progress events and signals terminal ones.
type recordedEvent struct {
	Username string
	Type     string
	Payload  interface{}
}

type recordingNotifier struct {
	mu       sync.Mutex
	events   []recordedEvent
	terminal chan recordedEvent
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{terminal: make(chan recordedEvent, 4)}
}

func (n *recordingNotifier) SendToUser(username, messageType, topic string, payload interface{}) {
	n.mu.Lock()
	event := recordedEvent{Username: username, Type: messageType, Payload: payload}
	n.events = append(n.events, event)
	n.mu.Unlock()
	if messageType == typeStoryComplete || messageType == typeStoryError {
		n.terminal <- event
	}
}

func (n *recordingNotifier) waitTerminal(t *testing.T) recordedEvent {
	t.Helper()
	select {
	case event := <-n.terminal:
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for terminal pipeline event")
		return recordedEvent{}
	}
}

func (n *recordingNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, event := range n.events {
		if payload, ok := event.Payload.(map[string]string); ok {
			if msg, ok := payload["message"]; ok {
				out = append(out, msg)
				continue
			}
			if errMsg, ok := payload["error"]; ok {
				out = append(out, "error: "+errMsg)
			}
		}
	}
	return out
}

// --- stub collaborators ---

type stubStructurer struct {
	doc map[string]string
	err error
}

func (s *stubStructurer) Structure(ctx context.Context, prompt string) (map[string]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

type stubNarration struct {
	failText string // calls with this exact text fail
}

func (s *stubNarration) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.failText != "" && text == s.failText {
		return nil, errors.New("narration backend unavailable")
	}
	return []byte("nar:" + text), nil
}

type stubSound struct{}

func (stubSound) Synthesize(ctx context.Context, text string, duration time.Duration, kind generation.SoundKind) ([]byte, error) {
	return []byte(fmt.Sprintf("%s(%s):%s", kind, duration, text)), nil
}

type stubImage struct{}

func (stubImage) Synthesize(ctx context.Context, prompt string) ([]byte, error) {
	return []byte("img:" + prompt), nil
}

// --- test harness ---

type pipelineFixture struct {
	catalog  *memCatalog
	users    *memUsers
	store    *storage.Store
	notifier *recordingNotifier
	queues   Queues
	service  StoryService
}

func newPipelineFixture(t *testing.T, collab Collaborators) *pipelineFixture {
	t.Helper()

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)

	queues := Queues{
		Structurer: generation.NewQueue("structurer", 4, 5*time.Second),
		Narration:  generation.NewQueue("narration", 4, 5*time.Second),
		Sound:      generation.NewQueue("sound", 4, 5*time.Second),
		Image:      generation.NewQueue("image", 4, 5*time.Second),
	}
	t.Cleanup(queues.Close)

	f := &pipelineFixture{
		catalog:  newMemCatalog(),
		users:    newMemUsers("alice", "bob"),
		store:    store,
		notifier: newRecordingNotifier(),
		queues:   queues,
	}
	f.service = NewStoryService(
		f.catalog, f.users, f.store, collab, queues,
		f.notifier, nil, 5*time.Second, 60*time.Second, zerolog.Nop(),
	)
	return f
}

func validDoc() map[string]string {
	return map[string]string{
		"title":      "The Brave Fox",
		"thumbnail":  "a fox on a hill",
		"music":      "gentle forest ambience",
		"paragraph1": "Once there was a fox.",
		"audio1":     "rustling leaves",
		"image1":     "fox in the forest",
		"paragraph2": "The fox found a friend.",
		"audio2":     "birdsong",
		"image2":     "two foxes playing",
	}
}

// --- scenarios ---

func TestGenerateHappyPath(t *testing.T) {
	f := newPipelineFixture(t, Collaborators{
		Structurer: &stubStructurer{doc: validDoc()},
		Narration:  &stubNarration{},
		Sound:      stubSound{},
		Image:      stubImage{},
	})

	handle, err := f.service.Generate(context.Background(), "alice", "a story about a fox")
	require.NoError(t, err)
	assert.Equal(t, "alice/stories/1", handle.Path)
	assert.Equal(t, "/alice/stories/1", handle.URL())

	event := f.notifier.waitTerminal(t)
	require.Equal(t, typeStoryComplete, event.Type)
	payload, ok := event.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "story complete", payload["message"])
	assert.Equal(t, "The Brave Fox", payload["title"])
	assert.Equal(t, "/alice/stories/1", payload["url"])

	// Прогресс шел в фиксированном порядке этапов
	assert.Equal(t, []string{
		"generating story",
		"generating story structure",
		"generating narration",
		"generating sound effects",
		"generating music",
		"generating images",
	}, f.notifier.messages())

	// Документ сохранен и восстановим
	doc, err := f.store.ReadStructure(handle.Path)
	require.NoError(t, err)
	assert.Equal(t, validDoc(), doc)

	paragraphs, err := f.store.ReadParagraphs(handle.Path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Once there was a fox.", "The fox found a friend."}, paragraphs)

	// Все файлы на канонических именах
	for _, name := range []string{
		"paragraph_1.wav", "paragraph_2.wav",
		"audio_1.wav", "audio_2.wav",
		"music", "thumbnail.jpg",
		"image_1.jpg", "image_2.jpg",
	} {
		assert.True(t, f.store.FileExists(handle.Path, name), "missing %s", name)
	}

	// Запись каталога приватна и указывает на директорию
	alice, _ := f.users.GetByUsername(context.Background(), "alice")
	stories, err := f.catalog.ListByOwner(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "The Brave Fox", stories[0].Title)
	assert.Equal(t, handle.Path, stories[0].Path)
	assert.False(t, stories[0].IsPublic)
}

func TestGenerateValidation(t *testing.T) {
	f := newPipelineFixture(t, Collaborators{
		Structurer: &stubStructurer{doc: validDoc()},
		Narration:  &stubNarration{},
		Sound:      stubSound{},
		Image:      stubImage{},
	})

	_, err := f.service.Generate(context.Background(), "alice", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.service.Generate(context.Background(), "nobody", "a story")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	// Отказ до побочных эффектов: ни директорий, ни записей
	users, err := f.store.ListUsers()
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestGenerateStructuringFailure(t *testing.T) {
	f := newPipelineFixture(t, Collaborators{
		Structurer: &stubStructurer{err: fmt.Errorf("%w: model replied with prose", domain.ErrStructuringFailed)},
		Narration:  &stubNarration{},
		Sound:      stubSound{},
		Image:      stubImage{},
	})

	handle, err := f.service.Generate(context.Background(), "alice", "a story")
	require.NoError(t, err)

	event := f.notifier.waitTerminal(t)
	assert.Equal(t, typeStoryError, event.Type)

	// Никаких ассетов и записи в каталоге; директория-сирота остается до сверки
	assert.True(t, f.store.DirExists(handle.Path))
	assert.False(t, f.store.FileExists(handle.Path, storage.StructureFile))
	all, err := f.catalog.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGenerateStageFailureContinues(t *testing.T) {
	f := newPipelineFixture(t, Collaborators{
		Structurer: &stubStructurer{doc: validDoc()},
		Narration:  &stubNarration{failText: "Once there was a fox."},
		Sound:      stubSound{},
		Image:      stubImage{},
	})

	handle, err := f.service.Generate(context.Background(), "alice", "a story")
	require.NoError(t, err)

	event := f.notifier.waitTerminal(t)
	require.Equal(t, typeStoryComplete, event.Type)

	// Упавший вызов пропущен, остальные ассеты на месте
	assert.False(t, f.store.FileExists(handle.Path, "paragraph_1.wav"))
	assert.True(t, f.store.FileExists(handle.Path, "paragraph_2.wav"))
	assert.True(t, f.store.FileExists(handle.Path, "music"))

	// paragraphs.json пишется несмотря на сбой озвучки
	paragraphs, err := f.store.ReadParagraphs(handle.Path)
	require.NoError(t, err)
	assert.Len(t, paragraphs, 2)

	// Запись каталога все равно создана
	all, err := f.catalog.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGenerateZeroCueStory(t *testing.T) {
	doc := map[string]string{
		"title":      "Quiet Tale",
		"paragraph1": "A single quiet paragraph.",
	}
	f := newPipelineFixture(t, Collaborators{
		Structurer: &stubStructurer{doc: doc},
		Narration:  &stubNarration{},
		Sound:      stubSound{},
		Image:      stubImage{},
	})

	handle, err := f.service.Generate(context.Background(), "alice", "a quiet story")
	require.NoError(t, err)

	event := f.notifier.waitTerminal(t)
	require.Equal(t, typeStoryComplete, event.Type)

	// Нулевые циклы выполняются ноль раз, история полна без звуков и картинок
	assert.True(t, f.store.FileExists(handle.Path, "paragraph_1.wav"))
	assert.False(t, f.store.FileExists(handle.Path, "audio_1.wav"))
	assert.False(t, f.store.FileExists(handle.Path, "image_1.jpg"))
	assert.False(t, f.store.FileExists(handle.Path, "music"))
	assert.False(t, f.store.FileExists(handle.Path, "thumbnail.jpg"))
}

func TestGenerateSingleActiveRunPerUser(t *testing.T) {
	block := make(chan struct{})
	f := newPipelineFixture(t, Collaborators{
		Structurer: &blockingStructurer{block: block, doc: validDoc()},
		Narration:  &stubNarration{},
		Sound:      stubSound{},
		Image:      stubImage{},
	})

	_, err := f.service.Generate(context.Background(), "alice", "first")
	require.NoError(t, err)

	_, err = f.service.Generate(context.Background(), "alice", "second")
	assert.ErrorIs(t, err, domain.ErrGenerationInProgress)

	// Другой пользователь не задет блокировкой alice
	_, err = f.service.Generate(context.Background(), "bob", "third")
	require.NoError(t, err)

	close(block)
	f.notifier.waitTerminal(t)
	f.notifier.waitTerminal(t)
}

type blockingStructurer struct {
	block chan struct{}
	doc   map[string]string
}

func (s *blockingStructurer) Structure(ctx context.Context, prompt string) (map[string]string, error) {
	<-s.block
	return s.doc, nil
}

func TestRegenerateReusesStructure(t *testing.T) {
	f := newPipelineFixture(t, Collaborators{
		Structurer: &stubStructurer{doc: validDoc()},
		Narration:  &stubNarration{},
		Sound:      stubSound{},
		Image:      stubImage{},
	})

	handle, err := f.service.Generate(context.Background(), "alice", "a story")
	require.NoError(t, err)
	f.notifier.waitTerminal(t)

	structureBefore, err := f.store.ReadFile(handle.Path, storage.StructureFile)
	require.NoError(t, err)

	alice, _ := f.users.GetByUsername(context.Background(), "alice")
	stories, err := f.catalog.ListByOwner(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	identity := &model.Identity{UserID: alice.ID, Username: "alice"}

	// Портим один ассет и перегенерируем
	require.NoError(t, f.store.WriteFile(handle.Path, "paragraph_1.wav", []byte("corrupted")))

	require.NoError(t, f.service.Regenerate(context.Background(), identity, stories[0].ID))
	f.notifier.waitTerminal(t)

	data, err := f.store.ReadFile(handle.Path, "paragraph_1.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("nar:Once there was a fox."), data)

	// Структуризатор не вызывался повторно: structure.json байт-в-байт прежний
	structureAfter, err := f.store.ReadFile(handle.Path, storage.StructureFile)
	require.NoError(t, err)
	assert.Equal(t, structureBefore, structureAfter)

	// Каталог не тронут: та же единственная запись
	storiesAfter, err := f.catalog.ListByOwner(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, storiesAfter, 1)
	assert.Equal(t, stories[0].ID, storiesAfter[0].ID)
}

func TestRegenerateOwnerOnly(t *testing.T) {
	f := newPipelineFixture(t, Collaborators{
		Structurer: &stubStructurer{doc: validDoc()},
		Narration:  &stubNarration{},
		Sound:      stubSound{},
		Image:      stubImage{},
	})

	_, err := f.service.Generate(context.Background(), "alice", "a story")
	require.NoError(t, err)
	f.notifier.waitTerminal(t)

	alice, _ := f.users.GetByUsername(context.Background(), "alice")
	bob, _ := f.users.GetByUsername(context.Background(), "bob")
	stories, _ := f.catalog.ListByOwner(context.Background(), alice.ID)
	require.Len(t, stories, 1)

	err = f.service.Regenerate(context.Background(), &model.Identity{UserID: bob.ID, Username: "bob"}, stories[0].ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = f.service.Regenerate(context.Background(), nil, stories[0].ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// Несуществующая история — not found, не forbidden
	err = f.service.Regenerate(context.Background(), &model.Identity{UserID: alice.ID, Username: "alice"}, uuid.New())
	assert.ErrorIs(t, err, domain.ErrStoryNotFound)
}

func TestGetStoryAndAssetAccess(t *testing.T) {
	f := newPipelineFixture(t, Collaborators{
		Structurer: &stubStructurer{doc: validDoc()},
		Narration:  &stubNarration{},
		Sound:      stubSound{},
		Image:      stubImage{},
	})

	_, err := f.service.Generate(context.Background(), "alice", "a story")
	require.NoError(t, err)
	f.notifier.waitTerminal(t)

	alice, _ := f.users.GetByUsername(context.Background(), "alice")
	bob, _ := f.users.GetByUsername(context.Background(), "bob")
	stories, _ := f.catalog.ListByOwner(context.Background(), alice.ID)
	require.Len(t, stories, 1)
	storyID := stories[0].ID
	owner := &model.Identity{UserID: alice.ID, Username: "alice"}
	stranger := &model.Identity{UserID: bob.ID, Username: "bob"}

	// Приватная история: владелец видит, остальные — forbidden
	_, doc, err := f.service.GetStory(context.Background(), owner, storyID)
	require.NoError(t, err)
	assert.Equal(t, "The Brave Fox", doc["title"])

	_, _, err = f.service.GetStory(context.Background(), stranger, storyID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, _, err = f.service.GetStory(context.Background(), nil, storyID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// Ассет по префиксу без расширения
	data, fileName, err := f.service.GetAsset(context.Background(), owner, storyID, "paragraph_1")
	require.NoError(t, err)
	assert.Equal(t, "paragraph_1.wav", fileName)
	assert.Equal(t, []byte("nar:Once there was a fox."), data)

	_, _, err = f.service.GetAsset(context.Background(), stranger, storyID, "paragraph_1")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// Публикация открывает доступ всем
	require.NoError(t, f.service.SetVisibility(context.Background(), owner, storyID, true))
	_, _, err = f.service.GetStory(context.Background(), nil, storyID)
	assert.NoError(t, err)
	_, _, err = f.service.GetAsset(context.Background(), stranger, storyID, "thumbnail")
	assert.NoError(t, err)

	// Снять публикацию может только владелец
	err = f.service.SetVisibility(context.Background(), stranger, storyID, false)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDeleteStory(t *testing.T) {
	f := newPipelineFixture(t, Collaborators{
		Structurer: &stubStructurer{doc: validDoc()},
		Narration:  &stubNarration{},
		Sound:      stubSound{},
		Image:      stubImage{},
	})

	handle, err := f.service.Generate(context.Background(), "alice", "a story")
	require.NoError(t, err)
	f.notifier.waitTerminal(t)

	alice, _ := f.users.GetByUsername(context.Background(), "alice")
	bob, _ := f.users.GetByUsername(context.Background(), "bob")
	stories, _ := f.catalog.ListByOwner(context.Background(), alice.ID)
	require.Len(t, stories, 1)
	storyID := stories[0].ID

	err = f.service.Delete(context.Background(), &model.Identity{UserID: bob.ID, Username: "bob"}, storyID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.True(t, f.store.DirExists(handle.Path))

	err = f.service.Delete(context.Background(), &model.Identity{UserID: alice.ID, Username: "alice"}, storyID)
	require.NoError(t, err)

	// Строка и директория удалены
	_, err = f.catalog.GetByID(context.Background(), storyID)
	assert.ErrorIs(t, err, domain.ErrStoryNotFound)
	assert.False(t, f.store.DirExists(handle.Path))
}

func TestListUserStoriesOwnershipCheck(t *testing.T) {
	f := newPipelineFixture(t, Collaborators{
		Structurer: &stubStructurer{doc: validDoc()},
		Narration:  &stubNarration{},
		Sound:      stubSound{},
		Image:      stubImage{},
	})

	alice, _ := f.users.GetByUsername(context.Background(), "alice")
	owner := &model.Identity{UserID: alice.ID, Username: "alice"}

	_, err := f.service.ListUserStories(context.Background(), nil, "alice")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	bob, _ := f.users.GetByUsername(context.Background(), "bob")
	_, err = f.service.ListUserStories(context.Background(), &model.Identity{UserID: bob.ID, Username: "bob"}, "alice")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	stories, err := f.service.ListUserStories(context.Background(), owner, "alice")
	require.NoError(t, err)
	assert.Empty(t, stories)
}

func TestListPublicNormalizesPage(t *testing.T) {
	f := newPipelineFixture(t, Collaborators{
		Structurer: &stubStructurer{doc: validDoc()},
		Narration:  &stubNarration{},
		Sound:      stubSound{},
		Image:      stubImage{},
	})

	// Границы страницы нормализует только сервис; каталог получает уже
	// готовые значения
	_, err := f.service.ListPublic(context.Background(), 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 20, f.catalog.lastLimit)
	assert.Equal(t, 0, f.catalog.lastOffset)

	_, err = f.service.ListPublic(context.Background(), 500, 3)
	require.NoError(t, err)
	assert.Equal(t, 20, f.catalog.lastLimit)
	assert.Equal(t, 3, f.catalog.lastOffset)

	_, err = f.service.ListPublic(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, f.catalog.lastLimit)
	assert.Equal(t, 1, f.catalog.lastOffset)
}
