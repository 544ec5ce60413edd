package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"story-server/internal/domain"
)

// TextStructurer converts free story prose into the flat tag->text form of a
// structural document. The output is validated by domain.FromMap before any
// asset generation starts.
type TextStructurer interface {
	Structure(ctx context.Context, prompt string) (map[string]string, error)
}

// Инструкция для модели: плоский JSON-объект со словарем тегов документа.
const structurerSystemPrompt = `You are a children's story writer. Turn the user's prompt into a short illustrated story and answer with a single flat JSON object and nothing else.

Keys and their values:
- "title": the story title.
- "thumbnail": one visual prompt for the story's cover illustration.
- "paragraph1".."paragraphN": the story text, one key per paragraph, indices dense from 1.
- after every paragraph boundary emit exactly one "audioN" key (a short sound-effect prompt fitting that moment) and exactly one "imageN" key (a visual prompt for an illustration of that moment), indices dense from 1.
- "music": one prompt describing background music for the whole story.

Every value is a plain string. Do not nest objects or arrays.`

// StructurerConfig содержит конфигурацию для клиента структуризатора
type StructurerConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// OpenAIStructurer реализует TextStructurer поверх OpenAI-совместимого API.
type OpenAIStructurer struct {
	client     *openai.Client
	model      string
	maxRetries int
}

var _ TextStructurer = (*OpenAIStructurer)(nil)

// NewOpenAIStructurer создает новый экземпляр клиента структуризатора
func NewOpenAIStructurer(cfg StructurerConfig) (*OpenAIStructurer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("не указан API ключ для структуризатора")
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek/deepseek-chat-v3-0324:free"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIStructurer{
		client:     openai.NewClientWithConfig(config),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Structure запрашивает у модели структурный документ истории.
func (c *OpenAIStructurer) Structure(ctx context.Context, prompt string) (map[string]string, error) {
	attempts := 0
	for attempts < c.maxRetries {
		attempts++

		req := openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: structurerSystemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.7,
			MaxTokens:   4000,
			TopP:        0.95,
		}

		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Int("attempt", attempts).Msg("Ошибка при вызове CreateChatCompletion")
			if attempts >= c.maxRetries {
				return nil, fmt.Errorf("%w: AI call failed after %d attempts: %v", domain.ErrStructuringFailed, attempts, err)
			}
			time.Sleep(time.Duration(attempts) * time.Second)
			continue
		}

		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			log.Ctx(ctx).Warn().Int("attempt", attempts).Msg("Пустой ответ от AI")
			if attempts >= c.maxRetries {
				return nil, fmt.Errorf("%w: empty AI response after %d attempts", domain.ErrStructuringFailed, attempts)
			}
			time.Sleep(time.Duration(attempts) * time.Second)
			continue
		}

		doc, err := parseStructuredReply(resp.Choices[0].Message.Content)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Int("attempt", attempts).Msg("Ответ AI не является валидным JSON-объектом, пробуем снова")
			if attempts >= c.maxRetries {
				return nil, err
			}
			time.Sleep(time.Duration(attempts) * time.Second)
			continue
		}

		return doc, nil
	}

	return nil, fmt.Errorf("%w: no valid AI response", domain.ErrStructuringFailed)
}

// parseStructuredReply extracts the flat JSON object from a model reply,
// tolerating markdown code fences around it.
func parseStructuredReply(reply string) (map[string]string, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: reply contains no JSON object", domain.ErrStructuringFailed)
	}

	var doc map[string]string
	if err := json.Unmarshal([]byte(reply[start:end+1]), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStructuringFailed, err)
	}
	return doc, nil
}
