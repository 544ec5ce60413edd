package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SoundKind selects the sound synthesizer mode.
type SoundKind string

const (
	SoundEffect SoundKind = "effect"
	SoundMusic  SoundKind = "music"
)

// NarrationSynthesizer turns narration text into speech audio (wav bytes).
type NarrationSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SoundSynthesizer turns a text prompt into short audio, parameterized by
// duration and kind.
type SoundSynthesizer interface {
	Synthesize(ctx context.Context, text string, duration time.Duration, kind SoundKind) ([]byte, error)
}

// ImageSynthesizer turns a text prompt into a raster image (jpeg bytes).
// Style and aspect ratio are client configuration, not per-call parameters.
type ImageSynthesizer interface {
	Synthesize(ctx context.Context, prompt string) ([]byte, error)
}

// SidecarConfig описывает один HTTP-сервис инференса.
type SidecarConfig struct {
	BaseURL string
	Timeout time.Duration
}

func newSidecarClient(cfg SidecarConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// callSidecar POSTs a JSON payload to an inference sidecar and returns the
// raw response body (the generated media bytes).
func callSidecar(ctx context.Context, client *http.Client, url string, payload any, accept string) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read response body: %w", readErr)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("API returned empty media data")
	}
	return body, nil
}

// --- Narration ---

type httpNarrationSynthesizer struct {
	baseURL string
	client  *http.Client
}

var _ NarrationSynthesizer = (*httpNarrationSynthesizer)(nil)

// NewHTTPNarrationSynthesizer создает клиент TTS-сервиса.
func NewHTTPNarrationSynthesizer(cfg SidecarConfig) NarrationSynthesizer {
	return &httpNarrationSynthesizer{baseURL: cfg.BaseURL, client: newSidecarClient(cfg)}
}

func (s *httpNarrationSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload := struct {
		Text string `json:"text"`
	}{Text: text}
	return callSidecar(ctx, s.client, s.baseURL+"/synthesize", payload, "audio/wav")
}

// --- Sound effects and music ---

type httpSoundSynthesizer struct {
	baseURL string
	client  *http.Client
}

var _ SoundSynthesizer = (*httpSoundSynthesizer)(nil)

// NewHTTPSoundSynthesizer создает клиент сервиса генерации звука.
func NewHTTPSoundSynthesizer(cfg SidecarConfig) SoundSynthesizer {
	return &httpSoundSynthesizer{baseURL: cfg.BaseURL, client: newSidecarClient(cfg)}
}

func (s *httpSoundSynthesizer) Synthesize(ctx context.Context, text string, duration time.Duration, kind SoundKind) ([]byte, error) {
	payload := struct {
		Text            string  `json:"text"`
		DurationSeconds float64 `json:"duration_seconds"`
		Kind            string  `json:"kind"`
	}{Text: text, DurationSeconds: duration.Seconds(), Kind: string(kind)}
	return callSidecar(ctx, s.client, s.baseURL+"/generate", payload, "audio/wav")
}

// --- Images ---

// ImageConfig содержит конфигурацию клиента генерации изображений.
type ImageConfig struct {
	SidecarConfig
	StyleSuffix string
	Ratio       string
}

type httpImageSynthesizer struct {
	baseURL     string
	client      *http.Client
	styleSuffix string
	ratio       string
}

var _ ImageSynthesizer = (*httpImageSynthesizer)(nil)

// NewHTTPImageSynthesizer создает клиент сервиса генерации изображений.
func NewHTTPImageSynthesizer(cfg ImageConfig) ImageSynthesizer {
	ratio := cfg.Ratio
	if ratio == "" {
		ratio = "4:3"
	}
	return &httpImageSynthesizer{
		baseURL:     cfg.BaseURL,
		client:      newSidecarClient(cfg.SidecarConfig),
		styleSuffix: cfg.StyleSuffix,
		ratio:       ratio,
	}
}

func (s *httpImageSynthesizer) Synthesize(ctx context.Context, prompt string) ([]byte, error) {
	payload := struct {
		Prompt string `json:"prompt"`
		Ratio  string `json:"ratio"`
	}{Prompt: prompt + s.styleSuffix, Ratio: s.ratio}
	return callSidecar(ctx, s.client, s.baseURL+"/generate", payload, "image/*")
}
