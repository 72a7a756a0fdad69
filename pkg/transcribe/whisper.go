package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// Whisper transcribes speaking recordings through the OpenAI audio API.
type Whisper struct {
	client *openai.Client
	http   *http.Client
	logger zerolog.Logger
}

// New constructs a Whisper transcriber.
func New(apiKey string, logger zerolog.Logger) (*Whisper, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key must be provided")
	}

	return &Whisper{
		client: openai.NewClient(apiKey),
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger.With().Str("component", "transcriber").Logger(),
	}, nil
}

// Transcribe downloads the recording and returns its transcript.
func (w *Whisper) Transcribe(ctx context.Context, audioURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("recording download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read recording: %w", err)
	}

	response, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "recording.webm",
		Reader:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}

	w.logger.Debug().Str("audio_url", audioURL).Int("bytes", len(data)).Msg("recording transcribed")

	return response.Text, nil
}
