// Package diarize labels transcript segments with speaker identities.
package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/yonatanl/tamlil/internal/task"
)

// Noop is the diarizer used when no service is configured. It returns no
// turns, so every segment keeps its placeholder speaker and the pipeline
// code stays unconditional.
type Noop struct{}

// Diarize returns an empty turn list.
func (Noop) Diarize(ctx context.Context, audioPath string) ([]task.Turn, error) {
	return nil, nil
}

// Service calls a speaker-diarization sidecar (a pyannote HTTP wrapper
// sharing the host filesystem) and returns its speaker turns.
type Service struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewService creates a diarization client for the sidecar at baseURL.
func NewService(baseURL string, logger *slog.Logger) *Service {
	return &Service{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Minute},
		logger:  logger,
	}
}

type diarizeRequest struct {
	AudioPath string `json:"audio_path"`
}

type diarizeResponse struct {
	Turns []task.Turn `json:"turns"`
}

// Diarize submits the audio path to the sidecar and decodes its turns.
func (s *Service) Diarize(ctx context.Context, audioPath string) ([]task.Turn, error) {
	body, err := json.Marshal(diarizeRequest{AudioPath: audioPath})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/diarize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	s.logger.Info("requesting diarization", "path", audioPath)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("diarization request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("diarization service returned %s", resp.Status)
	}

	var out diarizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode diarization response: %w", err)
	}

	s.logger.Info("diarization complete", "turns", len(out.Turns))
	return out.Turns, nil
}
