package diarize

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonatanl/tamlil/internal/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNoopDiarize(t *testing.T) {
	turns, err := Noop{}.Diarize(context.Background(), "/tmp/a.wav")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestServiceDiarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/diarize", r.URL.Path)

		var req struct {
			AudioPath string `json:"audio_path"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/tmp/shiur.wav", req.AudioPath)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"turns": []map[string]any{
				{"start": 0.0, "end": 4.5, "speaker": "SPEAKER_00"},
				{"start": 4.5, "end": 9.0, "speaker": "SPEAKER_01"},
			},
		})
	}))
	defer srv.Close()

	s := NewService(srv.URL, testLogger())
	turns, err := s.Diarize(context.Background(), "/tmp/shiur.wav")
	require.NoError(t, err)

	require.Len(t, turns, 2)
	assert.Equal(t, task.Turn{Start: 0, End: 4.5, Speaker: "SPEAKER_00"}, turns[0])
	assert.Equal(t, task.Turn{Start: 4.5, End: 9, Speaker: "SPEAKER_01"}, turns[1])
}

func TestServiceDiarizeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewService(srv.URL, testLogger())
	_, err := s.Diarize(context.Background(), "/tmp/a.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestServiceDiarizeUnreachable(t *testing.T) {
	s := NewService("http://127.0.0.1:1", testLogger())
	_, err := s.Diarize(context.Background(), "/tmp/a.wav")
	assert.Error(t, err)
}
