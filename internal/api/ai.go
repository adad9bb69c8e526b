package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const maxQuestionLength = 2000

const tutorPrompt = `You are a friendly private tutor. Your student is studying from a recorded lesson.
Answer their question based ONLY on the lesson transcript below. Answer in
Hebrew unless code is requested. If the answer is not in the lesson, say so
plainly.

Lesson transcript:
%s

Student question: %s`

const studyPrompt = `Analyze the following lesson transcript. Return only a valid JSON object:
{"summary": "three short paragraphs in Hebrew",
 "key_points": ["exactly 3 main points in Hebrew"],
 "quiz": [{"question": "...", "options": ["...","...","...","..."], "correct_index": 0, "explanation": "..."}]}
The quiz must contain exactly 5 questions, each with 4 options.

Lesson transcript:
%s`

type askRequest struct {
	TaskID   string `json:"task_id"`
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// Ask answers a free-form question grounded in a completed transcript.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	if h.gemini == nil {
		respondError(w, http.StatusServiceUnavailable, "AI features are not configured")
		return
	}

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.TaskID == "" {
		respondError(w, http.StatusBadRequest, "missing task_id")
		return
	}
	if req.Question == "" {
		respondError(w, http.StatusBadRequest, "missing question")
		return
	}
	if len(req.Question) > maxQuestionLength {
		respondError(w, http.StatusBadRequest, "question too long")
		return
	}

	_, text, errStatus, errMsg := h.completedTranscript(req.TaskID)
	if errMsg != "" {
		respondError(w, errStatus, errMsg)
		return
	}

	answer, err := h.gemini.Generate(r.Context(), fmt.Sprintf(tutorPrompt, text, req.Question))
	if err != nil {
		h.logger.Error("ask failed", "task_id", req.TaskID, "error", err)
		respondAIError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, askResponse{Answer: answer})
}

type studyRequest struct {
	TaskID string `json:"task_id"`
}

// StudyMaterial generates a summary plus quiz from a completed transcript.
func (h *Handler) StudyMaterial(w http.ResponseWriter, r *http.Request) {
	if h.gemini == nil {
		respondError(w, http.StatusServiceUnavailable, "AI features are not configured")
		return
	}

	var req studyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TaskID == "" {
		respondError(w, http.StatusBadRequest, "missing task_id")
		return
	}

	_, text, errStatus, errMsg := h.completedTranscript(req.TaskID)
	if errMsg != "" {
		respondError(w, errStatus, errMsg)
		return
	}

	raw, err := h.gemini.Generate(r.Context(), fmt.Sprintf(studyPrompt, text))
	if err != nil {
		h.logger.Error("study material generation failed", "task_id", req.TaskID, "error", err)
		respondAIError(w, err)
		return
	}

	// The model is asked for bare JSON; pass it through after validating.
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")

	var material map[string]any
	if err := json.Unmarshal([]byte(cleaned), &material); err != nil {
		respondError(w, http.StatusInternalServerError, "invalid AI response format")
		return
	}
	for _, key := range []string{"summary", "key_points", "quiz"} {
		if _, ok := material[key]; !ok {
			respondError(w, http.StatusInternalServerError, "AI response missing "+key)
			return
		}
	}

	respondJSON(w, http.StatusOK, material)
}

// respondAIError maps quota errors to 429 so clients can back off.
func respondAIError(w http.ResponseWriter, err error) {
	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "quota") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		respondError(w, http.StatusTooManyRequests, "AI quota exhausted, try again later")
		return
	}
	respondError(w, http.StatusInternalServerError, "AI error")
}
