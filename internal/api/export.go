package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"github.com/yonatanl/tamlil/internal/task"
)

const (
	exportFont     = "Arial"
	exportFontSize = 11
)

// ExportDocx renders a completed task's transcript as a DOCX document with
// speaker-grouped paragraphs and serves it as a download.
func (h *Handler) ExportDocx(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	t, ok := h.manager.GetStatus(id)
	if !ok {
		respondError(w, http.StatusNotFound, "task not found")
		return
	}
	if t.Status != task.StatusCompleted || t.Result == nil {
		respondError(w, http.StatusBadRequest, "transcription not completed")
		return
	}

	segments := t.Result.Segments
	if len(segments) == 0 && t.Result.TranscriptPath != "" {
		segPath := strings.TrimSuffix(t.Result.TranscriptPath, ".txt") + "_segments.json"
		loaded, err := task.ReadSegmentsJSON(segPath)
		if err != nil {
			h.logger.Error("failed to load segments file", "task_id", id, "error", err)
		}
		segments = loaded
	}
	if len(segments) == 0 {
		respondError(w, http.StatusNotFound, "no transcript segments available")
		return
	}

	base := "transcript_" + id
	if t.Result.TranscriptPath != "" {
		base = strings.TrimSuffix(filepath.Base(t.Result.TranscriptPath), ".txt")
	}

	outPath := filepath.Join(h.outputDir, base+".docx")
	if err := writeTranscriptDocx(base, segments, outPath); err != nil {
		h.logger.Error("docx export failed", "task_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "export failed")
		return
	}

	h.logger.Info("exported docx", "task_id", id, "path", outPath)
	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(outPath)))
	http.ServeFile(w, r, outPath)
}

// writeTranscriptDocx renders segments into a DOCX file. Consecutive
// segments by the same speaker merge into one paragraph with a bold speaker
// prefix.
func writeTranscriptDocx(title string, segments []task.Segment, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	doc, err := godocx.NewDocument()
	if err != nil {
		return err
	}

	heading := doc.AddParagraph("")
	heading.AddText("Transcript: "+title).Font(exportFont).Size(16).Bold(true).Color("000000")
	doc.AddParagraph("")

	var current *docx.Paragraph
	currentSpeaker := ""
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if current == nil || seg.Speaker != currentSpeaker {
			current = doc.AddParagraph("")
			current.AddText(seg.Speaker+": ").Font(exportFont).Size(12).Bold(true).Color("003366")
			current.AddText(text).Font(exportFont).Size(exportFontSize).Color("000000")
			currentSpeaker = seg.Speaker
			continue
		}
		current.AddText(" "+text).Font(exportFont).Size(exportFontSize).Color("000000")
	}

	return doc.SaveTo(outPath)
}
