package task

import (
	"encoding/json"
	"os"
)

// segmentsDoc matches the layout consumed by the export endpoints.
type segmentsDoc struct {
	Segments []Segment `json:"segments"`
}

func writeSegmentsJSON(path string, segments []Segment) error {
	data, err := json.Marshal(segmentsDoc{Segments: segments})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSegmentsJSON loads a companion segments file written by the worker.
func ReadSegmentsJSON(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc segmentsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Segments, nil
}
