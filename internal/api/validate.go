package api

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Allowed upload extensions, matching what the download/transcode pipeline
// can handle.
var allowedExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true,
	".webm": true, ".flv": true, ".mp3": true, ".wav": true,
	".m4a": true, ".ogg": true,
}

// Recognized source URL shapes. The generic https pattern is a deliberate
// fallback: yt-dlp supports far more sites than we can enumerate.
var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^https?://(?:www\.)?youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`(?i)^https?://(?:www\.)?youtu\.be/[\w-]+`),
	regexp.MustCompile(`(?i)^https?://[\w.-]+\.zoom\.us/rec/`),
	regexp.MustCompile(`(?i)^https://`),
}

const maxURLLength = 2000

// validateURL checks that a submitted URL is safe to hand to the downloader.
func validateURL(url string) error {
	if url == "" {
		return fmt.Errorf("url is required")
	}
	if len(url) > maxURLLength {
		return fmt.Errorf("url too long (max %d chars)", maxURLLength)
	}
	for _, p := range urlPatterns {
		if p.MatchString(url) {
			return nil
		}
	}
	return fmt.Errorf("invalid or unsupported url format")
}

// validateUploadName checks the extension of an uploaded file name.
func validateUploadName(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return fmt.Errorf("invalid file type %q", ext)
	}
	return nil
}

// sanitizeFilename strips path components and shell-unfriendly characters
// from a client-supplied file name.
var unsafeChars = regexp.MustCompile(`[^\w.-]+`)

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = unsafeChars.ReplaceAllString(name, "_")
	return strings.Trim(name, "._")
}

// pathWithin reports whether path resolves inside one of the allowed
// directories. Guards the download endpoint against path traversal.
func pathWithin(path string, allowedDirs []string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, dir := range allowedDirs {
		dirAbs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if abs == dirAbs || strings.HasPrefix(abs, dirAbs+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
