package speech

import (
	"path/filepath"
	"strings"
)

var contentTypes = map[string]string{
	"wav":  "audio/wav",
	"mp3":  "audio/mpeg",
	"webm": "audio/webm",
	"ogg":  "audio/ogg",
	"m4a":  "audio/mp4",
	"flac": "audio/flac",
}

var formatsByContentType = map[string]string{
	"audio/wav":    "wav",
	"audio/x-wav":  "wav",
	"audio/wave":   "wav",
	"audio/mpeg":   "mp3",
	"audio/mp3":    "mp3",
	"audio/webm":   "webm",
	"audio/ogg":    "ogg",
	"audio/mp4":    "m4a",
	"audio/x-m4a":  "m4a",
	"audio/flac":   "flac",
	"audio/x-flac": "flac",
}

// ContentType returns the MIME type of an audio format, defaulting to octet-stream.
func ContentType(format string) string {
	if ct, ok := contentTypes[NormalizeFormat(format)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// NormalizeFormat lower-cases format and strips a leading dot.
func NormalizeFormat(format string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
}

// DetectFormat picks the format from an explicit value, a filename or a content type,
// in that order. It falls back to wav.
func DetectFormat(explicit, filename, contentType string) string {
	if f := NormalizeFormat(explicit); f != "" {
		return f
	}
	if ext := NormalizeFormat(filepath.Ext(filename)); ext != "" {
		if _, ok := contentTypes[ext]; ok {
			return ext
		}
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if f, ok := formatsByContentType[ct]; ok {
		return f
	}
	return "wav"
}

// Filename returns name, or "audio.<format>" when name is empty.
func Filename(name, format string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return "audio." + NormalizeFormat(format)
}
