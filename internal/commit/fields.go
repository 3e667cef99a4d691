package commit

import (
	"regexp"
	"strings"

	"github.com/draftroom/draftroom/internal/model"
)

// AssignAtPath sets value at the given key path inside obj, creating
// intermediate maps as needed. An existing non-map value on the path is
// replaced by a map.
func AssignAtPath(obj map[string]any, path []string, value any) {
	if len(path) == 0 {
		return
	}
	for _, key := range path[:len(path)-1] {
		child, ok := obj[key].(map[string]any)
		if !ok {
			child = make(map[string]any)
			obj[key] = child
		}
		obj = child
	}
	obj[path[len(path)-1]] = value
}

// expandAdvancedValues turns a flat map whose keys may contain "." into a
// nested map structure ("a.b.c" becomes {a: {b: {c: value}}}).
func expandAdvancedValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		AssignAtPath(out, strings.Split(key, "."), value)
	}
	return out
}

// normalizeMediaType maps a draft's media type onto the remote store's
// accepted set. An "html" source type is a document; anything unknown
// defaults to document as well.
func normalizeMediaType(mediaType string) string {
	switch mediaType {
	case model.MediaPDF, model.MediaAudio, model.MediaVideo:
		return mediaType
	default:
		return model.MediaDocument
	}
}

// assembleFields derives the upload field set from the draft's media type,
// processing flags, and expanded advanced values.
func assembleFields(d *model.ContentDraft) map[string]any {
	fields := map[string]any{
		"media_type":         normalizeMediaType(d.MediaType),
		"perform_analysis":   d.ProcessingOptions.PerformAnalysis,
		"perform_chunking":   d.ProcessingOptions.PerformChunking,
		"overwrite_existing": d.ProcessingOptions.OverwriteExisting,
	}
	for key, value := range expandAdvancedValues(d.ProcessingOptions.AdvancedValues) {
		fields[key] = value
	}
	return fields
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// sanitizeFileName reduces a draft title to a safe file name stem.
func sanitizeFileName(title string) string {
	name := unsafeFileChars.ReplaceAllString(strings.TrimSpace(title), "_")
	name = strings.Trim(name, "._-")
	if name == "" {
		name = "draft"
	}
	return name
}

// synthesizedFileName names the ephemeral file built from current draft
// content when no stored asset exists: the sanitized title with an extension
// chosen by the content format.
func synthesizedFileName(d *model.ContentDraft) string {
	ext := ".txt"
	if d.ContentFormat == model.FormatMarkdown {
		ext = ".md"
	}
	return sanitizeFileName(d.Title) + ext
}

// synthesizedMimeType matches the synthesized file's extension.
func synthesizedMimeType(d *model.ContentDraft) string {
	if d.ContentFormat == model.FormatMarkdown {
		return "text/markdown"
	}
	return "text/plain"
}
