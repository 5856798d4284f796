package domain

import (
	"path"
	"strings"
)

const (
	TypeImage = "image"
	TypeVideo = "video"
)

var videoMimeTypes = map[string]string{
	"mp4":  "video/mp4",
	"m4v":  "video/mp4",
	"webm": "video/webm",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"mkv":  "video/x-matroska",
	"ogv":  "video/ogg",
}

func referenceExt(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(ref), "."))
}

// IsVideoReference reports whether a hosted URL or path names a video file.
func IsVideoReference(ref string) bool {
	_, ok := videoMimeTypes[referenceExt(ref)]
	return ok
}

// VideoMimeType falls back to video/mp4 for unknown suffixes.
func VideoMimeType(ref string) string {
	if mime, ok := videoMimeTypes[referenceExt(ref)]; ok {
		return mime
	}
	return "video/mp4"
}

// IsVideoUpload classifies a pending file by its declared content type.
func IsVideoUpload(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "video/")
}

func ReferenceType(ref string) string {
	if IsVideoReference(ref) {
		return TypeVideo
	}
	return TypeImage
}
