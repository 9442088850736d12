package services

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

const intakePrefix = "intake"

// nonAlphanumericRegex is a compiled regex for efficiency.
var nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)

// sanitizeFileName converts an uploaded filename into a safe GCS object name
// component, keeping its extension.
func sanitizeFileName(filename string) string {
	lower := strings.ToLower(path.Base(strings.ReplaceAll(filename, "\\", "/")))
	ext := path.Ext(lower)
	base := strings.TrimSuffix(lower, ext)

	sanitized := strings.Trim(nonAlphanumericRegex.ReplaceAllString(base, "_"), "_")
	const maxLength = 100
	if len(sanitized) > maxLength {
		sanitized = strings.Trim(sanitized[:maxLength], "_")
	}
	if sanitized == "" {
		sanitized = "file"
	}

	ext = strings.Trim(nonAlphanumericRegex.ReplaceAllString(strings.TrimPrefix(ext, "."), ""), "_")
	if ext == "" {
		return sanitized
	}
	return sanitized + "." + ext
}

// IntakeObjectName is where the browser writes the bytes of one upload.
func IntakeObjectName(sessionID, documentID, filename string) string {
	return fmt.Sprintf("%s/%s/%s/%s", intakePrefix, sessionID, documentID, sanitizeFileName(filename))
}

// ParseIntakeObjectName recovers the session and document ids from an
// intake object name.
func ParseIntakeObjectName(name string) (sessionID, documentID string, ok bool) {
	parts := strings.Split(name, "/")
	if len(parts) != 4 || parts[0] != intakePrefix {
		return "", "", false
	}
	if parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
