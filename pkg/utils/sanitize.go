package utils

import (
	"regexp"
	"strings"
	"time"
)

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`) // Characters invalid in Windows/Unix filenames
var consecutiveUnderscores = regexp.MustCompile(`_+`)
const maxFilenameLength = 100

// SanitizeFilename cleans a string to be safe for use as a filename component
func SanitizeFilename(name string) string {
	sanitized := invalidFilenameChars.ReplaceAllString(name, "_")
	sanitized = strings.ReplaceAll(sanitized, ".", "_") // Domains: keep the extension slot free
	sanitized = consecutiveUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_ ")

	if len(sanitized) > maxFilenameLength {
		sanitized = strings.Trim(sanitized[:maxFilenameLength], "_ ")
	}
	if sanitized == "" {
		sanitized = "untitled"
	}
	return sanitized
}

// ExportFilename builds "<domain>_<yyyymmdd-hhmmss>.<ext>" for report files.
func ExportFilename(domain string, at time.Time, ext string) string {
	return SanitizeFilename(domain) + "_" + at.UTC().Format("20060102-150405") + "." + strings.TrimPrefix(ext, ".")
}
