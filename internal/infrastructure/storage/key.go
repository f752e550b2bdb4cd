package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
	extPattern  = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)
)

// ObjectKey builds a collision-free, date-partitioned key for an uploaded file
func ObjectKey(now time.Time, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if !extPattern.MatchString(ext) {
		ext = ""
	}

	return fmt.Sprintf("uploads/%04d/%02d/%s-%s%s",
		now.Year(), now.Month(), uuid.NewString(), sanitizeName(strings.TrimSuffix(filename, path.Ext(filename))), ext)
}

// sanitizeName keeps alphanumerics, hyphens and underscores
func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "")
	if len(name) > 64 {
		name = name[:64]
	}
	if name == "" {
		name = "file"
	}
	return name
}
