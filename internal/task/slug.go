package task

import (
	"strings"
	"time"
)

// maxSlugLength bounds the slug so task directory names stay well under
// filesystem name limits.
const maxSlugLength = 60

// Slugify converts a human task title into a directory-safe slug:
// lowercased, alphanumeric runs joined by single hyphens, at most
// maxSlugLength characters. Returns "" when the title contains no usable
// characters.
func Slugify(title string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
	}
	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// DirName builds the task directory name for a creation date and slug.
func DirName(created time.Time, slug string) string {
	return created.Format("01-02") + "-" + slug
}

// SlugFromDir strips the MM-DD- date prefix from a task directory name.
// Names without a date prefix are returned unchanged.
func SlugFromDir(dir string) string {
	if len(dir) > 6 && hasDatePrefix(dir) {
		return dir[6:]
	}
	return dir
}

func hasDatePrefix(dir string) bool {
	if len(dir) < 6 || dir[2] != '-' || dir[5] != '-' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if dir[i] < '0' || dir[i] > '9' {
			return false
		}
	}
	return true
}
