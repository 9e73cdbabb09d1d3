package catalog

import "strings"

// BucketName lower-cases s, replaces every character outside [a-z0-9.-] with "-",
// and truncates to 63 characters.
func BucketName(s string) string {
	return truncate(replaceOutside(strings.ToLower(s), func(r rune) bool {
		return isLowerAlnum(r) || r == '.' || r == '-'
	}, '-'), 63)
}

// StorageAccountName keeps lower-case letters and digits only, truncated to 24 characters.
func StorageAccountName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if isLowerAlnum(r) {
			b.WriteRune(r)
		}
	}
	return truncate(b.String(), 24)
}

// ResourceLabel lower-cases s and replaces every character outside [a-z0-9-] with "-".
func ResourceLabel(s string) string {
	return truncate(replaceOutside(strings.ToLower(s), func(r rune) bool {
		return isLowerAlnum(r) || r == '-'
	}, '-'), 63)
}

func replaceOutside(s string, keep func(rune) bool, with rune) string {
	return strings.Map(func(r rune) rune {
		if keep(r) {
			return r
		}
		return with
	}, s)
}

func isLowerAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
