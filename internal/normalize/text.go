package normalize

import "strings"

var nullLike = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
	"null": true,
}

// IsNullLike reports whether s is empty or a textual null marker such as
// "nan" or "None".
func IsNullLike(s string) bool {
	return nullLike[strings.ToLower(strings.TrimSpace(s))]
}

// Text returns the trimmed string, or fallback when s is null-like.
func Text(s, fallback string) Result[string] {
	if IsNullLike(s) {
		return Result[string]{Value: fallback, Defaulted: true}
	}
	return Result[string]{Value: strings.TrimSpace(s)}
}
