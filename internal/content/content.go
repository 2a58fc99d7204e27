package content

import (
	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.UGCPolicy()

// Sanitize removes unsafe HTML from the input string using a strict policy.
// Used for user-supplied profile fields before they are broadcast.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// SanitizeProfile sanitizes every string value of a profile-update payload
// in place. Non-string values pass through untouched.
func SanitizeProfile(data map[string]any) map[string]any {
	for k, v := range data {
		if s, ok := v.(string); ok {
			data[k] = Sanitize(s)
		}
	}
	return data
}
