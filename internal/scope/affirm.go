package scope

import "strings"

// affirmations is the lexicon treated as explicit confirmation while a
// session awaits final sign-off. Matching is deliberately conservative: a
// message that merely contains "yes" somewhere inside a longer correction
// should not scope the session.
var affirmations = []string{
	"yes",
	"yep",
	"yeah",
	"correct",
	"confirm",
	"confirmed",
	"that's right",
	"thats right",
	"looks good",
	"sounds good",
	"sounds right",
	"lgtm",
	"ship it",
}

// IsAffirmation reports whether the message is an explicit confirmation.
func IsAffirmation(message string) bool {
	m := strings.ToLower(strings.TrimSpace(message))
	m = strings.TrimRight(m, ".!? ")
	if m == "" {
		return false
	}
	for _, a := range affirmations {
		if m == a {
			return true
		}
	}
	// Allow a single trailing clause like "yes, that works".
	for _, a := range []string{"yes,", "yes -", "yep,", "correct,"} {
		if strings.HasPrefix(m, a) {
			return true
		}
	}
	return false
}
