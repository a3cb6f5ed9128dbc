package model

// SupportedLanguages is the ordered set of catalog languages a user can
// toggle. Order is preserved in every resolved allow-list.
var SupportedLanguages = []string{"ru", "be", "uk"}

// LanguagePolicy is the per-user language allow-list. A user with no
// stored policy is treated as allowing everything; the record is only
// created on the first explicit toggle.
type LanguagePolicy struct {
	UserID  int64    `json:"user_id"`
	Allowed []string `json:"allowed"`
}

// DefaultPolicy allows every supported language.
func DefaultPolicy(userID int64) LanguagePolicy {
	allowed := make([]string, len(SupportedLanguages))
	copy(allowed, SupportedLanguages)
	return LanguagePolicy{UserID: userID, Allowed: allowed}
}

// Allows reports whether the language code is in the allow-list.
func (p LanguagePolicy) Allows(code string) bool {
	for _, c := range p.Allowed {
		if c == code {
			return true
		}
	}
	return false
}

// Toggle returns a copy of the policy with the given language switched
// on or off. The allow-list keeps SupportedLanguages order regardless of
// toggle sequence.
func (p LanguagePolicy) Toggle(code string, on bool) LanguagePolicy {
	next := LanguagePolicy{UserID: p.UserID}
	for _, c := range SupportedLanguages {
		if c == code {
			if on {
				next.Allowed = append(next.Allowed, c)
			}
			continue
		}
		if p.Allows(c) {
			next.Allowed = append(next.Allowed, c)
		}
	}
	return next
}
