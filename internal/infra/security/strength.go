package security

import (
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// StrengthLevel buckets a strength score for display.
type StrengthLevel string

const (
	LevelVeryWeak   StrengthLevel = "VERY_WEAK"
	LevelWeak       StrengthLevel = "WEAK"
	LevelFair       StrengthLevel = "FAIR"
	LevelGood       StrengthLevel = "GOOD"
	LevelStrong     StrengthLevel = "STRONG"
	LevelVeryStrong StrengthLevel = "VERY_STRONG"
)

const (
	strengthMinLength       = 8
	strengthTargetLength    = 12
	acceptanceScoreFloor    = 60
	minZxcvbnNotCommonScore = 2
)

// StrengthRequirements reports each individual acceptance requirement.
type StrengthRequirements struct {
	MinLength     bool `json:"min_length"`
	Uppercase     bool `json:"uppercase"`
	Lowercase     bool `json:"lowercase"`
	Digit         bool `json:"digit"`
	Special       bool `json:"special"`
	NotCommon     bool `json:"not_common"`
	NotSequential bool `json:"not_sequential"`
	NotRepeated   bool `json:"not_repeated"`
	NotUserInfo   bool `json:"not_user_info"`
}

// All reports whether every requirement holds.
func (r StrengthRequirements) All() bool {
	return r.MinLength && r.Uppercase && r.Lowercase && r.Digit && r.Special &&
		r.NotCommon && r.NotSequential && r.NotRepeated && r.NotUserInfo
}

// StrengthResult is the outcome of a strength calculation.
type StrengthResult struct {
	Score        int                  `json:"score"`
	Level        StrengthLevel        `json:"level"`
	Requirements StrengthRequirements `json:"requirements"`
}

// CalculateStrength scores a password 0-100. Length tiers contribute up to 25
// points, each character class 10, each satisfied anti-pattern requirement a
// bonus, plus up to 10 points for length beyond the target. userTokens are
// identity fragments (email local part, name) the password must not contain.
func CalculateStrength(password string, userTokens []string) StrengthResult {
	length := len([]rune(password))

	req := StrengthRequirements{
		MinLength:     length >= strengthMinLength,
		NotCommon:     notCommon(password, userTokens),
		NotSequential: !hasSequentialRun(password, 3),
		NotRepeated:   !hasRepeatedRun(password, 3),
		NotUserInfo:   !containsUserInfo(password, userTokens),
	}

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			req.Uppercase = true
		case unicode.IsLower(r):
			req.Lowercase = true
		case unicode.IsDigit(r):
			req.Digit = true
		case unicode.IsSymbol(r) || unicode.IsPunct(r):
			req.Special = true
		}
	}

	score := 0
	switch {
	case length >= 16:
		score += 25
	case length >= strengthTargetLength:
		score += 20
	case length >= strengthMinLength:
		score += 10
	}

	for _, ok := range []bool{req.Uppercase, req.Lowercase, req.Digit, req.Special} {
		if ok {
			score += 10
		}
	}

	if req.NotCommon {
		score += 10
	}
	if req.NotSequential {
		score += 5
	}
	if req.NotRepeated {
		score += 5
	}
	if req.NotUserInfo {
		score += 5
	}

	if length > strengthTargetLength {
		bonus := length - strengthTargetLength
		if bonus > 10 {
			bonus = 10
		}
		score += bonus
	}

	if score > 100 {
		score = 100
	}

	return StrengthResult{
		Score:        score,
		Level:        levelFor(score),
		Requirements: req,
	}
}

// ValidatePasswordStrength enforces the acceptance floor: the score must
// reach 60 and every individual requirement must hold.
func ValidatePasswordStrength(password string, userTokens []string) (StrengthResult, bool) {
	result := CalculateStrength(password, userTokens)
	return result, result.Score >= acceptanceScoreFloor && result.Requirements.All()
}

func levelFor(score int) StrengthLevel {
	switch {
	case score < 20:
		return LevelVeryWeak
	case score < 40:
		return LevelWeak
	case score < 60:
		return LevelFair
	case score < 75:
		return LevelGood
	case score < 90:
		return LevelStrong
	default:
		return LevelVeryStrong
	}
}

func notCommon(password string, userTokens []string) bool {
	if password == "" {
		return false
	}
	return zxcvbn.PasswordStrength(password, userTokens).Score >= minZxcvbnNotCommonScore
}

func hasSequentialRun(password string, runLength int) bool {
	runes := []rune(strings.ToLower(password))
	if len(runes) < runLength {
		return false
	}

	asc, desc := 1, 1
	for i := 1; i < len(runes); i++ {
		alnum := isAlnum(runes[i]) && isAlnum(runes[i-1])
		if alnum && runes[i] == runes[i-1]+1 {
			asc++
		} else {
			asc = 1
		}
		if alnum && runes[i] == runes[i-1]-1 {
			desc++
		} else {
			desc = 1
		}
		if asc >= runLength || desc >= runLength {
			return true
		}
	}

	return false
}

func hasRepeatedRun(password string, runLength int) bool {
	runes := []rune(password)
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= runLength {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func containsUserInfo(password string, userTokens []string) bool {
	lowered := strings.ToLower(password)
	for _, token := range userTokens {
		token = strings.ToLower(strings.TrimSpace(token))
		if len(token) >= 3 && strings.Contains(lowered, token) {
			return true
		}
	}
	return false
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
