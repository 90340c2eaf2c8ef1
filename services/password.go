package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 8

// MaxPasswordBytes is the longest password bcrypt accepts, in bytes
const MaxPasswordBytes = 72

// maxSimilarity is the Ratcliff/Obershelp ratio above which a password is
// considered too close to a user attribute
const maxSimilarity = 0.7

var commonPasswords = map[string]struct{}{}

func init() {
	for _, p := range strings.Fields(`
		123456 123456789 12345678 12345 1234567 1234567890 111111 000000 123123 654321
		password password1 password123 passw0rd qwerty qwerty123 qwertyuiop abc123 abcd1234
		letmein welcome welcome1 admin admin123 iloveyou monkey dragon football baseball
		sunshine princess master shadow superman trustno1 starwars whatever freedom
		login hello123 changeme secret secret123 default guest zaq12wsx 1q2w3e4r asdfghjkl
	`) {
		commonPasswords[p] = struct{}{}
	}
}

var attributeSplit = regexp.MustCompile(`\W+`)

// ValidatePassword applies the password policy and returns every failure message
func ValidatePassword(password, username, email string) []string {
	var msgs []string

	attrs := []struct {
		label string
		value string
	}{
		{"username", username},
		{"email address", email},
	}
	for _, a := range attrs {
		if a.value != "" && tooSimilar(password, a.value) {
			msgs = append(msgs, fmt.Sprintf("The password is too similar to the %s.", a.label))
			break
		}
	}

	if len([]rune(password)) < MinPasswordLength {
		msgs = append(msgs, fmt.Sprintf("This password is too short. It must contain at least %d characters.", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		msgs = append(msgs, fmt.Sprintf("This password is too long. It must contain at most %d bytes.", MaxPasswordBytes))
	}
	if _, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]; ok {
		msgs = append(msgs, "This password is too common.")
	}
	if password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		msgs = append(msgs, "This password is entirely numeric.")
	}
	return msgs
}

func tooSimilar(password, attr string) bool {
	pw := strings.ToLower(password)
	attr = strings.ToLower(attr)
	parts := append([]string{attr}, attributeSplit.Split(attr, -1)...)
	for _, part := range parts {
		if part == "" {
			continue
		}
		if similarity(pw, part) >= maxSimilarity {
			return true
		}
	}
	return false
}

// similarity is 2*M/T where M counts characters in recursively matched common blocks
func similarity(a, b string) float64 {
	if len(a)+len(b) == 0 {
		return 0
	}
	return 2 * float64(matchingChars(a, b)) / float64(len(a)+len(b))
}

func matchingChars(a, b string) int {
	i, j, k := longestCommonSubstring(a, b)
	if k == 0 {
		return 0
	}
	return k + matchingChars(a[:i], b[:j]) + matchingChars(a[i+k:], b[j+k:])
}

func longestCommonSubstring(a, b string) (int, int, int) {
	bestI, bestJ, bestK := 0, 0, 0
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestK {
					bestI, bestJ, bestK = i-cur[j], j-cur[j], cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return bestI, bestJ, bestK
}
