// Package naming implements the pure, deterministic name and version
// conventions used on the wire: CamelCase/snake_case conversion and the
// <base><major>[sp<servicePatch>][V<subsequentPatch>] versioned command
// name grammar.
package naming

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

var (
	lowerUpper  = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	acronymWord = regexp.MustCompile(`([A-Z])([A-Z][a-z])`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// ToSnake converts a wire-form name (CamelCase, or an arbitrary string
// with embedded whitespace) into its canonical internal snake_case form.
//
//	ToSnake("XMLParser")  == "xml_parser"
//	ToSnake("UserId")     == "user_id"
func ToSnake(name string) string {
	name = strings.TrimSpace(name)
	name = whitespace.ReplaceAllString(name, "_")
	name = lowerUpper.ReplaceAllString(name, "${1}_${2}")
	name = acronymWord.ReplaceAllString(name, "${1}_${2}")
	return strings.ToLower(name)
}

// ToCamel converts an internal snake_case name to its wire-form
// lowerCamelCase equivalent.
//
//	ToCamel("user_id") == "userId"
func ToCamel(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// Version is the parsed form of a versioned command/class name:
// <Base><Major>[sp<ServicePatch>][V<SubsequentPatch>].
type Version struct {
	Base            string
	Major           int
	ServicePatch    int
	SubsequentPatch int
}

var versionPattern = regexp.MustCompile(`^([A-Za-z]+)(?:(\d+)(?:sp(\d+))?(?:V(\d+))?)?$`)

// ParseVersion parses a versioned wire name into its components. It
// fails with an error when name does not conform to the grammar.
func ParseVersion(name string) (Version, error) {
	m := versionPattern.FindStringSubmatch(name)
	if m == nil {
		return Version{}, fmt.Errorf("naming: invalid command format: %q", name)
	}

	v := Version{Base: m[1]}
	if m[2] != "" {
		major, err := strconv.Atoi(m[2])
		if err != nil {
			return Version{}, fmt.Errorf("naming: invalid major version in %q: %w", name, err)
		}
		v.Major = major
	}
	if m[3] != "" {
		sp, err := strconv.Atoi(m[3])
		if err != nil {
			return Version{}, fmt.Errorf("naming: invalid service patch in %q: %w", name, err)
		}
		v.ServicePatch = sp
	}
	if m[4] != "" {
		sub, err := strconv.Atoi(m[4])
		if err != nil {
			return Version{}, fmt.Errorf("naming: invalid subsequent patch in %q: %w", name, err)
		}
		v.SubsequentPatch = sub
	}
	return v, nil
}

// HighestVersion returns, among names whose base matches base, the one
// maximizing (major, servicePatch, subsequentPatch) lexicographically.
// Names that don't parse are ignored. Returns ok == false when nothing
// matches.
func HighestVersion(base string, names []string) (highest string, ok bool) {
	var bestVer Version
	for _, name := range names {
		v, err := ParseVersion(name)
		if err != nil || v.Base != base {
			continue
		}
		if !ok || higher(v, bestVer) {
			bestVer = v
			highest = name
			ok = true
		}
	}
	return highest, ok
}

func higher(a, b Version) bool {
	if a.Major != b.Major {
		return a.Major > b.Major
	}
	if a.ServicePatch != b.ServicePatch {
		return a.ServicePatch > b.ServicePatch
	}
	return a.SubsequentPatch > b.SubsequentPatch
}

// NormalisePhoneNumber strips wrapping quotes and surrounding whitespace
// from a phone number string as returned in some OCI table cells.
func NormalisePhoneNumber(phone string) string {
	cleaned := strings.TrimSpace(phone)
	if cleaned == "" {
		return ""
	}
	if len(cleaned) >= 2 {
		if (cleaned[0] == '"' && cleaned[len(cleaned)-1] == '"') ||
			(cleaned[0] == '\'' && cleaned[len(cleaned)-1] == '\'') {
			cleaned = cleaned[1 : len(cleaned)-1]
		}
	}
	return strings.TrimSpace(cleaned)
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// ExpandPhoneRange expands a range string like "+1-4072383011 - +1-4072383017"
// into the individual numbers it spans, inclusive of both ends. Strings
// without the " - " separator are returned as a single-element slice.
func ExpandPhoneRange(rangeStr string) []string {
	const sep = " - "
	idx := strings.Index(rangeStr, sep)
	if idx < 0 {
		return []string{rangeStr}
	}

	start := strings.TrimSpace(rangeStr[:idx])
	end := strings.TrimSpace(rangeStr[idx+len(sep):])

	startMatch := trailingDigits.FindStringSubmatchIndex(start)
	endMatch := trailingDigits.FindStringSubmatchIndex(end)
	if startMatch == nil || endMatch == nil {
		return []string{rangeStr}
	}

	startNum, err1 := strconv.Atoi(start[startMatch[2]:startMatch[3]])
	endNum, err2 := strconv.Atoi(end[endMatch[2]:endMatch[3]])
	if err1 != nil || err2 != nil {
		return []string{rangeStr}
	}

	prefix := start[:startMatch[2]]
	out := make([]string, 0, endNum-startNum+1)
	for n := startNum; n <= endNum; n++ {
		out = append(out, fmt.Sprintf("%s%d", prefix, n))
	}
	return out
}

const (
	secureLower  = "abcdefghijklmnopqrstuvwxyz"
	secureUpper  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	secureDigits = "0123456789"
	secureSymbol = "!@#$%&*-_=+"
	secureAll    = secureLower + secureUpper + secureDigits + secureSymbol
)

// GenerateSecurePassword returns a cryptographically secure password of
// the given length, guaranteeing at least one lowercase, one uppercase,
// one digit and one symbol character. length must be at least 8,
// matching OCI's minimum provisioning password requirement.
func GenerateSecurePassword(length int) (string, error) {
	if length < 8 {
		return "", fmt.Errorf("naming: password length must be at least 8, got %d", length)
	}

	required := []string{secureLower, secureUpper, secureDigits, secureSymbol}
	chars := make([]byte, 0, length)
	for _, alphabet := range required {
		c, err := randChar(alphabet)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for len(chars) < length {
		c, err := randChar(secureAll)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	if err := shuffle(chars); err != nil {
		return "", err
	}
	return string(chars), nil
}

func randChar(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("naming: generating secure password: %w", err)
	}
	return alphabet[n.Int64()], nil
}

func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("naming: shuffling secure password: %w", err)
		}
		b[i], b[j.Int64()] = b[j.Int64()], b[i]
	}
	return nil
}
