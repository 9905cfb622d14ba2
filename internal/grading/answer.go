// Package grading reconciles submitted answers against stored answer keys
// and grades whole submissions.
package grading

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// AnswerKind tags the shape an answer arrived in.
type AnswerKind int

const (
	// KindUnresolved is free text that maps to no option.
	KindUnresolved AnswerKind = iota
	// KindLetter is a bare option label such as "B", "B)" or "b.".
	KindLetter
	// KindFullText is the exact text of one of the options.
	KindFullText
)

func (k AnswerKind) String() string {
	switch k {
	case KindLetter:
		return "letter"
	case KindFullText:
		return "full_text"
	default:
		return "unresolved"
	}
}

// Answer is a parsed answer. Letter is set for KindLetter and KindFullText;
// Option is the matched option index for KindFullText and -1 otherwise.
type Answer struct {
	Kind   AnswerKind
	Raw    string
	Letter string
	Option int
}

// ParseAnswer classifies text against the option list. Without options
// every answer is unresolved.
func ParseAnswer(text string, options []string) Answer {
	a := Answer{Kind: KindUnresolved, Raw: text, Option: -1}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len(options) == 0 {
		return a
	}

	for i, opt := range options {
		if trimmed == opt {
			if label, ok := leadingLabel(opt); ok {
				a.Kind = KindFullText
				a.Letter = label
				a.Option = i
				return a
			}
		}
	}

	if label, ok := bareLabel(trimmed); ok {
		a.Kind = KindLetter
		a.Letter = label
	}
	return a
}

// ResolveFullAnswer maps a stored answer to the full option text it refers
// to. Anything that cannot be resolved is returned unchanged.
func ResolveFullAnswer(answer string, options []string) string {
	if len(options) == 0 || answer == "" {
		return answer
	}

	a := ParseAnswer(answer, options)
	switch a.Kind {
	case KindLetter:
		if i := optionByLabel(options, a.Letter); i >= 0 {
			return options[i]
		}
		return answer
	case KindFullText:
		return options[a.Option]
	default:
		return answer
	}
}

// NormalizeForComparison reduces an answer to its option letter when it
// refers to an option, and to lowercase text otherwise.
func NormalizeForComparison(text string, options []string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	a := ParseAnswer(trimmed, options)
	switch a.Kind {
	case KindLetter, KindFullText:
		return a.Letter
	default:
		return strings.ToLower(trimmed)
	}
}

// AnswersMatch applies the MCQ and True/False equality policy: the
// normalized letters agree, or the user's answer equals the resolved full
// correct answer ignoring case and surrounding whitespace.
func AnswersMatch(userAnswer, storedAnswer string, options []string) bool {
	if NormalizeForComparison(userAnswer, options) == NormalizeForComparison(storedAnswer, options) {
		return true
	}
	return fold(userAnswer) == fold(ResolveFullAnswer(storedAnswer, options))
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// bareLabel reports whether s, after dropping trailing ")" and ".", is a
// single letter or digit, and returns it uppercased.
func bareLabel(s string) (string, bool) {
	s = strings.TrimRight(s, ")")
	s = strings.TrimRight(s, ".")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) != 1 {
		return "", false
	}
	r, _ := utf8.DecodeRuneInString(s)
	if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
		return "", false
	}
	return string(unicode.ToUpper(r)), true
}

// leadingLabel returns the uppercased first character of an option.
func leadingLabel(option string) (string, bool) {
	option = strings.TrimSpace(option)
	if option == "" {
		return "", false
	}
	r, _ := utf8.DecodeRuneInString(option)
	return string(unicode.ToUpper(r)), true
}

func optionByLabel(options []string, label string) int {
	for i, opt := range options {
		if l, ok := leadingLabel(opt); ok && l == label {
			return i
		}
	}
	return -1
}
