// Package lexicon holds the safety-critical wordlists the correction
// layer matches against: crisis phrases, per-emotion override keywords,
// and the stress/positive keyword sets used in explanations.
//
// The lists are versioned configuration, not code. A deployment can
// load an audited YAML file to replace the built-in defaults without a
// code change; the default set ships as version "v1". All patterns are
// compiled once at construction with word-boundary matching on
// normalized text (lowercased, whitespace collapsed).
package lexicon

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mbd888/mindfuse/internal/emotion"
)

// File is the on-disk YAML schema for a lexicon.
type File struct {
	Version          string              `yaml:"version"`
	CrisisPhrases    []string            `yaml:"crisisPhrases"`
	Overrides        map[string][]string `yaml:"overrides"` // lowercase label -> phrases
	StressKeywords   []string            `yaml:"stressKeywords"`
	PositiveKeywords []string            `yaml:"positiveKeywords"`
}

// OverrideMatch is one override category that matched the text, with
// the first keyword that triggered it.
type OverrideMatch struct {
	Label   emotion.Label
	Keyword string
}

type pattern struct {
	phrase string
	re     *regexp.Regexp
}

type overrideSet struct {
	label    emotion.Label
	patterns []pattern
}

// Lexicon is a compiled, immutable wordlist set. Safe for concurrent use.
type Lexicon struct {
	version   string
	crisis    []pattern
	overrides []overrideSet
	stress    []pattern
	positive  []pattern
}

// overrideOrder fixes the category evaluation order so results are
// deterministic regardless of map iteration.
var overrideOrder = []string{"happy", "anxious", "sad", "angry", "fearful"}

// Default returns the built-in v1 lexicon.
func Default() *Lexicon {
	l, err := New(defaultFile)
	if err != nil {
		// The default tables are static; a compile failure is a
		// programming error, not a runtime condition.
		panic(fmt.Sprintf("lexicon: default tables failed to compile: %v", err))
	}
	return l
}

// LoadFile reads and compiles a lexicon from a YAML file.
func LoadFile(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lexicon: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("lexicon: parse %s: %w", path, err)
	}
	l, err := New(f)
	if err != nil {
		return nil, fmt.Errorf("lexicon: compile %s: %w", path, err)
	}
	return l, nil
}

// New compiles a lexicon from a File.
func New(f File) (*Lexicon, error) {
	if f.Version == "" {
		return nil, fmt.Errorf("missing version")
	}
	if len(f.CrisisPhrases) == 0 {
		return nil, fmt.Errorf("crisisPhrases must not be empty")
	}

	l := &Lexicon{version: f.Version}

	var err error
	if l.crisis, err = compile(f.CrisisPhrases); err != nil {
		return nil, err
	}
	if l.stress, err = compile(f.StressKeywords); err != nil {
		return nil, err
	}
	if l.positive, err = compile(f.PositiveKeywords); err != nil {
		return nil, err
	}

	for _, key := range overrideOrder {
		phrases, ok := f.Overrides[key]
		if !ok || len(phrases) == 0 {
			continue
		}
		pats, err := compile(phrases)
		if err != nil {
			return nil, err
		}
		l.overrides = append(l.overrides, overrideSet{
			label:    emotion.Canonical(key),
			patterns: pats,
		})
	}
	return l, nil
}

func compile(phrases []string) ([]pattern, error) {
	out := make([]pattern, 0, len(phrases))
	for _, p := range phrases {
		norm := Normalize(p)
		if norm == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(norm) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		out = append(out, pattern{phrase: norm, re: re})
	}
	return out, nil
}

// Normalize lowercases text and collapses runs of whitespace to single
// spaces. All matching happens against normalized text.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Version returns the lexicon's version string.
func (l *Lexicon) Version() string { return l.version }

// MatchCrisis tests normalized text against the crisis list and
// returns the first matching phrase, in list order.
func (l *Lexicon) MatchCrisis(text string) (string, bool) {
	norm := Normalize(text)
	if norm == "" {
		return "", false
	}
	for _, p := range l.crisis {
		if p.re.MatchString(norm) {
			return p.phrase, true
		}
	}
	return "", false
}

// MatchOverrides returns every override category that matches the
// text, each with the first keyword that matched. The caller decides
// what an unambiguous match means.
func (l *Lexicon) MatchOverrides(text string) []OverrideMatch {
	norm := Normalize(text)
	if norm == "" {
		return nil
	}
	var out []OverrideMatch
	for _, set := range l.overrides {
		for _, p := range set.patterns {
			if p.re.MatchString(norm) {
				out = append(out, OverrideMatch{Label: set.label, Keyword: p.phrase})
				break
			}
		}
	}
	return out
}

// MatchStress returns the stress keywords present in the text.
func (l *Lexicon) MatchStress(text string) []string {
	return matchAll(l.stress, text)
}

// MatchPositive returns the positive keywords present in the text.
func (l *Lexicon) MatchPositive(text string) []string {
	return matchAll(l.positive, text)
}

func matchAll(pats []pattern, text string) []string {
	norm := Normalize(text)
	if norm == "" {
		return nil
	}
	var out []string
	for _, p := range pats {
		if p.re.MatchString(norm) {
			out = append(out, p.phrase)
		}
	}
	return out
}
