// Package locale holds the display language and resolves translation keys.
// It is independent of the transit store.
package locale

import (
	_ "embed"
	"fmt"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

type Language string

const (
	English Language = "en"
	Hindi   Language = "hi"
)

// Supported lists the languages in matcher preference order.
var Supported = []Language{English, Hindi}

//go:embed translations.yaml
var defaultTranslations []byte

// Tables maps a language to its key/string table.
type Tables map[Language]map[string]string

// ParseTables decodes a YAML document of the form {en: {key: text}, hi: {...}}.
func ParseTables(b []byte) (Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parse translations: %w", err)
	}
	return t, nil
}

// DefaultTables returns the built-in English and Hindi tables.
func DefaultTables() Tables {
	t, err := ParseTables(defaultTranslations)
	if err != nil {
		panic(err)
	}
	return t
}

type Store struct {
	mu     sync.RWMutex
	lang   Language
	tables Tables
}

func New(lang Language, tables Tables) *Store {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Store{lang: lang, tables: tables}
}

func (s *Store) SetLanguage(lang Language) {
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
}

func (s *Store) Language() Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lang
}

// T resolves key in the current language. An unknown key (or an empty
// entry) resolves to the key itself so it stays visible in the output.
func (s *Store) T(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v := s.tables[s.lang][key]; v != "" {
		return v
	}
	return key
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Hindi})

// Match picks the supported language closest to an Accept-Language header
// value, English when nothing matches.
func Match(acceptLanguage string) Language {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return English
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return English
	}
	return Supported[idx]
}

// Parse maps a language code to a supported Language.
func Parse(code string) (Language, bool) {
	tag, err := language.Parse(code)
	if err != nil {
		return "", false
	}
	base, _ := tag.Base()
	for _, l := range Supported {
		if base.String() == string(l) {
			return l, true
		}
	}
	return "", false
}
