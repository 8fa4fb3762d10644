package config

import (
	"fmt"
	"strings"
	"unicode"
)

// argvScanner splits a shell-like command string into argv tokens.
// It understands single/double quotes and backslash escapes, nothing more.
type argvScanner struct {
	tokens  []string
	current strings.Builder
	inToken bool
	quote   rune
	escaped bool
}

func (s *argvScanner) feed(r rune) {
	if s.escaped {
		s.current.WriteRune(r)
		s.escaped = false
		return
	}

	switch {
	case r == '\\' && s.quote != '\'':
		s.escaped = true
		s.inToken = true
	case s.quote != 0 && r == s.quote:
		s.quote = 0
	case s.quote != 0:
		s.current.WriteRune(r)
	case r == '"' || r == '\'':
		s.quote = r
		s.inToken = true
	case unicode.IsSpace(r):
		s.emit()
	default:
		s.current.WriteRune(r)
		s.inToken = true
	}
}

func (s *argvScanner) emit() {
	if !s.inToken {
		return
	}
	s.tokens = append(s.tokens, s.current.String())
	s.current.Reset()
	s.inToken = false
}

// parseArgv turns a configured command line (for example player_cmd) into argv.
func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return nil, nil
	}

	var s argvScanner
	for _, r := range input {
		s.feed(r)
	}

	if s.escaped {
		return nil, fmt.Errorf("dangling escape in command %q", input)
	}
	if s.quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote in command %q", s.quote, input)
	}

	s.emit()
	return s.tokens, nil
}
