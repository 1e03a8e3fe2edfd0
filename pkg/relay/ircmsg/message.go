// Copyright 2024-2026 Aiku AI

// Package ircmsg tokenizes and renders single IRC protocol lines.
package ircmsg

import (
	"strings"
	"unicode"
)

// Message is one parsed protocol line.
type Message struct {
	// Prefix is the sender identity without the leading ':'. Empty when the
	// line had no prefix.
	Prefix string
	// Command is upper-cased so comparisons are case-insensitive.
	Command string
	Params  []string
	// Trailing reports whether the last parameter was given in trailing
	// form (":text with spaces").
	Trailing bool
}

// Parse tokenizes one line. Line terminators are stripped if present. An
// empty line yields a Message with an empty Command, and so does a line
// with leading whitespace: only a ':' in the first column marks a prefix.
func Parse(line string) Message {
	line = strings.TrimRight(line, "\r\n")

	var msg Message
	if strings.HasPrefix(line, ":") {
		var prefix string
		prefix, line = nextToken(line)
		msg.Prefix = prefix[1:]
	}

	var tokens []string
	trailing := false
	for line != "" {
		if line[0] == ':' {
			tokens = append(tokens, line[1:])
			trailing = true
			break
		}
		var tok string
		tok, line = nextToken(line)
		tokens = append(tokens, tok)
	}

	if len(tokens) == 0 || tokens[0] == "" {
		return msg
	}
	msg.Command = strings.ToUpper(tokens[0])
	if len(tokens) > 1 {
		msg.Params = tokens[1:]
		msg.Trailing = trailing
	}
	return msg
}

// nextToken splits s at the first run of whitespace.
func nextToken(s string) (tok, rest string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

// Param returns the i-th parameter or "" when absent.
func (m Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Last returns the final parameter, which is the message text for PRIVMSG.
func (m Message) Last() string {
	if len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}

// Nick returns the nickname portion of the prefix.
func (m Message) Nick() string {
	return NickOf(m.Prefix)
}

// String renders the message back to wire form without the terminator.
// The last parameter is written in trailing form whenever it was parsed
// that way or could not survive a re-parse otherwise.
func (m Message) String() string {
	if m.Command == "" {
		return ""
	}
	var sb strings.Builder
	if m.Prefix != "" {
		sb.WriteByte(':')
		sb.WriteString(m.Prefix)
		sb.WriteByte(' ')
	}
	sb.WriteString(m.Command)
	for i, p := range m.Params {
		sb.WriteByte(' ')
		if i == len(m.Params)-1 && (m.Trailing || needsTrailing(p)) {
			sb.WriteByte(':')
		}
		sb.WriteString(p)
	}
	return sb.String()
}

func needsTrailing(p string) bool {
	return p == "" || p[0] == ':' || strings.IndexFunc(p, unicode.IsSpace) >= 0
}

// NickOf strips everything from the first '!' onward.
func NickOf(prefix string) string {
	if i := strings.IndexByte(prefix, '!'); i >= 0 {
		return prefix[:i]
	}
	return prefix
}

// IsFrom reports whether prefix is a full user mask ("nick!user@host")
// belonging to nick. Server prefixes never match.
func IsFrom(prefix, nick string) bool {
	return nick != "" && strings.HasPrefix(prefix, nick+"!")
}
