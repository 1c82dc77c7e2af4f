// Package config parses the channel monitoring configuration.
//
// Each effective line names a channel, an optional element index, one or
// more match alternatives separated by '|', and the command to run on a
// match-state change:
//
//	# name      [index]  alternatives              command
//	TANK:LEVEL           5.0 ~ 205.0               /usr/local/bin/notify
//	PUMP:STATE  [2]      "Running" | "Starting"    logger -t kryten %p is %v
//	FLOW:RATE            < 0 | > 1.0e4             quit 3
//
// A line may hold several entries separated by ';'. Blank lines and lines
// starting with '#' are skipped. Malformed entries are reported and
// skipped; they never abort a scan.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/kryten/internal/dispatch"
	"github.com/roach88/kryten/internal/rules"
	"github.com/roach88/kryten/internal/variant"
)

// Limits applied while parsing.
const (
	MaxLineLength    = 255
	MaxNameLength    = 79
	MaxCommandLength = 120
	MaxIndex         = 1000
)

var errPrematureEOL = errors.New("premature end of line")

// Entry is one parsed channel registration.
type Entry struct {
	Name  string
	Index int
	Rules *rules.Set

	// Command is the template as written, white space collapsed. The
	// default parameters of a simple command are added at render time.
	Command string

	// Source and Line locate the entry for diagnostics.
	Source string
	Line   int
}

// lineParser walks one entry (a ';'-separated sub-line).
type lineParser struct {
	src      string
	pos      int
	warnings []string
}

func (p *lineParser) skipSpace() {
	for p.pos < len(p.src) && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *lineParser) atEnd() bool {
	return p.pos >= len(p.src)
}

func (p *lineParser) peek() byte {
	if p.atEnd() {
		return 0
	}
	return p.src[p.pos]
}

// skipSpaceOrFail skips white space and fails at end of input.
func (p *lineParser) skipSpaceOrFail() error {
	p.skipSpace()
	if p.atEnd() {
		return errPrematureEOL
	}
	return nil
}

func (p *lineParser) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

// parseEntry parses a single entry. Warnings are collected on p; the
// returned error, if any, means the entry must be skipped.
func (p *lineParser) parseEntry() (Entry, error) {
	e := Entry{Index: 1, Rules: &rules.Set{}}

	if err := p.skipSpaceOrFail(); err != nil {
		return e, err
	}

	start := p.pos
	for !p.atEnd() && !isSpace(p.peek()) {
		p.pos++
	}
	e.Name = p.src[start:p.pos]

	if first := e.Name[0]; !isAlnum(first) && first != '$' {
		return e, fmt.Errorf("invalid PV name: %s", e.Name)
	}
	if len(e.Name) > MaxNameLength {
		return e, errors.New("pv name too long")
	}

	if err := p.skipSpaceOrFail(); err != nil {
		return e, err
	}

	if p.peek() == '[' {
		index, err := p.parseIndex()
		if err != nil {
			return e, err
		}
		e.Index = index
	}

	if err := p.parseAlternatives(e.Rules); err != nil {
		return e, err
	}

	if err := p.skipSpaceOrFail(); err != nil {
		return e, err
	}

	// The command is the rest of the entry with white space collapsed.
	e.Command = strings.Join(strings.Fields(p.src[p.pos:]), " ")
	if len(dispatch.WithDefaultParameters(e.Command)) > MaxCommandLength {
		return e, errors.New("command too long")
	}

	return e, nil
}

func (p *lineParser) parseIndex() (int, error) {
	p.pos++ // '['

	end := strings.IndexByte(p.src[p.pos:], ']')
	if end < 0 {
		return 0, errors.New("missing ']'")
	}
	item := p.src[p.pos : p.pos+end]
	p.pos += end + 1

	n, ok := variant.ParseInteger(item)
	if !ok {
		return 0, fmt.Errorf("index item [%s] is not a valid integer", item)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid PV index: %d", n)
	}
	if n > MaxIndex {
		p.warnf("PV index %d is unusually large", n)
	}

	if err := p.skipSpaceOrFail(); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (p *lineParser) parseAlternatives(set *rules.Set) error {
	for {
		if err := p.skipSpaceOrFail(); err != nil {
			return err
		}

		rule, err := p.parseMatch()
		if err != nil {
			return err
		}

		mismatches, err := set.Add(rule)
		if err != nil {
			return fmt.Errorf("attempting to specify %w", err)
		}
		for _, m := range mismatches {
			p.warnf("%s value of sub-match %d is %s, expecting %s.", m.Which, set.Len(), m.Kind, m.Expected)
		}

		if err := p.skipSpaceOrFail(); err != nil {
			return err
		}
		if p.peek() != '|' {
			return nil
		}
		p.pos++
	}
}

// parseMatch reads "op value", "value" or "value ~ value".
func (p *lineParser) parseMatch() (rules.Rule, error) {
	rest := p.src[p.pos:]
	for _, op := range rules.Prefixes {
		sym := op.Symbol()
		if !strings.HasPrefix(rest, sym) {
			continue
		}
		p.pos += len(sym)
		if err := p.skipSpaceOrFail(); err != nil {
			return rules.Rule{}, err
		}
		bound, err := p.parseValue()
		if err != nil {
			return rules.Rule{}, err
		}
		return rules.NewComparison(op, bound), nil
	}

	lower, err := p.parseValue()
	if err != nil {
		return rules.Rule{}, err
	}
	if err := p.skipSpaceOrFail(); err != nil {
		return rules.Rule{}, err
	}
	if p.peek() != '~' {
		return rules.NewComparison(rules.OpEqual, lower), nil
	}

	p.pos++
	if err := p.skipSpaceOrFail(); err != nil {
		return rules.Rule{}, err
	}
	upper, err := p.parseValue()
	if err != nil {
		return rules.Rule{}, err
	}
	return rules.NewRange(lower, upper), nil
}

// parseValue reads one value token: a double-quoted string up to its
// closing quote, or a run of characters up to white space, '~' or '|'.
func (p *lineParser) parseValue() (variant.Value, error) {
	p.skipSpace()
	if p.atEnd() {
		return nil, errPrematureEOL
	}

	start := p.pos
	quoted := p.peek() == '"'
	if quoted {
		p.pos++
		for !p.atEnd() && p.peek() != '"' {
			p.pos++
		}
		if !p.atEnd() {
			p.pos++
		}
	} else {
		for !p.atEnd() {
			c := p.peek()
			if isSpace(c) || c == '~' || c == '|' {
				break
			}
			p.pos++
		}
	}
	item := p.src[start:p.pos]

	v := variant.Parse(item)
	if s, ok := v.(variant.String); ok {
		if _, err := variant.NewString(string(s)); err != nil {
			if quoted {
				return nil, fmt.Errorf("quoted string too big: %s", item)
			}
			return nil, fmt.Errorf("un-quoted string too big: %s", item)
		}
	}
	return v, nil
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
