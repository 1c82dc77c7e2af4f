package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// InlineSource names configuration given on the command line.
const InlineSource = "--monitor"

// Severity grades a Diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a problem found on one configuration line. Errors cause
// the entry to be skipped; warnings do not.
type Diagnostic struct {
	Source   string
	Line     int
	Severity Severity
	Message  string
	Text     string // the offending entry
}

func (d Diagnostic) Error() string {
	if d.Severity == SeverityWarning {
		return fmt.Sprintf("%s:%d warning: %s", d.Source, d.Line, d.Message)
	}
	return fmt.Sprintf("%s:%d %s", d.Source, d.Line, d.Message)
}

// Result is the outcome of a scan.
type Result struct {
	Entries     []Entry
	Diagnostics []Diagnostic
}

// Errors returns the number of error diagnostics.
func (r *Result) Errors() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Merge appends other's entries and diagnostics to r.
func (r *Result) Merge(other *Result) {
	r.Entries = append(r.Entries, other.Entries...)
	r.Diagnostics = append(r.Diagnostics, other.Diagnostics...)
}

// ScanFile scans the configuration file at path.
func ScanFile(path string, logger *slog.Logger) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open file %s: %w", path, err)
	}
	defer f.Close()

	return Scan(f, path, logger)
}

// ScanString scans configuration text given inline.
func ScanString(text string, logger *slog.Logger) (*Result, error) {
	return Scan(strings.NewReader(text), InlineSource, logger)
}

// Scan reads configuration lines from r. source names r in diagnostics.
//
// Only read failures are returned as errors. Problems with individual
// lines are logged, recorded in the Result, and the line is skipped.
func Scan(r io.Reader, source string, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &scanner{source: source, logger: logger, result: &Result{}}
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			s.lineNum++
			s.scanLine(strings.TrimRight(line, "\r\n"))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.result, fmt.Errorf("read %s: %w", source, err)
		}
	}
	return s.result, nil
}

type scanner struct {
	source  string
	lineNum int
	logger  *slog.Logger
	result  *Result
}

func (s *scanner) scanLine(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return
	}
	if len(line) > MaxLineLength {
		s.report(SeverityError, fmt.Sprintf("line exceeds %d characters", MaxLineLength), line)
		return
	}

	// TODO: a ';' inside a quoted string value still splits the line.
	for _, sub := range strings.Split(line, ";") {
		if strings.TrimSpace(sub) == "" {
			continue
		}

		p := &lineParser{src: sub}
		entry, err := p.parseEntry()
		for _, w := range p.warnings {
			s.report(SeverityWarning, w, sub)
		}
		if err != nil {
			s.report(SeverityError, err.Error(), sub)
			continue
		}

		entry.Source = s.source
		entry.Line = s.lineNum
		s.result.Entries = append(s.result.Entries, entry)
	}
}

func (s *scanner) report(sev Severity, msg, text string) {
	d := Diagnostic{
		Source:   s.source,
		Line:     s.lineNum,
		Severity: sev,
		Message:  msg,
		Text:     text,
	}
	s.result.Diagnostics = append(s.result.Diagnostics, d)

	attrs := []any{"source", s.source, "line", s.lineNum, "text", strings.TrimSpace(text)}
	if sev == SeverityWarning {
		s.logger.Warn(msg, attrs...)
		return
	}
	s.logger.Error(msg, attrs...)
}
