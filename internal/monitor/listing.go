package monitor

import (
	"fmt"
	"io"

	"github.com/roach88/kryten/internal/match"
	"github.com/roach88/kryten/internal/rules"
	"github.com/roach88/kryten/internal/variant"
)

// WriteListing writes the verbose channel listing:
//
//	PV Name: TANK:LEVEL [1]
//	Request: DBF_DOUBLE
//	Command: /usr/local/bin/tank_alarm
//	Matches: ~ 5.000 to 205.000
//	     or: = "FULL"
//
// Every channel block ends with a blank line.
func WriteListing(w io.Writer, channels []*match.Channel) error {
	for _, ch := range channels {
		if _, err := fmt.Fprintf(w, "PV Name: %s [%d]\nRequest: %s\nCommand: %s\n",
			ch.Name, ch.Index, ch.Request(), ch.Command); err != nil {
			return err
		}

		for i, r := range ch.Rules.Rules() {
			label := "Matches: "
			if i > 0 {
				label = "     or: "
			}
			if _, err := fmt.Fprintln(w, label+Criterion(r)); err != nil {
				return err
			}
		}

		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// Criterion renders one match alternative as the listing shows it.
func Criterion(r rules.Rule) string {
	s := r.Op.Symbol() + " " + image(r.Lower)
	if r.Op == rules.OpRange {
		s += " to " + image(r.Upper)
	}
	return s
}

func image(v variant.Value) string {
	if v.Kind() == variant.KindString {
		return `"` + variant.Format(v) + `"`
	}
	return variant.Format(v)
}
