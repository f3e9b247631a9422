// Package timeleft parses the free-text "time remaining" strings shown on
// auction listing pages into an absolute end time. The marketplace renders
// the countdown in the language of the visitor, so the recognized unit
// tokens are a configurable table rather than a single locale.
package timeleft

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Unit is one of the countdown components a listing page may display.
type Unit int

const (
	Days Unit = iota
	Hours
	Minutes
)

// Tokens maps each unit to the localized words that denote it.
type Tokens map[Unit][]string

// DefaultTokens covers the languages the marketplace is known to serve.
func DefaultTokens() Tokens {
	return Tokens{
		Days:    {"days", "day", "jours", "jour", "días", "día", "dias", "dia", "tage", "tag", "日"},
		Hours:   {"hours", "hour", "heures", "heure", "horas", "hora", "stunden", "stunde", "時間"},
		Minutes: {"minutes", "minute", "mins", "min", "minutos", "minuto", "minuten", "分"},
	}
}

// Parser recognizes day/hour/minute quantities in countdown text.
type Parser struct {
	patterns map[Unit]*regexp.Regexp
}

// NewParser compiles one pattern per unit from the token table.
// Longer tokens are listed first in DefaultTokens so that "days" wins
// over "day" inside the alternation.
func NewParser(tokens Tokens) *Parser {
	patterns := make(map[Unit]*regexp.Regexp, len(tokens))
	for unit, words := range tokens {
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = regexp.QuoteMeta(w)
		}
		// CJK unit suffixes are written without a space: "3日".
		expr := fmt.Sprintf(`(?i)(\d+)\s*(?:%s)`, strings.Join(quoted, "|"))
		patterns[unit] = regexp.MustCompile(expr)
	}
	return &Parser{patterns: patterns}
}

// Default returns a parser over DefaultTokens.
func Default() *Parser {
	return NewParser(DefaultTokens())
}

// Minutes extracts the total remaining minutes from text. Each unit is
// independent and optional; a unit that does not appear contributes zero.
// ok is false only when no recognized unit matched anywhere in the text.
// A matched zero quantity ("0 minutes") is a valid parse of zero minutes,
// distinct from unrecognized text.
func (p *Parser) Minutes(text string) (total int, ok bool) {
	for unit, re := range p.patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		ok = true
		n, _ := strconv.Atoi(m[1])
		switch unit {
		case Days:
			total += n * 24 * 60
		case Hours:
			total += n * 60
		case Minutes:
			total += n
		}
	}
	return total, ok
}

// Parse converts text into the absolute end time relative to now.
// ok is false when the text contains no recognized unit; the caller keeps
// whatever end time it had. No timezone handling beyond now's clock: the
// site displays the countdown relative to request time.
func (p *Parser) Parse(text string, now time.Time) (end time.Time, ok bool) {
	total, ok := p.Minutes(text)
	if !ok {
		return time.Time{}, false
	}
	return now.Add(time.Duration(total) * time.Minute), true
}
