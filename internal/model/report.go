package model

import (
	"regexp"
	"strings"
	"time"
)

// Report is a generated equity research report. JSON field names follow the
// flat-file format the web pages read.
type Report struct {
	ID           string     `json:"id"`
	SymbolOrName string     `json:"symbolOrName"`
	Thesis       string     `json:"thesis"`
	Target       string     `json:"target"`
	Markdown     string     `json:"markdown"`
	Model        string     `json:"model"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// ReportUpdate carries the editable fields of a report. Nil fields are left
// unchanged.
type ReportUpdate struct {
	SymbolOrName *string `json:"symbolOrName,omitempty"`
	Thesis       *string `json:"thesis,omitempty"`
	Target       *string `json:"target,omitempty"`
	Markdown     *string `json:"markdown,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ReportUpdate) Empty() bool {
	return u.SymbolOrName == nil && u.Thesis == nil && u.Target == nil && u.Markdown == nil
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	tickerLikeRe = regexp.MustCompile(`^[a-z][a-z0-9.\-]{0,9}$`)
)

func normalizeSymbolOrName(s string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// isTickerLike reports whether an already-normalized query looks like a
// ticker code rather than a company name phrase.
func isTickerLike(q string) bool {
	if q == "" || strings.ContainsAny(q, " \t\r\n") {
		return false
	}
	return tickerLikeRe.MatchString(q)
}

// MatchesSymbolOrName decides whether a stored symbolOrName answers query.
// Full names only match exactly (case and whitespace insensitive); ticker-like
// queries also match "TICKER Company", "Company (TICKER)" and "Company [TICKER]".
func MatchesSymbolOrName(query, candidate string) bool {
	q := normalizeSymbolOrName(query)
	c := normalizeSymbolOrName(candidate)
	if q == "" || c == "" {
		return false
	}
	if q == c {
		return true
	}
	if !isTickerLike(q) {
		return false
	}
	return strings.HasPrefix(c, q+" ") || strings.Contains(c, "("+q+")") || strings.Contains(c, "["+q+"]")
}
