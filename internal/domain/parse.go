package domain

import (
	"regexp"
	"strings"
)

const (
	DefaultHeadline    = "No Headline Available"
	DefaultDescription = "No description available."

	// headlineLine is the 0-based line that carries the headline in the
	// Bureau forecast layout (four lines of product header precede it).
	headlineLine = 4
)

var (
	// issuedStampRe matches an issue stamp line such as
	// "12:00pm Monday on Monday 1 January 2024".
	issuedStampRe = regexp.MustCompile(`(?i)^\d{1,2}:\d{2}(am|pm)? \w+ on \w+ \d{1,2} \w+ \d{4}`)

	// preamblePrefixes start lines that sit between the headline and the
	// description body.
	preamblePrefixes = []string{"Forecast for", "Fire Danger:", "Sun protection"}
)

// BulletinParser turns a raw bulletin into a ParsedWarning. Implementations
// must not fail: when the expected layout is absent they fall back to the
// default headline and description.
type BulletinParser interface {
	Parse(raw RawBulletin, id WarningID) ParsedWarning
}

// ParserFunc adapts a plain function to BulletinParser.
type ParserFunc func(raw RawBulletin, id WarningID) ParsedWarning

// Parse calls f(raw, id).
func (f ParserFunc) Parse(raw RawBulletin, id WarningID) ParsedWarning { return f(raw, id) }

// Parsers dispatches on the bulletin product type. Product types without a
// registered parser use the positional heuristic in ParseBulletin.
type Parsers struct {
	byProductType map[string]BulletinParser
}

// DefaultParsers returns a registry that routes every bulletin to ParseBulletin.
func DefaultParsers() *Parsers {
	return &Parsers{byProductType: make(map[string]BulletinParser)}
}

// Register installs a parser for one product type, replacing any previous one.
func (p *Parsers) Register(productType string, parser BulletinParser) {
	p.byProductType[productType] = parser
}

// Parse routes raw to the parser registered for its product type.
func (p *Parsers) Parse(raw RawBulletin, id WarningID) ParsedWarning {
	if parser, ok := p.byProductType[raw.ProductType]; ok {
		return parser.Parse(raw, id)
	}
	return ParseBulletin(raw, id)
}

// ParseBulletin derives a headline and description from the bulletin text
// using a line-oriented heuristic:
//
//   - With more than four lines and a non-blank line 4, line 4 is the
//     headline. The description starts at the first later non-blank line
//     that is not an issue stamp or a "Forecast for" / "Fire Danger:" /
//     "Sun protection" preamble; without one it is everything after line 4.
//   - Otherwise the first line is the headline and the rest the description.
//
// An empty body has no lines and keeps DefaultHeadline and
// DefaultDescription. IssuedAt and FullText are copied verbatim and the ID
// is the caller's.
func ParseBulletin(raw RawBulletin, id WarningID) ParsedWarning {
	headline, description := DefaultHeadline, DefaultDescription
	if raw.Text != "" {
		headline, description = splitHeadline(strings.Split(raw.Text, "\n"))
	}

	return ParsedWarning{
		ID:          id,
		Headline:    headline,
		Description: description,
		IssuedAt:    raw.IssueTimeUTC,
		FullText:    raw.Text,
		ProductType: raw.ProductType,
		Service:     raw.Service,
		ExpiryTime:  raw.ExpiryTime,
	}
}

func splitHeadline(lines []string) (headline, description string) {
	if len(lines) > headlineLine && strings.TrimSpace(lines[headlineLine]) != "" {
		headline = strings.TrimSpace(lines[headlineLine])
		start := descriptionStart(lines, headlineLine+1)
		if start < 0 {
			start = headlineLine + 1
		}
		return headline, joinTrimmed(lines[start:])
	}

	return strings.TrimSpace(lines[0]), joinTrimmed(lines[1:])
}

// descriptionStart returns the index of the first body line at or after
// from, or -1 if every remaining line is blank or preamble.
func descriptionStart(lines []string, from int) int {
	for i := from; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || isPreamble(line) {
			continue
		}
		return i
	}
	return -1
}

func isPreamble(line string) bool {
	if issuedStampRe.MatchString(line) {
		return true
	}
	for _, prefix := range preamblePrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func joinTrimmed(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
