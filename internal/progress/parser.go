package progress

import (
	"strings"
)

const (
	defaultTailLines = 20
	maxLineBytes     = 4096
	maxTailLineBytes = 512
)

// Parser consumes an encoder's diagnostic stream chunk by chunk. Records are
// split on '\r' and '\n'; a record cut across two chunks is carried over in a
// bounded buffer, so memory stays constant however long the process runs.
//
// Parser is not safe for concurrent use; each supervised process owns one.
type Parser struct {
	partial []byte
	latest  Sample
	tail    []string
	tailMax int
}

// NewParser builds a parser that keeps the last tailLines non-progress lines
// for error reporting. tailLines <= 0 uses a default of 20.
func NewParser(tailLines int) *Parser {
	if tailLines <= 0 {
		tailLines = defaultTailLines
	}
	return &Parser{tailMax: tailLines}
}

// Feed processes the next chunk of output. It returns the merged latest
// sample and whether any complete record in this chunk carried a marker.
func (p *Parser) Feed(chunk []byte) (Sample, bool) {
	updated := false
	start := 0
	for i, b := range chunk {
		if b != '\n' && b != '\r' {
			continue
		}
		if p.consume(chunk[start:i]) {
			updated = true
		}
		start = i + 1
	}
	p.carry(chunk[start:])
	return p.latest, updated
}

// Flush processes whatever partial record remains, typically at EOF.
func (p *Parser) Flush() (Sample, bool) {
	updated := p.consume(nil)
	return p.latest, updated
}

// Latest returns the merged sample seen so far.
func (p *Parser) Latest() Sample {
	return p.latest
}

// Tail returns the retained trailing diagnostic lines joined by newlines.
func (p *Parser) Tail() string {
	return strings.Join(p.tail, "\n")
}

func (p *Parser) consume(rest []byte) bool {
	var line string
	if len(p.partial) > 0 {
		line = string(append(p.partial, rest...))
		p.partial = p.partial[:0]
	} else {
		line = string(rest)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	sample := ParseLine(line)
	if sample.HasElapsed() || sample.HasSpeed() {
		p.latest = p.latest.Merge(sample)
		return true
	}
	p.remember(line)
	if !sample.Empty() {
		p.latest = p.latest.Merge(sample)
		return true
	}
	return false
}

func (p *Parser) carry(rest []byte) {
	if len(rest) == 0 {
		return
	}
	p.partial = append(p.partial, rest...)
	if over := len(p.partial) - maxLineBytes; over > 0 {
		p.partial = append(p.partial[:0], p.partial[over:]...)
	}
}

func (p *Parser) remember(line string) {
	if len(line) > maxTailLineBytes {
		line = line[:maxTailLineBytes]
	}
	if len(p.tail) == p.tailMax {
		copy(p.tail, p.tail[1:])
		p.tail = p.tail[:p.tailMax-1]
	}
	p.tail = append(p.tail, line)
}
