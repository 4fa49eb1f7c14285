// Package reasoning implements the hidden-thought-trace stream parser
// described in spec §4.2, ported from the state machine in the original
// implementation's reasoning_parser.rs: a chunk-boundary-safe scanner that
// splits a linear stream of text deltas into visible text and reasoning
// text, recognising <think>...</think> and <thinking>...</thinking> blocks.
package reasoning

import "strings"

// Format identifies which tag family is currently open.
type Format int

const (
	formatNone Format = iota
	FormatThink
	FormatThinking
)

func (f Format) openTag() string {
	switch f {
	case FormatThink:
		return "<think>"
	case FormatThinking:
		return "<thinking>"
	default:
		return ""
	}
}

func (f Format) closeTag() string {
	switch f {
	case FormatThink:
		return "</think>"
	case FormatThinking:
		return "</thinking>"
	default:
		return ""
	}
}

// Result is the pair of (visible, reasoning) text produced by one Process call.
type Result struct {
	Text      string
	Reasoning string
}

// Parser holds the cross-chunk state: whether we're inside a reasoning
// block, which tag family opened it, and any buffered partial tag that
// might otherwise be split across a chunk boundary.
type Parser struct {
	formats             []Format
	currentFormat        Format
	tagBuffer            string
	inReasoning          bool
	interruptedReasoning string
}

// New returns a parser recognising the default tag families, in the order
// they should be matched when both could apply (<think> before <thinking>,
// since <thinking> is a superset prefix of neither — order only matters for
// tie-breaking when both open tags appear at the same position, which
// cannot happen, so the order is stable but not load-bearing).
func New() *Parser {
	return &Parser{formats: []Format{FormatThink, FormatThinking}}
}

// WithFormats overrides the recognised tag families.
func WithFormats(formats ...Format) *Parser {
	return &Parser{formats: formats}
}

// Reset clears all state, as if the parser were newly constructed.
func (p *Parser) Reset() {
	p.currentFormat = formatNone
	p.tagBuffer = ""
	p.inReasoning = false
	p.interruptedReasoning = ""
}

// InReasoning reports whether the parser is currently inside a reasoning block.
func (p *Parser) InReasoning() bool { return p.inReasoning }

// InterruptForTool drains and returns any reasoning text accumulated since
// the last call, so a tool call arriving mid-block can be attributed
// correctly. Subsequent calls before new reasoning arrives return "".
func (p *Parser) InterruptForTool() string {
	r := p.interruptedReasoning
	p.interruptedReasoning = ""
	return r
}

// ResumeAfterTool is a no-op by design: the parser's in-block state is
// preserved across a tool call, so streaming resumes exactly where it left
// off once the tool result has been sent back.
func (p *Parser) ResumeAfterTool() {}

// Process consumes one chunk of the stream and returns the visible and
// reasoning text extracted from it. Multiple reasoning blocks within a
// single chunk are supported and their reasoning text is concatenated.
func (p *Parser) Process(chunk string) Result {
	if p.tagBuffer != "" {
		buffered := p.tagBuffer
		p.tagBuffer = ""
		return p.Process(buffered + chunk)
	}

	var out Result
	remaining := chunk

	for len(remaining) > 0 {
		if !p.inReasoning {
			idx, format := p.findOpeningTag(remaining)
			if idx >= 0 {
				out.Text += remaining[:idx]
				remaining = remaining[idx+len(format.openTag()):]
				p.inReasoning = true
				p.currentFormat = format
				continue
			}
			if partial, ok := p.findPartialOpening(remaining); ok {
				out.Text += remaining[:len(remaining)-len(partial)]
				p.tagBuffer = partial
				remaining = ""
				continue
			}
			out.Text += remaining
			remaining = ""
		} else {
			closeTag := p.currentFormat.closeTag()
			if idx := strings.Index(remaining, closeTag); idx >= 0 {
				out.Reasoning += remaining[:idx]
				remaining = remaining[idx+len(closeTag):]
				p.inReasoning = false
				p.currentFormat = formatNone
				continue
			}
			if partial, ok := p.findPartialClosing(remaining, closeTag); ok {
				out.Reasoning += remaining[:len(remaining)-len(partial)]
				p.tagBuffer = partial
				remaining = ""
				continue
			}
			out.Reasoning += remaining
			remaining = ""
		}
	}

	if out.Reasoning != "" {
		p.interruptedReasoning += out.Reasoning
	}
	return out
}

// findOpeningTag returns the earliest opening tag across all recognised
// formats, and which format it belongs to. Returns (-1, formatNone) if none
// is present.
func (p *Parser) findOpeningTag(text string) (int, Format) {
	best := -1
	var bestFormat Format
	for _, f := range p.formats {
		if idx := strings.Index(text, f.openTag()); idx >= 0 {
			if best == -1 || idx < best {
				best = idx
				bestFormat = f
			}
		}
	}
	return best, bestFormat
}

// findPartialOpening checks whether the text's suffix is a non-empty,
// non-complete prefix of any recognised opening tag, so it can be buffered
// rather than emitted (and possibly split across chunks).
func (p *Parser) findPartialOpening(text string) (string, bool) {
	for _, f := range p.formats {
		tag := f.openTag()
		for l := len(tag) - 1; l >= 1; l-- {
			prefix := tag[:l]
			if strings.HasSuffix(text, prefix) {
				return prefix, true
			}
		}
	}
	return "", false
}

// findPartialClosing is findPartialOpening's counterpart for the active
// format's closing tag.
func (p *Parser) findPartialClosing(text, closeTag string) (string, bool) {
	for l := len(closeTag) - 1; l >= 1; l-- {
		prefix := closeTag[:l]
		if strings.HasSuffix(text, prefix) {
			return prefix, true
		}
	}
	return "", false
}
