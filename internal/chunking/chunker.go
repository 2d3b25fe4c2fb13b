package chunking

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
	"github.com/m-mizutani/goerr/v2"
)

// Config configures the chunker behavior.
type Config struct {
	// TargetSize is the preferred chunk size in bytes. Atomic segments may exceed it.
	TargetSize int

	// Overlap is the number of bytes consecutive chunks share
	Overlap int

	// BreakWindow is how far back from the target end to look for a break point
	BreakWindow int

	// PreserveSentences tries to break at sentence boundaries
	PreserveSentences bool

	// PreserveParagraphs tries to break at paragraph boundaries
	PreserveParagraphs bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TargetSize:         1000,
		Overlap:            150,
		BreakWindow:        100,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	}
}

// Validate checks size and overlap.
func (c Config) Validate() error {
	if c.TargetSize <= 0 {
		return goerr.Wrap(domain.ErrInvalidInput, "chunk size must be positive",
			goerr.V(domain.KeyField, "target_size"), goerr.V("target_size", c.TargetSize))
	}
	if c.Overlap < 0 || c.Overlap >= c.TargetSize {
		return goerr.Wrap(domain.ErrInvalidInput, "overlap must be in [0, target size)",
			goerr.V(domain.KeyField, "overlap"), goerr.V("overlap", c.Overlap), goerr.V("target_size", c.TargetSize))
	}
	return nil
}

// Chunker splits document text into overlapping chunks with positional
// metadata. Chunks cover the whole input without gaps: the first Overlap
// bytes of each chunk repeat the end of the previous one.
type Chunker struct {
	config Config
}

// Verify interface compliance
var _ driven.Chunker = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
func NewChunker(config Config) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.BreakWindow <= 0 {
		config.BreakWindow = 100
	}
	return &Chunker{config: config}, nil
}

// Chunk splits text into chunks. Whitespace-only text yields no chunks.
func (c *Chunker) Chunk(sourceID, text string) ([]domain.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	segments := findAtomicSegments(text)
	layout := newLayout(text)

	var chunks []domain.Chunk
	start, prevEnd := 0, 0

	for start < len(text) {
		end, atomic := c.chunkEnd(text, start, segments)

		overlap := 0
		if len(chunks) > 0 {
			overlap = prevEnd - start
		}

		chunks = append(chunks, domain.Chunk{
			SourceID: sourceID,
			Index:    len(chunks),
			Text:     text[start:end],
			Start:    start,
			End:      end,
			Overlap:  overlap,
			Position: layout.positionAt(start + overlap),
			Atomic:   atomic,
		})

		if end >= len(text) {
			break
		}
		prevEnd = end
		start = c.nextStart(text, start, end, segments)
	}

	return chunks, nil
}

// chunkEnd picks where the chunk starting at start should end.
func (c *Chunker) chunkEnd(text string, start int, segments []span) (int, bool) {
	end := start + c.config.TargetSize
	if end >= len(text) {
		return len(text), false
	}

	if seg, ok := segmentContaining(segments, end); ok {
		if seg.start > start {
			return seg.start, false
		}
		// The chunk opens with an atomic segment larger than the target size.
		return seg.end, true
	}

	if bp := c.findBreakPoint(text, start, end); bp > start {
		if seg, ok := segmentContaining(segments, bp); !ok {
			return bp, false
		} else if seg.start > start {
			return seg.start, false
		}
	}

	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	if end == start {
		end = start + c.config.TargetSize
		for end < len(text) && !utf8.RuneStart(text[end]) {
			end++
		}
	}
	return end, false
}

// nextStart computes the start of the chunk following [start, end).
func (c *Chunker) nextStart(text string, start, end int, segments []span) int {
	// A chunk cut short by a table hands the table to the next chunk whole.
	if startsSegment(segments, end) {
		return end
	}

	// A chunk shortened to a rune boundary can be smaller than Overlap.
	next := max(end-c.config.Overlap, start+1)
	for next < end && !utf8.RuneStart(text[next]) {
		next++
	}

	// Begin the overlap on a word boundary when one is available.
	if i := strings.IndexAny(text[next:end], " \n"); i >= 0 && next+i+1 < end {
		next += i + 1
	}

	if seg, ok := segmentContaining(segments, next); ok {
		if seg.start > start {
			next = seg.start
		} else {
			next = min(seg.end, end)
		}
	}
	return next
}

// findBreakPoint finds a good break point for chunking, or -1.
// Break points leave at least Overlap+1 bytes in the chunk so that the next
// chunk still moves forward.
func (c *Chunker) findBreakPoint(text string, start, maxEnd int) int {
	searchStart := maxEnd - c.config.BreakWindow
	if floor := start + c.config.Overlap + 1; searchStart < floor {
		searchStart = floor
	}
	if searchStart >= maxEnd {
		return -1
	}

	window := text[searchStart:maxEnd]

	if c.config.PreserveParagraphs {
		if idx := strings.LastIndex(window, "\n\n"); idx != -1 {
			return searchStart + idx + 2
		}
	}

	if c.config.PreserveSentences {
		enders := []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}
		best := -1
		for _, ender := range enders {
			if idx := strings.LastIndex(window, ender); idx != -1 && idx+len(ender) > best {
				best = idx + len(ender)
			}
		}
		if best > 0 {
			return searchStart + best
		}
	}

	if idx := strings.LastIndexAny(window, " \n"); idx != -1 {
		return searchStart + idx + 1
	}
	return -1
}

// span is a half-open byte range.
type span struct {
	start, end int
}

// findAtomicSegments locates tables: two or more consecutive lines that carry
// at least two '|' separators or a tab.
func findAtomicSegments(text string) []span {
	var segments []span
	runStart, runLines := -1, 0

	flush := func(end int) {
		if runLines >= 2 {
			segments = append(segments, span{start: runStart, end: end})
		}
		runStart, runLines = -1, 0
	}

	offset := 0
	for offset < len(text) {
		lineEnd := strings.IndexByte(text[offset:], '\n')
		next := len(text)
		if lineEnd >= 0 {
			next = offset + lineEnd + 1
		}
		line := text[offset:next]

		if isTableLine(line) {
			if runStart < 0 {
				runStart = offset
			}
			runLines++
		} else {
			flush(offset)
		}
		offset = next
	}
	flush(len(text))

	return segments
}

func isTableLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	return strings.Count(trimmed, "|") >= 2 || strings.Contains(trimmed, "\t")
}

// segmentContaining returns the segment strictly containing pos.
func segmentContaining(segments []span, pos int) (span, bool) {
	i := sort.Search(len(segments), func(i int) bool { return segments[i].end > pos })
	if i < len(segments) && segments[i].start < pos && pos < segments[i].end {
		return segments[i], true
	}
	return span{}, false
}

func startsSegment(segments []span, pos int) bool {
	i := sort.Search(len(segments), func(i int) bool { return segments[i].start >= pos })
	return i < len(segments) && segments[i].start == pos
}

// layout records page breaks and headings so positions can be resolved.
type layout struct {
	pageBreaks []int
	headings   []heading
}

type heading struct {
	offset int
	title  string
}

func newLayout(text string) *layout {
	l := &layout{}
	for i := 0; i < len(text); i++ {
		if text[i] == '\f' {
			l.pageBreaks = append(l.pageBreaks, i)
		}
	}

	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		trimmed := strings.TrimLeft(line, "\f \t")
		if strings.HasPrefix(trimmed, "#") {
			if title := strings.TrimSpace(strings.TrimLeft(trimmed, "#")); title != "" {
				l.headings = append(l.headings, heading{offset: offset, title: title})
			}
		}
		offset += len(line)
	}
	return l
}

// positionAt resolves the page and section in effect at offset.
func (l *layout) positionAt(offset int) domain.Position {
	page := 1 + sort.SearchInts(l.pageBreaks, offset+1)

	section := ""
	i := sort.Search(len(l.headings), func(i int) bool { return l.headings[i].offset > offset })
	if i > 0 {
		section = l.headings[i-1].title
	}
	return domain.Position{Page: page, Section: section}
}
