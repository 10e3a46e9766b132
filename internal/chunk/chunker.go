package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/veridia/attestor/internal/model"
)

// Default chunking parameters. Sizes are measured in bytes; every cut snaps
// to a rune boundary.
const (
	DefaultWindow  = 1000
	DefaultOverlap = 200
	DefaultSlack   = 0.1
)

// controlIDPattern matches regulatory control identifiers such as
// "AC-2", "AU-12(3)", or "SC-7 (5)".
var controlIDPattern = regexp.MustCompile(`\b[A-Z]{2}-\d+(?:\s?\(\d+\))?`)

// Chunker splits extracted document text into overlapping spans suitable for
// embedding. Splitting is deterministic: identical text and configuration
// always produce identical boundaries.
type Chunker struct {
	window  int
	overlap int
	slack   int // Boundary-snapping slack in bytes
}

// New creates a chunker from configuration, applying defaults for zero or
// out-of-range values.
func New(cfg model.ChunkerConfig) *Chunker {
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	overlap := cfg.Overlap
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= window {
		overlap = window / 4
	}
	slackFrac := cfg.Slack
	if slackFrac <= 0 || slackFrac >= 1 {
		slackFrac = DefaultSlack
	}
	slack := int(float64(window) * slackFrac)
	// Snapped cuts must stay inside the next chunk's overlap region or the
	// sequence would leave gaps.
	if overlap > 0 && slack >= overlap {
		slack = overlap / 2
	}
	return &Chunker{
		window:  window,
		overlap: overlap,
		slack:   slack,
	}
}

// Split segments text into ordered, overlapping chunks covering the whole
// document. Chunk starts advance by `window - overlap`; the final chunk may
// be shorter than the window. Cuts prefer paragraph and sentence boundaries
// within the slack of the target size, never land inside a control identifier
// when avoidable, and fall back to a hard cut at the window size. Every
// boundary lands on a UTF-8 rune start, so chunk text is always valid UTF-8.
func (c *Chunker) Split(docID, text string) []model.Chunk {
	if text == "" {
		return nil
	}

	protected := controlIDPattern.FindAllStringIndex(text, -1)

	stride := c.window - c.overlap
	chunks := make([]model.Chunk, 0, len(text)/stride+1)

	for start := 0; start < len(text); start += stride {
		from := runeStart(text, start)
		end := c.cut(text, from, protected)

		span := text[from:end]
		chunks = append(chunks, model.Chunk{
			ID:         uuid.New().String(),
			DocumentID: docID,
			Index:      len(chunks),
			Text:       span,
			Start:      from,
			End:        end,
			ControlIDs: controlIDs(span),
			Method:     detectMethod(span),
		})
	}

	return chunks
}

// cut picks the end offset for a chunk starting at `start`. The returned
// offset is always a rune boundary.
func (c *Chunker) cut(text string, start int, protected [][]int) int {
	target := start + c.window
	if target >= len(text) {
		return len(text)
	}
	target = runeStart(text, target)
	if target <= start {
		_, size := utf8.DecodeRuneInString(text[start:])
		target = start + size
	}

	// Prefer a paragraph break, then a sentence boundary, within the slack
	// window behind the target.
	floor := runeStart(text, target-c.slack)
	if floor < start+1 {
		floor = start + 1
	}
	window := text[floor:target]

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return c.avoidControlID(floor+i+2, floor, protected)
	}
	for _, boundary := range []string{". ", ".\n", "? ", "! "} {
		if i := strings.LastIndex(window, boundary); i >= 0 {
			return c.avoidControlID(floor+i+len(boundary), floor, protected)
		}
	}

	// No boundary within slack: hard cut at exactly window characters,
	// backing off only if that would split a control identifier.
	return c.avoidControlID(target, floor, protected)
}

// avoidControlID moves a proposed cut in front of any control identifier it
// would otherwise split, provided the adjusted cut stays at or above floor.
func (c *Chunker) avoidControlID(cut, floor int, protected [][]int) int {
	for _, span := range protected {
		if cut > span[0] && cut < span[1] {
			if span[0] >= floor {
				return span[0]
			}
			break // Unavoidable: token wider than the slack window
		}
	}
	return cut
}

// runeStart walks a byte offset back to the start of the rune containing it,
// so window-sized cuts never split a multi-byte UTF-8 sequence.
func runeStart(text string, i int) int {
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// controlIDs extracts the distinct control identifiers mentioned in a span,
// in order of first appearance.
func controlIDs(span string) []string {
	matches := controlIDPattern.FindAllString(span, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var ids []string
	for _, m := range matches {
		id := strings.ReplaceAll(m, " ", "")
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// detectMethod tags a span with the dominant assessment method mentioned in
// it, if any.
func detectMethod(span string) model.AssessmentMethod {
	lower := strings.ToLower(span)
	counts := map[model.AssessmentMethod]int{
		model.MethodExamine:   strings.Count(lower, "examine"),
		model.MethodInterview: strings.Count(lower, "interview"),
		model.MethodTest:      strings.Count(lower, "tested") + strings.Count(lower, "test plan") + strings.Count(lower, "testing"),
	}

	var best model.AssessmentMethod
	bestCount := 0
	for _, method := range []model.AssessmentMethod{model.MethodExamine, model.MethodInterview, model.MethodTest} {
		if counts[method] > bestCount {
			best = method
			bestCount = counts[method]
		}
	}
	return best
}
