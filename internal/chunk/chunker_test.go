package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/veridia/attestor/internal/model"
)

func defaultChunker() *Chunker {
	return New(model.ChunkerConfig{Window: 1000, Overlap: 200, Slack: 0.1})
}

func TestSplit_FixedStrideScenario(t *testing.T) {
	// 2,500 characters with no snap boundaries: pure fixed-stride cuts.
	text := strings.Repeat("a", 2500)
	chunks := defaultChunker().Split("doc-1", text)

	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}

	wantSpans := [][2]int{{0, 1000}, {800, 1800}, {1600, 2500}, {2400, 2500}}
	for i, want := range wantSpans {
		if chunks[i].Start != want[0] || chunks[i].End != want[1] {
			t.Errorf("chunk %d: expected span [%d,%d), got [%d,%d)",
				i, want[0], want[1], chunks[i].Start, chunks[i].End)
		}
	}

	// Consecutive starts are exactly window-overlap apart.
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Start-chunks[i-1].Start != 800 {
			t.Errorf("chunk %d: expected stride 800, got %d", i, chunks[i].Start-chunks[i-1].Start)
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("The access control policy is reviewed annually. ", 80)
	chunker := defaultChunker()

	first := chunker.Split("doc-1", text)
	second := chunker.Split("doc-1", text)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Start != second[i].Start || first[i].End != second[i].End {
			t.Errorf("chunk %d: boundaries differ: [%d,%d) vs [%d,%d)",
				i, first[i].Start, first[i].End, second[i].Start, second[i].End)
		}
		if first[i].Text != second[i].Text {
			t.Errorf("chunk %d: text differs", i)
		}
	}
}

func TestSplit_FullCoverage(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		sb.WriteString("Audit logs are collected from all production systems. ")
		if i%7 == 0 {
			sb.WriteString("\n\n")
		}
	}
	text := sb.String()

	chunks := defaultChunker().Split("doc-1", text)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}

	if chunks[0].Start != 0 {
		t.Errorf("first chunk starts at %d, expected 0", chunks[0].Start)
	}
	covered := 0
	for i, ch := range chunks {
		if ch.Text != text[ch.Start:ch.End] {
			t.Errorf("chunk %d: text does not match its span", i)
		}
		if ch.Start > covered {
			t.Errorf("chunk %d: gap between %d and %d", i, covered, ch.Start)
		}
		if ch.End > covered {
			covered = ch.End
		}
		if ch.Index != i {
			t.Errorf("chunk %d: expected index %d, got %d", i, i, ch.Index)
		}
	}
	if covered != len(text) {
		t.Errorf("coverage ends at %d, expected %d", covered, len(text))
	}
}

func TestSplit_SnapsToParagraphBoundary(t *testing.T) {
	// Paragraph break at offset 950, inside the 10% slack behind the
	// 1000-character target.
	text := strings.Repeat("a", 950) + "\n\n" + strings.Repeat("b", 600)
	chunks := defaultChunker().Split("doc-1", text)

	if chunks[0].End != 952 {
		t.Errorf("expected first cut after paragraph break at 952, got %d", chunks[0].End)
	}
}

func TestSplit_SnapsToSentenceBoundary(t *testing.T) {
	text := strings.Repeat("a", 940) + ". " + strings.Repeat("b", 600)
	chunks := defaultChunker().Split("doc-1", text)

	if chunks[0].End != 942 {
		t.Errorf("expected first cut after sentence boundary at 942, got %d", chunks[0].End)
	}
}

func TestSplit_NeverCutsInsideControlID(t *testing.T) {
	// The hard cut at 1000 would land inside "AC-12(34)", which starts at 996.
	text := strings.Repeat("x", 995) + " AC-12(34) " + strings.Repeat("y", 600)
	chunks := defaultChunker().Split("doc-1", text)

	if chunks[0].End != 996 {
		t.Errorf("expected cut moved in front of control identifier at 996, got %d", chunks[0].End)
	}
	for i, ch := range chunks {
		if ch.End > 996 && ch.End < 996+len("AC-12(34)") {
			t.Errorf("chunk %d: boundary %d splits a control identifier", i, ch.End)
		}
	}
}

func TestSplit_MultiByteRunesStayIntact(t *testing.T) {
	// 1,500 two-byte runes with no snap boundaries and an odd window, so
	// every stride-computed offset lands mid-rune unless snapped.
	text := strings.Repeat("é", 1500)
	chunker := New(model.ChunkerConfig{Window: 1001, Overlap: 200, Slack: 0.1})
	chunks := chunker.Split("doc-1", text)

	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	covered := 0
	for i, ch := range chunks {
		if !utf8.ValidString(ch.Text) {
			t.Errorf("chunk %d [%d,%d): text is not valid UTF-8", i, ch.Start, ch.End)
		}
		if ch.Text != text[ch.Start:ch.End] {
			t.Errorf("chunk %d: text does not match its span", i)
		}
		if ch.Start > covered {
			t.Errorf("chunk %d: gap between %d and %d", i, covered, ch.Start)
		}
		if ch.End > covered {
			covered = ch.End
		}
	}
	if covered != len(text) {
		t.Errorf("coverage ends at %d, expected %d", covered, len(text))
	}

	// Prose with curly quotes and accents survives the hard-cut path too.
	prose := strings.Repeat("The résumé says “approved” ", 100)
	for i, ch := range defaultChunker().Split("doc-2", prose) {
		if !utf8.ValidString(ch.Text) {
			t.Errorf("prose chunk %d: text is not valid UTF-8", i)
		}
	}
}

func TestSplit_SmallDocumentSingleChunk(t *testing.T) {
	text := "The organization enforces least privilege per AC-6."
	chunks := defaultChunker().Split("doc-1", text)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Start != 0 || chunks[0].End != len(text) {
		t.Errorf("expected span [0,%d), got [%d,%d)", len(text), chunks[0].Start, chunks[0].End)
	}
}

func TestSplit_EmptyText(t *testing.T) {
	if chunks := defaultChunker().Split("doc-1", ""); chunks != nil {
		t.Errorf("expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestControlIDExtraction(t *testing.T) {
	text := "Controls AC-2 and AU-12(3) are examined quarterly. AC-2 is also interviewed."
	chunks := defaultChunker().Split("doc-1", text)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	got := chunks[0].ControlIDs
	want := []string{"AC-2", "AU-12(3)"}
	if len(got) != len(want) {
		t.Fatalf("expected control IDs %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("control ID %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestDetectMethod(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.AssessmentMethod
	}{
		{"examine", "The assessor examined the configuration baseline.", model.MethodExamine},
		{"interview", "We interviewed the system administrator and interviewed the ISSO.", model.MethodInterview},
		{"test", "The control was tested using the approved test plan.", model.MethodTest},
		{"none", "No relevant activity recorded.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMethod(tt.text); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
