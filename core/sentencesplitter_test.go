package orchestration

import (
	"strings"
	"testing"
)

func TestSplitterYieldsSentenceIncludingDelimiter(t *testing.T) {
	splitter := newSentenceSplitter()
	splitter.Append("Hello there. How are")

	sentence, ok := splitter.Next()
	if !ok {
		t.Fatalf("expected a complete sentence")
	}
	if sentence != "Hello there." {
		t.Fatalf("expected %q, got %q", "Hello there.", sentence)
	}

	if _, ok := splitter.Next(); ok {
		t.Fatalf("expected no further complete sentence")
	}
	if remaining := splitter.Drain(); remaining != " How are" {
		t.Fatalf("expected remainder %q, got %q", " How are", remaining)
	}
}

func TestSplitterHandlesChinesePunctuation(t *testing.T) {
	splitter := newSentenceSplitter()
	splitter.Append("你好，世界。今天")

	first, ok := splitter.Next()
	if !ok || first != "你好，" {
		t.Fatalf("expected %q, got %q (ok=%v)", "你好，", first, ok)
	}
	second, ok := splitter.Next()
	if !ok || second != "世界。" {
		t.Fatalf("expected %q, got %q (ok=%v)", "世界。", second, ok)
	}
	if remaining := splitter.Drain(); remaining != "今天" {
		t.Fatalf("expected remainder %q, got %q", "今天", remaining)
	}
}

func TestSplitterEmptyAppendIsNoop(t *testing.T) {
	splitter := newSentenceSplitter()
	splitter.Append("")

	if _, ok := splitter.Next(); ok {
		t.Fatalf("expected nothing to extract")
	}
	if remaining := splitter.Drain(); remaining != "" {
		t.Fatalf("expected empty remainder, got %q", remaining)
	}
}

func TestSplitterNoLossNoDuplication(t *testing.T) {
	fragments := []string{
		"Sure", "! Here is a jo", "ke: why did the gopher cross",
		" the road? To", " deadlock the other side", "。没有别的",
	}

	splitter := newSentenceSplitter()
	var out strings.Builder
	for _, fragment := range fragments {
		splitter.Append(fragment)
		for {
			sentence, ok := splitter.Next()
			if !ok {
				break
			}
			out.WriteString(sentence)
		}
	}
	out.WriteString(splitter.Drain())

	if got, want := out.String(), strings.Join(fragments, ""); got != want {
		t.Fatalf("expected reassembled text %q, got %q", want, got)
	}
}

func TestSplitterResetClearsBuffer(t *testing.T) {
	splitter := newSentenceSplitter()
	splitter.Append("leftover text without delimiter")
	splitter.Reset()

	if remaining := splitter.Drain(); remaining != "" {
		t.Fatalf("expected reset to clear the buffer, got %q", remaining)
	}

	// Reusable across turns after a reset.
	splitter.Append("Next turn.")
	if sentence, ok := splitter.Next(); !ok || sentence != "Next turn." {
		t.Fatalf("expected splitter to be reusable, got %q (ok=%v)", sentence, ok)
	}
}
