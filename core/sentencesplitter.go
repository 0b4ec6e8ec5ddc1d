package orchestration

import "regexp"

// defaultDelimiters covers Chinese and Western sentence and clause
// punctuation so generated text can be pipelined into synthesis at natural
// boundaries.
var defaultDelimiters = regexp.MustCompile(`[，。！？；、,.!?;]`)

// sentenceSplitter buffers incremental generated text and yields complete
// sentences as soon as a delimiter appears. The buffer is unbounded;
// unterminated input accumulates until drained or reset.
type sentenceSplitter struct {
	delimiters *regexp.Regexp
	buffer     string
}

func newSentenceSplitter() *sentenceSplitter {
	return &sentenceSplitter{delimiters: defaultDelimiters}
}

// Append concatenates text onto the buffer. Appending an empty string is a
// no-op.
func (s *sentenceSplitter) Append(text string) {
	if text != "" {
		s.buffer += text
	}
}

// Next returns the buffer up to and including the first delimiter, retaining
// the remainder. It reports false when no complete sentence is buffered.
func (s *sentenceSplitter) Next() (string, bool) {
	loc := s.delimiters.FindStringIndex(s.buffer)
	if loc == nil {
		return "", false
	}

	sentence := s.buffer[:loc[1]]
	s.buffer = s.buffer[loc[1]:]
	return sentence, true
}

// Drain returns and clears whatever is left in the buffer.
func (s *sentenceSplitter) Drain() string {
	remaining := s.buffer
	s.buffer = ""
	return remaining
}

// Reset clears the buffer unconditionally, making the splitter reusable for
// the next turn.
func (s *sentenceSplitter) Reset() {
	s.buffer = ""
}
