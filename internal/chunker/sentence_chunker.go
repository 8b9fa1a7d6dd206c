package chunker

import (
	"regexp"
	"strings"
)

// SentenceChunker splits text into chunks bounded by a rune budget,
// preferring sentence boundaries and never breaking mid-word. Consecutive
// chunks share trailing sentences of at least overlap runes so meaning that
// spans a boundary survives retrieval.
type SentenceChunker struct {
	size     int
	overlap  int
	splitter *regexp.Regexp
}

func NewSentenceChunker(size, overlap int) *SentenceChunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &SentenceChunker{
		size:     size,
		overlap:  overlap,
		splitter: regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?]+)`),
	}
}

// Chunk is deterministic: the same text always yields the same sequence,
// which the ingestion pipeline relies on for idempotent point ids.
// Whitespace-only segments are dropped.
func (c *SentenceChunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	sentences := c.sentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentLen := 0
	for _, sent := range sentences {
		sentLen := len([]rune(sent))
		if currentLen > 0 && currentLen+1+sentLen > c.size {
			chunks = append(chunks, strings.Join(current, " "))
			current = c.carryOverlap(current)
			currentLen = joinedLen(current)
			// The carried tail plus the new sentence may still overflow;
			// in that case the new chunk starts from the sentence alone.
			if currentLen > 0 && currentLen+1+sentLen > c.size {
				current = nil
				currentLen = 0
			}
		}
		current = append(current, sent)
		if currentLen == 0 {
			currentLen = sentLen
		} else {
			currentLen += 1 + sentLen
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// sentences returns trimmed sentence units no longer than the chunk size.
// Oversized sentences are split on word boundaries.
func (c *SentenceChunker) sentences(text string) []string {
	raw := c.splitter.FindAllString(text, -1)
	if len(raw) == 0 {
		raw = []string{text}
	}
	var out []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if len([]rune(s)) <= c.size {
			out = append(out, s)
			continue
		}
		out = append(out, c.splitWords(s)...)
	}
	return out
}

func (c *SentenceChunker) splitWords(s string) []string {
	words := strings.Fields(s)
	var parts []string
	var current []string
	currentLen := 0
	for _, w := range words {
		wLen := len([]rune(w))
		if currentLen > 0 && currentLen+1+wLen > c.size {
			parts = append(parts, strings.Join(current, " "))
			current = nil
			currentLen = 0
		}
		current = append(current, w)
		if currentLen == 0 {
			currentLen = wLen
		} else {
			currentLen += 1 + wLen
		}
	}
	if len(current) > 0 {
		parts = append(parts, strings.Join(current, " "))
	}
	return parts
}

// carryOverlap keeps the trailing sentences whose combined length first
// reaches the overlap budget.
func (c *SentenceChunker) carryOverlap(sentences []string) []string {
	if c.overlap == 0 {
		return nil
	}
	total := 0
	i := len(sentences)
	for i > 0 {
		total += len([]rune(sentences[i-1]))
		i--
		if total >= c.overlap {
			break
		}
	}
	tail := sentences[i:]
	out := make([]string, len(tail))
	copy(out, tail)
	return out
}

func joinedLen(parts []string) int {
	if len(parts) == 0 {
		return 0
	}
	n := len(parts) - 1
	for _, p := range parts {
		n += len([]rune(p))
	}
	return n
}
