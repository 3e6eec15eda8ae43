// Package chunker splits course transcripts into overlapping,
// context-prefixed chunks for the vector index.
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lectern-io/lectern/course"
)

// DefaultChunkSize is the target number of characters per chunk.
const DefaultChunkSize = 800

// DefaultChunkOverlap is the number of characters shared between
// consecutive chunks.
const DefaultChunkOverlap = 100

var whitespaceRe = regexp.MustCompile(`\s+`)

// Chunker cuts lesson text into sentence-bounded spans. Identical input
// always yields the identical ordered chunk sequence.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the target chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a Chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// Chunk splits every lesson of doc (and its preamble, if any) into
// context-prefixed chunks, in document order.
func (c *Chunker) Chunk(doc *course.Course) []course.Chunk {
	var chunks []course.Chunk

	if preamble := strings.TrimSpace(doc.Preamble); preamble != "" {
		for i, text := range c.chunkText(preamble) {
			chunks = append(chunks, course.Chunk{
				CourseTitle: doc.Title,
				Index:       i,
				Content:     fmt.Sprintf("Course %s content: %s", doc.Title, text),
			})
		}
	}

	for _, lesson := range doc.Lessons {
		num := lesson.Number
		for i, text := range c.chunkText(lesson.Content) {
			chunks = append(chunks, course.Chunk{
				CourseTitle:  doc.Title,
				LessonNumber: &num,
				Index:        i,
				Content:      fmt.Sprintf("Course %s Lesson %d content: %s", doc.Title, num, text),
			})
		}
	}
	return chunks
}

// chunkText cuts raw text into spans of whole sentences near chunkSize,
// carrying the trailing sentences of each chunk into the next as overlap.
func (c *Chunker) chunkText(text string) []string {
	sentences := c.splitLong(splitSentences(text))
	if len(sentences) == 0 {
		return nil
	}

	var out []string
	i := 0
	for i < len(sentences) {
		size := 0
		j := i
		for j < len(sentences) {
			add := len(sentences[j])
			if size > 0 {
				add++ // joining space
			}
			if size+add > c.chunkSize && size > 0 {
				break
			}
			size += add
			j++
		}
		out = append(out, strings.Join(sentences[i:j], " "))
		if j >= len(sentences) {
			break
		}

		// Back up over trailing sentences that fit inside the overlap
		// budget so the next chunk repeats them.
		back := j
		carried := 0
		for back > i {
			add := len(sentences[back-1])
			if carried > 0 {
				add++
			}
			if carried+add > c.overlap {
				break
			}
			carried += add
			back--
		}
		if back <= i {
			back = i + 1
		}
		i = back
	}
	return out
}

// splitLong breaks any sentence longer than chunkSize into character
// windows with the configured overlap, so unbroken text still chunks.
func (c *Chunker) splitLong(sentences []string) []string {
	step := c.chunkSize - c.overlap
	var out []string
	for _, s := range sentences {
		if len(s) <= c.chunkSize {
			out = append(out, s)
			continue
		}
		for start := 0; ; start += step {
			end := start + c.chunkSize
			if end >= len(s) {
				out = append(out, s[start:])
				break
			}
			out = append(out, s[start:end])
		}
	}
	return out
}

// splitSentences normalizes whitespace and splits text at sentence
// terminators followed by a space. Text with no terminator comes back as a
// single sentence.
func splitSentences(text string) []string {
	text = whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	if text == "" {
		return nil
	}

	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			j := i + 1
			for j < len(text) && (text[j] == '"' || text[j] == '\'' || text[j] == ')') {
				j++
			}
			if j < len(text) && text[j] != ' ' {
				continue
			}
			if s := strings.TrimSpace(text[start:j]); s != "" {
				out = append(out, s)
			}
			for j < len(text) && text[j] == ' ' {
				j++
			}
			start = j
			i = j - 1
		}
	}
	if start < len(text) {
		if s := strings.TrimSpace(text[start:]); s != "" {
			out = append(out, s)
		}
	}
	return out
}
