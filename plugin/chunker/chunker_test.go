package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern-io/lectern/course"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := New()
		assert.Equal(t, DefaultChunkSize, c.chunkSize)
		assert.Equal(t, DefaultChunkOverlap, c.overlap)
	})

	t.Run("overlap exceeding chunk size is clamped", func(t *testing.T) {
		c := New(WithChunkSize(100), WithOverlap(150))
		assert.Less(t, c.overlap, c.chunkSize)
	})

	t.Run("non-positive values ignored", func(t *testing.T) {
		c := New(WithChunkSize(0), WithOverlap(-1))
		assert.Equal(t, DefaultChunkSize, c.chunkSize)
		assert.Equal(t, DefaultChunkOverlap, c.overlap)
	})
}

func TestChunkDeterministic(t *testing.T) {
	doc := &course.Course{
		Title: "Intro to Testing",
		Lessons: []course.Lesson{
			{Number: 1, Title: "Basics", Content: strings.Repeat("This is a sentence about tests. ", 60)},
		},
	}
	c := New()

	first := c.Chunk(doc)
	second := c.Chunk(doc)
	require.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		if *first[i].LessonNumber == *first[i-1].LessonNumber {
			assert.Equal(t, first[i-1].Index+1, first[i].Index)
		}
	}
}

func TestChunkShortLesson(t *testing.T) {
	doc := &course.Course{
		Title: "Go Fundamentals",
		Lessons: []course.Lesson{
			{Number: 2, Title: "Slices", Content: "Slices wrap arrays. They grow on append."},
		},
	}
	chunks := New().Chunk(doc)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Course Go Fundamentals Lesson 2 content: Slices wrap arrays. They grow on append.", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Index)
	require.NotNil(t, chunks[0].LessonNumber)
	assert.Equal(t, 2, *chunks[0].LessonNumber)
}

func TestChunkPreamble(t *testing.T) {
	doc := &course.Course{
		Title:    "Go Fundamentals",
		Preamble: "Welcome to the course. Materials are linked below.",
	}
	chunks := New().Chunk(doc)

	require.Len(t, chunks, 1)
	assert.Nil(t, chunks[0].LessonNumber)
	assert.True(t, strings.HasPrefix(chunks[0].Content, "Course Go Fundamentals content: "), chunks[0].Content)
}

func TestChunkSentenceOverlap(t *testing.T) {
	// Sentences of ~40 chars each; with a 100-char budget the trailing
	// sentences of each chunk must reopen the next one.
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString("The quick brown fox jumps over the dog. ")
	}
	c := New(WithChunkSize(100), WithOverlap(50))
	pieces := c.chunkText(sb.String())

	require.Greater(t, len(pieces), 1)
	for i := 1; i < len(pieces); i++ {
		assert.True(t, strings.HasPrefix(pieces[i], "The quick brown fox"),
			"chunk %d should start on a sentence boundary: %q", i, pieces[i])
	}
}

// An unbroken lesson of exactly chunkSize+50 characters must produce exactly
// two chunks sharing a 100-character overlap.
func TestChunkUnbrokenTextWindowOverlap(t *testing.T) {
	const size = DefaultChunkSize
	const overlap = 100
	body := strings.Repeat("a", size+50)

	doc := &course.Course{
		Title:   "Dense Notes",
		Lessons: []course.Lesson{{Number: 1, Title: "Wall of text", Content: body}},
	}
	chunks := New(WithChunkSize(size), WithOverlap(overlap)).Chunk(doc)
	require.Len(t, chunks, 2)

	text := func(c course.Chunk) string {
		_, after, ok := strings.Cut(c.Content, "content: ")
		require.True(t, ok)
		return after
	}
	first, second := text(chunks[0]), text(chunks[1])
	assert.Len(t, first, size)
	assert.Len(t, second, 150)
	assert.Equal(t, first[len(first)-overlap:], second[:overlap])
}

func TestSplitSentences(t *testing.T) {
	t.Run("terminators", func(t *testing.T) {
		got := splitSentences("One here. Two there! Three anywhere? Four")
		assert.Equal(t, []string{"One here.", "Two there!", "Three anywhere?", "Four"}, got)
	})

	t.Run("decimal points are not boundaries", func(t *testing.T) {
		got := splitSentences("Version 1.5 shipped today. It works.")
		assert.Equal(t, []string{"Version 1.5 shipped today.", "It works."}, got)
	})

	t.Run("whitespace normalized", func(t *testing.T) {
		got := splitSentences("  Spread \n over\tlines.  ")
		assert.Equal(t, []string{"Spread over lines."}, got)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, splitSentences("   "))
	})
}
