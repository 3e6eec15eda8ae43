// Package course defines the document model shared by the ingestion
// pipeline and the vector index.
package course

// Course is one ingested course transcript. The title is the identity key:
// re-ingesting a title that is already indexed is a no-op.
type Course struct {
	Title      string
	Link       string
	Instructor string

	// Preamble is transcript text that appears before the first lesson
	// marker. It belongs to no lesson.
	Preamble string

	Lessons []Lesson
}

// Lesson is a numbered section of a course transcript.
type Lesson struct {
	Number  int
	Title   string
	Link    string
	Content string
}

// Chunk is the unit of retrieval: a contiguous span of transcript text,
// prefixed with a human-readable context header so the literal string stays
// self-describing outside its metadata.
type Chunk struct {
	CourseTitle string
	// LessonNumber is nil for chunks cut from the course preamble.
	LessonNumber *int
	// Index is the chunk's position within its lesson (or preamble),
	// starting at 0.
	Index   int
	Content string
}
