package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/lectern-io/lectern/plugin/vectorstore"
)

// SearchToolName is the capability name exposed to the provider.
const SearchToolName = "search_course_content"

// SearchTool wraps the course index as the model's one retrieval
// capability.
type SearchTool struct {
	index *vectorstore.Store
}

// NewSearchTool creates the search tool over the given index.
func NewSearchTool(index *vectorstore.Store) *SearchTool {
	return &SearchTool{index: index}
}

// Name implements tools.Tool.
func (t *SearchTool) Name() string { return SearchToolName }

// Description implements tools.Tool.
func (t *SearchTool) Description() string {
	return "Search course materials with smart course name matching and lesson filtering. Input is a JSON object with `query` (required), `course_name` (optional, may be partial) and `lesson_number` (optional)."
}

// Definition returns the schema sent to the provider.
func (t *SearchTool) Definition() map[string]any {
	return buildToolDef(SearchToolName,
		"Search course materials with smart course name matching and lesson filtering.",
		map[string]any{
			"query":         map[string]any{"type": "string", "description": "What to search for in the course content"},
			"course_name":   map[string]any{"type": "string", "description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')"},
			"lesson_number": map[string]any{"type": "integer", "description": "Specific lesson number to search within (e.g. 1, 2, 3)"},
		},
		[]string{"query"})
}

type searchArgs struct {
	Query        string `json:"query"`
	CourseName   string `json:"course_name"`
	LessonNumber *int   `json:"lesson_number"`
}

// Call implements tools.Tool, discarding attribution.
func (t *SearchTool) Call(ctx context.Context, input string) (string, error) {
	text, _, err := t.CallWithSources(ctx, input)
	return text, err
}

// CallWithSources runs the search and formats results for the model's
// context window. The bracketed header format is part of the contract: the
// retrieved text re-enters the model verbatim.
func (t *SearchTool) CallWithSources(ctx context.Context, input string) (string, []Source, error) {
	var args searchArgs
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "Error: failed to parse input JSON.", nil, nil
	}
	if strings.TrimSpace(args.Query) == "" {
		return "Error: query is required.", nil, nil
	}

	hits, err := t.index.Search(ctx, args.Query, vectorstore.Filter{
		CourseName:   args.CourseName,
		LessonNumber: args.LessonNumber,
	})
	if err != nil {
		var notFound *vectorstore.CourseNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("course search failed", "query", args.Query, "err", err)
		}
		// Resolution and storage failures are explained to the model, not
		// escalated: the turn must still produce an answer.
		return err.Error(), nil, nil
	}

	if len(hits) == 0 {
		msg := "No relevant content found"
		if args.CourseName != "" {
			msg += fmt.Sprintf(" in course '%s'", args.CourseName)
		}
		if args.LessonNumber != nil {
			msg += fmt.Sprintf(" in lesson %d", *args.LessonNumber)
		}
		return msg + ".", nil, nil
	}

	blocks := make([]string, 0, len(hits))
	sources := make([]Source, 0, len(hits))
	seen := make(map[string]bool)
	for _, h := range hits {
		header := fmt.Sprintf("[%s]", h.CourseTitle)
		if h.LessonNumber != nil {
			header = fmt.Sprintf("[%s - Lesson %d]", h.CourseTitle, *h.LessonNumber)
		}
		blocks = append(blocks, header+"\n"+h.Content)

		src := Source{Course: h.CourseTitle, Lesson: h.LessonNumber}
		if !seen[src.Label()] {
			seen[src.Label()] = true
			sources = append(sources, src)
		}
	}
	return strings.Join(blocks, "\n\n"), sources, nil
}
