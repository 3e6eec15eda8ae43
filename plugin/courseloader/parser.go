// Package courseloader parses course transcript files and feeds them into
// the vector store.
//
// Transcript format:
//
//	Course Title: Building Agentic RAG with Claude
//	Course Link: https://example.com/course
//	Course Instructor: Jordan Blake
//
//	Lesson 0: Introduction
//	Lesson Link: https://example.com/lesson0
//	<lesson text ...>
//
//	Lesson 1: ...
//
// Header lines are optional; a missing title falls back to the file name.
// Text before the first lesson marker becomes the course preamble.
package courseloader

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/lectern-io/lectern/course"
)

var lessonRe = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// Parse reads one transcript. fallbackTitle is used when the document
// carries no "Course Title:" header.
func Parse(r io.Reader, fallbackTitle string) (*course.Course, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := &course.Course{}
	var (
		preamble    []string
		current     *course.Lesson
		body        []string
		bodyStarted bool
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(strings.Join(body, "\n"))
		doc.Lessons = append(doc.Lessons, *current)
		body = body[:0]
	}

	for scanner.Scan() {
		line := scanner.Text()

		if m := lessonRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flush()
			n, _ := strconv.Atoi(m[1])
			current = &course.Lesson{Number: n, Title: strings.TrimSpace(m[2])}
			bodyStarted = false
			continue
		}

		if current == nil {
			switch {
			case takeHeader(line, "Course Title:", &doc.Title):
			case takeHeader(line, "Course Link:", &doc.Link):
			case takeHeader(line, "Course Instructor:", &doc.Instructor):
			default:
				if strings.TrimSpace(line) != "" {
					preamble = append(preamble, line)
				}
			}
			continue
		}

		if !bodyStarted {
			if takeHeader(line, "Lesson Link:", &current.Link) {
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			bodyStarted = true
		}
		body = append(body, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read transcript")
	}
	flush()

	doc.Preamble = strings.TrimSpace(strings.Join(preamble, "\n"))
	if strings.TrimSpace(doc.Title) == "" {
		doc.Title = strings.TrimSpace(fallbackTitle)
	}
	if doc.Title == "" {
		return nil, errors.New("transcript has no course title")
	}
	if len(doc.Lessons) == 0 && doc.Preamble == "" {
		return nil, errors.Errorf("transcript %q has no content", doc.Title)
	}
	return doc, nil
}

// takeHeader assigns the value of a "Key: value" line to dst when the line
// starts with the given key, case-insensitively.
func takeHeader(line, key string, dst *string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < len(key) || !strings.EqualFold(trimmed[:len(key)], key) {
		return false
	}
	*dst = strings.TrimSpace(trimmed[len(key):])
	return true
}
