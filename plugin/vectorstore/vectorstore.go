// Package vectorstore wraps chromem-go with the two collections backing
// course retrieval: a catalog collection used only to resolve fuzzy course
// names, and a content collection holding embedded transcript chunks.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"github.com/pkg/errors"

	"github.com/lectern-io/lectern/course"
	"github.com/lectern-io/lectern/plugin/chunker"
)

const (
	catalogCollection = "course_catalog"
	contentCollection = "course_content"

	// DefaultMaxResults caps the number of hits per content search.
	DefaultMaxResults = 5

	metaCourseTitle  = "course_title"
	metaLessonNumber = "lesson_number"
)

// Hit is a single content-search match.
type Hit struct {
	Content     string
	CourseTitle string
	// LessonNumber is nil when the chunk came from the course preamble.
	LessonNumber *int
	Score        float32
}

// Filter narrows a content search. CourseName may be fuzzy; it is resolved
// against the catalog before use.
type Filter struct {
	CourseName   string
	LessonNumber *int
}

// CourseNotFoundError reports that a fuzzy course name had no catalog
// match. Its text is surfaced verbatim to the model.
type CourseNotFoundError struct {
	Name string
}

func (e *CourseNotFoundError) Error() string {
	return fmt.Sprintf("no course found matching '%s'", e.Name)
}

// lessonMeta is the serialized per-lesson metadata kept on catalog entries.
type lessonMeta struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// Store owns both collections and the chunker deriving content records.
type Store struct {
	mu         sync.RWMutex
	db         *chromem.DB
	embedFn    chromem.EmbeddingFunc
	chunker    *chunker.Chunker
	maxResults int
}

// New creates (or opens) the persistent store at dataDir/vectorstore/.
// embedFunc is the embedding function to use — pass
// chromem.NewEmbeddingFuncOpenAICompat pointed at the provider's
// embeddings endpoint.
func New(dataDir string, embedFunc chromem.EmbeddingFunc, ck *chunker.Chunker, maxResults int) (*Store, error) {
	dir := filepath.Join(dataDir, "vectorstore")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Wrap(err, "create vectorstore dir")
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, errors.Wrap(err, "open vectorstore")
	}
	return newStore(db, embedFunc, ck, maxResults), nil
}

// NewInMemory creates a store with no disk persistence, for tests and
// ephemeral deployments.
func NewInMemory(embedFunc chromem.EmbeddingFunc, ck *chunker.Chunker, maxResults int) *Store {
	return newStore(chromem.NewDB(), embedFunc, ck, maxResults)
}

func newStore(db *chromem.DB, embedFunc chromem.EmbeddingFunc, ck *chunker.Chunker, maxResults int) *Store {
	if ck == nil {
		ck = chunker.New()
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Store{db: db, embedFn: embedFunc, chunker: ck, maxResults: maxResults}
}

func (s *Store) collection(name string) (*chromem.Collection, error) {
	col := s.db.GetCollection(name, s.embedFn)
	if col != nil {
		return col, nil
	}
	col, err := s.db.CreateCollection(name, nil, s.embedFn)
	if err != nil {
		return nil, errors.Wrapf(err, "create collection %s", name)
	}
	return col, nil
}

// AddCourse embeds and stores the course's catalog entry and all derived
// chunks. A title already present in the catalog is a no-op; the returned
// bool reports whether anything was ingested.
func (s *Store) AddCourse(ctx context.Context, doc *course.Course) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	catalog, err := s.collection(catalogCollection)
	if err != nil {
		return false, err
	}
	if _, err := catalog.GetByID(ctx, doc.Title); err == nil {
		slog.Info("course already indexed, skipping", "title", doc.Title)
		return false, nil
	}

	lessons := make([]lessonMeta, 0, len(doc.Lessons))
	for _, l := range doc.Lessons {
		lessons = append(lessons, lessonMeta{Number: l.Number, Title: l.Title, Link: l.Link})
	}
	lessonsJSON, err := json.Marshal(lessons)
	if err != nil {
		return false, errors.Wrap(err, "marshal lesson metadata")
	}

	entry := chromem.Document{
		ID:      doc.Title,
		Content: doc.Title,
		Metadata: map[string]string{
			"instructor":   doc.Instructor,
			"link":         doc.Link,
			"lessons":      string(lessonsJSON),
			"lesson_count": strconv.Itoa(len(doc.Lessons)),
		},
	}
	if err := catalog.AddDocument(ctx, entry); err != nil {
		return false, errors.Wrapf(err, "add catalog entry for %s", doc.Title)
	}

	chunks := s.chunker.Chunk(doc)
	docs := make([]chromem.Document, 0, len(chunks))
	for _, ch := range chunks {
		meta := map[string]string{metaCourseTitle: ch.CourseTitle}
		lessonKey := "preamble"
		if ch.LessonNumber != nil {
			meta[metaLessonNumber] = strconv.Itoa(*ch.LessonNumber)
			lessonKey = strconv.Itoa(*ch.LessonNumber)
		}
		docs = append(docs, chromem.Document{
			ID:       fmt.Sprintf("%s#%s#%d", ch.CourseTitle, lessonKey, ch.Index),
			Content:  ch.Content,
			Metadata: meta,
		})
	}
	if len(docs) > 0 {
		content, err := s.collection(contentCollection)
		if err != nil {
			return false, err
		}
		if err := content.AddDocuments(ctx, docs, 4); err != nil {
			return false, errors.Wrapf(err, "add content chunks for %s", doc.Title)
		}
	}

	slog.Info("course indexed", "title", doc.Title, "lessons", len(doc.Lessons), "chunks", len(docs))
	return true, nil
}

// ResolveCourseName maps a fuzzy course reference to the canonical stored
// title. The single nearest catalog neighbor wins unconditionally; a
// *CourseNotFoundError comes back only when the catalog is empty or the
// lookup itself fails.
func (s *Store) ResolveCourseName(ctx context.Context, raw string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveCourseName(ctx, raw)
}

func (s *Store) resolveCourseName(ctx context.Context, raw string) (string, error) {
	catalog := s.db.GetCollection(catalogCollection, s.embedFn)
	if catalog == nil || catalog.Count() == 0 {
		return "", &CourseNotFoundError{Name: raw}
	}
	results, err := catalog.Query(ctx, raw, 1, nil, nil)
	if err != nil || len(results) == 0 {
		if err != nil {
			slog.Warn("catalog lookup failed", "name", raw, "err", err)
		}
		return "", &CourseNotFoundError{Name: raw}
	}
	return results[0].ID, nil
}

// Search runs a nearest-neighbor query over content chunks. A course name
// in the filter is resolved first; resolution failure aborts the search and
// never falls through to an unfiltered query. No matching chunks under a
// valid filter is a successful empty result.
func (s *Store) Search(ctx context.Context, query string, filter Filter) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := map[string]string{}
	if filter.CourseName != "" {
		title, err := s.resolveCourseName(ctx, filter.CourseName)
		if err != nil {
			return nil, err
		}
		where[metaCourseTitle] = title
	}
	if filter.LessonNumber != nil {
		where[metaLessonNumber] = strconv.Itoa(*filter.LessonNumber)
	}
	if len(where) == 0 {
		where = nil
	}

	content := s.db.GetCollection(contentCollection, s.embedFn)
	if content == nil {
		return nil, nil
	}
	count := content.Count()
	if count == 0 {
		return nil, nil
	}
	k := s.maxResults
	if k > count {
		k = count
	}

	// chromem-go rejects nResults larger than the filtered document set,
	// and the filtered size is not observable up front. Step down k until
	// the query succeeds; if even k=1 fails that way, nothing matched.
	var results []chromem.Result
	var err error
	for attemptK := k; attemptK > 0; attemptK-- {
		results, err = content.Query(ctx, query, attemptK, where, nil)
		if err == nil {
			break
		}
	}
	if err != nil {
		if strings.Contains(err.Error(), "nResults") {
			return nil, nil
		}
		return nil, errors.Wrap(err, "content search")
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hit := Hit{
			Content:     r.Content,
			CourseTitle: r.Metadata[metaCourseTitle],
			Score:       r.Similarity,
		}
		if v, ok := r.Metadata[metaLessonNumber]; ok {
			if n, convErr := strconv.Atoi(v); convErr == nil {
				hit.LessonNumber = &n
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// CourseCount returns the number of indexed courses.
func (s *Store) CourseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	catalog := s.db.GetCollection(catalogCollection, s.embedFn)
	if catalog == nil {
		return 0
	}
	return catalog.Count()
}

// ContentCount returns the total number of indexed chunks.
func (s *Store) ContentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content := s.db.GetCollection(contentCollection, s.embedFn)
	if content == nil {
		return 0
	}
	return content.Count()
}

// ListCourseTitles returns all indexed course titles, sorted. chromem-go
// has no document-listing API, so this ranks the whole catalog against a
// fixed probe query and keeps the IDs.
func (s *Store) ListCourseTitles(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	catalog := s.db.GetCollection(catalogCollection, s.embedFn)
	if catalog == nil {
		return nil, nil
	}
	count := catalog.Count()
	if count == 0 {
		return nil, nil
	}
	results, err := catalog.Query(ctx, "course", count, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "list catalog entries")
	}
	titles := make([]string, 0, len(results))
	for _, r := range results {
		titles = append(titles, r.ID)
	}
	sort.Strings(titles)
	return titles, nil
}
