package v1

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"
	chromem "github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern-io/lectern/course"
	"github.com/lectern-io/lectern/plugin/chunker"
	"github.com/lectern-io/lectern/plugin/vectorstore"
	"github.com/lectern-io/lectern/server/profile"
	"github.com/lectern-io/lectern/server/rag"
	"github.com/lectern-io/lectern/store"
)

func testEmbedder() chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		v := make([]float32, 32)
		for _, w := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			v[h.Sum32()%32]++
		}
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		if norm == 0 {
			v[0] = 1
			return v, nil
		}
		norm = math.Sqrt(norm)
		for i := range v {
			v[i] = float32(float64(v[i]) / norm)
		}
		return v, nil
	}
}

type stubAnswerer struct {
	reply *rag.Reply
	err   error

	gotSession string
	gotQuery   string
}

func (a *stubAnswerer) Turn(_ context.Context, sessionID, query string) (*rag.Reply, error) {
	a.gotSession = sessionID
	a.gotQuery = query
	if a.err != nil {
		return nil, a.err
	}
	return a.reply, nil
}

func newTestService(t *testing.T, answerer Answerer) (*echo.Echo, *APIV1Service) {
	t.Helper()
	index := vectorstore.NewInMemory(testEmbedder(), chunker.New(), 5)
	svc := NewAPIV1Service(
		&profile.Profile{ProviderAPIKey: "test-key"},
		store.New(2),
		index,
		answerer,
	)
	e := echo.New()
	svc.RegisterRoutes(e)
	return e, svc
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestQuery(t *testing.T) {
	lesson := 2
	answerer := &stubAnswerer{reply: &rag.Reply{
		Text: "Chunks overlap by 100 characters.",
		Sources: []rag.Source{
			{Course: "Building Agentic RAG with Claude", Lesson: &lesson},
		},
	}}
	e, _ := newTestService(t, answerer)

	rec := doJSON(e, http.MethodPost, "/api/v1/query", `{"query":"how big is the overlap?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Answer    string   `json:"answer"`
		Sources   []string `json:"sources"`
		SessionID string   `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Chunks overlap by 100 characters.", resp.Answer)
	assert.Equal(t, []string{"Building Agentic RAG with Claude - Lesson 2"}, resp.Sources)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, resp.SessionID, answerer.gotSession)
	assert.Equal(t, "how big is the overlap?", answerer.gotQuery)
}

func TestQueryReusesSession(t *testing.T) {
	answerer := &stubAnswerer{reply: &rag.Reply{Text: "ok"}}
	e, _ := newTestService(t, answerer)

	rec := doJSON(e, http.MethodPost, "/api/v1/query", `{"query":"q","session_id":"abc123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", answerer.gotSession)
	assert.Contains(t, rec.Body.String(), `"session_id":"abc123"`)
}

func TestQueryValidation(t *testing.T) {
	e, _ := newTestService(t, &stubAnswerer{reply: &rag.Reply{Text: "ok"}})

	rec := doJSON(e, http.MethodPost, "/api/v1/query", `{"query":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/query", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryUnconfigured(t *testing.T) {
	e, svc := newTestService(t, &stubAnswerer{reply: &rag.Reply{Text: "ok"}})
	svc.Profile.ProviderAPIKey = ""

	rec := doJSON(e, http.MethodPost, "/api/v1/query", `{"query":"q"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestQueryProviderFailure(t *testing.T) {
	e, _ := newTestService(t, &stubAnswerer{err: assert.AnError})

	rec := doJSON(e, http.MethodPost, "/api/v1/query", `{"query":"q"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCourseStats(t *testing.T) {
	e, svc := newTestService(t, &stubAnswerer{})

	rec := doJSON(e, http.MethodGet, "/api/v1/courses", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_courses":0,"course_titles":[]}`, rec.Body.String())

	_, err := svc.Index.AddCourse(context.Background(), &course.Course{
		Title:   "Prompt Engineering",
		Lessons: []course.Lesson{{Number: 1, Title: "Basics", Content: "Prompts steer the model."}},
	})
	require.NoError(t, err)

	rec = doJSON(e, http.MethodGet, "/api/v1/courses", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_courses":1,"course_titles":["Prompt Engineering"]}`, rec.Body.String())
}

func TestSessionLifecycle(t *testing.T) {
	e, svc := newTestService(t, &stubAnswerer{})

	rec := doJSON(e, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)

	svc.Sessions.AddExchange(resp.SessionID, "q", "a")
	require.NotEmpty(t, svc.Sessions.History(resp.SessionID))

	rec = doJSON(e, http.MethodDelete, "/api/v1/sessions/"+resp.SessionID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, svc.Sessions.History(resp.SessionID))
}
