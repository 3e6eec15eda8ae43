package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryTrimsToBound(t *testing.T) {
	s := New(2)
	id := s.Create()

	s.AddExchange(id, "first question", "first answer")
	s.AddExchange(id, "second question", "second answer")
	s.AddExchange(id, "third question", "third answer")

	want := "User: second question\nAssistant: second answer\n" +
		"User: third question\nAssistant: third answer"
	assert.Equal(t, want, s.History(id))
}

func TestHistoryEmptyAndUnknown(t *testing.T) {
	s := New(2)
	assert.Equal(t, "", s.History("nope"))

	id := s.Create()
	assert.Equal(t, "", s.History(id))
}

func TestGetOrCreateKeepsCallerIDs(t *testing.T) {
	s := New(2)
	sess := s.GetOrCreate("client-supplied")
	require.Equal(t, "client-supplied", sess.ID)

	s.AddExchange("client-supplied", "q", "a")
	assert.Equal(t, "User: q\nAssistant: a", s.History("client-supplied"))
}

func TestClear(t *testing.T) {
	s := New(2)
	id := s.Create()
	s.AddExchange(id, "q", "a")
	s.Clear(id)
	assert.Equal(t, "", s.History(id))
}

func TestConcurrentExchanges(t *testing.T) {
	s := New(3)
	id := s.Create()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AddExchange(id, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		}(i)
	}
	wg.Wait()

	sess := s.GetOrCreate(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	assert.Len(t, sess.exchanges, 3)
}
