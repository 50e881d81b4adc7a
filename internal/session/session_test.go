package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptAppendExchange(t *testing.T) {
	tr := New()
	require.NotEmpty(t, tr.ID())
	assert.Equal(t, 0, tr.Len())

	tr.AppendExchange("What is the capital of France?", "Paris.")

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "What is the capital of France?", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "Paris.", msgs[1].Content)
	assert.False(t, msgs[0].Timestamp.IsZero())
}

func TestTranscriptAlternation(t *testing.T) {
	tr := New()
	for i := 0; i < 5; i++ {
		tr.AppendExchange(fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i))
	}

	msgs := tr.Messages()
	require.Len(t, msgs, 10)
	for i, msg := range msgs {
		if i%2 == 0 {
			assert.Equal(t, "user", msg.Role, "position %d", i)
		} else {
			assert.Equal(t, "assistant", msg.Role, "position %d", i)
		}
	}
}

func TestTranscriptClear(t *testing.T) {
	tr := New()
	tr.AppendExchange("hi", "hello")
	require.Equal(t, 2, tr.Len())

	id := tr.ID()
	tr.Clear()

	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, tr.Messages())
	assert.Equal(t, id, tr.ID())

	tr.AppendExchange("again", "sure")
	assert.Equal(t, 2, tr.Len())
}

func TestTranscriptSnapshotIsCopy(t *testing.T) {
	tr := New()
	tr.AppendExchange("hi", "hello")

	msgs := tr.Messages()
	msgs[0].Content = "mutated"

	assert.Equal(t, "hi", tr.Messages()[0].Content)
}

func TestTranscriptConcurrentAppends(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tr.AppendExchange(fmt.Sprintf("q%d", n), fmt.Sprintf("a%d", n))
		}(i)
	}
	wg.Wait()

	msgs := tr.Messages()
	require.Len(t, msgs, 40)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, "user", msgs[i].Role)
		assert.Equal(t, "assistant", msgs[i+1].Role)
		assert.Equal(t, msgs[i].Content[1:], msgs[i+1].Content[1:])
	}
}

func TestNewTranscriptsHaveDistinctIDs(t *testing.T) {
	assert.NotEqual(t, New().ID(), New().ID())
}
