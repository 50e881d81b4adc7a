package docqa

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PocketChat/internal/llm"
	"PocketChat/internal/llm/llmtest"
)

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReaderRead(t *testing.T) {
	r := NewReader()

	for _, name := range []string{"notes.txt", "notes.md", "server.log"} {
		t.Run(name, func(t *testing.T) {
			path := writeDoc(t, name, "The warehouse is in Lyon.")
			content, err := r.Read(path)
			require.NoError(t, err)
			assert.Equal(t, "The warehouse is in Lyon.", content)
		})
	}

	t.Run("extension case insensitive", func(t *testing.T) {
		path := writeDoc(t, "NOTES.TXT", "hello")
		content, err := r.Read(path)
		require.NoError(t, err)
		assert.Equal(t, "hello", content)
	})
}

func TestReaderMissingFile(t *testing.T) {
	r := NewReader()
	_, err := r.Read("/nonexistent/notes.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "file not found")
}

func TestReaderUnsupportedFormat(t *testing.T) {
	r := NewReader()
	path := writeDoc(t, "report.pdf", "%PDF-1.4")

	_, err := r.Read(path)
	require.Error(t, err)

	var formatErr *UnsupportedFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, ".pdf", formatErr.Ext)
	assert.Contains(t, err.Error(), "Supported formats are: .log, .md, .txt")
}

func TestReaderRejectsBinary(t *testing.T) {
	r := NewReader()
	path := filepath.Join(t.TempDir(), "blob.txt")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x81}, 0644))

	_, err := r.Read(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid UTF-8")
}

func TestReaderRegister(t *testing.T) {
	r := NewReader()
	r.Register(".csv", func(path string) (string, error) { return "csv content", nil })

	assert.Contains(t, r.SupportedFormats(), ".csv")

	path := writeDoc(t, "data.csv", "a,b,c")
	content, err := r.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "csv content", content)
}

func TestAgentAsk(t *testing.T) {
	stub := &llmtest.Completer{
		ReplyFunc: func(_ context.Context, conv llm.Conversation, _ llm.Options) (*llm.CompletionResult, error) {
			question := conv[len(conv)-1].Content
			if strings.Contains(question, "Lyon") && strings.Contains(question, "warehouse") {
				return llmtest.Reply("The warehouse is in Lyon.", conv), nil
			}
			return llmtest.Reply("I cannot find the answer in the provided context.", conv), nil
		},
	}
	agent := NewAgent(llm.NewAsker(stub))

	path := writeDoc(t, "facilities.txt", "The warehouse is in Lyon. The office is in Paris.")

	answer, err := agent.Ask(context.Background(), path, "Where is the warehouse?")
	require.NoError(t, err)
	assert.Equal(t, "The warehouse is in Lyon.", answer)

	call, ok := stub.LastCall()
	require.True(t, ok)
	require.Len(t, call.Conversation, 2)
	assert.Equal(t, llm.RoleSystem, call.Conversation[0].Role)
	assert.Equal(t, DefaultSystemInstruction, call.Conversation[0].Content)

	prompt := call.Conversation[1].Content
	assert.True(t, strings.HasPrefix(prompt, "Context: "))
	assert.Contains(t, prompt, "\nQuestion: Where is the warehouse?")
}

func TestAgentAskMissingDocument(t *testing.T) {
	agent := NewAgent(llm.NewAsker(llmtest.Echo()))

	_, err := agent.Ask(context.Background(), "/nonexistent/doc.txt", "Where?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read document")
}

func TestAgentAskContent(t *testing.T) {
	t.Run("blank question", func(t *testing.T) {
		agent := NewAgent(llm.NewAsker(llmtest.Echo()))
		_, err := agent.AskContent(context.Background(), "some text", " ")
		require.Error(t, err)
		assert.ErrorIs(t, err, llm.ErrEmptyQuestion)
	})

	t.Run("blank document", func(t *testing.T) {
		agent := NewAgent(llm.NewAsker(llmtest.Echo()))
		_, err := agent.AskContent(context.Background(), "  ", "Where?")
		require.Error(t, err)
		assert.True(t, llm.IsInvalidRequest(err))
	})

	t.Run("custom instruction", func(t *testing.T) {
		stub := llmtest.Echo()
		agent := NewAgent(llm.NewAsker(stub))
		agent.SystemInstruction = "Reply in French."

		_, err := agent.AskContent(context.Background(), "doc text", "Where?")
		require.NoError(t, err)

		call, _ := stub.LastCall()
		assert.Equal(t, "Reply in French.", call.Conversation[0].Content)
	})
}
