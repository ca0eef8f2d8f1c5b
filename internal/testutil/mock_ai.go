// mock_ai.go - Scripted AI backend for testing
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/markdave123-py/studygalaxy/internal/core"
)

// MockAI implements core.AIBackend with canned answers.
type MockAI struct {
	mu    sync.Mutex
	calls []string

	Chunks     int // chunks returned by ProcessPDF
	ProcessErr error
	EmbedErr   error
	StudyErr   error

	Reply   string
	Summary string
	Notes   string
	QuizDoc json.RawMessage
}

var _ core.AIBackend = (*MockAI)(nil)

func NewMockAI() *MockAI {
	return &MockAI{
		Chunks:  3,
		Reply:   "answer",
		Summary: "summary",
		Notes:   "notes",
		QuizDoc: json.RawMessage(`{"questions":[]}`),
	}
}

func (a *MockAI) record(call string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call)
}

// Calls returns the endpoints hit so far, in order.
func (a *MockAI) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *MockAI) ProcessPDF(_ context.Context, req core.ProcessRequest) (*core.ProcessResult, error) {
	a.record("process-pdf")
	if a.ProcessErr != nil {
		return nil, a.ProcessErr
	}
	res := &core.ProcessResult{}
	for i := range a.Chunks {
		res.Chunks = append(res.Chunks, json.RawMessage(fmt.Sprintf(`{"position":%d,"fileId":%q}`, i, req.FileID)))
	}
	return res, nil
}

func (a *MockAI) Embed(_ context.Context, req core.EmbedRequest) (*core.EmbedResult, error) {
	a.record("embed")
	if a.EmbedErr != nil {
		return nil, a.EmbedErr
	}
	return &core.EmbedResult{InsertedCount: len(req.Chunks)}, nil
}

func (a *MockAI) Chat(_ context.Context, message, _, _ string) (string, error) {
	a.record("chat")
	return a.Reply, a.StudyErr
}

func (a *MockAI) Summarize(context.Context, string, string) (string, error) {
	a.record("summarize")
	return a.Summary, a.StudyErr
}

func (a *MockAI) ShortNotes(context.Context, string, string) (string, error) {
	a.record("short-notes")
	return a.Notes, a.StudyErr
}

func (a *MockAI) Quiz(context.Context, string, string, int) (json.RawMessage, error) {
	a.record("quiz")
	if a.StudyErr != nil {
		return nil, a.StudyErr
	}
	return a.QuizDoc, nil
}

// StaticPages is a core.PageCounter that always reports N pages.
type StaticPages struct {
	N   int
	Err error
}

func (p StaticPages) CountPages(context.Context, []byte) (int, error) {
	return p.N, p.Err
}
