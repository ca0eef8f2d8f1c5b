package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingest "github.com/markdave123-py/studygalaxy/internal/core/ingestion_engine"
	"github.com/markdave123-py/studygalaxy/internal/models"
	"github.com/markdave123-py/studygalaxy/internal/testutil"
)

type docFixture struct {
	db  *testutil.MockDB
	obj *testutil.MockObjectStore
	ing *ingest.DocumentIngestor
	svc *DocumentService
}

func newDocFixture(t *testing.T, queueSize int) *docFixture {
	t.Helper()
	db := testutil.NewMockDB()
	obj := testutil.NewMockObjectStore()
	db.PutChatbot(models.ChatBot{ID: "bot-1", UserID: "user-1"})
	bots := NewChatbotService(db, obj, "pdf-documents", nil)
	ing := ingest.NewDocumentIngestor(db, obj, testutil.NewMockAI(),
		ingest.IngestConfig{Bucket: "pdf-documents", Workers: 1, QueueSize: queueSize},
		ingest.WithXPAwarder(bots),
	)
	return &docFixture{db: db, obj: obj, ing: ing, svc: NewDocumentService(db, obj, ing, "pdf-documents", 15*time.Minute)}
}

func upload(t *testing.T, f *docFixture, ctx context.Context) *ingest.UploadResult {
	t.Helper()
	res, err := f.svc.Upload(ctx, ingest.UploadInput{
		UserID: "user-1", ChatbotID: "bot-1", Filename: "notes.pdf",
		ContentType: "application/pdf", Size: 4, Body: strings.NewReader("%PDF"),
	}, nil)
	require.NoError(t, err)
	return res
}

func TestUploadQueuesAndWorkerCompletes(t *testing.T) {
	f := newDocFixture(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := upload(t, f, ctx)
	assert.Equal(t, 30, res.Award.Amount)

	f.ing.Start(ctx)
	assert.Eventually(t, func() bool {
		d, err := f.svc.Get(ctx, res.Document.ID, "user-1")
		return err == nil && d.ProcessingStatus == models.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	bot, err := f.db.GetChatbot(ctx, "bot-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 50, bot.XP)
	assert.Equal(t, 1, bot.PDFCount)

	docs, err := f.svc.ListByChatbot(ctx, "bot-1", "user-1")
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	_, err = f.svc.ListByChatbot(ctx, "bot-1", "intruder")
	assert.ErrorIs(t, err, models.ErrChatbotNotFound)
}

func TestUploadMarksFailedWhenQueueUnavailable(t *testing.T) {
	f := newDocFixture(t, 1)
	require.NoError(t, f.ing.Enqueue(context.Background(), "filler"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := upload(t, f, ctx)
	assert.Equal(t, models.StatusFailed, res.Document.ProcessingStatus)

	stored, err := f.db.GetDocumentByID(context.Background(), res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.ProcessingStatus)
}

func TestDeleteDownloadAndChunks(t *testing.T) {
	f := newDocFixture(t, 4)
	ctx := context.Background()
	res := upload(t, f, ctx)
	id := res.Document.ID

	url, exp, err := f.svc.DownloadURL(ctx, id, "user-1")
	require.NoError(t, err)
	assert.Contains(t, url, res.Document.FilePath)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, time.Minute)

	f.db.PutChunks(id,
		models.DocumentChunk{ID: "c1", DocumentID: id, Position: 0, Content: "Cells"},
		models.DocumentChunk{ID: "c2", DocumentID: id, Position: 1, Content: "Nuclei"},
	)
	chunks, err := f.svc.Chunks(ctx, id, "user-1")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)

	detail, err := f.svc.Get(ctx, id, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, detail.ChunkCount)
	assert.Equal(t, "notes.pdf", detail.Filename)
	_, err = f.svc.Chunks(ctx, id, "intruder")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	require.NoError(t, f.svc.Delete(ctx, id, "user-1"))
	assert.Empty(t, f.obj.Keys())
	bot, err := f.db.GetChatbot(ctx, "bot-1", "user-1")
	require.NoError(t, err)
	assert.Zero(t, bot.PDFCount)

	_, err = f.svc.Get(ctx, id, "user-1")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}
