package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/studygalaxy/internal/core/galaxy"
	"github.com/markdave123-py/studygalaxy/internal/core/leveling"
	"github.com/markdave123-py/studygalaxy/internal/models"
	"github.com/markdave123-py/studygalaxy/internal/testutil"
)

func newChatbotService(t *testing.T) (*ChatbotService, *testutil.MockDB, *testutil.MockObjectStore) {
	t.Helper()
	db := testutil.NewMockDB()
	obj := testutil.NewMockObjectStore()
	svc := NewChatbotService(db, obj, "pdf-documents", galaxy.NewPlacer(rand.New(rand.NewPCG(1, 1))))
	return svc, db, obj
}

func TestCreatePlacesPlanetAndAwardsXP(t *testing.T) {
	svc, _, _ := newChatbotService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "user-1", "  Biology ", "cells")
	require.NoError(t, err)
	assert.Equal(t, "Biology", first.Bot.Name)
	assert.Equal(t, 5.0, first.Bot.PlanetData.OrbitRadius)
	assert.Equal(t, 10, first.Bot.XP)
	assert.Equal(t, 1, first.Bot.Level)
	require.NotNil(t, first.Award)
	assert.Equal(t, string(leveling.ActionCreateBot), first.Award.Action)

	second, err := svc.Create(ctx, "user-1", "Chemistry", "")
	require.NoError(t, err)
	assert.Equal(t, 8.0, second.Bot.PlanetData.OrbitRadius)

	other, err := svc.Create(ctx, "user-2", "History", "")
	require.NoError(t, err)
	assert.Equal(t, 5.0, other.Bot.PlanetData.OrbitRadius)

	_, err = svc.Create(ctx, "user-1", "   ", "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestAwardXPLevelsUpAndGrowsPlanet(t *testing.T) {
	svc, db, _ := newChatbotService(t)
	ctx := context.Background()
	db.PutChatbot(models.ChatBot{ID: "bot-1", UserID: "user-1", XP: 300, PlanetData: models.PlanetData{Size: 0.5}})

	award, err := svc.AwardXP(ctx, "bot-1", "user-1", leveling.ActionUploadPDF)
	require.NoError(t, err)
	assert.True(t, award.LeveledUp)
	assert.Equal(t, 1, award.OldLevel)
	assert.Equal(t, 2, award.NewLevel)
	assert.Equal(t, 330, award.NewXP)
	assert.Equal(t, 2, award.Bot.Level)
	assert.InDelta(t, 0.8, award.Bot.PlanetData.Size, 1e-9)

	award, err = svc.AwardXP(ctx, "bot-1", "user-1", leveling.ActionAskQuestion)
	require.NoError(t, err)
	assert.False(t, award.LeveledUp)
	assert.Equal(t, 335, award.NewXP)
}

func TestAwardXPRejectsBadInput(t *testing.T) {
	svc, db, _ := newChatbotService(t)
	ctx := context.Background()
	db.PutChatbot(models.ChatBot{ID: "bot-1", UserID: "user-1"})

	_, err := svc.AwardXP(ctx, "bot-1", "user-1", leveling.Action("DANCE"))
	assert.ErrorIs(t, err, models.ErrInvalidXP)

	_, err = svc.AwardXPAmount(ctx, "bot-1", "user-1", leveling.ActionDailyStreak, -5)
	assert.ErrorIs(t, err, models.ErrInvalidXP)

	_, err = svc.AwardXP(ctx, "bot-1", "intruder", leveling.ActionAskQuestion)
	assert.ErrorIs(t, err, models.ErrChatbotNotFound)
}

// racingDB bumps xp behind the service's back once, forcing a retry.
type racingDB struct {
	*testutil.MockDB
	raced bool
}

func (r *racingDB) UpdateChatbotXP(ctx context.Context, id, userID string, fromXP, toXP int, size float64) (*models.ChatBot, error) {
	if !r.raced {
		r.raced = true
		if _, err := r.MockDB.UpdateChatbotXP(ctx, id, userID, fromXP, fromXP+5, size); err != nil {
			return nil, err
		}
	}
	return r.MockDB.UpdateChatbotXP(ctx, id, userID, fromXP, toXP, size)
}

func TestAwardXPRetriesOnConflict(t *testing.T) {
	db := &racingDB{MockDB: testutil.NewMockDB()}
	db.PutChatbot(models.ChatBot{ID: "bot-1", UserID: "user-1", XP: 100})
	svc := NewChatbotService(db, testutil.NewMockObjectStore(), "b", nil)

	award, err := svc.AwardXP(context.Background(), "bot-1", "user-1", leveling.ActionQuizMe)
	require.NoError(t, err)
	assert.Equal(t, 125, award.NewXP)
}

func TestUpdateAndActivity(t *testing.T) {
	svc, db, _ := newChatbotService(t)
	ctx := context.Background()
	db.PutChatbot(models.ChatBot{ID: "bot-1", UserID: "user-1", Name: "Old", Description: "keep"})

	name := " New "
	bot, err := svc.Update(ctx, "bot-1", "user-1", &name, nil)
	require.NoError(t, err)
	assert.Equal(t, "New", bot.Name)
	assert.Equal(t, "keep", bot.Description)

	blank := ""
	_, err = svc.Update(ctx, "bot-1", "user-1", &blank, nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	bot, err = svc.UpdateActivity(ctx, "bot-1", "user-1", 4.2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, bot.PlanetData.Activity)
}

func TestDeleteRemovesStoredPDFs(t *testing.T) {
	svc, db, obj := newChatbotService(t)
	ctx := context.Background()
	db.PutChatbot(models.ChatBot{ID: "bot-1", UserID: "user-1"})
	for i, key := range []string{"user-1/bot-1/1_a.pdf", "user-1/bot-1/2_b.pdf"} {
		_, err := obj.UploadFile(ctx, "pdf-documents", key, strings.NewReader("%PDF"), "application/pdf")
		require.NoError(t, err)
		db.PutDocument(models.PDFDocument{ID: fmt.Sprintf("doc-%d", i), ChatbotID: "bot-1", UserID: "user-1", FilePath: key})
	}

	require.NoError(t, svc.Delete(ctx, "bot-1", "user-1"))
	assert.Empty(t, obj.Keys())

	_, err := svc.Get(ctx, "bot-1", "user-1")
	assert.ErrorIs(t, err, models.ErrChatbotNotFound)
}

func TestDeleteSurvivesStorageFailure(t *testing.T) {
	svc, db, obj := newChatbotService(t)
	ctx := context.Background()
	db.PutChatbot(models.ChatBot{ID: "bot-1", UserID: "user-1"})
	db.PutDocument(models.PDFDocument{ID: "doc-1", ChatbotID: "bot-1", UserID: "user-1", FilePath: "k"})
	obj.DeleteErr = errors.New("access denied")

	require.NoError(t, svc.Delete(ctx, "bot-1", "user-1"))
	assert.ErrorIs(t, svc.Delete(ctx, "bot-1", "user-1"), models.ErrChatbotNotFound)
}
