package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"StudySync/internal/testdb"
	"StudySync/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newGuide(id string, creator int64, subjects ...string) *model.StudyGuide {
	return &model.StudyGuide{
		ID:           id,
		Title:        "Guide " + id,
		Content:      "Some study content for " + id,
		Subjects:     subjects,
		IsPublic:     true,
		CreatorID:    creator,
		Contributors: []int64{creator},
	}
}

func TestSaveAndFindByID(t *testing.T) {
	repo := NewGormStudyGuideRepository(testdb.Open(t))
	ctx := context.Background()

	g := newGuide("g1", 1, "Biology", "Chemistry")
	g.Flashcards = model.FlashcardList{{Question: "Q", Answer: "A", Type: model.FlashcardFreeform, Options: []string{}}}
	g.Keywords = model.KeywordList{{Word: "cell", Importance: 8}}
	g.Contributors = []int64{1, 2}
	g.ToggleUpvote(3)
	require.NoError(t, repo.Save(ctx, g))

	got, err := repo.FindByID(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"Biology", "Chemistry"}, got.Subjects)
	assert.Equal(t, []int64{1, 2}, got.Contributors)
	assert.Equal(t, []int64{3}, got.UpvotedBy)
	assert.Equal(t, 1, got.Upvotes)
	assert.Equal(t, g.Flashcards, got.Flashcards)
	assert.Equal(t, g.Keywords, got.Keywords)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestFindByIDMissing(t *testing.T) {
	repo := NewGormStudyGuideRepository(testdb.Open(t))
	got, err := repo.FindByID(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveOverwritesExistingGuide(t *testing.T) {
	repo := NewGormStudyGuideRepository(testdb.Open(t))
	ctx := context.Background()

	g := newGuide("g1", 1, "Math")
	g.ToggleUpvote(5)
	require.NoError(t, repo.Save(ctx, g))
	createdAt := g.CreatedAt

	g.Title = "Renamed"
	g.Subjects = []string{"Physics"}
	g.ToggleUpvote(5)
	g.AppendVersion("old content", 1, baseTime)
	require.NoError(t, repo.Save(ctx, g))

	got, err := repo.FindByID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, []string{"Physics"}, got.Subjects)
	assert.Empty(t, got.UpvotedBy)
	assert.Equal(t, 0, got.Upvotes)
	require.Len(t, got.Versions, 1)
	assert.Equal(t, "old content", got.Versions[0].Content)
	assert.WithinDuration(t, createdAt, got.CreatedAt, time.Second)
}

func seedGuides(t *testing.T, repo StudyGuideRepository, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		g := newGuide(fmt.Sprintf("g%02d", i), 1, "Math")
		g.CreatedAt = baseTime.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Save(context.Background(), g))
	}
}

func TestListPagination(t *testing.T) {
	repo := NewGormStudyGuideRepository(testdb.Open(t))
	seedGuides(t, repo, 25)

	guides, total, err := repo.List(context.Background(), StudyGuideFilter{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	require.Len(t, guides, 5)
	// newest first: page 3 holds the five oldest
	assert.Equal(t, "g04", guides[0].ID)
	assert.Equal(t, "g00", guides[4].ID)
}

func TestListSortOldest(t *testing.T) {
	repo := NewGormStudyGuideRepository(testdb.Open(t))
	seedGuides(t, repo, 3)

	guides, _, err := repo.List(context.Background(), StudyGuideFilter{Sort: SortOldest, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, guides, 3)
	assert.Equal(t, "g00", guides[0].ID)
}

func TestListSortPopular(t *testing.T) {
	repo := NewGormStudyGuideRepository(testdb.Open(t))
	ctx := context.Background()
	seedGuides(t, repo, 3)

	g, err := repo.FindByID(ctx, "g00")
	require.NoError(t, err)
	g.ToggleUpvote(7)
	g.ToggleUpvote(8)
	require.NoError(t, repo.Save(ctx, g))

	guides, _, err := repo.List(ctx, StudyGuideFilter{Sort: SortPopular, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, guides, 3)
	assert.Equal(t, "g00", guides[0].ID)
	assert.Equal(t, 2, guides[0].Upvotes)
}

func TestListSubjectFilter(t *testing.T) {
	repo := NewGormStudyGuideRepository(testdb.Open(t))
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, newGuide("a", 1, "History")))
	require.NoError(t, repo.Save(ctx, newGuide("b", 1, "Math", "History")))
	require.NoError(t, repo.Save(ctx, newGuide("c", 1, "Math")))

	guides, total, err := repo.List(ctx, StudyGuideFilter{Subject: "History", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, g := range guides {
		assert.Contains(t, g.Subjects, "History")
	}
}

func TestListPublicOnly(t *testing.T) {
	repo := NewGormStudyGuideRepository(testdb.Open(t))
	ctx := context.Background()
	hidden := newGuide("hidden", 1, "Math")
	hidden.IsPublic = false
	require.NoError(t, repo.Save(ctx, hidden))
	require.NoError(t, repo.Save(ctx, newGuide("shown", 1, "Math")))

	guides, total, err := repo.List(ctx, StudyGuideFilter{PublicOnly: true, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "shown", guides[0].ID)
}

func TestListSearchRanksExactTitleFirst(t *testing.T) {
	repo := NewGormStudyGuideRepository(testdb.Open(t))
	ctx := context.Background()

	inContent := newGuide("content", 1, "Biology")
	inContent.Content = "All about cell biology and organelles"
	inContent.CreatedAt = baseTime.Add(2 * time.Hour)
	require.NoError(t, repo.Save(ctx, inContent))

	exact := newGuide("exact", 1, "Biology")
	exact.Title = "Cell Biology"
	exact.CreatedAt = baseTime
	require.NoError(t, repo.Save(ctx, exact))

	bySubject := newGuide("subject", 1, "Cell")
	bySubject.CreatedAt = baseTime.Add(time.Hour)
	require.NoError(t, repo.Save(ctx, bySubject))

	require.NoError(t, repo.Save(ctx, newGuide("other", 1, "History")))

	guides, total, err := repo.List(ctx, StudyGuideFilter{Search: "cell biology", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, guides, 3)
	assert.Equal(t, "exact", guides[0].ID)
	assert.Equal(t, "content", guides[1].ID)
	assert.Equal(t, "subject", guides[2].ID)
}

func TestListSearchRanksSubjectPhraseWithContent(t *testing.T) {
	repo := NewGormStudyGuideRepository(testdb.Open(t))
	ctx := context.Background()

	oneTerm := newGuide("one-term", 1, "Biology")
	oneTerm.Content = "Only the word cell appears here"
	oneTerm.CreatedAt = baseTime.Add(2 * time.Hour)
	require.NoError(t, repo.Save(ctx, oneTerm))

	subject := newGuide("subject", 1, "Cell Biology")
	subject.CreatedAt = baseTime
	require.NoError(t, repo.Save(ctx, subject))

	guides, total, err := repo.List(ctx, StudyGuideFilter{Search: "cell biology", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, guides, 2)
	assert.Equal(t, "subject", guides[0].ID)
	assert.Equal(t, "one-term", guides[1].ID)
}

func TestListSearchEscapesWildcards(t *testing.T) {
	repo := NewGormStudyGuideRepository(testdb.Open(t))
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, newGuide("g1", 1, "Math")))

	_, total, err := repo.List(ctx, StudyGuideFilter{Search: "%", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestListByCreator(t *testing.T) {
	repo := NewGormStudyGuideRepository(testdb.Open(t))
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, newGuide("mine1", 1, "Math")))
	require.NoError(t, repo.Save(ctx, newGuide("theirs", 2, "Math")))
	require.NoError(t, repo.Save(ctx, newGuide("mine2", 1, "Math")))

	guides, err := repo.ListByCreator(ctx, 1)
	require.NoError(t, err)
	require.Len(t, guides, 2)
	assert.Equal(t, "mine2", guides[0].ID)
}

func TestAccountCascadeOperations(t *testing.T) {
	repo := NewGormStudyGuideRepository(testdb.Open(t))
	ctx := context.Background()

	owned := newGuide("owned", 9, "Math")
	require.NoError(t, repo.Save(ctx, owned))

	shared := newGuide("shared", 1, "Math")
	shared.Contributors = []int64{1, 9}
	shared.ToggleUpvote(9)
	shared.ToggleUpvote(4)
	require.NoError(t, repo.Save(ctx, shared))

	deleted, err := repo.DeleteByCreator(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, []string{"owned"}, deleted)

	touched, err := repo.RemoveContributor(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared"}, touched)

	touched, err = repo.RemoveUpvoter(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared"}, touched)

	gone, err := repo.FindByID(ctx, "owned")
	require.NoError(t, err)
	assert.Nil(t, gone)

	got, err := repo.FindByID(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, got.Contributors)
	assert.Equal(t, []int64{4}, got.UpvotedBy)
	assert.Equal(t, 1, got.Upvotes)
}

func TestDeleteByID(t *testing.T) {
	repo := NewGormStudyGuideRepository(testdb.Open(t))
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, newGuide("g1", 1, "Math")))
	require.NoError(t, repo.DeleteByID(ctx, "g1"))

	got, err := repo.FindByID(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
