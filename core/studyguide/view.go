package studyguide

import (
	"context"

	"StudySync/model"
)

// expand 一次性查询涉及的用户并组装视图，已删除的用户被跳过
func (s *Service) expand(ctx context.Context, guides []*model.StudyGuide) ([]model.StudyGuideView, error) {
	var ids []int64
	for _, g := range guides {
		ids = append(ids, g.CreatorID)
		ids = append(ids, g.Contributors...)
		for _, v := range g.Versions {
			ids = append(ids, v.UpdatedBy)
		}
	}
	users, err := s.users.GetByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, err
	}

	summary := func(id int64) *model.UserSummary {
		if u, ok := users[id]; ok {
			sum := u.Summary()
			return &sum
		}
		return nil
	}

	views := make([]model.StudyGuideView, 0, len(guides))
	for _, g := range guides {
		view := model.StudyGuideView{
			ID:            g.ID,
			Title:         g.Title,
			Description:   g.Description,
			Content:       g.Content,
			Summary:       g.Summary,
			Flashcards:    nonNilFlashcards(g.Flashcards),
			Keywords:      nonNilKeywords(g.Keywords),
			Subjects:      nonNilStrings(g.Subjects),
			CustomSubject: g.CustomSubject,
			IsPublic:      g.IsPublic,
			Creator:       summary(g.CreatorID),
			Contributors:  []model.UserSummary{},
			Upvotes:       g.Upvotes,
			UpvotedBy:     append([]int64{}, g.UpvotedBy...),
			Versions:      make([]model.VersionView, 0, len(g.Versions)),
			CreatedAt:     g.CreatedAt,
			UpdatedAt:     g.UpdatedAt,
		}
		for _, id := range g.Contributors {
			if sum := summary(id); sum != nil {
				view.Contributors = append(view.Contributors, *sum)
			}
		}
		for _, v := range g.Versions {
			view.Versions = append(view.Versions, model.VersionView{
				Content:   v.Content,
				UpdatedBy: summary(v.UpdatedBy),
				UpdatedAt: v.UpdatedAt,
			})
		}
		views = append(views, view)
	}
	return views, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nonNilFlashcards(f model.FlashcardList) []model.Flashcard {
	if f == nil {
		return []model.Flashcard{}
	}
	return f
}

func nonNilKeywords(k model.KeywordList) []model.Keyword {
	if k == nil {
		return []model.Keyword{}
	}
	return k
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
