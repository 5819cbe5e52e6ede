package ai

import (
	"encoding/json"
	"math"
	"strings"

	"StudySync/model"
)

// ExtractArray 截取从第一个 '[' 到最后一个 ']' 的片段
func ExtractArray(text string) (string, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// ParseFlashcards 解析模型输出中的闪卡数组，无法解析时返回 nil
func ParseFlashcards(text string) ([]model.Flashcard, error) {
	raw, ok := ExtractArray(text)
	if !ok {
		return nil, nil
	}
	var cards []model.Flashcard
	if err := json.Unmarshal([]byte(raw), &cards); err != nil {
		return nil, err
	}

	out := make([]model.Flashcard, 0, len(cards))
	for _, c := range cards {
		c.Question = strings.TrimSpace(c.Question)
		c.Answer = strings.TrimSpace(c.Answer)
		if c.Question == "" || c.Answer == "" {
			continue
		}
		if c.Type != model.FlashcardMultipleChoice {
			c.Type = model.FlashcardFreeform
		}
		if c.Options == nil {
			c.Options = []string{}
		}
		if c.CorrectOptionIndex < 0 || (len(c.Options) > 0 && c.CorrectOptionIndex >= len(c.Options)) {
			c.CorrectOptionIndex = 0
		}
		out = append(out, c)
	}
	return out, nil
}

// ParseKeywords 解析关键词数组，importance 限制在 1-10
func ParseKeywords(text string) ([]model.Keyword, error) {
	raw, ok := ExtractArray(text)
	if !ok {
		return nil, nil
	}
	// importance 可能是小数
	var keywords []struct {
		Word       string  `json:"word"`
		Importance float64 `json:"importance"`
	}
	if err := json.Unmarshal([]byte(raw), &keywords); err != nil {
		return nil, err
	}

	out := make([]model.Keyword, 0, len(keywords))
	for _, k := range keywords {
		word := strings.TrimSpace(k.Word)
		if word == "" {
			continue
		}
		importance := int(math.Round(k.Importance))
		switch {
		case importance < 1:
			importance = 1
		case importance > 10:
			importance = 10
		}
		out = append(out, model.Keyword{Word: word, Importance: importance})
	}
	return out, nil
}
