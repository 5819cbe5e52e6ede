package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"StudySync/logger"
	"StudySync/model"
)

// 各能力的 token 预算
const (
	SummaryMaxTokens    = 1000
	FlashcardsMaxTokens = 2000
	KeywordsMaxTokens   = 1500
)

const summaryPrompt = `Write a concise summary of the study material below.
Cover the key concepts, main ideas and important details in clear, well-structured prose.

Study material:
%s`

const flashcardsPrompt = `Create 5-10 flashcards from the study material below.
Each flashcard has a question and its answer, focused on key concepts, definitions and facts.
Respond with a JSON array of objects with "question" and "answer" fields.

Study material:
%s

Example:
[
  {"question": "What is photosynthesis?", "answer": "The process plants use to turn sunlight, water and carbon dioxide into glucose and oxygen."},
  {"question": "Who wrote 'Romeo and Juliet'?", "answer": "William Shakespeare"}
]`

const keywordsPrompt = `Extract 15-25 important keywords or key phrases from the study material below.
Give each one an importance score from 1 to 10, where 10 is most important.
Respond with a JSON array of objects with "word" and "importance" fields.

Study material:
%s

Example:
[
  {"word": "Photosynthesis", "importance": 9},
  {"word": "Chlorophyll", "importance": 7}
]`

// Generator 尽力而为地生成摘要、闪卡与关键词。
// 任何失败（网络、超时、解析）都只记录日志并返回空结果。
type Generator struct {
	completer Completer
	timeout   time.Duration
}

// NewGenerator completer 为 nil 时生成器处于禁用状态
func NewGenerator(completer Completer, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Generator{completer: completer, timeout: timeout}
}

// Enabled 是否配置了模型
func (g *Generator) Enabled() bool {
	return g != nil && g.completer != nil
}

func (g *Generator) complete(ctx context.Context, capability, prompt string, maxTokens int) (string, bool) {
	if !g.Enabled() {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.completer.Complete(ctx, prompt, maxTokens)
	if err != nil {
		logger.Warn("[AI] 调用失败",
			logger.String("capability", capability),
			logger.Duration("elapsed", time.Since(start)),
			logger.ErrorField(err))
		return "", false
	}
	return text, true
}

// Summarize 生成摘要
func (g *Generator) Summarize(ctx context.Context, content string) string {
	text, ok := g.complete(ctx, "summary", fmt.Sprintf(summaryPrompt, content), SummaryMaxTokens)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}

// GenerateFlashcards 生成闪卡
func (g *Generator) GenerateFlashcards(ctx context.Context, content string) []model.Flashcard {
	text, ok := g.complete(ctx, "flashcards", fmt.Sprintf(flashcardsPrompt, content), FlashcardsMaxTokens)
	if !ok {
		return nil
	}
	cards, err := ParseFlashcards(text)
	if err != nil {
		logger.Warn("[AI] 闪卡解析失败", logger.ErrorField(err))
		return nil
	}
	return cards
}

// ExtractKeywords 提取关键词
func (g *Generator) ExtractKeywords(ctx context.Context, content string) []model.Keyword {
	text, ok := g.complete(ctx, "keywords", fmt.Sprintf(keywordsPrompt, content), KeywordsMaxTokens)
	if !ok {
		return nil
	}
	keywords, err := ParseKeywords(text)
	if err != nil {
		logger.Warn("[AI] 关键词解析失败", logger.ErrorField(err))
		return nil
	}
	return keywords
}
