package feedback

import (
	"math/rand/v2"

	"museflow/internal/models"
)

var encouragementPool = []string{
	"您的文字展现了真诚的表达和细腻的思考，每一篇作品都是内心世界的真实映照。",
	"能够静下心来书写本身就很了不起，你的文字里有属于自己的温度。",
	"这篇作品里有不少打动人的瞬间，继续保持这份观察与感受的敏锐。",
	"你敢于直面内心，把感受落在纸上，这是写作最珍贵的起点。",
}

var suggestionPool = []string{
	"可以尝试在关键场景中加入更多感官描写，让读者更有代入感。",
	"某些段落可以放慢节奏，给读者更多想象空间。",
	"尝试用对比手法会让文章更有张力。",
	"结尾可以呼应开头的意象，让整篇文章更完整。",
	"适当加入具体的细节和例子，会让观点更有说服力。",
	"试着替换一些常用词，用更精准的词语表达细微的情绪。",
}

// Intn is the source of randomness for fallback feedback.
type Intn interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Fallback synthesizes feedback from local templates. The baseline score
// grows with length, min(85 + words/50, 95), plus 0-9 per dimension, capped
// at 100. It never fails.
func Fallback(content string, rnd Intn) models.Feedback {
	if rnd == nil {
		rnd = globalRand{}
	}
	base := min(85+models.CountWords(content)/50, 95)
	score := func() int { return min(base+rnd.IntN(10), 100) }

	// Partial shuffle: first maxSuggestions entries are distinct picks.
	pool := append([]string(nil), suggestionPool...)
	for i := 0; i < maxSuggestions; i++ {
		j := i + rnd.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	suggestions := models.StringList(pool[:maxSuggestions])

	return models.Feedback{
		Scores: models.Scores{
			Creativity: score(),
			Emotion:    score(),
			Expression: score(),
			Logic:      score(),
			Vocabulary: score(),
		},
		Encouragement: encouragementPool[rnd.IntN(len(encouragementPool))],
		Suggestions:   suggestions,
		IsFallback:    true,
	}
}
