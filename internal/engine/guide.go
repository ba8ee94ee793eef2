package engine

import "github.com/dearie-ai/dearie/pkg/types"

// responseGuides maps supported emotion types to a response directive,
// tone, and example phrasings. Unmapped emotions use defaultGuide.
var responseGuides = map[string]types.ResponseGuide{
	"기쁨": {
		Response: "함께 기뻐하고 축하해주기",
		Tone:     "밝고 활기찬",
		Examples: []string{"정말 좋겠다!", "축하해!", "나도 덩달아 기분이 좋아져"},
	},
	"슬픔": {
		Response: "공감하고 위로해주기",
		Tone:     "따뜻하고 다정한",
		Examples: []string{"많이 힘들겠다", "괜찮아, 나도 그런 적 있어", "충분히 슬플 만해"},
	},
	"분노": {
		Response: "감정을 인정하고 차분히 들어주기",
		Tone:     "차분하고 이해하는",
		Examples: []string{"정말 화나겠다", "그럴 만도 해", "충분히 이해해"},
	},
	"피곤": {
		Response: "휴식을 권하고 건강 챙기기",
		Tone:     "걱정스럽고 배려하는",
		Examples: []string{"많이 피곤해 보여", "좀 쉬어야겠다", "몸 조심해"},
	},
	"스트레스": {
		Response: "스트레스 해소법 제안하고 공감",
		Tone:     "이해하고 도움을 주려는",
		Examples: []string{"스트레스 많이 받겠다", "러닝이라도 같이 할까?", "힘내"},
	},
	"설렘": {
		Response: "함께 설레고 응원해주기",
		Tone:     "설레고 기대하는",
		Examples: []string{"나도 설레!", "어떻게 될지 궁금하다", "잘 될 것 같아"},
	},
}

func defaultGuide() types.ResponseGuide {
	return types.ResponseGuide{
		Response: "자연스럽게 공감하고 경청하기",
		Tone:     "따뜻하고 친근한",
		Examples: []string{"그렇구나", "어떤 기분인지 알 것 같아", "더 얘기해봐"},
	}
}

// negativeEmotions is the set that counts toward the heightened-care
// escalation.
var negativeEmotions = map[string]struct{}{
	"슬픔":   {},
	"분노":   {},
	"스트레스": {},
	"우울":   {},
	"불안":   {},
}

// additionalCareNote is attached when the recent emotional history trends
// negative.
const additionalCareNote = "최근 힘든 시간을 보내고 있으니 더 세심한 관심과 위로 필요"

// BuildResponseGuide maps the current emotion (possibly nil) and the
// recent emotion history (newest-first) to a ResponseGuide. The escalation
// rule looks only at the last 5 records and is independent of the current
// emotion.
func BuildResponseGuide(current *types.EmotionRecord, recent []types.EmotionRecord) types.ResponseGuide {
	guide := defaultGuide()
	if current != nil {
		if g, ok := responseGuides[current.EmotionType]; ok {
			guide = g
		}
	}

	window := recent
	if len(window) > 5 {
		window = window[:5]
	}
	negatives := 0
	for _, rec := range window {
		if _, ok := negativeEmotions[rec.EmotionType]; ok {
			negatives++
		}
	}
	if negatives >= 2 {
		guide.AdditionalCare = additionalCareNote
	}
	return guide
}
