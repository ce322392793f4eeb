package llm

import "math/rand"

// fallbackCorpus holds the pre-authored supportive replies used when
// both endpoints are exhausted.
var fallbackCorpus = []string{
	"I hear you, and I want you to know that your feelings are valid. Sometimes just expressing what's on your mind can be the first step toward feeling better. 💙",
	"It sounds like you're going through a challenging time. Remember that it's okay to not be okay sometimes. Have you tried taking a few deep breaths or going for a short walk? 🌿",
	"Thank you for sharing that with me. Your mental health matters, and taking time to check in with yourself is important. What's one small thing that usually brings you comfort? ☕",
	"I can sense that you're dealing with a lot right now. Sometimes when we're overwhelmed, it helps to focus on just the next small step. What feels manageable for you today? 🌱",
	"Your feelings are completely understandable. When things feel heavy, gentle activities like journaling, listening to calming music, or reaching out to someone you trust can help. 📝",
	"I appreciate you opening up. Remember that seeking support - whether from friends, family, or professionals - is a sign of strength, not weakness. You don't have to face this alone. 🤝",
}

// FallbackResponder is the terminal link of the error-handling chain.
// It never fails and depends on nothing but its random source.
type FallbackResponder struct {
	intn func(n int) int
}

// NewFallbackResponder uses the package-level random source.
func NewFallbackResponder() *FallbackResponder {
	return &FallbackResponder{intn: rand.Intn}
}

// NewFallbackResponderWithSource injects a random draw, letting tests
// pin the pick.
func NewFallbackResponderWithSource(intn func(n int) int) *FallbackResponder {
	return &FallbackResponder{intn: intn}
}

// Respond returns a uniformly-random supportive message.
func (r *FallbackResponder) Respond() string {
	return fallbackCorpus[r.intn(len(fallbackCorpus))]
}

// Messages exposes the fixed corpus, so callers can recognize a
// fallback reply.
func Messages() []string {
	return append([]string(nil), fallbackCorpus...)
}
