package bank

import (
	"math/rand"
	"slices"
	"sync"
	"time"

	"quizbot/internal/domain"
)

// RetrySuffix marks a re-asked question.
const RetrySuffix = " (retry)"

// Shuffler randomizes option and question order. Safe for concurrent use.
type Shuffler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewShuffler(seed int64) *Shuffler {
	return &Shuffler{rnd: rand.New(rand.NewSource(seed))}
}

func NewRandomShuffler() *Shuffler {
	return NewShuffler(time.Now().UnixNano())
}

// Options returns a copy of q with its canonical options permuted and
// CorrectIndex pointing at the same option text. When the correct text occurs
// more than once, the first occurrence after shuffling wins.
func (s *Shuffler) Options(q domain.Question) domain.Question {
	canonical := q.CanonicalOptions
	correctText := q.CorrectText
	if len(canonical) == 0 {
		canonical = q.Options
		correctText = q.Options[q.CorrectIndex]
	}

	options := slices.Clone(canonical)
	s.mu.Lock()
	s.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	s.mu.Unlock()

	out := q
	out.Options = options
	out.CorrectIndex = slices.Index(options, correctText)
	out.CorrectText = correctText
	out.CanonicalOptions = slices.Clone(canonical)
	return out
}

// Questions returns the questions in a new random order.
func (s *Shuffler) Questions(questions []domain.Question) []domain.Question {
	shuffled := slices.Clone(questions)
	s.mu.Lock()
	s.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	s.mu.Unlock()
	return shuffled
}

// Prepare shuffles every question's options and then the question order.
func (s *Shuffler) Prepare(questions []domain.Question) []domain.Question {
	prepared := make([]domain.Question, len(questions))
	for i, q := range questions {
		prepared[i] = s.Options(q)
	}
	return s.Questions(prepared)
}

// Retry builds a freshly shuffled copy of q marked as a retry.
func (s *Shuffler) Retry(q domain.Question) domain.Question {
	retry := s.Options(q)
	if !q.Retry {
		retry.Prompt = q.Prompt + RetrySuffix
	}
	retry.Retry = true
	return retry
}
