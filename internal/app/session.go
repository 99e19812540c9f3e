package app

import (
	"math/rand"
	"time"

	"notecard-review-service/internal/domain"
	"notecard-review-service/internal/evaluator"
	"notecard-review-service/internal/identity"
	"notecard-review-service/internal/leitner"
)

// PageSizes lists the selectable page sizes.
var PageSizes = []int{1, 2, 3, 5}

// DefaultPageSize is used for any page size outside PageSizes.
const DefaultPageSize = 2

// NormalizePageSize maps n onto PageSizes. The legacy size 10 reads as 5.
func NormalizePageSize(n int) int {
	if n == 10 {
		return 5
	}
	for _, allowed := range PageSizes {
		if n == allowed {
			return n
		}
	}
	return DefaultPageSize
}

// SessionOptions configures BuildSession.
type SessionOptions struct {
	Order    Order
	Strength Strength
	Mode     Mode
	BoxCount int
	PageSize int
	// Rand drives random and repetition ordering. Nil seeds from the clock.
	Rand *rand.Rand
}

// Session is the ordered, paged view of one scan for one user. It is not
// safe for concurrent use; ReviewService serializes access.
type Session struct {
	userID    string
	entries   []entry
	responses []evaluator.Response
	results   map[int]domain.Result
	progress  map[domain.CardID]domain.CardProgress
	boxCount  int
	pageSize  int
	page      int
}

// BuildSession assigns identities to the scanned cards, seeds missing
// progress at box 1 and fixes the card order once.
func BuildSession(userID string, cards []domain.Card, existing map[domain.CardID]domain.CardProgress, opts SessionOptions) *Session {
	boxCount := leitner.NormalizeBoxCount(opts.BoxCount)
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	progress := make(map[domain.CardID]domain.CardProgress, len(cards))
	entries := make([]entry, 0, len(cards))
	for _, card := range cards {
		if !opts.Mode.Matches(card) {
			continue
		}
		id := identity.Of(card)
		p, ok := progress[id]
		if !ok {
			if prior, found := existing[id]; found {
				p = leitner.Normalize(prior)
			} else {
				p = leitner.New()
			}
			progress[id] = p
		}
		entries = append(entries, entry{card: card, id: id, progress: p})
	}

	switch opts.Order {
	case OrderRandom:
		entries = shuffle(entries, rnd)
	case OrderRepetition:
		entries = weightedOrder(entries, boxCount, opts.Strength, rnd)
	}

	return &Session{
		userID:    userID,
		entries:   entries,
		responses: make([]evaluator.Response, len(entries)),
		results:   make(map[int]domain.Result),
		progress:  progress,
		boxCount:  boxCount,
		pageSize:  NormalizePageSize(opts.PageSize),
	}
}

func (s *Session) UserID() string { return s.userID }

// Len returns the number of cards in the session.
func (s *Session) Len() int { return len(s.entries) }

// Card returns the card at index.
func (s *Session) Card(index int) (domain.Card, error) {
	if err := s.checkIndex(index); err != nil {
		return nil, err
	}
	return s.entries[index].card, nil
}

// Cards returns the cards in session order.
func (s *Session) Cards() []domain.Card {
	out := make([]domain.Card, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.card
	}
	return out
}

// IDs returns the card identities in session order.
func (s *Session) IDs() []domain.CardID {
	out := make([]domain.CardID, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.id
	}
	return out
}

// Progress returns a copy of the progress of every card in the session.
func (s *Session) Progress() map[domain.CardID]domain.CardProgress {
	out := make(map[domain.CardID]domain.CardProgress, len(s.progress))
	for id, p := range s.progress {
		out[id] = p
	}
	return out
}

// Response returns a copy of the in-progress response for index.
func (s *Session) Response(index int) (evaluator.Response, error) {
	if err := s.checkIndex(index); err != nil {
		return evaluator.Response{}, err
	}
	return s.responses[index].Clone(), nil
}

// Submitted reports whether the card at index was finalized and its result.
func (s *Session) Submitted(index int) (domain.Result, bool) {
	r, ok := s.results[index]
	return r, ok
}

// Respond applies one partial response to the card at index. The response
// is left untouched when the action is rejected.
func (s *Session) Respond(index int, action Action) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	if _, done := s.results[index]; done {
		return domain.ErrAlreadySubmitted
	}
	next := s.responses[index].Clone()
	if err := action.apply(s.entries[index].card, &next); err != nil {
		return err
	}
	s.responses[index] = next
	return nil
}

// Submit evaluates the card at index, marks it submitted and moves it through
// the box system. The updated progress is returned for persistence.
func (s *Session) Submit(index int, boxCount int, now time.Time) (domain.CardProgress, domain.Result, error) {
	if err := s.checkIndex(index); err != nil {
		return domain.CardProgress{}, domain.Neutral, err
	}
	if _, done := s.results[index]; done {
		return domain.CardProgress{}, domain.Neutral, domain.ErrAlreadySubmitted
	}
	e := s.entries[index]
	resp := s.responses[index]
	if !evaluator.IsComplete(e.card, resp) {
		return domain.CardProgress{}, domain.Neutral, domain.ErrIncomplete
	}

	result := evaluator.Evaluate(e.card, resp)
	updated := leitner.Apply(s.progress[e.id], result, boxCount, now)
	s.progress[e.id] = updated
	s.results[index] = result
	return updated, result, nil
}

// Tally scores the submitted cards. Neutral results are not counted.
func (s *Session) Tally() evaluator.Tally {
	results := make([]domain.Result, 0, len(s.results))
	for i := range s.entries {
		if r, ok := s.results[i]; ok {
			results = append(results, r)
		}
	}
	return evaluator.Score(results)
}

// Reconfigure clamps the session's progress to a new box count.
func (s *Session) Reconfigure(boxCount int) {
	s.boxCount = leitner.NormalizeBoxCount(boxCount)
	state := domain.UserState{CardStates: s.progress}
	leitner.Reconfigure([]*domain.UserState{&state}, s.boxCount)
}

// PageSize returns the current page size.
func (s *Session) PageSize() int { return s.pageSize }

// SetPageSize normalizes n and clamps the current page.
func (s *Session) SetPageSize(n int) {
	s.pageSize = NormalizePageSize(n)
	s.clampPage()
}

// Page returns the zero-based current page.
func (s *Session) Page() int { return s.page }

// PageCount returns the number of pages, zero for an empty session.
func (s *Session) PageCount() int {
	return (len(s.entries) + s.pageSize - 1) / s.pageSize
}

// GotoPage moves the page cursor by delta, clamped to the available pages.
func (s *Session) GotoPage(delta int) int {
	s.page += delta
	s.clampPage()
	return s.page
}

// Visible returns the card indexes on the current page.
func (s *Session) Visible() []int {
	start := s.page * s.pageSize
	end := min(start+s.pageSize, len(s.entries))
	out := make([]int, 0, max(0, end-start))
	for i := start; i < end; i++ {
		out = append(out, i)
	}
	return out
}

func (s *Session) clampPage() {
	last := s.PageCount() - 1
	if s.page > last {
		s.page = last
	}
	if s.page < 0 {
		s.page = 0
	}
}

func (s *Session) checkIndex(index int) error {
	if index < 0 || index >= len(s.entries) {
		return domain.ErrCardIndexOutOfRange
	}
	return nil
}
