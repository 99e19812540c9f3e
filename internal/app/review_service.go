package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"notecard-review-service/internal/domain"
	"notecard-review-service/internal/evaluator"
	"notecard-review-service/internal/leitner"
)

// ProgressStore persists users and their progress (in-memory, Redis,
// Postgres, SQLite).
type ProgressStore interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	SaveUser(ctx context.Context, user domain.User) error
	DeleteUser(ctx context.Context, userID string) error
	// LoadProgress reports found=false when the user has no stored state.
	LoadProgress(ctx context.Context, userID string) (domain.UserState, bool, error)
	SaveProgress(ctx context.Context, userID string, state domain.UserState) error
}

// Settings are the review preferences shared by every session.
type Settings struct {
	BoxCount int
	PageSize int
	Order    Order
	Strength Strength
	Mode     Mode
	Location *time.Location
}

// DefaultSettings returns five boxes, two cards per page, scan order and
// medium repetition strength.
func DefaultSettings() Settings {
	return Settings{
		BoxCount: leitner.DefaultBoxCount,
		PageSize: DefaultPageSize,
		Order:    OrderInOrder,
		Strength: StrengthMedium,
		Mode:     ModeAll,
		Location: time.UTC,
	}
}

func (s Settings) normalized() Settings {
	s.BoxCount = leitner.NormalizeBoxCount(s.BoxCount)
	s.PageSize = NormalizePageSize(s.PageSize)
	s.Order = ParseOrder(string(s.Order))
	s.Strength = ParseStrength(string(s.Strength))
	s.Mode = ParseMode(string(s.Mode))
	if s.Location == nil {
		s.Location = time.UTC
	}
	return s
}

// ReviewService contains the review use cases. User states and sessions are
// kept in maps keyed by user id.
type ReviewService struct {
	store   ProgressStore
	scanner *Scanner
	clock   func() time.Time
	logger  *slog.Logger

	mu       sync.Mutex
	rnd      *rand.Rand
	settings Settings
	users    map[string]domain.User
	states   map[string]*domain.UserState
	sessions map[string]*Session
	active   string
}

type Option func(*ReviewService)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ReviewService) {
		if now != nil {
			s.clock = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *ReviewService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRand fixes the source used for random and repetition ordering.
func WithRand(rnd *rand.Rand) Option {
	return func(s *ReviewService) {
		if rnd != nil {
			s.rnd = rnd
		}
	}
}

// NewReviewService wires the use cases. A nil store keeps everything in memory.
func NewReviewService(store ProgressStore, scanner *Scanner, settings Settings, opts ...Option) *ReviewService {
	s := &ReviewService{
		store:    store,
		scanner:  scanner,
		clock:    time.Now,
		logger:   slog.Default(),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		settings: settings.normalized(),
		users:    make(map[string]domain.User),
		states:   make(map[string]*domain.UserState),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns the current review settings.
func (s *ReviewService) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// LoadUsers reads the user list from the store.
func (s *ReviewService) LoadUsers(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		s.users[u.ID] = u
	}
	return nil
}

// Users returns the known users sorted by name.
func (s *ReviewService) Users() []domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// User looks up a known user.
func (s *ReviewService) User(userID string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	return u, ok
}

// CreateUser adds a user. Names are trimmed and unique ignoring case.
func (s *ReviewService) CreateUser(ctx context.Context, name string) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, domain.ErrUserNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Name, name) {
			return domain.User{}, domain.ErrUserNameTaken
		}
	}
	user := domain.User{ID: uuid.NewString(), Name: name, CreatedAt: s.clock().UTC()}
	if s.store != nil {
		if err := s.store.SaveUser(ctx, user); err != nil {
			return domain.User{}, fmt.Errorf("save user: %w", err)
		}
	}
	s.users[user.ID] = user
	state := domain.NewUserState()
	s.states[user.ID] = &state
	return user, nil
}

// DeleteUser removes a user together with its progress and session.
func (s *ReviewService) DeleteUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return domain.ErrUserNotFound
	}
	if s.store != nil {
		if err := s.store.DeleteUser(ctx, userID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
	}
	delete(s.users, userID)
	delete(s.states, userID)
	delete(s.sessions, userID)
	if s.active == userID {
		s.active = ""
	}
	return nil
}

// ActivateUser makes userID the active reviewer. The previous active user's
// session is folded into its state and discarded.
func (s *ReviewService) ActivateUser(ctx context.Context, userID string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	if s.active != "" && s.active != userID {
		if session, ok := s.sessions[s.active]; ok {
			if state, ok := s.states[s.active]; ok {
				fold(state, session.Progress())
			}
			delete(s.sessions, s.active)
		}
	}
	if _, err := s.stateLocked(ctx, userID); err != nil {
		return domain.User{}, err
	}
	s.active = userID
	return user, nil
}

// ActiveUser returns the active reviewer, if any.
func (s *ReviewService) ActiveUser() (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[s.active]
	return u, ok
}

// Scan reads cards for userID and replaces the user's session with a fresh one.
func (s *ReviewService) Scan(ctx context.Context, userID string, req ScanRequest) (SessionView, error) {
	if s.scanner == nil {
		return SessionView{}, fmt.Errorf("%w: no scanner configured", domain.ErrSourceNotFound)
	}
	if !s.hasUser(userID) {
		return SessionView{}, domain.ErrUserNotFound
	}
	req.Key = userID
	result, err := s.scanner.Scan(ctx, req)
	if err != nil {
		return SessionView{}, err
	}
	view, err := s.StartSession(ctx, userID, result.Cards)
	if err != nil {
		return SessionView{}, err
	}
	view.Warnings = append(result.Warnings, view.Warnings...)
	return view, nil
}

// StartSession builds a session over cards for userID. Progress for cards
// seen for the first time is seeded at box 1 in the user's state.
func (s *ReviewService) StartSession(ctx context.Context, userID string, cards []domain.Card) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return SessionView{}, domain.ErrUserNotFound
	}
	state, err := s.stateLocked(ctx, userID)
	if err != nil {
		return SessionView{}, err
	}

	session := BuildSession(userID, cards, state.CardStates, SessionOptions{
		Order:    s.settings.Order,
		Strength: s.settings.Strength,
		Mode:     s.settings.Mode,
		BoxCount: s.settings.BoxCount,
		PageSize: s.settings.PageSize,
		Rand:     rand.New(rand.NewSource(s.rnd.Int63())),
	})
	s.sessions[userID] = session

	fold(state, session.Progress())
	loaded := s.clock().UTC()
	state.LastLoadedAt = &loaded

	view := s.viewLocked(session)
	if warning := s.persistLocked(ctx, userID, state); warning != "" {
		view.Warnings = append(view.Warnings, warning)
	}
	return view, nil
}

// Session returns the current view of the user's session.
func (s *ReviewService) Session(userID string) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.sessionLocked(userID)
	if err != nil {
		return SessionView{}, err
	}
	return s.viewLocked(session), nil
}

// Respond applies one partial response to a card of the user's session.
func (s *ReviewService) Respond(userID string, index int, action Action) (CardView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.sessionLocked(userID)
	if err != nil {
		return CardView{}, err
	}
	if err := session.Respond(index, action); err != nil {
		return CardView{}, err
	}
	return cardView(session, index), nil
}

// SubmitOutcome is the result of a submit. Warning is set when the progress
// could not be persisted; review continues on in-memory state.
type SubmitOutcome struct {
	Card     CardView            `json:"card"`
	Result   domain.Result       `json:"result"`
	Progress domain.CardProgress `json:"progress"`
	Tally    evaluator.Tally     `json:"tally"`
	Warning  string              `json:"warning,omitempty"`
}

// Submit finalizes a card, records its box transition and persists the
// user's state.
func (s *ReviewService) Submit(ctx context.Context, userID string, index int) (SubmitOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.sessionLocked(userID)
	if err != nil {
		return SubmitOutcome{}, err
	}
	state, err := s.stateLocked(ctx, userID)
	if err != nil {
		return SubmitOutcome{}, err
	}

	now := s.clock()
	progress, result, err := session.Submit(index, s.settings.BoxCount, now)
	if err != nil {
		return SubmitOutcome{}, err
	}
	state.CardStates[session.entries[index].id] = progress
	leitner.RecordReview(state, now, s.settings.Location)

	return SubmitOutcome{
		Card:     cardView(session, index),
		Result:   result,
		Progress: progress,
		Tally:    session.Tally(),
		Warning:  s.persistLocked(ctx, userID, state),
	}, nil
}

// SetBoxCount switches the box system and clamps the stored progress of
// every known user. It returns the normalized count.
func (s *ReviewService) SetBoxCount(ctx context.Context, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n = leitner.NormalizeBoxCount(n)
	s.settings.BoxCount = n

	states := make([]*domain.UserState, 0, len(s.users))
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		state, err := s.stateLocked(ctx, id)
		if err != nil {
			return n, err
		}
		states = append(states, state)
		ids = append(ids, id)
	}
	leitner.Reconfigure(states, n)
	for _, session := range s.sessions {
		session.Reconfigure(n)
	}

	var errs []error
	for i, id := range ids {
		if warning := s.persistLocked(ctx, id, states[i]); warning != "" {
			errs = append(errs, errors.New(warning))
		}
	}
	return n, errors.Join(errs...)
}

// SetPageSize changes the page size for new sessions and the user's session.
func (s *ReviewService) SetPageSize(userID string, n int) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.PageSize = NormalizePageSize(n)
	session, err := s.sessionLocked(userID)
	if err != nil {
		return SessionView{}, err
	}
	session.SetPageSize(n)
	return s.viewLocked(session), nil
}

// SetOrder changes the order used by sessions built after the call.
func (s *ReviewService) SetOrder(order Order, strength Strength) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Order = ParseOrder(string(order))
	s.settings.Strength = ParseStrength(string(strength))
}

// SetMode changes the exercise filter used by sessions built after the call.
func (s *ReviewService) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Mode = ParseMode(string(mode))
}

// GotoPage moves the user's page cursor by delta.
func (s *ReviewService) GotoPage(userID string, delta int) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.sessionLocked(userID)
	if err != nil {
		return SessionView{}, err
	}
	session.GotoPage(delta)
	return s.viewLocked(session), nil
}

// StatsView is the statistics panel of one user.
type StatsView struct {
	leitner.Snapshot
	BoxCount      int              `json:"boxCount"`
	ReviewedToday int              `json:"reviewedToday"`
	Tally         *evaluator.Tally `json:"tally,omitempty"`
}

// Stats derives the user's statistics from the stored progress.
func (s *ReviewService) Stats(ctx context.Context, userID string) (StatsView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return StatsView{}, domain.ErrUserNotFound
	}
	state, err := s.stateLocked(ctx, userID)
	if err != nil {
		return StatsView{}, err
	}
	view := StatsView{
		Snapshot:      leitner.Stats(state.CardStates, s.settings.BoxCount),
		BoxCount:      s.settings.BoxCount,
		ReviewedToday: state.ReviewedPerDay[leitner.DayKey(s.clock(), s.settings.Location)],
	}
	if session, ok := s.sessions[userID]; ok {
		tally := session.Tally()
		view.Tally = &tally
	}
	return view, nil
}

func (s *ReviewService) hasUser(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[userID]
	return ok
}

func (s *ReviewService) sessionLocked(userID string) (*Session, error) {
	if _, ok := s.users[userID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	session, ok := s.sessions[userID]
	if !ok {
		return nil, domain.ErrNoActiveSession
	}
	return session, nil
}

// stateLocked returns the cached state of userID, loading it from the store
// on first use. A failed load degrades to an empty state.
func (s *ReviewService) stateLocked(ctx context.Context, userID string) (*domain.UserState, error) {
	if state, ok := s.states[userID]; ok {
		return state, nil
	}
	if _, ok := s.users[userID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	state := domain.NewUserState()
	if s.store != nil {
		loaded, found, err := s.store.LoadProgress(ctx, userID)
		switch {
		case err != nil:
			s.logger.Warn("load progress failed, starting empty", "user", userID, "error", err)
		case found:
			state = loaded
		}
	}
	leitner.NormalizeState(&state)
	s.states[userID] = &state
	return &state, nil
}

// persistLocked saves the state and returns a warning instead of failing.
func (s *ReviewService) persistLocked(ctx context.Context, userID string, state *domain.UserState) string {
	if s.store == nil {
		return ""
	}
	if err := s.store.SaveProgress(ctx, userID, state.Clone()); err != nil {
		s.logger.Warn("save progress failed", "user", userID, "error", err)
		return fmt.Sprintf("progress not saved: %v", err)
	}
	return ""
}

func fold(state *domain.UserState, progress map[domain.CardID]domain.CardProgress) {
	if state.CardStates == nil {
		state.CardStates = make(map[domain.CardID]domain.CardProgress, len(progress))
	}
	for id, p := range progress {
		state.CardStates[id] = p
	}
}

// CardView is the client view of one session card.
type CardView struct {
	Index     int                 `json:"index"`
	ID        domain.CardID       `json:"id"`
	Kind      domain.CardKind     `json:"kind"`
	Prompt    string              `json:"prompt"`
	Card      json.RawMessage     `json:"card"`
	Response  evaluator.Response  `json:"response"`
	Complete  bool                `json:"complete"`
	Submitted bool                `json:"submitted"`
	Result    *domain.Result      `json:"result,omitempty"`
	Progress  domain.CardProgress `json:"progress"`
}

// SessionView is the client view of the current page of a session.
type SessionView struct {
	UserID    string          `json:"userId"`
	Total     int             `json:"total"`
	Page      int             `json:"page"`
	PageCount int             `json:"pageCount"`
	PageSize  int             `json:"pageSize"`
	Cards     []CardView      `json:"cards"`
	Tally     evaluator.Tally `json:"tally"`
	Warnings  []string        `json:"warnings,omitempty"`
}

func (s *ReviewService) viewLocked(session *Session) SessionView {
	visible := session.Visible()
	view := SessionView{
		UserID:    session.UserID(),
		Total:     session.Len(),
		Page:      session.Page(),
		PageCount: session.PageCount(),
		PageSize:  session.PageSize(),
		Cards:     make([]CardView, 0, len(visible)),
		Tally:     session.Tally(),
	}
	for _, i := range visible {
		view.Cards = append(view.Cards, cardView(session, i))
	}
	return view
}

func cardView(session *Session, index int) CardView {
	e := session.entries[index]
	resp := session.responses[index].Clone()
	raw, _ := domain.MarshalCard(e.card)
	view := CardView{
		Index:    index,
		ID:       e.id,
		Kind:     e.card.Kind(),
		Prompt:   domain.Prompt(e.card),
		Card:     raw,
		Response: resp,
		Complete: evaluator.IsComplete(e.card, resp),
		Progress: session.progress[e.id],
	}
	if r, ok := session.results[index]; ok {
		view.Submitted = true
		view.Result = &r
	}
	return view
}
