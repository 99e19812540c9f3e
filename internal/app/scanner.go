package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"notecard-review-service/internal/domain"
	"notecard-review-service/internal/parser"
)

// Scope selects which sources a scan reads.
type Scope string

const (
	ScopeCurrent Scope = "current"
	ScopeVault   Scope = "vault"
)

// Source is one readable card document.
type Source struct {
	Path        string `json:"path" yaml:"path"`
	DisplayName string `json:"displayName" yaml:"displayName"`
}

// SourceReader reads the raw text of a source.
type SourceReader interface {
	ReadText(ctx context.Context, path string) (string, error)
}

// SourceLister enumerates the sources of a scope.
type SourceLister interface {
	ListCardSources(ctx context.Context, scope Scope) ([]Source, error)
}

// DeckLoader turns a source path into parsed cards. Caches in infra wrap it.
type DeckLoader interface {
	LoadDeck(ctx context.Context, path string) (domain.Deck, error)
}

// ParsingLoader reads a source and parses it on every call.
type ParsingLoader struct {
	reader SourceReader
}

func NewParsingLoader(reader SourceReader) *ParsingLoader {
	return &ParsingLoader{reader: reader}
}

func (l *ParsingLoader) LoadDeck(ctx context.Context, path string) (domain.Deck, error) {
	text, err := l.reader.ReadText(ctx, path)
	if err != nil {
		return nil, err
	}
	return domain.Deck(parser.Parse(text)), nil
}

// ScanRequest describes what to scan. Text, when set, is parsed as is and
// no source is read.
type ScanRequest struct {
	// Key groups scans that supersede each other, usually a user id.
	Key                string
	Scope              Scope
	Path               string
	Text               string
	AllowVaultFallback bool
}

// SourceReport records what one source contributed to a scan.
type SourceReport struct {
	Source Source `json:"source" yaml:"source"`
	Cards  int    `json:"cards" yaml:"cards"`
	Err    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ScanResult is the merged outcome of a scan.
type ScanResult struct {
	Cards    []domain.Card  `json:"-" yaml:"-"`
	Scope    Scope          `json:"scope" yaml:"scope"`
	Sources  []SourceReport `json:"sources" yaml:"sources"`
	Warnings []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Scanner loads cards from one source or from every source of the vault.
type Scanner struct {
	loader DeckLoader
	lister SourceLister
	limit  int
	logger *slog.Logger

	mu          sync.Mutex
	generations map[string]uint64
}

type ScannerOption func(*Scanner)

// WithScanLimit bounds the number of concurrent source reads.
func WithScanLimit(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.limit = n
		}
	}
}

func WithScanLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewScanner(loader DeckLoader, lister SourceLister, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		loader:      loader,
		lister:      lister,
		limit:       8,
		logger:      slog.Default(),
		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs req. When a newer scan with the same key and scope starts before
// this one finishes, the older result is discarded with ErrScanSuperseded.
func (s *Scanner) Scan(ctx context.Context, req ScanRequest) (ScanResult, error) {
	scope := req.Scope
	if scope == "" {
		scope = ScopeCurrent
	}
	if scope == ScopeCurrent && req.Text == "" && req.Path == "" {
		if !req.AllowVaultFallback {
			return ScanResult{}, fmt.Errorf("%w: no current source", domain.ErrSourceNotFound)
		}
		scope = ScopeVault
	}

	gen := s.begin(req.Key, scope)

	var (
		result ScanResult
		err    error
	)
	switch {
	case req.Text != "":
		cards := parser.Parse(req.Text)
		result = ScanResult{
			Cards:   cards,
			Scope:   ScopeCurrent,
			Sources: []SourceReport{{Source: Source{Path: req.Path, DisplayName: req.Path}, Cards: len(cards)}},
		}
	case scope == ScopeCurrent:
		result, err = s.scanOne(ctx, req.Path)
	default:
		result, err = s.scanVault(ctx)
	}
	if err != nil {
		return ScanResult{}, err
	}

	if !s.current(req.Key, scope, gen) {
		return ScanResult{}, domain.ErrScanSuperseded
	}
	return result, nil
}

func (s *Scanner) scanOne(ctx context.Context, path string) (ScanResult, error) {
	if s.loader == nil {
		return ScanResult{}, fmt.Errorf("%w: no reader configured", domain.ErrSourceNotFound)
	}
	deck, err := s.loader.LoadDeck(ctx, path)
	if err != nil {
		return ScanResult{}, fmt.Errorf("scan %s: %w", path, err)
	}
	return ScanResult{
		Cards:   deck,
		Scope:   ScopeCurrent,
		Sources: []SourceReport{{Source: Source{Path: path, DisplayName: path}, Cards: len(deck)}},
	}, nil
}

func (s *Scanner) scanVault(ctx context.Context) (ScanResult, error) {
	if s.lister == nil || s.loader == nil {
		return ScanResult{}, fmt.Errorf("%w: no vault configured", domain.ErrSourceNotFound)
	}
	sources, err := s.lister.ListCardSources(ctx, ScopeVault)
	if err != nil {
		return ScanResult{}, fmt.Errorf("list sources: %w", err)
	}

	decks := make([]domain.Deck, len(sources))
	failures := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			deck, err := s.loader.LoadDeck(gctx, src.Path)
			if err != nil {
				failures[i] = err
				return nil
			}
			decks[i] = deck
			return nil
		})
	}
	_ = g.Wait()

	result := ScanResult{Scope: ScopeVault, Sources: make([]SourceReport, 0, len(sources))}
	for i, src := range sources {
		report := SourceReport{Source: src}
		if failures[i] != nil {
			report.Err = failures[i].Error()
			result.Warnings = append(result.Warnings, fmt.Sprintf("skipped %s: %v", src.DisplayName, failures[i]))
			s.logger.Warn("card source skipped", "path", src.Path, "error", failures[i])
		} else {
			report.Cards = len(decks[i])
			result.Cards = append(result.Cards, decks[i]...)
		}
		result.Sources = append(result.Sources, report)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ScanResult{}, ctx.Err()
	}
	return result, nil
}

func (s *Scanner) begin(key string, scope Scope) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key + "|" + string(scope)
	s.generations[k]++
	return s.generations[k]
}

func (s *Scanner) current(key string, scope Scope, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[key+"|"+string(scope)] == gen
}
