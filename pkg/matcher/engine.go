package matcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"

	"github.com/praetorian-inc/wmscan/pkg/prefilter"
	"github.com/praetorian-inc/wmscan/pkg/types"
	"github.com/praetorian-inc/wmscan/pkg/wumanber"
	"golang.org/x/sync/errgroup"
)

// CompileSet builds the engine for one pattern set. A non-empty algorithm
// or positive blockSize overrides the set's own settings.
func CompileSet(set *types.PatternSet, algorithm string, blockSize int) (*wumanber.Matcher, error) {
	if algorithm == "" {
		algorithm = set.Algorithm
	}
	kind, err := wumanber.ParseKind(algorithm)
	if err != nil {
		return nil, fmt.Errorf("pattern set %s: %w", set.ID, err)
	}
	if blockSize <= 0 {
		blockSize = set.BlockSize
	}

	engine, err := wumanber.New(set.Literals(), wumanber.Config{Kind: kind, BlockSize: blockSize})
	if err != nil {
		return nil, fmt.Errorf("compiling pattern set %s: %w", set.ID, err)
	}
	return engine, nil
}

// compiledSet pairs a set with its engine. patterns[i] lists the set's
// patterns whose literal is engine pattern i; several IDs may share bytes.
type compiledSet struct {
	set      *types.PatternSet
	engine   *wumanber.Matcher
	patterns [][]*types.Pattern
	longest  int
}

// hit is one engine occurrence in absolute content offsets.
type hit struct {
	set     int
	pattern int
	start   int
	end     int
}

// WuManberMatcher implements Matcher with one Wu-Manber engine per set.
// It is immutable after construction and safe for concurrent use.
type WuManberMatcher struct {
	sets         []*compiledSet
	index        map[*types.PatternSet]int
	prefilter    *prefilter.Prefilter
	contextLines int
	dedupe       DedupeMode
	maxMatches   int
	chunk        ChunkConfig
	workers      int
	logger       *slog.Logger
}

// NewWuManber compiles every set in cfg.
func NewWuManber(cfg Config) (*WuManberMatcher, error) {
	if len(cfg.Sets) == 0 {
		return nil, fmt.Errorf("no pattern sets provided")
	}

	m := &WuManberMatcher{
		index:        make(map[*types.PatternSet]int, len(cfg.Sets)),
		prefilter:    prefilter.New(cfg.Sets),
		contextLines: cfg.ContextLines,
		dedupe:       cfg.Dedupe,
		maxMatches:   cfg.MaxMatchesPerBlob,
		chunk:        cfg.Chunk,
		workers:      cfg.Workers,
		logger:       cfg.Logger,
	}
	if m.chunk.MaxChunkSize <= 0 {
		m.chunk = DefaultChunkConfig()
	}
	if m.workers <= 0 {
		m.workers = runtime.GOMAXPROCS(0)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	for _, set := range cfg.Sets {
		engine, err := CompileSet(set, cfg.Algorithm, cfg.BlockSize)
		if err != nil {
			return nil, err
		}

		cs := &compiledSet{set: set, engine: engine}
		slot := make(map[string]int, engine.Len())
		for _, p := range set.Patterns {
			i, ok := slot[string(p.Literal)]
			if !ok {
				i = len(cs.patterns)
				slot[string(p.Literal)] = i
				cs.patterns = append(cs.patterns, nil)
			}
			cs.patterns[i] = append(cs.patterns[i], p)
		}
		_, cs.longest = set.LiteralBounds()

		m.index[set] = len(m.sets)
		m.sets = append(m.sets, cs)
		m.chunk.Overlap = max(m.chunk.Overlap, cs.longest-1)
	}

	m.logger.Debug("compiled pattern sets",
		"sets", len(m.sets),
		"keyword_prefilter", m.prefilter.Keywords(),
		"overlap", m.chunk.Overlap)
	return m, nil
}

// Sets returns the compiled pattern sets in load order.
func (m *WuManberMatcher) Sets() []*types.PatternSet {
	out := make([]*types.PatternSet, len(m.sets))
	for i, cs := range m.sets {
		out[i] = cs.set
	}
	return out
}

// Engine returns the compiled engine for the set with the given ID.
func (m *WuManberMatcher) Engine(setID string) (*wumanber.Matcher, bool) {
	for _, cs := range m.sets {
		if cs.set.ID == setID {
			return cs.engine, true
		}
	}
	return nil, false
}

// Match scans content against all loaded pattern sets.
func (m *WuManberMatcher) Match(content []byte) ([]*types.Match, error) {
	return m.MatchContext(context.Background(), content, types.ComputeBlobID(content))
}

// MatchWithBlobID scans content with a known BlobID.
func (m *WuManberMatcher) MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error) {
	return m.MatchContext(context.Background(), content, blobID)
}

// MatchContext scans content, fanning large blobs out across chunks.
// Matches are ordered by start offset, then set order, then pattern order.
func (m *WuManberMatcher) MatchContext(ctx context.Context, content []byte, blobID types.BlobID) ([]*types.Match, error) {
	candidates := m.prefilter.Filter(content)
	if len(candidates) == 0 {
		return nil, nil
	}

	chunks := ChunkContent(content, m.chunk)
	type job struct {
		set   int
		chunk Chunk
	}
	jobs := make([]job, 0, len(candidates)*len(chunks))
	for _, set := range candidates {
		for _, c := range chunks {
			jobs = append(jobs, job{set: m.index[set], chunk: c})
		}
	}

	results := make([][]hit, len(jobs))
	run := func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		j := jobs[i]
		results[i] = m.scanChunk(j.set, j.chunk)
		return nil
	}

	if len(jobs) == 1 {
		if err := run(0); err != nil {
			return nil, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		ctx = gctx
		g.SetLimit(m.workers)
		for i := range jobs {
			g.Go(func() error { return run(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var hits []hit
	for _, r := range results {
		hits = append(hits, r...)
	}
	sort.Slice(hits, func(a, b int) bool {
		ha, hb := hits[a], hits[b]
		if ha.start != hb.start {
			return ha.start < hb.start
		}
		if ha.set != hb.set {
			return ha.set < hb.set
		}
		return ha.pattern < hb.pattern
	})

	matches := m.buildMatches(content, blobID, hits)
	m.logger.Debug("scanned blob",
		"blob", blobID.Hex(),
		"bytes", len(content),
		"sets", len(candidates),
		"chunks", len(chunks),
		"matches", len(matches))
	return matches, nil
}

// scanChunk runs one engine over one chunk and keeps the hits it owns.
func (m *WuManberMatcher) scanChunk(set int, c Chunk) []hit {
	var hits []hit
	m.sets[set].engine.Each(c.Content, func(p int, span wumanber.Span) bool {
		if c.Owns(span.Start) {
			hits = append(hits, hit{
				set:     set,
				pattern: p,
				start:   c.StartOffset + span.Start,
				end:     c.StartOffset + span.End,
			})
		}
		return true
	})
	return hits
}

func (m *WuManberMatcher) buildMatches(content []byte, blobID types.BlobID, hits []hit) []*types.Match {
	if len(hits) == 0 {
		return nil
	}

	lines := types.NewLineIndex(content)
	dedup := NewDeduplicator(m.dedupe)
	matches := make([]*types.Match, 0, len(hits))

	for _, h := range hits {
		cs := m.sets[h.set]
		for _, p := range cs.patterns[h.pattern] {
			match := buildMatchResult(blobID, cs.set, p, h.start, h.end, content, lines, m.contextLines)
			if !dedup.Keep(match) {
				continue
			}
			matches = append(matches, match)
			if m.maxMatches > 0 && len(matches) >= m.maxMatches {
				return matches
			}
		}
	}
	return matches
}

// buildMatchResult creates a Match with location, snippet and IDs.
func buildMatchResult(blobID types.BlobID, set *types.PatternSet, p *types.Pattern, start, end int, content []byte, lines *types.LineIndex, contextLines int) *types.Match {
	before, after := ExtractContext(content, start, end, contextLines)

	match := &types.Match{
		BlobID:      blobID,
		SetID:       set.ID,
		PatternID:   p.ID,
		PatternName: p.Name,
		Location: types.Location{
			Offset: types.OffsetSpan{Start: int64(start), End: int64(end)},
			Source: lines.Span(start, end),
		},
		Snippet: types.Snippet{
			Before:   before,
			Matching: p.Literal,
			After:    after,
		},
	}

	structuralID := p.StructuralID
	if structuralID == "" {
		structuralID = p.ComputeStructuralID()
	}
	match.StructuralID = match.ComputeStructuralID(structuralID)
	match.FindingID = types.ComputeFindingID(set.ID, structuralID)
	return match
}

// Close implements Matcher. Engines hold no external resources.
func (m *WuManberMatcher) Close() error {
	return nil
}
