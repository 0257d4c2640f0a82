package plugin

import (
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// PredicateFunc evaluates one condition against a page.
type PredicateFunc func(pg *page.Context) bool

// PredicateFactory builds a PredicateFunc from a parameter, for the
// "name:param" form.
type PredicateFactory func(param string) PredicateFunc

// Matcher evaluates predicate lists against pages. Misconfigured predicates
// (unknown name, parameter mismatch) log a warning and fail the match rather
// than erroring; template selection degrades to "no match".
type Matcher struct {
	logger    *slog.Logger
	plain     map[string]PredicateFunc
	factories map[string]PredicateFactory
}

// NewMatcher builds a Matcher with the built-in predicate set.
func NewMatcher(logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Matcher{
		logger:    logger,
		plain:     make(map[string]PredicateFunc),
		factories: make(map[string]PredicateFactory),
	}

	m.plain["all"] = func(*page.Context) bool { return true }
	m.plain["is_published"] = func(pg *page.Context) bool { return pg.Status == page.StatusPublish }
	m.plain["is_draft"] = func(pg *page.Context) bool { return pg.Status == page.StatusDraft }
	m.plain["is_scratch"] = func(pg *page.Context) bool { return pg.Status == page.StatusScratch }
	m.factories["has_tag"] = func(param string) PredicateFunc {
		return func(pg *page.Context) bool { return pg.HasTag(param) }
	}

	return m
}

// Matches reports whether pg satisfies every predicate in the list. An empty
// or nil list matches unconditionally. Evaluation short-circuits on the
// first failure.
func (m *Matcher) Matches(pg *page.Context, predicates []string) bool {
	for _, expr := range predicates {
		if !m.evaluate(pg, expr) {
			return false
		}
	}
	return true
}

// evaluate resolves one predicate expression. Negation applies only to a
// successfully resolved predicate; lookup failures are non-matches outright.
func (m *Matcher) evaluate(pg *page.Context, expr string) bool {
	expr = strings.TrimSpace(expr)
	negate := strings.HasPrefix(expr, "!")
	if negate {
		expr = expr[1:]
	}

	name, param, hasParam := strings.Cut(expr, ":")

	var result bool
	switch {
	case hasParam:
		factory, ok := m.factories[name]
		if !ok {
			if _, plain := m.plain[name]; plain {
				m.logger.Warn("predicate does not take a parameter", "predicate", name)
			} else {
				m.logger.Warn("unknown predicate", "predicate", name)
			}
			return false
		}
		result = factory(param)(pg)
	default:
		fn, ok := m.plain[name]
		if !ok {
			if _, isFactory := m.factories[name]; isFactory {
				m.logger.Warn("predicate requires a parameter", "predicate", name)
			} else {
				m.logger.Warn("unknown predicate", "predicate", name)
			}
			return false
		}
		result = fn(pg)
	}

	if negate {
		return !result
	}
	return result
}
