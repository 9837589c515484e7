package patternset

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/wmscan/pkg/types"
)

// FilterConfig selects sets by ID. Expressions use .NET syntax, so
// lookarounds such as `^(?!markers\.)` are allowed.
type FilterConfig struct {
	Include []string // only sets matching one of these are kept
	Exclude []string // sets matching one of these are dropped
}

// ParsePatterns splits a comma-separated flag value, dropping blanks.
func ParsePatterns(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Filter applies Include, then Exclude. An empty Include keeps everything.
func Filter(sets []*types.PatternSet, config FilterConfig) ([]*types.PatternSet, error) {
	include, err := compileAll(config.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(config.Exclude)
	if err != nil {
		return nil, err
	}

	result := make([]*types.PatternSet, 0, len(sets))
	for _, set := range sets {
		if len(include) > 0 && !matchesAny(set.ID, include) {
			continue
		}
		if matchesAny(set.ID, exclude) {
			continue
		}
		result = append(result, set)
	}
	return result, nil
}

func compileAll(exprs []string) ([]*regexp2.Regexp, error) {
	res := make([]*regexp2.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp2.Compile(expr, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", expr, err)
		}
		res = append(res, re)
	}
	return res, nil
}

func matchesAny(id string, res []*regexp2.Regexp) bool {
	for _, re := range res {
		// Errors only come from match timeouts, which are not configured.
		if ok, _ := re.MatchString(id); ok {
			return true
		}
	}
	return false
}
