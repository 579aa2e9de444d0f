// Package filter applies include and ignore patterns to listed zones and
// records. Reconciliation never consults it.
package filter

import (
	"fmt"
	"regexp"
)

type Filter struct {
	include []*regexp.Regexp
	ignore  []*regexp.Regexp
}

func New(include, ignore []string) (*Filter, error) {
	f := &Filter{}
	var err error
	if f.include, err = compile(include); err != nil {
		return nil, err
	}
	if f.ignore, err = compile(ignore); err != nil {
		return nil, err
	}
	return f, nil
}

func compile(patterns []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Allow reports whether an item known by any of values passes the filter.
// Every include pattern must match one of the values and no ignore
// pattern may match any of them.
func (f *Filter) Allow(values ...string) bool {
	if f == nil {
		return true
	}
	for _, re := range f.include {
		if !matchAny(re, values) {
			return false
		}
	}
	for _, re := range f.ignore {
		if matchAny(re, values) {
			return false
		}
	}
	return true
}

func matchAny(re *regexp.Regexp, values []string) bool {
	for _, v := range values {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}
