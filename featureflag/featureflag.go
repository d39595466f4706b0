package featureflag

import (
	"sort"
	"strings"
)

// FeatureFlag is the set of features enabled on a server.
type FeatureFlag map[Flag]struct{}

// New returns the feature flags named in flags. Names are case insensitive
// and blank names are ignored.
func New(flags []string) FeatureFlag {
	featureFlag := make(FeatureFlag)
	for _, f := range flags {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		featureFlag[Flag(f)] = struct{}{}
	}
	return featureFlag
}

func (f FeatureFlag) IsSet(flag Flag) bool {
	_, ok := f[flag]
	return ok
}

// IfSet runs do when flag is set.
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if !f.IsSet(flag) {
		return
	}
	do()
}

// IfNotSet runs do when flag is not set.
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if f.IsSet(flag) {
		return
	}
	do()
}

// Strings returns the enabled flags, sorted.
func (f FeatureFlag) Strings() []string {
	flags := make([]string, 0, len(f))
	for flag := range f {
		flags = append(flags, string(flag))
	}
	sort.Strings(flags)
	return flags
}

// Unknown returns the enabled flags that this build does not know about.
func (f FeatureFlag) Unknown() []string {
	var unknown []string
	for _, flag := range f.Strings() {
		if !Flag(flag).Known() {
			unknown = append(unknown, flag)
		}
	}
	return unknown
}
