// Package safety grades filesystem entries by how risky they are to delete.
//
// Classification is a pure function of the path and its entry type: no
// filesystem access, no clock and no mutable state. The home directory is
// bound once at construction.
package safety

import (
	"path/filepath"
	"strings"
)

// Classifier applies an ordered rule table. It is safe for concurrent use.
type Classifier struct {
	home  string
	rules []Rule
}

// New returns a classifier that treats home as the current user's home
// directory. An empty home disables the home-directory exemption for
// protected roots, which only makes results more cautious.
func New(home string) *Classifier {
	if home != "" {
		home = filepath.Clean(home)
	}
	return &Classifier{
		home:  home,
		rules: defaultRules(),
	}
}

// Home returns the home directory the classifier was built with.
func (c *Classifier) Home() string {
	return c.home
}

// Rules returns a copy of the rule table in evaluation order.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Classify returns the grade and reason for path. A leading "~" is expanded
// against the configured home. Classify never fails: the last rule matches
// every input.
func (c *Classifier) Classify(path string, isDir bool) (Grade, string) {
	rule := c.match(path, isDir)
	return rule.Grade, rule.Reason
}

// RuleFor returns the name of the rule that decides path.
func (c *Classifier) RuleFor(path string, isDir bool) string {
	return c.match(path, isDir).Name
}

func (c *Classifier) match(path string, isDir bool) Rule {
	p := newPathInfo(c.expand(path), isDir, c.home)
	for _, r := range c.rules {
		if r.Match(p) {
			return r
		}
	}
	// Unreachable with defaultRules; fall back to the most cautious grade.
	return Rule{Name: "unmatched", Grade: LeaveAlone, Reason: "unclassified entry"}
}

func (c *Classifier) expand(path string) string {
	if c.home == "" {
		return path
	}
	if path == "~" {
		return c.home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(c.home, path[2:])
	}
	return path
}
