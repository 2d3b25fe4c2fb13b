package extraction

import (
	"embed"
	"os"
	"regexp"
	"strings"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesFS embed.FS

// DefaultMaxKeywords is used when the ruleset does not set max_keywords.
const DefaultMaxKeywords = 8

// Ruleset is the parsed form of rules.yaml.
type Ruleset struct {
	Version     int    `yaml:"version"`
	MaxKeywords int    `yaml:"max_keywords"`
	Rules       []Rule `yaml:"rules"`
}

// Rule maps key phrases and patterns to a concept type and topic.
type Rule struct {
	Name        string              `yaml:"name"`
	Type        string              `yaml:"type"`
	Topic       string              `yaml:"topic"`
	SourceTypes []domain.SourceType `yaml:"source_types"`
	Phrases     []string            `yaml:"phrases"`
	Patterns    []string            `yaml:"patterns"`

	patterns []*regexp.Regexp
}

// AppliesTo reports whether the rule is enabled for a source type.
// A rule without source types applies to every source.
func (r *Rule) AppliesTo(t domain.SourceType) bool {
	if len(r.SourceTypes) == 0 {
		return true
	}
	for _, st := range r.SourceTypes {
		if st == t {
			return true
		}
	}
	return false
}

// LoadRuleset reads the ruleset from path, or the embedded default when path is empty.
func LoadRuleset(path string) (*Ruleset, error) {
	var (
		data []byte
		err  error
	)
	if path = strings.TrimSpace(path); path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = rulesFS.ReadFile("rules.yaml")
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read extraction rules", goerr.V("path", path))
	}
	return ParseRuleset(data)
}

// DefaultRuleset returns the embedded ruleset.
func DefaultRuleset() (*Ruleset, error) {
	return LoadRuleset("")
}

// ParseRuleset decodes and validates a YAML ruleset, compiling its patterns.
func ParseRuleset(data []byte) (*Ruleset, error) {
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, goerr.Wrap(domain.ErrInvalidInput, "failed to parse extraction rules", goerr.V("cause", err.Error()))
	}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	if rs.MaxKeywords <= 0 {
		rs.MaxKeywords = DefaultMaxKeywords
	}
	return &rs, nil
}

func (rs *Ruleset) compile() error {
	if len(rs.Rules) == 0 {
		return goerr.Wrap(domain.ErrInvalidInput, "extraction ruleset has no rules")
	}

	seen := make(map[string]bool, len(rs.Rules))
	for i := range rs.Rules {
		r := &rs.Rules[i]
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			return goerr.Wrap(domain.ErrInvalidInput, "rule name is required", goerr.V("index", i))
		}
		if seen[r.Name] {
			return goerr.Wrap(domain.ErrInvalidInput, "duplicate rule name", goerr.V("rule", r.Name))
		}
		seen[r.Name] = true

		if r.Type == "" || r.Topic == "" {
			return goerr.Wrap(domain.ErrInvalidInput, "rule needs a type and a topic", goerr.V("rule", r.Name))
		}
		if len(r.Phrases) == 0 && len(r.Patterns) == 0 {
			return goerr.Wrap(domain.ErrInvalidInput, "rule has nothing to match", goerr.V("rule", r.Name))
		}
		for _, st := range r.SourceTypes {
			if !st.IsValid() {
				return goerr.Wrap(domain.ErrInvalidInput, "rule names an unknown source type",
					goerr.V("rule", r.Name), goerr.V("source_type", st))
			}
		}

		for j, p := range r.Phrases {
			r.Phrases[j] = strings.ToLower(strings.TrimSpace(p))
		}
		r.patterns = r.patterns[:0]
		for _, p := range r.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return goerr.Wrap(domain.ErrInvalidInput, "invalid rule pattern",
					goerr.V("rule", r.Name), goerr.V("pattern", p), goerr.V("cause", err.Error()))
			}
			r.patterns = append(r.patterns, re)
		}
	}
	return nil
}
