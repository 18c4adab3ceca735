package models

import "fmt"

// GroupKind selects the comparison algorithm for a field group
type GroupKind string

const (
	GroupKindNGram GroupKind = "ngram" // token n-gram Dice similarity
	GroupKindSex   GroupKind = "sex"   // M/F equality on the typed sex column
	GroupKindAge   GroupKind = "age"   // date-of-birth proximity decay
)

// DefaultNGramLevel is the substring length used when a group doesn't set one.
const DefaultNGramLevel = 3

// FieldGroup is one weighted comparison in the matcher configuration. Fields
// are paths into the person data document for n-gram groups; the sex and age
// kinds read the typed person columns instead.
type FieldGroup struct {
	Label      string    `json:"label"`
	Weight     float64   `json:"weight"`
	Fields     []string  `json:"fields"`
	Kind       GroupKind `json:"kind,omitempty"` // empty: inferred from the field list, see ResolveKind
	NGramLevel int       `json:"ngram_level,omitempty"`
	Normalizer *string   `json:"normalizer,omitempty"` // normalizer applied before tokenizing
	Enabled    bool      `json:"enabled"`
}

// ResolveKind returns the group's comparison kind. Groups written before the
// kind field existed are recognized by shape: a lone "sex" field compares as
// sex, a lone "dob" field compares as age, anything else as n-gram text.
func (g *FieldGroup) ResolveKind() GroupKind {
	if g.Kind != "" {
		return g.Kind
	}
	if len(g.Fields) == 1 {
		switch g.Fields[0] {
		case "sex":
			return GroupKindSex
		case "dob":
			return GroupKindAge
		}
	}
	return GroupKindNGram
}

// Level returns the group's n-gram length, defaulted when unset.
func (g *FieldGroup) Level() int {
	if g.NGramLevel > 0 {
		return g.NGramLevel
	}
	return DefaultNGramLevel
}

// MatcherConfig is the full similarity model: the weighted field groups plus
// the confidence cutoff below which pairs are not kept.
type MatcherConfig struct {
	Groups []FieldGroup `json:"groups"`
	Cutoff float64      `json:"cutoff"`
}

// EnabledGroups returns the groups that participate in scoring.
func (c *MatcherConfig) EnabledGroups() []FieldGroup {
	groups := make([]FieldGroup, 0, len(c.Groups))
	for _, g := range c.Groups {
		if g.Enabled {
			groups = append(groups, g)
		}
	}
	return groups
}

// TotalWeight sums the weights of the enabled groups. Relative weight of a
// group is Weight / TotalWeight, so composite scores stay in [0, 1].
func (c *MatcherConfig) TotalWeight() float64 {
	total := 0.0
	for _, g := range c.Groups {
		if g.Enabled {
			total += g.Weight
		}
	}
	return total
}

// Validate rejects configurations the scan cannot score.
func (c *MatcherConfig) Validate() error {
	if c.Cutoff < 0 || c.Cutoff > 1 {
		return fmt.Errorf("cutoff %v is outside [0, 1]", c.Cutoff)
	}
	seen := map[string]bool{}
	enabled := 0
	for _, g := range c.Groups {
		if g.Label == "" {
			return fmt.Errorf("field group without a label")
		}
		if seen[g.Label] {
			return fmt.Errorf("duplicate field group label %q", g.Label)
		}
		seen[g.Label] = true
		if len(g.Fields) == 0 {
			return fmt.Errorf("field group %q has no fields", g.Label)
		}
		switch g.ResolveKind() {
		case GroupKindNGram, GroupKindSex, GroupKindAge:
		default:
			return fmt.Errorf("field group %q has unknown kind %q", g.Label, g.Kind)
		}
		if g.Enabled {
			if g.Weight <= 0 {
				return fmt.Errorf("enabled field group %q has non-positive weight %v", g.Label, g.Weight)
			}
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("no enabled field groups")
	}
	return nil
}

// DefaultMatcherConfig is the shipped person-matching model: names and
// addresses carry most of the signal, birthdate confirms, sex is a weak
// tie-breaker.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		Cutoff: 0.55,
		Groups: []FieldGroup{
			{Label: "name", Weight: 2, Fields: []string{"first_name", "last_name"}, Kind: GroupKindNGram, NGramLevel: DefaultNGramLevel, Enabled: true},
			{Label: "address", Weight: 3, Fields: []string{"address"}, Kind: GroupKindNGram, NGramLevel: DefaultNGramLevel, Enabled: true},
			{Label: "birthdate", Weight: 3, Fields: []string{"dob"}, Kind: GroupKindAge, Enabled: true},
			{Label: "sex", Weight: 1, Fields: []string{"sex"}, Kind: GroupKindSex, Enabled: true},
		},
	}
}
