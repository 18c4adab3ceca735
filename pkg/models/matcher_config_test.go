package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldGroupResolveKind(t *testing.T) {
	tests := []struct {
		name   string
		group  FieldGroup
		want   GroupKind
	}{
		{"explicit kind wins", FieldGroup{Kind: GroupKindNGram, Fields: []string{"sex"}}, GroupKindNGram},
		{"lone sex field", FieldGroup{Fields: []string{"sex"}}, GroupKindSex},
		{"lone dob field", FieldGroup{Fields: []string{"dob"}}, GroupKindAge},
		{"sex among others is text", FieldGroup{Fields: []string{"sex", "name"}}, GroupKindNGram},
		{"plain text fields", FieldGroup{Fields: []string{"address"}}, GroupKindNGram},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.group.ResolveKind())
		})
	}
}

func TestFieldGroupLevel(t *testing.T) {
	assert.Equal(t, DefaultNGramLevel, (&FieldGroup{}).Level())
	assert.Equal(t, 2, (&FieldGroup{NGramLevel: 2}).Level())
}

func TestMatcherConfigValidate(t *testing.T) {
	valid := func() MatcherConfig {
		return MatcherConfig{
			Cutoff: 0.55,
			Groups: []FieldGroup{
				{Label: "name", Weight: 2, Fields: []string{"name"}, Enabled: true},
			},
		}
	}

	t.Run("default config is valid", func(t *testing.T) {
		config := DefaultMatcherConfig()
		assert.NoError(t, config.Validate())
	})

	t.Run("cutoff out of range", func(t *testing.T) {
		config := valid()
		config.Cutoff = 1.5
		assert.Error(t, config.Validate())
	})

	t.Run("duplicate labels", func(t *testing.T) {
		config := valid()
		config.Groups = append(config.Groups, config.Groups[0])
		assert.Error(t, config.Validate())
	})

	t.Run("no fields", func(t *testing.T) {
		config := valid()
		config.Groups[0].Fields = nil
		assert.Error(t, config.Validate())
	})

	t.Run("unknown kind", func(t *testing.T) {
		config := valid()
		config.Groups[0].Kind = GroupKind("soundex")
		assert.Error(t, config.Validate())
	})

	t.Run("non-positive weight on enabled group", func(t *testing.T) {
		config := valid()
		config.Groups[0].Weight = 0
		assert.Error(t, config.Validate())
	})

	t.Run("no enabled groups", func(t *testing.T) {
		config := valid()
		config.Groups[0].Enabled = false
		assert.Error(t, config.Validate())
	})
}

func TestMatcherConfigWeights(t *testing.T) {
	config := MatcherConfig{
		Groups: []FieldGroup{
			{Label: "a", Weight: 2, Fields: []string{"a"}, Enabled: true},
			{Label: "b", Weight: 3, Fields: []string{"b"}, Enabled: true},
			{Label: "c", Weight: 5, Fields: []string{"c"}, Enabled: false},
		},
	}

	assert.Equal(t, 5.0, config.TotalWeight())
	assert.Len(t, config.EnabledGroups(), 2)
}
