package matchers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func sexPerson(id string, sex *string) *models.Person {
	return &models.Person{ID: id, Sex: sex}
}

func strPtr(s string) *string { return &s }

func TestSexSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    *string
		b    *string
		want *float64
	}{
		{"same sex", strPtr("M"), strPtr("M"), floatPtr(1.0)},
		{"different sex", strPtr("M"), strPtr("F"), floatPtr(0.0)},
		{"lowercase accepted", strPtr("f"), strPtr("F"), floatPtr(1.0)},
		{"missing side", nil, strPtr("F"), nil},
		{"both missing", nil, nil, nil},
		{"invalid value", strPtr("X"), strPtr("M"), nil},
		{"blank value", strPtr(" "), strPtr("M"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSex()
			m.Prepare(sexPerson("a", tt.a))
			m.Prepare(sexPerson("b", tt.b))

			got := m.Similarity("a", "b")
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func floatPtr(f float64) *float64 { return &f }
