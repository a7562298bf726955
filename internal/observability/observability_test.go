package observability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrField(t *testing.T) {
	assert.Equal(t, Field{Key: "error", Value: "boom"}, Err(errors.New("boom")))
	assert.Equal(t, Field{Key: "error", Value: ""}, Err(nil))
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, Nop(), OrNop(nil))
	tel := Nop()
	assert.Equal(t, tel, OrNop(tel))
}

func TestSchemaKeysAreUnique(t *testing.T) {
	seen := map[MetricKey]bool{}
	for _, s := range Schema() {
		assert.False(t, seen[s.Key], s.Key)
		assert.NotEmpty(t, s.Labels, s.Key)
		seen[s.Key] = true
	}
}
