package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpiration(t *testing.T) {
	got, err := ParseExpiration("0729")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2029, time.July, 1, 0, 0, 0, 0, time.UTC), got)

	for _, raw := range []string{"", "729", "1329", "ab29", "07/29"} {
		_, err := ParseExpiration(raw)
		assert.ErrorIs(t, err, ErrInvalidExpiration, raw)
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusSucceeded, StatusOf(&Intent{Status: "succeeded"}))
	assert.Equal(t, StatusRequiresPaymentMethod, StatusOf(&Intent{Status: "canceled"}))
	assert.Equal(t, StatusRequiresPaymentMethod, StatusOf(nil))
}
