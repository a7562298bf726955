package workerpresentation

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability/logctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fieldLogger struct {
	observability.Logger
	fields []observability.Field
}

func (l fieldLogger) With(fields ...observability.Field) observability.Logger {
	return fieldLogger{Logger: l.Logger, fields: append(append([]observability.Field(nil), l.fields...), fields...)}
}

func TestWithEventContextOrdersFields(t *testing.T) {
	base := fieldLogger{Logger: observability.NopLogger()}
	ctx := WithEventContext(context.Background(), base, nil, map[string]string{
		"use_case": "stock.reserve",
		"event":    "ReserveStock",
		"event_id": "e1",
		"empty":    "",
	})

	l, ok := logctx.From(ctx).(fieldLogger)
	require.True(t, ok)
	assert.Equal(t, []observability.Field{
		observability.F("event_id", "e1"),
		observability.F("event", "ReserveStock"),
		observability.F("use_case", "stock.reserve"),
	}, l.fields)
}

func TestWithEventContextGeneratesEventID(t *testing.T) {
	ctx := WithEventContext(context.Background(), fieldLogger{Logger: observability.NopLogger()}, nil, nil)

	l := logctx.From(ctx).(fieldLogger)
	require.Len(t, l.fields, 1)
	assert.Equal(t, "event_id", l.fields[0].Key)
	assert.NotEmpty(t, l.fields[0].Value)
}
