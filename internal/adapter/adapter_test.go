package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heimdall/internal/domain"
)

func TestIncrementalStart_FirstFetch(t *testing.T) {
	fc := FetchContext{
		Role: domain.RoleJudgment,
		Now:  time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	assert.True(t, IncrementalStart(fc).IsZero())
}

func TestIncrementalStart_RoleLookback(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	last := now.Add(-time.Hour)

	judgment := FetchContext{Role: domain.RoleJudgment, Now: now, LastIngestedAt: &last}
	assert.Equal(t, now.AddDate(0, 0, -30), IncrementalStart(judgment))

	validation := FetchContext{Role: domain.RoleValidation, Now: now, LastIngestedAt: &last}
	assert.Equal(t, now.AddDate(0, 0, -7), IncrementalStart(validation))
}

func TestStringParam(t *testing.T) {
	params := map[string]any{"ticker": "NVDA", "empty": "", "num": 42}

	v, ok := stringParam(params, "ticker")
	assert.True(t, ok)
	assert.Equal(t, "NVDA", v)

	_, ok = stringParam(params, "empty")
	assert.False(t, ok)

	_, ok = stringParam(params, "num")
	assert.False(t, ok)

	_, ok = stringParam(params, "missing")
	assert.False(t, ok)
}

func TestStringSliceParam(t *testing.T) {
	// JSON decoding yields []any
	params := map[string]any{
		"json":  []any{"CPIAUCSL", "UNRATE"},
		"typed": []string{"A"},
		"mixed": []any{"A", 1},
		"empty": []any{},
	}

	v, ok := stringSliceParam(params, "json")
	require.True(t, ok)
	assert.Equal(t, []string{"CPIAUCSL", "UNRATE"}, v)

	v, ok = stringSliceParam(params, "typed")
	require.True(t, ok)
	assert.Equal(t, []string{"A"}, v)

	_, ok = stringSliceParam(params, "mixed")
	assert.False(t, ok)

	_, ok = stringSliceParam(params, "empty")
	assert.False(t, ok)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	yahoo := NewYahooAdapter()
	reg.Register(SourceYahoo, yahoo)

	got, err := reg.Get(SourceYahoo)
	require.NoError(t, err)
	assert.Same(t, Adapter(yahoo), got)

	_, err = reg.Get("bloomberg")
	assert.ErrorIs(t, err, ErrUnknownSource)

	assert.ElementsMatch(t, []string{SourceYahoo}, reg.Sources())
}
