package trace

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_String(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{"with detail", Record{Seq: 3, Kind: KindState, Path: "counter", Detail: "2"}, "3 state counter 2"},
		{"without detail", Record{Seq: 7, Kind: KindDispose, Path: "wizard/counter"}, "7 dispose wizard/counter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.String())
		})
	}
}

func TestFormat_OneLinePerRecord(t *testing.T) {
	out := Format([]Record{
		{Seq: 1, Kind: KindState, Path: "counter", Detail: "0"},
		{Seq: 2, Kind: KindRender, Path: "counter"},
	})
	assert.Equal(t, "1 state counter 0\n2 render counter\n", out)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("effect_cancel")
	require.NoError(t, err)
	assert.Equal(t, KindEffectCancel, k)

	_, err = ParseKind("exploded")
	assert.Error(t, err)
}

func TestRecorder_FilterAndValues(t *testing.T) {
	rec := NewRecorder()
	rec.Observe(Record{Seq: 1, Kind: KindState, Path: "a", Detail: "0", Value: 0})
	rec.Observe(Record{Seq: 2, Kind: KindState, Path: "a/b", Detail: "x", Value: "x"})
	rec.Observe(Record{Seq: 3, Kind: KindState, Path: "a", Detail: "1", Value: 1})

	assert.Equal(t, []any{0, 1}, rec.Values(KindState, "a"))
	assert.Equal(t, []string{"0", "x", "1"}, rec.Details(KindState, ""))
	assert.Equal(t, 0, rec.Count(KindOutput, "a"))

	rec.Reset()
	assert.Empty(t, rec.Records())
}

func TestMulti_SkipsNilAndFansOut(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	obs := Multi(a, nil, b)
	obs.Observe(Record{Seq: 1, Kind: KindRender, Path: "x"})

	assert.Equal(t, 1, a.Count(KindRender, "x"))
	assert.Equal(t, 1, b.Count(KindRender, "x"))
	assert.Equal(t, Discard, Multi(nil))
}

func TestLogObserver_WarnsOnEffectFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	obs := NewLogObserver(logger)
	obs.Observe(Record{Seq: 1, Kind: KindState, Path: "a", Detail: "0"})
	assert.Empty(t, buf.String(), "debug records are below the handler level")

	obs.Observe(Record{Seq: 2, Kind: KindEffectFail, Path: "a", Detail: "fetch(x): boom"})
	assert.Contains(t, buf.String(), "kind=effect_fail")
	assert.Contains(t, buf.String(), "level=WARN")
}
