package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghkdsigm/figma-auto/internal/a2ui"
)

func withColor(t *testing.T, on bool) {
	t.Helper()
	prev := ColorEnabled
	ColorEnabled = on
	t.Cleanup(func() { ColorEnabled = prev })
}

func TestFormatters(t *testing.T) {
	withColor(t, false)
	assert.Equal(t, "✓ ok", Success("ok"))
	assert.Equal(t, "✗ bad", Error("bad"))
	assert.Equal(t, "⚠ hm", Warn("hm"))
	assert.Equal(t, "x", Info("x"))

	withColor(t, true)
	assert.Equal(t, green+"✓ ok"+reset, Success("ok"))
	assert.Equal(t, red+"✗ bad"+reset, Error("bad"))
	assert.True(t, strings.HasPrefix(Heading("h"), bold))
}

func TestColorDisabledByNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, initColorEnabled())
}

func TestDiagnostics(t *testing.T) {
	withColor(t, false)
	ds := a2ui.Diagnostics{
		{Severity: a2ui.SeverityInfo, Code: "I", Message: "info"},
		{Severity: a2ui.SeverityWarn, Code: "W", Message: "warn", NodeID: "1:1"},
		{Severity: a2ui.SeverityError, Code: "E", Message: "error"},
	}

	got := Diagnostics(ds, 0)
	lines := strings.Split(strings.TrimSpace(got), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "error [E]")
	assert.Contains(t, lines[1], "1:1: warn [W]")
	assert.Contains(t, lines[2], "· info [I]")

	limited := Diagnostics(ds, 1)
	assert.Contains(t, limited, "… 2 more")

	assert.Equal(t, "1 errors, 1 warnings, 1 info", Summary(ds))
}

func TestStep(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Step(context.Background(), &buf, "working", func(ctx context.Context) error { return nil }))
	assert.Contains(t, buf.String(), "working")

	boom := errors.New("boom")
	buf.Reset()
	assert.Equal(t, boom, Step(context.Background(), &buf, "working", func(ctx context.Context) error { return boom }))
	assert.Contains(t, buf.String(), "boom")
}

func TestStepCancelled(t *testing.T) {
	withColor(t, false)
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	err := Step(ctx, &buf, "working", func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, buf.String(), "Cancelled.")
}

func TestSignalContextCancel(t *testing.T) {
	ctx, cancel := SignalContext(context.Background())
	assert.NoError(t, ctx.Err())
	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
