package crouton

import (
	"bytes"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
)

func TestArgParserFirstDoesNotConsume(t *testing.T) {
	p := NewArgParser([]string{"a", "b"})
	v, ok := p.First()
	require.True(t, ok)
	require.Equal(t, "a", v)

	v, ok = p.First()
	require.True(t, ok)
	require.Equal(t, "a", v)
}

func TestArgParserPopFirstConsumesInOrder(t *testing.T) {
	p := NewArgParser([]string{"a", "b", "c"})

	v, ok := p.PopFirst()
	require.True(t, ok)
	require.Equal(t, "a", v)

	v, ok = p.PopFirst()
	require.True(t, ok)
	require.Equal(t, "b", v)

	require.Equal(t, []string{"c"}, p.Remaining())
}

func TestArgParserPopFirstOnEmptyReturnsFalse(t *testing.T) {
	p := NewArgParser(nil)
	_, ok := p.PopFirst()
	require.False(t, ok)
}

func TestArgParserPopFlagOnlyConsumesDashPrefixed(t *testing.T) {
	p := NewArgParser([]string{"-v", "positional"})

	v, ok := p.PopFlag()
	require.True(t, ok)
	require.Equal(t, "-v", v)

	_, ok = p.PopFlag()
	require.False(t, ok)
	require.Equal(t, []string{"positional"}, p.Remaining())
}

func TestArgParserDoesNotMutateInputSlice(t *testing.T) {
	original := []string{"a", "b"}
	p := NewArgParser(original)
	p.PopFirst()
	require.Equal(t, []string{"a", "b"}, original, "NewArgParser must copy, not alias, its input")
}

func TestParseLogLevelsParsesPairs(t *testing.T) {
	got := parseLogLevels("scheduler=debug, io = warn,bare")
	require.Equal(t, map[string]string{
		"scheduler": "debug",
		"io":        "warn",
	}, got)
}

func TestParseLogLevelsEmptySpec(t *testing.T) {
	require.Empty(t, parseLogLevels(""))
}

func TestColorEnabledRespectsCLICOLORForce(t *testing.T) {
	t.Setenv("TERM", "xterm")
	t.Setenv("CLICOLOR_FORCE", "0")
	require.False(t, colorEnabled())

	t.Setenv("CLICOLOR_FORCE", "1")
	require.True(t, colorEnabled())
}

func TestColorEnabledFallsBackToTerm(t *testing.T) {
	t.Setenv("CLICOLOR_FORCE", "")
	t.Setenv("TERM", "dumb")
	require.False(t, colorEnabled())

	t.Setenv("TERM", "xterm-256color")
	require.True(t, colorEnabled())
}

func TestParseLevelRecognizesSyslogKeywordsAndAliases(t *testing.T) {
	cases := map[string]logiface.Level{
		"debug":    logiface.LevelDebug,
		"ERR":      logiface.LevelError,
		"error":    logiface.LevelError,
		" warn ":   logiface.LevelWarning,
		"warning":  logiface.LevelWarning,
		"info":     logiface.LevelInformational,
		"trace":    logiface.LevelTrace,
		"disabled": logiface.LevelDisabled,
	}
	for spec, want := range cases {
		got, ok := parseLevel(spec)
		require.True(t, ok, "spec %q should parse", spec)
		require.Equal(t, want, got, "spec %q", spec)
	}
}

func TestParseLevelRejectsUnknownSpec(t *testing.T) {
	_, ok := parseLevel("nonsense")
	require.False(t, ok)
}

func TestLoggerFromEnvironmentAppliesNamedLevelOverride(t *testing.T) {
	t.Setenv(logLevelEnvVar, "crouton=debug")
	t.Setenv("CLICOLOR_FORCE", "0")

	log := loggerFromEnvironment()
	require.Equal(t, logiface.LevelDebug, log.Level())
}

func TestLoggerFromEnvironmentIgnoresOverrideForOtherNames(t *testing.T) {
	t.Setenv(logLevelEnvVar, "somethingelse=debug")
	t.Setenv("CLICOLOR_FORCE", "0")

	log := loggerFromEnvironment()
	require.NotEqual(t, logiface.LevelDebug, log.Level())
}

func TestLevelColorSelectsBySeverity(t *testing.T) {
	require.Equal(t, ansiRed, levelColor([]byte(`{"lvl":"err","msg":"x"}`)))
	require.Equal(t, ansiRed, levelColor([]byte(`{"lvl":"crit","msg":"x"}`)))
	require.Equal(t, ansiYellow, levelColor([]byte(`{"lvl":"warning","msg":"x"}`)))
	require.Equal(t, ansiDim, levelColor([]byte(`{"lvl":"debug","msg":"x"}`)))
	require.Equal(t, "", levelColor([]byte(`{"lvl":"info","msg":"x"}`)))
}

func TestColorWriterWrapsInAnsiWhenColored(t *testing.T) {
	var buf bytes.Buffer
	w := &colorWriter{out: &buf}

	n, err := w.Write([]byte(`{"lvl":"err","msg":"boom"}`))
	require.NoError(t, err)
	require.Equal(t, len(`{"lvl":"err","msg":"boom"}`), n)
	require.Equal(t, ansiRed+`{"lvl":"err","msg":"boom"}`+ansiReset, buf.String())
}

func TestColorWriterPassesThroughWithoutKnownLevel(t *testing.T) {
	var buf bytes.Buffer
	w := &colorWriter{out: &buf}

	_, err := w.Write([]byte(`{"lvl":"info","msg":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, `{"lvl":"info","msg":"hi"}`, buf.String())
}
