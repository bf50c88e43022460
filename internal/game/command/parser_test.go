package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParse_Empty(t *testing.T) {
	result := Parse("   ")
	assert.Equal(t, "", result.Command)
	assert.Nil(t, result.Args)
}

func TestParse_SingleWord(t *testing.T) {
	result := Parse("status")
	assert.Equal(t, "status", result.Command)
	assert.Nil(t, result.Args)
}

func TestParse_LowercasesCommandOnly(t *testing.T) {
	result := Parse("CREATE Feyre high_fae")
	assert.Equal(t, "create", result.Command)
	assert.Equal(t, []string{"Feyre", "high_fae"}, result.Args)
}

func TestParse_ExtraWhitespace(t *testing.T) {
	result := Parse("  cast \t  fire_manipulation  ")
	assert.Equal(t, "cast", result.Command)
	assert.Equal(t, []string{"fire_manipulation"}, result.Args)
}

func TestParseResult_Arg_OutOfRange(t *testing.T) {
	result := Parse("xp")
	assert.Equal(t, "", result.Arg(0))
	assert.Equal(t, "", result.Arg(-1))
}

func TestParseResult_Int64(t *testing.T) {
	v, err := Parse("xp 250").Int64(0)
	require.NoError(t, err)
	assert.Equal(t, int64(250), v)

	v, err = Parse("xp -5").Int64(0)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), v)

	_, err = Parse("xp lots").Int64(0)
	assert.Error(t, err)
}

func TestParseResult_Float64(t *testing.T) {
	v, err := Parse("haste 0.75").Float64(0)
	require.NoError(t, err)
	assert.Equal(t, 0.75, v)

	_, err = Parse("haste").Float64(0)
	assert.Error(t, err)
}

func TestPropertyParseAlwaysLowercasesCommand(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		word := rapid.StringMatching(`[a-zA-Z]{1,12}`).Draw(t, "word")
		result := Parse(word)
		assert.Equal(t, strings.ToLower(word), result.Command)
	})
}

func TestPropertyParsePreservesArgCount(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		args := rapid.SliceOfN(rapid.StringMatching(`[a-zA-Z0-9_.]{1,8}`), 0, 6).Draw(t, "args")
		line := "cmd " + strings.Join(args, "  ")
		result := Parse(line)
		assert.Equal(t, "cmd", result.Command)
		assert.Len(t, result.Args, len(args))
	})
}
