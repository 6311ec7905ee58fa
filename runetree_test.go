package kimi_bpe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuneNode_Match(t *testing.T) {
	terminal := toyCodec.SpecialsTree.match([]rune("[BOS]hello"))
	if terminal == nil {
		t.Fatal("no match for a leading reserved token")
	}
	assert.Equal(t, "[BOS]", string(terminal.runes))

	terminal = toyCodec.SpecialsTree.match([]rune("<|im_end|> suffix"))
	if terminal == nil {
		t.Fatal("no match for a leading reserved token")
	}
	assert.Equal(t, "<|im_end|>", string(terminal.runes))

	assert.Nil(t, toyCodec.SpecialsTree.match([]rune("plain text")))
	// A reserved-token prefix with no terminal is not a match.
	assert.Nil(t, toyCodec.SpecialsTree.match([]rune("<|im_")))
	assert.Nil(t, toyCodec.SpecialsTree.match([]rune("[BO")))
}

func TestRuneNode_LongestMatch(t *testing.T) {
	spec := toySpec()
	spec.Specials = map[string]int{
		"<t>":  163584,
		"<t>x": 163585,
	}
	codec, codecErr := NewCodec(spec)
	assert.NoError(t, codecErr)
	assert.Equal(t, "<t>x",
		string(codec.SpecialsTree.match([]rune("<t>xy")).runes))
	assert.Equal(t, "<t>",
		string(codec.SpecialsTree.match([]rune("<t>y")).runes))
}

func TestRuneNode_String(t *testing.T) {
	rendered := toyCodec.SpecialsTree.String()
	assert.Contains(t, rendered, "├─")
	assert.Contains(t, rendered, "└─")
}

type SplitSpecialsTest struct {
	Input    string
	Expected []fragment
}

var SplitSpecialsTests = []SplitSpecialsTest{
	{"hello world",
		[]fragment{{text: "hello world"}}},
	{"[BOS]hello",
		[]fragment{
			{text: "[BOS]", special: true},
			{text: "hello"}}},
	{"a[EOS]",
		[]fragment{
			{text: "a"},
			{text: "[EOS]", special: true}}},
	{"[BOS][EOS]",
		[]fragment{
			{text: "[BOS]", special: true},
			{text: "[EOS]", special: true}}},
	{"x<|im_user|>y",
		[]fragment{
			{text: "x"},
			{text: "<|im_user|>", special: true},
			{text: "y"}}},
	{"half open <|im_",
		[]fragment{{text: "half open <|im_"}}},
}

func TestCodec_SplitSpecials(t *testing.T) {
	for testIdx := range SplitSpecialsTests {
		test := SplitSpecialsTests[testIdx]
		assert.Equal(t, test.Expected, toyCodec.splitSpecials(test.Input),
			"input: %q", test.Input)
	}
}
