package resources

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBPEModel_MergePairs(t *testing.T) {
	model := &BPEModel{Merges: json.RawMessage(`[["a","b"],["ab","c"]]`)}
	pairs, pairErr := model.MergePairs()
	assert.NoError(t, pairErr)
	assert.Equal(t, [][2]string{{"a", "b"}, {"ab", "c"}}, pairs)
}

func TestBPEModel_MergePairs_FlatStrings(t *testing.T) {
	// Older emitters write merges as `"left right"` strings.
	model := &BPEModel{Merges: json.RawMessage(`["a b", "ab c"]`)}
	pairs, pairErr := model.MergePairs()
	assert.NoError(t, pairErr)
	assert.Equal(t, [][2]string{{"a", "b"}, {"ab", "c"}}, pairs)
}

func TestBPEModel_MergePairs_Empty(t *testing.T) {
	pairs, pairErr := (&BPEModel{}).MergePairs()
	assert.NoError(t, pairErr)
	assert.Nil(t, pairs)
}

func TestBPEModel_MergePairs_Malformed(t *testing.T) {
	model := &BPEModel{Merges: json.RawMessage(`[42]`)}
	_, pairErr := model.MergePairs()
	assert.ErrorContains(t, pairErr, "cannot decode merges")

	model = &BPEModel{Merges: json.RawMessage(`["ab"]`)}
	_, pairErr = model.MergePairs()
	assert.ErrorContains(t, pairErr, "cannot decode merge 0")
}
