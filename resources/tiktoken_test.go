package resources

import (
	"encoding/base64"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func tiktokenLine(token string, rank int) string {
	return base64.StdEncoding.EncodeToString([]byte(token)) + " " +
		strconv.Itoa(rank)
}

func TestParseTiktokenRanks(t *testing.T) {
	lines := []string{
		tiktokenLine("a", 0),
		"",
		tiktokenLine("b", 1),
		tiktokenLine("ab", 2),
		tiktokenLine("\xff\xfe", 3),
		"",
	}
	ranks, parseErr := ParseTiktokenRanks(
		[]byte(strings.Join(lines, "\n")))
	assert.NoError(t, parseErr)
	assert.Equal(t, MergeRanks{
		"a":        0,
		"b":        1,
		"ab":       2,
		"\xff\xfe": 3,
	}, ranks)
}

type ParseRanksErrorTest struct {
	Lines    []string
	Expected string
}

var ParseRanksErrorTests = []ParseRanksErrorTest{
	{[]string{tiktokenLine("a", 0), "YWI="},
		"line 2: expected `<base64 token> <rank>`"},
	{[]string{"!!! 5"},
		"line 1: invalid base64 token"},
	{[]string{tiktokenLine("a", 0), "YQ== x"},
		"line 2: invalid rank"},
	{[]string{"YQ== -1"},
		"line 1: negative rank -1"},
	{nil,
		"no BPE ranks found"},
	{[]string{"", "  ", ""},
		"no BPE ranks found"},
}

func TestParseTiktokenRanks_Malformed(t *testing.T) {
	for testIdx := range ParseRanksErrorTests {
		test := ParseRanksErrorTests[testIdx]
		_, parseErr := ParseTiktokenRanks(
			[]byte(strings.Join(test.Lines, "\n")))
		assert.ErrorContains(t, parseErr, test.Expected)
	}
}

func TestLoadTiktokenRanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiktoken.model")
	blob := tiktokenLine("a", 0) + "\n" + tiktokenLine("ab", 1) + "\n"
	assert.NoError(t, os.WriteFile(path, []byte(blob), 0644))
	ranks, loadErr := LoadTiktokenRanks(path)
	assert.NoError(t, loadErr)
	assert.Equal(t, MergeRanks{"a": 0, "ab": 1}, ranks)
}

func TestLoadTiktokenRanks_Missing(t *testing.T) {
	_, loadErr := LoadTiktokenRanks(
		filepath.Join(t.TempDir(), "tiktoken.model"))
	assert.Error(t, loadErr)
}

func TestLoadTiktokenRanks_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiktoken.model")
	assert.NoError(t, os.WriteFile(path, []byte{}, 0644))
	_, loadErr := LoadTiktokenRanks(path)
	assert.ErrorContains(t, loadErr, "no BPE ranks found")
}

func TestLoader_LocalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiktoken.model")
	blob := tiktokenLine("a", 0) + "\n" + tiktokenLine("b", 1) + "\n"
	assert.NoError(t, os.WriteFile(path, []byte(blob), 0644))
	ranks, loadErr := NewLoader().LoadTiktokenBpe(path)
	assert.NoError(t, loadErr)
	assert.Equal(t, map[string]int{"a": 0, "b": 1}, ranks)
}

func TestLoader_EncodingURL(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "encodings")
	t.Setenv("KIMI_BPE_CACHE_DIR", cacheDir)
	blob := []byte(tiktokenLine("a", 0) + "\n" + tiktokenLine("b", 1) + "\n")
	srv := httptest.NewServer(rankTableHandler(blob, new(int)))
	defer srv.Close()
	ranks, loadErr := NewLoader().LoadTiktokenBpe(
		srv.URL + "/cl100k_base.tiktoken")
	assert.NoError(t, loadErr)
	assert.Equal(t, map[string]int{"a": 0, "b": 1}, ranks)
}
