package resources

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// MergeRanks maps raw token bytes, held as a Go string, to the token's BPE
// merge rank. Lower ranks merge first. The map shape is the same one the
// tiktoken-go ecosystem uses, so tables load into either world unchanged.
type MergeRanks map[string]int

const RANK_SCAN_BUF_SZ = 1024 * 1024

// ParseTiktokenRanks parses a tiktoken model file held in memory. The format
// is one token per line: the token bytes in standard base64, a single space,
// and the token's rank as a decimal integer. Blank lines are skipped. An
// empty table is an error, as a model file with no ranks is malformed.
func ParseTiktokenRanks(data []byte) (MergeRanks, error) {
	ranks := make(MergeRanks)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), RANK_SCAN_BUF_SZ)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sep := strings.IndexByte(line, ' ')
		if sep < 0 {
			return nil, errors.New(
				fmt.Sprintf("line %d: expected `<base64 token> <rank>`",
					lineNo))
		}
		token, b64Err := base64.StdEncoding.DecodeString(line[:sep])
		if b64Err != nil {
			return nil, errors.New(
				fmt.Sprintf("line %d: invalid base64 token: %s",
					lineNo, b64Err))
		}
		rank, rankErr := strconv.Atoi(line[sep+1:])
		if rankErr != nil {
			return nil, errors.New(
				fmt.Sprintf("line %d: invalid rank: %s",
					lineNo, rankErr))
		}
		if rank < 0 {
			return nil, errors.New(
				fmt.Sprintf("line %d: negative rank %d",
					lineNo, rank))
		}
		ranks[string(token)] = rank
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return nil, scanErr
	}
	if len(ranks) == 0 {
		return nil, errors.New("no BPE ranks found")
	}
	return ranks, nil
}

// LoadTiktokenRanks opens a tiktoken model file, mmaps it, and parses its
// rank table.
func LoadTiktokenRanks(path string) (MergeRanks, error) {
	file, openErr := os.Open(path)
	if openErr != nil {
		return nil, openErr
	}
	defer file.Close()
	fileInfo, statErr := file.Stat()
	if statErr != nil {
		return nil, statErr
	}
	if fileInfo.Size() == 0 {
		return nil, errors.New(
			fmt.Sprintf("%s: no BPE ranks found", path))
	}
	fileMmap, mmapErr := readMmap(file)
	if mmapErr != nil {
		return nil, errors.New(
			fmt.Sprintf("error trying to mmap file: %s", mmapErr))
	}
	defer fileMmap.Unmap()
	ranks, parseErr := ParseTiktokenRanks(fileMmap)
	if parseErr != nil {
		return nil, errors.New(
			fmt.Sprintf("%s: %s", path, parseErr))
	}
	return ranks, nil
}

// Loader resolves rank tables for the tiktoken-go registry. A local path is
// parsed directly; anything else is treated as a published encoding URL and
// resolved through the on-disk cache. Plug it in with
// `tiktoken.SetBpeLoader(resources.NewLoader())` to make tiktoken-go share
// this package's cache.
type Loader struct{}

var _ tiktoken.BpeLoader = (*Loader)(nil)

func NewLoader() *Loader {
	return &Loader{}
}

func (l *Loader) LoadTiktokenBpe(tiktokenBpeFile string) (
	map[string]int, error) {
	if _, statErr := os.Stat(tiktokenBpeFile); statErr == nil {
		ranks, loadErr := LoadTiktokenRanks(tiktokenBpeFile)
		if loadErr != nil {
			return nil, loadErr
		}
		return map[string]int(ranks), nil
	}
	cachedPath, fetchErr := fetchEncodingURL(tiktokenBpeFile)
	if fetchErr != nil {
		return nil, fetchErr
	}
	ranks, loadErr := LoadTiktokenRanks(cachedPath)
	if loadErr != nil {
		return nil, loadErr
	}
	return map[string]int(ranks), nil
}
