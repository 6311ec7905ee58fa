package resources

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Byte-level unicode alphabet used by the vocab and merge serializations.
// Printable bytes map to themselves; everything else is displaced into the
// U+0100 plane in ascending byte order, so every byte has a distinct,
// printable rune.
var byteToUnicode [256]rune
var unicodeToByte map[rune]byte

func init() {
	displaced := 0
	for b := 0; b < 256; b++ {
		if (b >= '!' && b <= '~') || (b >= 0xa1 && b <= 0xac) ||
			(b >= 0xae && b <= 0xff) {
			byteToUnicode[b] = rune(b)
		} else {
			byteToUnicode[b] = rune(256 + displaced)
			displaced++
		}
	}
	unicodeToByte = make(map[rune]byte, 256)
	for b, r := range byteToUnicode {
		unicodeToByte[r] = byte(b)
	}
}

// TokenBytesToUnicode renders raw token bytes in the byte-level alphabet.
func TokenBytesToUnicode(token string) string {
	var rendered strings.Builder
	rendered.Grow(len(token) * 2)
	for i := 0; i < len(token); i++ {
		rendered.WriteRune(byteToUnicode[token[i]])
	}
	return rendered.String()
}

// UnicodeToTokenBytes inverts TokenBytesToUnicode. Runes outside the
// byte-level alphabet are an error.
func UnicodeToTokenBytes(rendered string) ([]byte, error) {
	token := make([]byte, 0, len(rendered))
	for _, r := range rendered {
		b, ok := unicodeToByte[r]
		if !ok {
			return nil, errors.New(
				fmt.Sprintf("rune %q is not in the byte-level alphabet", r))
		}
		token = append(token, b)
	}
	return token, nil
}

// MergeEntry is one recovered merge: the ranked halves of a token and the
// rank of the token they merge into.
type MergeEntry struct {
	Left       string
	Right      string
	LeftRank   int
	RightRank  int
	MergedRank int
}

// RecoverMerges reconstructs the ordered merge list a rank table implies.
// Every multi-byte token is split at each byte index; splits whose halves
// are both ranked are kept. A token's own splits are ordered by the rank
// pair of the halves, and the full list by the merged token's rank, which
// reproduces the order the ranks were learned in.
func RecoverMerges(ranks MergeRanks) []MergeEntry {
	entries := make([]MergeEntry, 0, len(ranks))
	for token, rank := range ranks {
		if len(token) < 2 {
			continue
		}
		local := make([]MergeEntry, 0, 4)
		for splitIdx := 1; splitIdx < len(token); splitIdx++ {
			leftRank, leftOk := ranks[token[:splitIdx]]
			rightRank, rightOk := ranks[token[splitIdx:]]
			if !leftOk || !rightOk {
				continue
			}
			local = append(local, MergeEntry{
				Left:       token[:splitIdx],
				Right:      token[splitIdx:],
				LeftRank:   leftRank,
				RightRank:  rightRank,
				MergedRank: rank,
			})
		}
		sort.Slice(local, func(i, j int) bool {
			if local[i].LeftRank != local[j].LeftRank {
				return local[i].LeftRank < local[j].LeftRank
			}
			return local[i].RightRank < local[j].RightRank
		})
		entries = append(entries, local...)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].MergedRank < entries[j].MergedRank
	})
	return entries
}

// BuildVocab renders a rank table as a byte-level vocabulary.
func BuildVocab(ranks MergeRanks) map[string]int {
	vocab := make(map[string]int, len(ranks))
	for token, rank := range ranks {
		vocab[TokenBytesToUnicode(token)] = rank
	}
	return vocab
}

// Role markers the Kimi table spells with brackets. When present they are
// promoted to the conventional slots in the companion files.
func roleToken(specials map[string]int, content string) *string {
	if _, ok := specials[content]; ok {
		role := content
		return &role
	}
	return nil
}

func sortedSpecials(specials map[string]int) []AddedToken {
	added := make([]AddedToken, 0, len(specials))
	for content, id := range specials {
		added = append(added, AddedToken{
			ID:      id,
			Content: content,
			Special: true,
		})
	}
	sort.Slice(added, func(i, j int) bool {
		return added[i].ID < added[j].ID
	})
	return added
}

func writeJSON(path string, value interface{}) error {
	file, createErr := os.Create(path)
	if createErr != nil {
		return errors.New(
			fmt.Sprintf("error opening '%s' for write: %s",
				path, createErr))
	}
	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if encodeErr := encoder.Encode(value); encodeErr != nil {
		file.Close()
		return errors.New(
			fmt.Sprintf("error writing '%s': %s", path, encodeErr))
	}
	return file.Close()
}

// WriteFastTokenizer materializes the fast-tokenizer artifact set for a rank
// table, special-token table, and split pattern: tokenizer.json with the
// byte-level vocab, recovered merges, and added tokens, plus the
// tokenizer_config.json and special_tokens_map.json companion files. Special
// ids are written verbatim, gaps included; nothing is renumbered. Returns
// the paths written. Nothing is cleaned up on failure.
func WriteFastTokenizer(outputDir string, ranks MergeRanks,
	specials map[string]int, splitPattern string) ([]string, error) {
	if mkErr := os.MkdirAll(outputDir, 0755); mkErr != nil {
		return nil, errors.New(
			fmt.Sprintf("cannot create output directory '%s': %s",
				outputDir, mkErr))
	}

	mergePairs := make([][2]string, 0, len(ranks))
	for _, entry := range RecoverMerges(ranks) {
		mergePairs = append(mergePairs, [2]string{
			TokenBytesToUnicode(entry.Left),
			TokenBytesToUnicode(entry.Right),
		})
	}
	mergesJSON, mergesErr := json.Marshal(mergePairs)
	if mergesErr != nil {
		return nil, mergesErr
	}

	falsePtr := new(bool)
	truePtr := new(bool)
	*truePtr = true
	artifact := &FastTokenizer{
		Version:     "1.0",
		AddedTokens: sortedSpecials(specials),
		PreTokenizer: &PreTokenizer{
			Type: "Sequence",
			PreTokenizers: []PreTokenizerStep{
				{
					Type:     "Split",
					Pattern:  &PatternRegex{Regex: splitPattern},
					Behavior: "Isolated",
					Invert:   falsePtr,
				},
				{
					Type:           "ByteLevel",
					AddPrefixSpace: falsePtr,
					TrimOffsets:    truePtr,
					UseRegex:       falsePtr,
				},
			},
		},
		Decoder: &ByteLevel{
			Type:           "ByteLevel",
			AddPrefixSpace: true,
			TrimOffsets:    true,
			UseRegex:       true,
		},
		Model: &BPEModel{
			Type:   "BPE",
			Vocab:  BuildVocab(ranks),
			Merges: mergesJSON,
		},
	}

	tokenizerPath := filepath.Join(outputDir, "tokenizer.json")
	if writeErr := writeJSON(tokenizerPath, artifact); writeErr != nil {
		return nil, writeErr
	}
	written := []string{tokenizerPath}

	addedDecoder := make(map[string]AddedTokenConfig, len(specials))
	for content, id := range specials {
		addedDecoder[strconv.Itoa(id)] = AddedTokenConfig{
			Content: content,
			Special: true,
		}
	}
	config := &TokenizerConfig{
		AddedTokensDecoder: addedDecoder,
		BosToken:           roleToken(specials, "[BOS]"),
		EosToken:           roleToken(specials, "[EOS]"),
		ModelMaxLength:     json.Number("1000000000000000019884624838656"),
		PadToken:           roleToken(specials, "[PAD]"),
		TokenizerClass:     "PreTrainedTokenizerFast",
		UnkToken:           roleToken(specials, "[UNK]"),
	}
	configPath := filepath.Join(outputDir, "tokenizer_config.json")
	if writeErr := writeJSON(configPath, config); writeErr != nil {
		return written, writeErr
	}
	written = append(written, configPath)

	roles := map[string]bool{
		"[BOS]": true, "[EOS]": true, "[UNK]": true, "[PAD]": true,
	}
	additionalContents := make([]string, 0, len(specials))
	for _, added := range sortedSpecials(specials) {
		if !roles[added.Content] {
			additionalContents = append(additionalContents, added.Content)
		}
	}
	tokensMap := &SpecialTokensMap{
		AdditionalSpecialTokens: additionalContents,
		BosToken:                roleToken(specials, "[BOS]"),
		EosToken:                roleToken(specials, "[EOS]"),
		PadToken:                roleToken(specials, "[PAD]"),
		UnkToken:                roleToken(specials, "[UNK]"),
	}
	mapPath := filepath.Join(outputDir, "special_tokens_map.json")
	if writeErr := writeJSON(mapPath, tokensMap); writeErr != nil {
		return written, writeErr
	}
	written = append(written, mapPath)

	return written, nil
}
