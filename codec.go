package kimi_bpe

import (
	"bytes"
	"log"
	"math"
	"sort"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/wbrown/kimi_bpe/resources"
)

const BPE_LRU_SZ = 65536

type Token uint32
type Tokens []Token

// Codec encodes text to token ids and back using a TokenizerSpec's merge
// ranks. Reserved tokens are cut out of the input before the split pattern
// runs, so their ids always come from the reserved table rather than from
// merges.
type Codec struct {
	Name         string
	Encoder      map[string]Token
	Decoder      map[Token][]byte
	Specials     map[string]Token
	SpecialsTree *RuneNode
	Cache        *lru.ARCCache
	LruHits      int
	LruMisses    int
	ranks        resources.MergeRanks
	pattern      *regexp2.Regexp
	specialsArr  []string
}

// NewCodec compiles a TokenizerSpec into a Codec: the split pattern, the
// reserved-token trie, the id maps in both directions, and an ARC cache for
// chunk encodings.
func NewCodec(spec *TokenizerSpec) (*Codec, error) {
	pattern, patternErr := regexp2.Compile(spec.SplitPattern, regexp2.None)
	if patternErr != nil {
		log.Fatalf(REGEX_ERROR, patternErr)
	}
	cache, cacheErr := lru.NewARC(BPE_LRU_SZ)
	if cacheErr != nil {
		return nil, cacheErr
	}
	encoder := make(map[string]Token, len(spec.Ranks))
	decoder := make(map[Token][]byte,
		len(spec.Ranks)+len(spec.Specials))
	for token, rank := range spec.Ranks {
		encoder[token] = Token(rank)
		decoder[Token(rank)] = []byte(token)
	}
	specials := make(map[string]Token, len(spec.Specials))
	specialsArr := make([]string, 0, len(spec.Specials))
	for content, id := range spec.Specials {
		specials[content] = Token(id)
		decoder[Token(id)] = []byte(content)
		specialsArr = append(specialsArr, content)
	}
	sort.Slice(specialsArr, func(i, j int) bool {
		return specials[specialsArr[i]] < specials[specialsArr[j]]
	})
	codec := &Codec{
		Name:        spec.Name,
		Encoder:     encoder,
		Decoder:     decoder,
		Specials:    specials,
		Cache:       cache,
		ranks:       spec.Ranks,
		pattern:     pattern,
		specialsArr: specialsArr,
	}
	codec.SpecialsTree = codec.createRuneTree()
	return codec, nil
}

// VocabSize is the merge-rank count plus the reserved-token count.
func (codec *Codec) VocabSize() int {
	return len(codec.Encoder) + len(codec.Specials)
}

type fragment struct {
	text    string
	special bool
}

// splitSpecials cuts text into plain fragments and reserved tokens. The
// reserved tokens are matched with the trie, longest first, before any
// pattern splitting happens.
func (codec *Codec) splitSpecials(text string) []fragment {
	fragments := make([]fragment, 0, 2)
	runes := []rune(text)
	plainStart := 0
	for idx := 0; idx < len(runes); {
		terminal := codec.SpecialsTree.match(runes[idx:])
		if terminal == nil {
			idx++
			continue
		}
		if idx > plainStart {
			fragments = append(fragments,
				fragment{text: string(runes[plainStart:idx])})
		}
		fragments = append(fragments,
			fragment{text: string(terminal.runes), special: true})
		idx += len(terminal.runes)
		plainStart = idx
	}
	if plainStart < len(runes) {
		fragments = append(fragments,
			fragment{text: string(runes[plainStart:])})
	}
	return fragments
}

// splitChunks applies the split pattern, returning the matched chunks in
// order. The pattern uses lookahead, so it runs on the regexp2 engine rather
// than the standard library's.
func (codec *Codec) splitChunks(text string) []string {
	chunks := make([]string, 0, 16)
	match, matchErr := codec.pattern.FindStringMatch(text)
	for match != nil && matchErr == nil {
		chunks = append(chunks, match.String())
		match, matchErr = codec.pattern.FindNextMatch(match)
	}
	return chunks
}

const noMerge = math.MaxInt

type bpePart struct {
	offset int
	rank   int
}

// bytePairMerge merges piece down to tokens by repeatedly applying the
// lowest-ranked merge across the current boundaries until none applies.
// Boundaries start between every byte; each part carries the rank of merging
// it with its right neighbor, noMerge when the joined bytes are unranked.
func (codec *Codec) bytePairMerge(piece []byte) Tokens {
	parts := make([]bpePart, len(piece)+1)
	for idx := range parts {
		parts[idx] = bpePart{offset: idx, rank: noMerge}
	}
	rankOf := func(startIdx int, skip int) int {
		if startIdx+skip+2 >= len(parts) {
			return noMerge
		}
		span := piece[parts[startIdx].offset:parts[startIdx+skip+2].offset]
		if rank, ok := codec.ranks[string(span)]; ok {
			return rank
		}
		return noMerge
	}
	for idx := 0; idx < len(parts)-2; idx++ {
		parts[idx].rank = rankOf(idx, 0)
	}
	for len(parts) > 1 {
		minRank := noMerge
		minIdx := -1
		for idx := 0; idx < len(parts)-1; idx++ {
			if parts[idx].rank < minRank {
				minRank = parts[idx].rank
				minIdx = idx
			}
		}
		if minRank == noMerge {
			break
		}
		parts[minIdx].rank = rankOf(minIdx, 1)
		if minIdx > 0 {
			parts[minIdx-1].rank = rankOf(minIdx-1, 1)
		}
		parts = append(parts[:minIdx+1], parts[minIdx+2:]...)
	}
	tokens := make(Tokens, 0, len(parts)-1)
	for idx := 0; idx < len(parts)-1; idx++ {
		span := piece[parts[idx].offset:parts[idx+1].offset]
		if id, ok := codec.Encoder[string(span)]; ok {
			tokens = append(tokens, id)
		}
	}
	return tokens
}

// encodeChunk tokenizes one pattern chunk, consulting the ARC cache first.
// A chunk that is itself a ranked token short-circuits the merge loop.
func (codec *Codec) encodeChunk(chunk string) Tokens {
	if lookup, ok := codec.Cache.Get(chunk); ok {
		codec.LruHits++
		return lookup.(Tokens)
	}
	codec.LruMisses++
	var tokens Tokens
	if id, ok := codec.Encoder[chunk]; ok {
		tokens = Tokens{id}
	} else {
		tokens = codec.bytePairMerge([]byte(chunk))
	}
	codec.Cache.Add(chunk, tokens)
	return tokens
}

// Encode tokenizes text: reserved tokens are cut out first, the remainder is
// split by the pattern, and each chunk is merged down to token ids.
func (codec *Codec) Encode(text *string) *Tokens {
	tokens := make(Tokens, 0, len(*text)/3+2)
	for _, piece := range codec.splitSpecials(*text) {
		if piece.special {
			tokens = append(tokens, codec.Specials[piece.text])
			continue
		}
		for _, chunk := range codec.splitChunks(piece.text) {
			tokens = append(tokens, codec.encodeChunk(chunk)...)
		}
	}
	return &tokens
}

// Decode turns token ids back into text. Unknown ids decode to nothing.
func (codec *Codec) Decode(encoded *Tokens) (text string) {
	var decoded bytes.Buffer
	for _, token := range *encoded {
		if tokenBytes, ok := codec.Decoder[token]; ok {
			decoded.Write(tokenBytes)
		}
	}
	return decoded.String()
}

// Get looks up the id for a complete token string, reserved tokens included,
// and returns nil if the string is not a single token.
func (codec *Codec) Get(text string) *Token {
	if id, ok := codec.Specials[text]; ok {
		return &id
	}
	if id, ok := codec.Encoder[text]; ok {
		return &id
	}
	return nil
}
