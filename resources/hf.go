package resources

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Serialization structures for the fast-tokenizer artifact set. Field order
// follows the layout the HuggingFace tokenizers library writes, so emitted
// files diff cleanly against ones it produced.

type FastTokenizer struct {
	Version       string          `json:"version"`
	Truncation    json.RawMessage `json:"truncation"`
	Padding       json.RawMessage `json:"padding"`
	AddedTokens   []AddedToken    `json:"added_tokens"`
	Normalizer    json.RawMessage `json:"normalizer"`
	PreTokenizer  *PreTokenizer   `json:"pre_tokenizer"`
	PostProcessor json.RawMessage `json:"post_processor"`
	Decoder       *ByteLevel      `json:"decoder"`
	Model         *BPEModel       `json:"model"`
}

type AddedToken struct {
	ID         int    `json:"id"`
	Content    string `json:"content"`
	SingleWord bool   `json:"single_word"`
	LStrip     bool   `json:"lstrip"`
	RStrip     bool   `json:"rstrip"`
	Normalized bool   `json:"normalized"`
	Special    bool   `json:"special"`
}

type PreTokenizer struct {
	Type          string             `json:"type"`
	PreTokenizers []PreTokenizerStep `json:"pretokenizers"`
}

// PreTokenizerStep covers both step shapes the artifact uses, Split and
// ByteLevel. Unused fields stay nil and are omitted on write.
type PreTokenizerStep struct {
	Type           string        `json:"type"`
	Pattern        *PatternRegex `json:"pattern,omitempty"`
	Behavior       string        `json:"behavior,omitempty"`
	Invert         *bool         `json:"invert,omitempty"`
	AddPrefixSpace *bool         `json:"add_prefix_space,omitempty"`
	TrimOffsets    *bool         `json:"trim_offsets,omitempty"`
	UseRegex       *bool         `json:"use_regex,omitempty"`
}

type PatternRegex struct {
	Regex string `json:"Regex"`
}

type ByteLevel struct {
	Type           string `json:"type"`
	AddPrefixSpace bool   `json:"add_prefix_space"`
	TrimOffsets    bool   `json:"trim_offsets"`
	UseRegex       bool   `json:"use_regex"`
}

type BPEModel struct {
	Type                    string          `json:"type"`
	Dropout                 json.RawMessage `json:"dropout"`
	UnkToken                json.RawMessage `json:"unk_token"`
	ContinuingSubwordPrefix json.RawMessage `json:"continuing_subword_prefix"`
	EndOfWordSuffix         json.RawMessage `json:"end_of_word_suffix"`
	FuseUnk                 bool            `json:"fuse_unk"`
	ByteFallback            bool            `json:"byte_fallback"`
	IgnoreMerges            bool            `json:"ignore_merges"`
	Vocab                   map[string]int  `json:"vocab"`
	Merges                  json.RawMessage `json:"merges"`
}

// MergePairs decodes the model's merge list. Both serializations are
// accepted: the flat `"left right"` strings older emitters write, and the
// `["left", "right"]` pair arrays newer ones do.
func (model *BPEModel) MergePairs() ([][2]string, error) {
	if len(model.Merges) == 0 {
		return nil, nil
	}
	var pairs [][2]string
	if pairErr := json.Unmarshal(model.Merges, &pairs); pairErr == nil {
		return pairs, nil
	}
	var flat []string
	if flatErr := json.Unmarshal(model.Merges, &flat); flatErr != nil {
		return nil, errors.New(
			fmt.Sprintf("cannot decode merges: %s", flatErr))
	}
	pairs = make([][2]string, 0, len(flat))
	for idx, merge := range flat {
		var pair [2]string
		if _, scanErr := fmt.Sscanf(merge, "%s %s",
			&pair[0], &pair[1]); scanErr != nil {
			return nil, errors.New(
				fmt.Sprintf("cannot decode merge %d: `%s`", idx, merge))
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// AddedTokenConfig is the value shape of `added_tokens_decoder` entries in
// tokenizer_config.json. There the id is the map key, not a field.
type AddedTokenConfig struct {
	Content    string `json:"content"`
	LStrip     bool   `json:"lstrip"`
	Normalized bool   `json:"normalized"`
	RStrip     bool   `json:"rstrip"`
	SingleWord bool   `json:"single_word"`
	Special    bool   `json:"special"`
}

type TokenizerConfig struct {
	AddedTokensDecoder map[string]AddedTokenConfig `json:"added_tokens_decoder"`
	BosToken           *string                     `json:"bos_token,omitempty"`
	CleanUpSpaces      bool                        `json:"clean_up_tokenization_spaces"`
	EosToken           *string                     `json:"eos_token,omitempty"`
	ModelMaxLength     json.Number                 `json:"model_max_length"`
	PadToken           *string                     `json:"pad_token,omitempty"`
	TokenizerClass     string                      `json:"tokenizer_class"`
	UnkToken           *string                     `json:"unk_token,omitempty"`
}

type SpecialTokensMap struct {
	AdditionalSpecialTokens []string `json:"additional_special_tokens"`
	BosToken                *string  `json:"bos_token,omitempty"`
	EosToken                *string  `json:"eos_token,omitempty"`
	PadToken                *string  `json:"pad_token,omitempty"`
	UnkToken                *string  `json:"unk_token,omitempty"`
}
