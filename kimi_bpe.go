package kimi_bpe

import (
	"fmt"
	"log"
	"sort"

	"github.com/wbrown/kimi_bpe/resources"
)

const ENCODING_NAME = "kimi_k2"

// SPLIT_REGEX is the pre-tokenization rule for the Kimi K2 family. It is a
// fixed constant of the encoding; tokenization boundaries depend on it being
// reproduced byte for byte.
const SPLIT_REGEX = `'(?:[sdmt]|ll|ve|re)|[^\r\n\p{L}\p{N}]?[\p{L}]+` +
	`|\p{N}{1,3}| ?[^\s\p{L}\p{N}]+[\r\n]*|\s*[\r\n]+|\s+(?!\S)|\s+`

const REGEX_ERROR = "kimi_bpe: Fatal error compiling regular expression: %v"

// Reserved token ids for the Kimi K2 family. The ids sit above the merge
// ranks, and the numbering is gapped on purpose; ids are reproduced verbatim,
// gaps included, never renumbered.
var kimiSpecialTokens = map[string]int{
	"[BOS]":                        163584,
	"[EOS]":                        163585,
	"<|im_end|>":                   163586,
	"<|im_user|>":                  163587,
	"<|im_assistant|>":             163588,
	"<|start_header_id|>":          163590,
	"<|end_header_id|>":            163591,
	"[EOT]":                        163593,
	"<|im_system|>":                163594,
	"<|tool_calls_section_begin|>": 163595,
	"<|tool_calls_section_end|>":   163596,
	"<|tool_call_begin|>":          163597,
	"<|tool_call_argument_begin|>": 163598,
	"<|tool_call_end|>":            163599,
	"<|im_middle|>":                163601,
	"[UNK]":                        163838,
	"[PAD]":                        163839,
}

// SpecialTokens returns a copy of the reserved token table, so callers can
// annotate their own copy without touching the canonical one.
func SpecialTokens() map[string]int {
	specials := make(map[string]int, len(kimiSpecialTokens))
	for content, id := range kimiSpecialTokens {
		specials[content] = id
	}
	return specials
}

// SpecialTokensArr returns the reserved token strings ordered by id.
func SpecialTokensArr() []string {
	contents := make([]string, 0, len(kimiSpecialTokens))
	for content := range kimiSpecialTokens {
		contents = append(contents, content)
	}
	sort.Slice(contents, func(i, j int) bool {
		return kimiSpecialTokens[contents[i]] < kimiSpecialTokens[contents[j]]
	})
	return contents
}

// RankOrigin says which source a spec's rank table came from.
type RankOrigin int

const (
	RanksFromModel RankOrigin = iota
	RanksFromFallback
)

// RankSource records how a rank table was resolved. When the model file does
// not parse, the table is substituted from a base encoding and the parse
// failure is carried here instead of being surfaced as an error.
type RankSource struct {
	Origin   RankOrigin
	Path     string
	Fallback string
	Err      error
}

// TokenizerSpec is the complete input to the fast-tokenizer builder: the
// encoding name, the split pattern, the merge ranks, and the reserved token
// table. It is assembled once and not mutated afterward.
type TokenizerSpec struct {
	Name         string
	SplitPattern string
	Ranks        resources.MergeRanks
	Specials     map[string]int
	Source       RankSource
}

// ResolutionError is returned when neither the model file nor the fallback
// encoding yields a rank table. It is the only fatal outcome of BuildSpec.
type ResolutionError struct {
	Path        string
	Fallback    string
	ModelErr    error
	FallbackErr error
}

func (resErr *ResolutionError) Error() string {
	return fmt.Sprintf(
		"cannot resolve a rank table: `%s` failed (%s), fallback `%s` "+
			"failed (%s)", resErr.Path, resErr.ModelErr, resErr.Fallback,
		resErr.FallbackErr)
}

// BuildSpec assembles a TokenizerSpec from a tiktoken model file. A model
// file that does not parse is not an error: the rank table of
// fallbackEncoding is substituted and the degradation is recorded in the
// returned Source. Only when the fallback cannot be resolved either does
// BuildSpec fail, with a ResolutionError.
func BuildSpec(modelPath string,
	fallbackEncoding string) (*TokenizerSpec, error) {
	source := RankSource{
		Origin: RanksFromModel,
		Path:   modelPath,
	}
	ranks, parseErr := resources.LoadTiktokenRanks(modelPath)
	if parseErr != nil {
		log.Printf("Failed to load %s directly: %s. Using base encoding "+
			"%s...", modelPath, parseErr, fallbackEncoding)
		fallbackRanks, fallbackErr := resources.ResolveBaseEncoding(
			fallbackEncoding)
		if fallbackErr != nil {
			return nil, &ResolutionError{
				Path:        modelPath,
				Fallback:    fallbackEncoding,
				ModelErr:    parseErr,
				FallbackErr: fallbackErr,
			}
		}
		ranks = fallbackRanks
		source = RankSource{
			Origin:   RanksFromFallback,
			Path:     modelPath,
			Fallback: fallbackEncoding,
			Err:      parseErr,
		}
	}
	return &TokenizerSpec{
		Name:         ENCODING_NAME,
		SplitPattern: SPLIT_REGEX,
		Ranks:        ranks,
		Specials:     SpecialTokens(),
		Source:       source,
	}, nil
}
