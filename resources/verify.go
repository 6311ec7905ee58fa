package resources

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dlclark/regexp2"
)

// VerificationReport is the result of re-opening a persisted fast tokenizer
// and checking it against the tables it was built from. An empty Problems
// list means the artifact is a usable fast tokenizer.
type VerificationReport struct {
	VocabSize   int
	MergeCount  int
	AddedTokens int
	Problems    []string
}

// Fast reports whether the artifact passed every check.
func (report *VerificationReport) Fast() bool {
	return len(report.Problems) == 0
}

func (report *VerificationReport) addProblem(format string,
	args ...interface{}) {
	report.Problems = append(report.Problems, fmt.Sprintf(format, args...))
}

// LoadFastTokenizer reads tokenizer.json back from an output directory.
func LoadFastTokenizer(dir string) (*FastTokenizer, error) {
	data, readErr := os.ReadFile(filepath.Join(dir, "tokenizer.json"))
	if readErr != nil {
		return nil, readErr
	}
	var artifact FastTokenizer
	if jsonErr := json.Unmarshal(data, &artifact); jsonErr != nil {
		return nil, errors.New(
			fmt.Sprintf("cannot unmarshal `tokenizer.json`: %s", jsonErr))
	}
	return &artifact, nil
}

// VerifyFastTokenizer re-opens the artifact in dir and checks that it still
// expresses the given rank table, special tokens, and split pattern. All
// findings are diagnostics; nothing here aborts a conversion.
func VerifyFastTokenizer(dir string, ranks MergeRanks,
	specials map[string]int, splitPattern string) *VerificationReport {
	report := &VerificationReport{}
	artifact, loadErr := LoadFastTokenizer(dir)
	if loadErr != nil {
		report.addProblem("cannot load artifact: %s", loadErr)
		return report
	}

	if artifact.Model == nil {
		report.addProblem("artifact has no model")
		return report
	}
	if artifact.Model.Type != "BPE" {
		report.addProblem("model type is `%s`, expected `BPE`",
			artifact.Model.Type)
	}

	report.VocabSize = len(artifact.Model.Vocab)
	if len(artifact.Model.Vocab) != len(ranks) {
		report.addProblem("vocab has %d entries, rank table has %d",
			len(artifact.Model.Vocab), len(ranks))
	} else {
		for token, rank := range ranks {
			if artifact.Model.Vocab[TokenBytesToUnicode(token)] != rank {
				report.addProblem("vocab entry for rank %d does not match "+
					"the rank table", rank)
				break
			}
		}
	}

	mergePairs, mergesErr := artifact.Model.MergePairs()
	if mergesErr != nil {
		report.addProblem("%s", mergesErr)
	} else {
		report.MergeCount = len(mergePairs)
		if expected := len(RecoverMerges(ranks)); len(mergePairs) != expected {
			report.addProblem("artifact has %d merges, rank table "+
				"implies %d", len(mergePairs), expected)
		}
	}

	report.AddedTokens = len(artifact.AddedTokens)
	addedIds := make(map[string]int, len(artifact.AddedTokens))
	for _, added := range artifact.AddedTokens {
		addedIds[added.Content] = added.ID
	}
	for content, id := range specials {
		artifactId, present := addedIds[content]
		if !present {
			report.addProblem("special `%s` missing from added_tokens",
				content)
		} else if artifactId != id {
			report.addProblem("special `%s` has id %d, expected %d",
				content, artifactId, id)
		}
	}

	pattern := ""
	if artifact.PreTokenizer != nil {
		for _, step := range artifact.PreTokenizer.PreTokenizers {
			if step.Type == "Split" && step.Pattern != nil {
				pattern = step.Pattern.Regex
				break
			}
		}
	}
	if pattern == "" {
		report.addProblem("artifact has no Split pre-tokenizer pattern")
	} else {
		if pattern != splitPattern {
			report.addProblem("persisted split pattern differs from the " +
				"source pattern")
		}
		if _, patternErr := regexp2.Compile(pattern,
			regexp2.None); patternErr != nil {
			report.addProblem("split pattern does not compile: %s",
				patternErr)
		}
	}

	if artifact.Decoder == nil || artifact.Decoder.Type != "ByteLevel" {
		report.addProblem("artifact does not decode at the byte level")
	}

	return report
}
