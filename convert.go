package kimi_bpe

import (
	"log"

	"github.com/wbrown/kimi_bpe/resources"
)

// ConversionResult is what a completed conversion hands back: the assembled
// spec, a compiled codec for it, the artifact paths written, and the
// verification outcome. Verification findings are advisory; a conversion
// with problems still returns a result.
type ConversionResult struct {
	Spec      *TokenizerSpec
	Codec     *Codec
	OutputDir string
	Files     []string
	Verified  bool
	Problems  []string
}

// Convert
// Runs the full conversion: assemble a TokenizerSpec from the model file
// (falling back to fallbackEncoding if it does not parse), compile a codec,
// write the fast-tokenizer artifact set into outputDir, and verify the
// persisted artifact. Failures are returned rather than logged and
// swallowed, so callers decide what a failed batch run looks like. Partial
// artifacts are left in place on failure.
func Convert(modelPath string, outputDir string,
	fallbackEncoding string) (*ConversionResult, error) {
	spec, specErr := BuildSpec(modelPath, fallbackEncoding)
	if specErr != nil {
		return nil, specErr
	}
	codec, codecErr := NewCodec(spec)
	if codecErr != nil {
		return nil, codecErr
	}
	log.Printf("Successfully created encoding object: %s", spec.Name)
	log.Printf("Number of special tokens: %d", len(spec.Specials))
	log.Printf("Number of BPE ranks: %d", len(spec.Ranks))

	files, writeErr := resources.WriteFastTokenizer(outputDir, spec.Ranks,
		spec.Specials, spec.SplitPattern)
	if writeErr != nil {
		return nil, writeErr
	}
	log.Printf("Conversion completed! Fast tokenizer saved to %s", outputDir)

	report := resources.VerifyFastTokenizer(outputDir, spec.Ranks,
		spec.Specials, spec.SplitPattern)
	if report.Fast() {
		log.Print("Verification: Fast tokenizer is valid")
	} else {
		log.Print("Verification: Fast tokenizer is invalid")
		for _, problem := range report.Problems {
			log.Printf("Verification problem: %s", problem)
		}
	}
	return &ConversionResult{
		Spec:      spec,
		Codec:     codec,
		OutputDir: outputDir,
		Files:     files,
		Verified:  report.Fast(),
		Problems:  report.Problems,
	}, nil
}
