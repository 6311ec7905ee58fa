package main

import (
	"flag"
	"log"

	"github.com/wbrown/kimi_bpe"
	"github.com/wbrown/kimi_bpe/resources"
)

func main() {
	modelPath := flag.String("model", "tiktoken.model",
		"path or URL of the tiktoken model file to convert")
	outputDir := flag.String("output", "./",
		"directory to write the fast tokenizer into")
	fallbackEncoding := flag.String("fallback", "cl100k_base",
		"base encoding to substitute if the model file does not load")
	noVerify := flag.Bool("no-verify", false,
		"skip re-loading the persisted artifact for verification")
	flag.Parse()

	if *modelPath == "" {
		flag.Usage()
		log.Fatal("Must provide -model")
	}
	if *outputDir == "" {
		flag.Usage()
		log.Fatal("Must provide -output")
	}
	if *fallbackEncoding == "" {
		flag.Usage()
		log.Fatal("Must provide -fallback")
	}

	// URLs are downloaded into the cache first. An unresolvable model is
	// not fatal here; BuildSpec applies the fallback-encoding policy.
	resolvedModel, fetchErr := resources.Fetch(*modelPath)
	if fetchErr != nil {
		resolvedModel = *modelPath
	}

	if *noVerify {
		spec, specErr := kimi_bpe.BuildSpec(resolvedModel,
			*fallbackEncoding)
		if specErr != nil {
			log.Fatalf("Conversion failed: %s", specErr)
		}
		log.Printf("Number of special tokens: %d", len(spec.Specials))
		log.Printf("Number of BPE ranks: %d", len(spec.Ranks))
		files, writeErr := resources.WriteFastTokenizer(*outputDir,
			spec.Ranks, spec.Specials, spec.SplitPattern)
		if writeErr != nil {
			log.Fatalf("Conversion failed: %s", writeErr)
		}
		log.Printf("Conversion completed! Fast tokenizer saved to %s",
			*outputDir)
		for _, file := range files {
			log.Printf("Wrote %s", file)
		}
		return
	}

	result, convertErr := kimi_bpe.Convert(resolvedModel, *outputDir,
		*fallbackEncoding)
	if convertErr != nil {
		log.Fatalf("Conversion failed: %s", convertErr)
	}
	for _, file := range result.Files {
		log.Printf("Wrote %s", file)
	}
}
