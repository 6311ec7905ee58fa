package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/wbrown/kimi_bpe"
)

// A REPL for interacting with the `kimi_bpe` tokenizer.

func main() {
	modelPath := flag.String("model", "tiktoken.model",
		"path to the tiktoken model file")
	fallbackEncoding := flag.String("fallback", "cl100k_base",
		"base encoding to substitute if the model file does not load")
	flag.Parse()

	spec, specErr := kimi_bpe.BuildSpec(*modelPath, *fallbackEncoding)
	if specErr != nil {
		log.Fatal(specErr)
	}
	tokenizer, codecErr := kimi_bpe.NewCodec(spec)
	if codecErr != nil {
		log.Fatal(codecErr)
	}
	log.Printf("%s ready: %d tokens", tokenizer.Name, tokenizer.VocabSize())

	reader := bufio.NewReader(os.Stdin)
	// Provide a REPL
	for {
		fmt.Print(">>> ")
		input, err := reader.ReadString('\n')
		if err != nil {
			log.Fatal(err)
		}
		// Remove trailing newline and replace \n with newline.
		input = strings.Replace(input[:len(input)-1], "\\n", "\n", -1)

		tokens := tokenizer.Encode(&input)
		fmt.Printf("%v\n", *tokens)
		for _, token := range *tokens {
			fmt.Printf("|%s", tokenizer.Decoder[token])
		}
		fmt.Printf("\n")
	}
}
