package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/wbrown/kimi_bpe/resources"
)

func main() {
	encodingId := flag.String("encoding", "",
		"base encoding name, rank-table URL, or path to fetch")
	allEncodings := flag.Bool("all", false,
		"fetch every known base encoding into the cache")
	destPath := flag.String("dest", "",
		"where to download the rank tables to, instead of the cache")
	flag.Parse()
	if *encodingId == "" && !*allEncodings {
		flag.Usage()
		log.Fatal("Must provide -encoding or -all")
	}
	if *destPath != "" {
		os.Setenv("KIMI_BPE_CACHE_DIR", *destPath)
	}

	names := []string{*encodingId}
	if *allEncodings {
		names = resources.KnownBaseEncodings()
	}
	for _, name := range names {
		path, fetchErr := resources.FetchEncoding(name)
		if fetchErr != nil {
			// Not a known name, try it as a URL or path.
			path, fetchErr = resources.Fetch(name)
		}
		if fetchErr != nil {
			log.Fatalf("Error fetching encoding %s: %s", name, fetchErr)
		}
		fmt.Printf("%s: %s\n", name, path)
	}
}
