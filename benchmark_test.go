package kimi_bpe

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const benchParagraph = "The quick brown fox jumps over the lazy dog 123 " +
	"times, and we'll measure how fast the codec keeps up.  Reserved " +
	"tokens like [BOS] and <|im_end|> ride along, as do\nnewlines and " +
	"uneven   spacing.\n"

func benchCorpus() string {
	var corpus strings.Builder
	corpus.Grow(len(benchParagraph) * 2048)
	for i := 0; i < 2048; i++ {
		corpus.WriteString(benchParagraph)
	}
	return corpus.String()
}

func BenchmarkCodec_Encode(b *testing.B) {
	b.StopTimer()
	corpus := benchCorpus()
	codec, codecErr := NewCodec(toySpec())
	if codecErr != nil {
		b.Error(codecErr)
	}

	start := time.Now()
	b.StartTimer()
	tokenCt := len(*codec.Encode(&corpus))
	b.StopTimer()
	elapsed := time.Since(start)
	b.ReportMetric(float64(len(corpus))/elapsed.Seconds(), "bytes/sec")
	b.ReportMetric(float64(tokenCt)/elapsed.Seconds(), "tokens/sec")
	b.ReportMetric(float64(tokenCt), "tokens")
	b.ReportMetric(float64(codec.LruHits), "lru_hits")
	b.ReportMetric(float64(codec.LruMisses), "lru_misses")
}

func BenchmarkCodec_Decode(b *testing.B) {
	b.StopTimer()
	corpus := benchCorpus()
	encoded := toyCodec.Encode(&corpus)

	start := time.Now()
	b.StartTimer()
	textNumBytes := len(toyCodec.Decode(encoded))
	b.StopTimer()
	elapsed := time.Since(start)
	b.Logf("%v tokens into %v bytes over %v",
		len(*encoded), textNumBytes, elapsed)
	b.ReportMetric(float64(len(*encoded))/elapsed.Seconds(), "tokens/sec")
	b.ReportMetric(float64(textNumBytes)/elapsed.Seconds(), "bytes/sec")
}

func BenchmarkCodec_SplitChunks(b *testing.B) {
	b.StopTimer()
	corpus := benchCorpus()

	start := time.Now()
	b.StartTimer()
	chunkCt := len(toyCodec.splitChunks(corpus))
	b.StopTimer()
	elapsed := time.Since(start)
	b.ReportMetric(float64(chunkCt)/elapsed.Seconds(), "chunks/sec")
	b.ReportMetric(float64(chunkCt), "chunks")
	b.ReportMetric(float64(len(corpus))/elapsed.Seconds(), "bytes/sec")
}

func BenchmarkBuildSpec(b *testing.B) {
	b.StopTimer()
	modelPath := filepath.Join(b.TempDir(), "tiktoken.model")
	buildRankFile(modelPath, kimiRankCount)

	start := time.Now()
	b.StartTimer()
	spec, specErr := BuildSpec(modelPath, "cl100k_base")
	b.StopTimer()
	if specErr != nil {
		b.Error(specErr)
	}
	elapsed := time.Since(start)
	b.ReportMetric(float64(len(spec.Ranks))/elapsed.Seconds(), "ranks/sec")
	b.ReportMetric(float64(len(spec.Ranks)), "ranks")
}
