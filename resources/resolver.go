package resources

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// WriteCounter counts the number of bytes written to it, and every 10 seconds,
// it prints a message reporting the number of bytes written so far.
type WriteCounter struct {
	Total    uint64
	Last     time.Time
	Reported bool
	Path     string
	Size     uint64
}

func (wc *WriteCounter) Write(p []byte) (int, error) {
	n := len(p)
	wc.Total += uint64(n)
	if time.Now().Sub(wc.Last).Seconds() > 10 {
		wc.Reported = true
		wc.Last = time.Now()
		log.Print(fmt.Sprintf("Downloading %s... %s / %s completed.",
			wc.Path, humanize.Bytes(wc.Total), humanize.Bytes(wc.Size)))
	}
	return n, nil
}

const encodingBaseURL = "https://openaipublic.blob.core.windows.net/encodings/"

// Published rank tables for the known base encodings, keyed by the encoding
// names the tiktoken registry uses. p50k_edit shares p50k_base's table.
var baseEncodingURLs = map[string]string{
	tiktoken.MODEL_CL100K_BASE: encodingBaseURL + "cl100k_base.tiktoken",
	tiktoken.MODEL_O200K_BASE:  encodingBaseURL + "o200k_base.tiktoken",
	tiktoken.MODEL_P50K_BASE:   encodingBaseURL + "p50k_base.tiktoken",
	tiktoken.MODEL_P50K_EDIT:   encodingBaseURL + "p50k_base.tiktoken",
	tiktoken.MODEL_R50K_BASE:   encodingBaseURL + "r50k_base.tiktoken",
}

// The offline loader carries embedded copies of the common encoding
// dictionaries, so resolving a fallback does not require network access.
var offlineLoader = tiktoken_loader.NewOfflineLoader()

// KnownBaseEncodings returns the names this package can resolve as fallback
// encodings, sorted.
func KnownBaseEncodings() []string {
	names := make([]string, 0, len(baseEncodingURLs))
	for name := range baseEncodingURLs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EncodingCacheDir returns the directory downloaded rank tables are cached
// in, creating it if needed. KIMI_BPE_CACHE_DIR overrides the default of
// `kimi_bpe/encodings` under the user cache directory.
func EncodingCacheDir() (string, error) {
	dir := os.Getenv("KIMI_BPE_CACHE_DIR")
	if dir == "" {
		userCache, cacheErr := os.UserCacheDir()
		if cacheErr != nil {
			return "", cacheErr
		}
		dir = filepath.Join(userCache, "kimi_bpe", "encodings")
	}
	if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
		return "", mkErr
	}
	return dir, nil
}

func isValidUrl(toTest string) bool {
	_, err := url.ParseRequestURI(toTest)
	if err != nil {
		return false
	}

	u, err := url.Parse(toTest)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}

	return true
}

// FetchHTTP
// Fetch a resource from a remote HTTP server with bearer token auth.
func FetchHTTP(uri string, auth string) (io.ReadCloser, error) {
	req, reqErr := http.NewRequest("GET", uri, nil)
	if reqErr != nil {
		return nil, reqErr
	}
	if auth != "" {
		req.Header.Add("Authorization", "Bearer "+auth)
	}
	resp, remoteErr := http.DefaultClient.Do(req)
	if remoteErr != nil {
		return nil, remoteErr
	}
	if resp.StatusCode != 200 {
		resp.Body.Close()
		return nil, errors.New(fmt.Sprintf("HTTP status code %d",
			resp.StatusCode))
	}
	return resp.Body, nil
}

// SizeHTTP
// Get the size of a resource from a remote HTTP server with bearer token
// auth. Servers that do not answer HEAD report a size of zero.
func SizeHTTP(uri string, auth string) (uint64, error) {
	req, reqErr := http.NewRequest("HEAD", uri, nil)
	if reqErr != nil {
		return 0, reqErr
	}
	if auth != "" {
		req.Header.Add("Authorization", "Bearer "+auth)
	}
	resp, remoteErr := http.DefaultClient.Do(req)
	if remoteErr != nil {
		return 0, remoteErr
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return 0, errors.New(fmt.Sprintf("HTTP status code %d",
			resp.StatusCode))
	}
	size, _ := strconv.ParseUint(resp.Header.Get("Content-Length"), 10, 64)
	return size, nil
}

// cachedMatches reports whether targetPath already holds the resource at
// uri: the cached file must exist, be non-empty, and match the remote size
// when a HEAD request answers. An unanswered HEAD trusts the cache, so
// resolution stays offline once warm.
func cachedMatches(targetPath string, uri string, auth string) bool {
	targetStat, statErr := os.Stat(targetPath)
	if statErr != nil || targetStat.Size() == 0 {
		return false
	}
	remoteSize, sizeErr := SizeHTTP(uri, auth)
	if sizeErr != nil || remoteSize == 0 {
		return true
	}
	return uint64(targetStat.Size()) == remoteSize
}

// downloadURL fetches uri into targetPath, reporting progress through a
// WriteCounter. The transfer is staged in a companion `-partial` file that
// is renamed into place only when the copy completes, so an interrupted
// download never occupies the cache slot.
func downloadURL(uri string, targetPath string, auth string) error {
	remoteSize, _ := SizeHTTP(uri, auth)
	reader, fetchErr := FetchHTTP(uri, auth)
	if fetchErr != nil {
		return fetchErr
	}
	defer reader.Close()
	partialPath := targetPath + "-partial"
	targetFile, openErr := os.OpenFile(partialPath,
		os.O_TRUNC|os.O_RDWR|os.O_CREATE, 0644)
	if openErr != nil {
		return errors.New(
			fmt.Sprintf("error opening '%s' for write: %s",
				partialPath, openErr))
	}
	counter := &WriteCounter{
		Last: time.Now(),
		Path: uri,
		Size: remoteSize,
	}
	bytesDownloaded, ioErr := io.Copy(targetFile,
		io.TeeReader(reader, counter))
	if ioErr != nil {
		targetFile.Close()
		os.Remove(partialPath)
		return errors.New(
			fmt.Sprintf("error downloading '%s': %s", uri, ioErr))
	}
	if closeErr := targetFile.Close(); closeErr != nil {
		os.Remove(partialPath)
		return closeErr
	}
	if renameErr := os.Rename(partialPath, targetPath); renameErr != nil {
		os.Remove(partialPath)
		return renameErr
	}
	log.Println(fmt.Sprintf("Downloaded %s... %s completed.", uri,
		humanize.Bytes(uint64(bytesDownloaded))))
	return nil
}

// fetchEncodingURL resolves a published rank-table URL to a cached local
// path, downloading it on the first use. A cached file is revalidated
// against the remote size before it is reused, so a table interrupted
// mid-download does not get served from the cache.
func fetchEncodingURL(uri string) (string, error) {
	if !isValidUrl(uri) {
		return "", errors.New(
			fmt.Sprintf("`%s` is neither a local file nor a URL", uri))
	}
	cacheDir, cacheErr := EncodingCacheDir()
	if cacheErr != nil {
		return "", cacheErr
	}
	targetPath := filepath.Join(cacheDir, path.Base(uri))
	if cachedMatches(targetPath, uri, "") {
		return targetPath, nil
	}
	log.Printf("Resolving %s...", uri)
	if dlErr := downloadURL(uri, targetPath, ""); dlErr != nil {
		return "", dlErr
	}
	return targetPath, nil
}

// FetchEncoding returns a local path holding the rank table for a known base
// encoding, downloading it into the cache if necessary.
func FetchEncoding(name string) (string, error) {
	vocabURL, known := baseEncodingURLs[name]
	if !known {
		return "", errors.New(
			fmt.Sprintf("unknown base encoding `%s`, have: %v",
				name, KnownBaseEncodings()))
	}
	return fetchEncodingURL(vocabURL)
}

// urlCachePath returns the cache slot for an arbitrary URL. The basename is
// prefixed with a digest of the full URL, so model files from different
// repositories that share a name do not collide in the flat cache.
func urlCachePath(cacheDir string, uri string) string {
	digest := sha256.Sum256([]byte(uri))
	return filepath.Join(cacheDir,
		fmt.Sprintf("%x-%s", digest[:8], path.Base(uri)))
}

// Fetch resolves a model file reference to a local path. Local paths are
// returned as-is; URLs are downloaded into the cache, with HF_API_TOKEN
// passed as a bearer token for gated repositories.
func Fetch(uriOrPath string) (string, error) {
	if !isValidUrl(uriOrPath) {
		if _, statErr := os.Stat(uriOrPath); statErr != nil {
			return "", statErr
		}
		return uriOrPath, nil
	}
	cacheDir, cacheErr := EncodingCacheDir()
	if cacheErr != nil {
		return "", cacheErr
	}
	auth := os.Getenv("HF_API_TOKEN")
	targetPath := urlCachePath(cacheDir, uriOrPath)
	if cachedMatches(targetPath, uriOrPath, auth) {
		return targetPath, nil
	}
	if dlErr := downloadURL(uriOrPath, targetPath, auth); dlErr != nil {
		return "", dlErr
	}
	return targetPath, nil
}

// ResolveBaseEncoding resolves a base encoding name to its rank table. The
// embedded offline dictionaries are tried first; encodings they do not carry
// are fetched from the published tables and parsed.
func ResolveBaseEncoding(name string) (MergeRanks, error) {
	vocabURL, known := baseEncodingURLs[name]
	if !known {
		return nil, errors.New(
			fmt.Sprintf("unknown base encoding `%s`, have: %v",
				name, KnownBaseEncodings()))
	}
	if ranks, offlineErr := offlineLoader.LoadTiktokenBpe(
		vocabURL); offlineErr == nil {
		return MergeRanks(ranks), nil
	}
	cachedPath, fetchErr := fetchEncodingURL(vocabURL)
	if fetchErr != nil {
		return nil, errors.New(
			fmt.Sprintf("cannot retrieve `%s` from `%s`: %s",
				name, vocabURL, fetchErr))
	}
	return LoadTiktokenRanks(cachedPath)
}
