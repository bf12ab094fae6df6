package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/DeafMist/hotel-radar/internal/models"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "to": {}, "in": {}, "for": {},
	"and": {}, "of": {}, "at": {}, "by": {}, "on": {}, "with": {},
	"de": {}, "du": {}, "la": {}, "le": {}, "les": {}, "des": {},
	"и": {}, "в": {}, "на": {}, "с": {}, "по": {}, "к": {},
}

// DedupKey identifies a hotel within one result set.
func DedupKey(name, address string) string {
	return strings.ToLower(name) + "_" + strings.ToLower(address)
}

// DedupRecords drops later records whose DedupKey was already seen.
func DedupRecords(records []models.DiscoveryRecord) []models.DiscoveryRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.DiscoveryRecord, 0, len(records))
	for _, r := range records {
		key := DedupKey(r.Name, r.Address)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// RemoveURLs removes all URLs from the input text.
func RemoveURLs(input string) string {
	return urlRegex.ReplaceAllString(input, " ")
}

// CleanText strips HTML entities, punctuation, squeezes whitespace, and removes URLs.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = RemoveURLs(decoded)
	decoded = punctuation.ReplaceAllString(decoded, " ")
	decoded = whitespace.ReplaceAllString(decoded, " ")
	return strings.TrimSpace(decoded)
}

// ExtractKeywords returns the most frequent words that are not stop-words.
func ExtractKeywords(text string, limit, minLen int) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(token)) < minLen {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		freq[token]++
	}

	if len(freq) == 0 {
		return nil
	}

	type kv struct {
		word  string
		count int
	}

	pairs := make([]kv, 0, len(freq))
	for word, count := range freq {
		pairs = append(pairs, kv{word: word, count: count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count == pairs[j].count {
			return pairs[i].word < pairs[j].word
		}
		return pairs[i].count > pairs[j].count
	})

	n := limit
	if n <= 0 || n > len(pairs) {
		n = len(pairs)
	}

	keywords := make([]string, 0, n)
	for i := 0; i < n; i++ {
		keywords = append(keywords, pairs[i].word)
	}
	return keywords
}

// BuildDocumentID derives a stable snapshot ID from the search and the place.
func BuildDocumentID(searchID, placeID string) string {
	s := sha1.Sum([]byte(searchID + "|" + placeID))
	return hex.EncodeToString(s[:])
}

// HotelKeywords extracts search keywords from a matched hotel's descriptive fields.
func HotelKeywords(h models.MatchedHotel, limit, minLen int) []string {
	parts := make([]string, 0, len(h.Facilities)+2)
	parts = append(parts, h.Name, h.Address)
	parts = append(parts, h.Facilities...)
	return ExtractKeywords(strings.Join(parts, " "), limit, minLen)
}
