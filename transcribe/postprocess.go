package transcribe

import "strings"

// cannedHallucinations are stock phrases whisper.cpp emits on pure silence
// or noise-only buffers; anything matching exactly (case-insensitive, after
// trimming punctuation) is treated as meaningless output.
var cannedHallucinations = map[string]struct{}{
	"thank you":                   {},
	"thanks for watching":         {},
	"thank you for watching":      {},
	"like and subscribe":          {},
	"bye":                         {},
	"you":                         {},
	"subtitles by the amara.org community": {},
	"[blank_audio]":               {},
	"[silence]":                   {},
}

// isMeaninglessOutput rejects segments that carry no real linguistic
// content: canned hallucination phrases, and text with very few distinct
// characters relative to its length (e.g. "aaaaaaaaaaaa").
func isMeaninglessOutput(text string) bool {
	trimmed := strings.ToLower(strings.Trim(strings.TrimSpace(text), ".,!?"))
	if trimmed == "" {
		return true
	}
	if _, ok := cannedHallucinations[trimmed]; ok {
		return true
	}

	if len(trimmed) > 10 {
		unique := make(map[rune]struct{})
		for _, r := range trimmed {
			if r == ' ' {
				continue
			}
			unique[r] = struct{}{}
		}
		if len(unique) <= 3 {
			return true
		}
	}

	return false
}

// collapseWordRepetition collapses runs of the same word repeated two or
// more times in a row down to a single occurrence ("no no no no" -> "no").
func collapseWordRepetition(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	out := make([]string, 0, len(words))
	i := 0
	for i < len(words) {
		j := i + 1
		for j < len(words) && strings.EqualFold(words[j], words[i]) {
			j++
		}
		out = append(out, words[i])
		i = j
	}
	return strings.Join(out, " ")
}

// collapsePhraseRepetition collapses runs of a repeated short phrase
// (length 2 to 5 words) down to a single occurrence, catching loops like
// "I don't know I don't know I don't know".
func collapsePhraseRepetition(text string) string {
	words := strings.Fields(text)
	if len(words) < 4 {
		return text
	}

	for phraseLen := 5; phraseLen >= 2; phraseLen-- {
		words = collapsePhraseLen(words, phraseLen)
	}
	return strings.Join(words, " ")
}

func collapsePhraseLen(words []string, phraseLen int) []string {
	if len(words) < phraseLen*2 {
		return words
	}

	out := make([]string, 0, len(words))
	i := 0
	for i < len(words) {
		if i+phraseLen*2 <= len(words) && phraseEqual(words, i, i+phraseLen, phraseLen) {
			j := i + phraseLen
			for j+phraseLen <= len(words) && phraseEqual(words, i, j, phraseLen) {
				j += phraseLen
			}
			out = append(out, words[i:i+phraseLen]...)
			i = j
			continue
		}
		out = append(out, words[i])
		i++
	}
	return out
}

func phraseEqual(words []string, a, b, length int) bool {
	for k := 0; k < length; k++ {
		if !strings.EqualFold(words[a+k], words[b+k]) {
			return false
		}
	}
	return true
}

// wordRepetitionRatio returns the fraction of words in text that are not
// the first occurrence of their (lowercased) form. A transcript dominated
// by one repeated word even after collapsing is still suspect.
func wordRepetitionRatio(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}
	seen := make(map[string]int)
	repeated := 0
	for _, w := range words {
		seen[w]++
		if seen[w] > 1 {
			repeated++
		}
	}
	return float64(repeated) / float64(len(words))
}

// CleanSegment applies the full post-processing pipeline (§4.5 step 5) to
// one recognized segment's text, returning the cleaned text and whether it
// should be dropped entirely.
func CleanSegment(text string) (cleaned string, keep bool) {
	if isMeaninglessOutput(text) {
		return "", false
	}

	cleaned = collapseWordRepetition(text)
	cleaned = collapsePhraseRepetition(cleaned)

	if wordRepetitionRatio(cleaned) > 0.7 {
		return "", false
	}

	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "", false
	}
	return cleaned, true
}
