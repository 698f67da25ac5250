package preprocess

import "strings"

// normalize squeezes all whitespace runs to single spaces and trims the ends.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitSentences cuts normalized text on sentence terminators, keeping the
// terminator with its sentence. Text with no terminator is one sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '?' || r == '!' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if start < len(text) {
		if s := strings.TrimSpace(text[start:]); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 && text != "" {
		sentences = append(sentences, text)
	}
	return sentences
}

// tokenize lowercases words and strips surrounding punctuation. Words that
// are nothing but punctuation are dropped.
func tokenize(text string) []string {
	var tokens []string
	for _, word := range strings.Fields(text) {
		token := strings.ToLower(strings.TrimFunc(word, isPunct))
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func isPunct(r rune) bool {
	return !('a' <= r && r <= 'z') && !('A' <= r && r <= 'Z') &&
		!('0' <= r && r <= '9') && r < 0x80
}
