package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Encoding names understood by NewTikToken.
const (
	EncodingCL100kBase = "cl100k_base"
	EncodingP50kBase   = "p50k_base"
	EncodingR50kBase   = "r50k_base"
)

// encodingInfo holds the sizes tiktoken-go does not expose.
var encodingInfo = map[string]struct {
	vocab int
	eos   int32
}{
	EncodingCL100kBase: {vocab: 100256, eos: 100257},
	EncodingP50kBase:   {vocab: 50281, eos: 50256},
	EncodingR50kBase:   {vocab: 50257, eos: 50256},
}

// TikToken wraps the pkoukk/tiktoken-go library.
//
// Loading an encoding fetches its rank file on first use unless
// TIKTOKEN_CACHE_DIR points at a populated cache.
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken creates a tokenizer for the named encoding.
func NewTikToken(encodingName string) (*TikToken, error) {
	if _, ok := encodingInfo[encodingName]; !ok {
		return nil, fmt.Errorf("unsupported tiktoken encoding %q", encodingName)
	}
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: encoding, name: encodingName}, nil
}

// Encode converts text to token IDs. Special-token text is encoded as
// ordinary text.
func (t *TikToken) Encode(text string) ([]int32, error) {
	tokens := t.encoding.Encode(text, nil, nil)

	result := make([]int32, len(tokens))
	for i, tok := range tokens {
		result[i] = int32(tok) //nolint:gosec // G115: vocab size < 2^31.
	}
	return result, nil
}

// Decode converts token IDs back to text.
func (t *TikToken) Decode(tokens []int32) (string, error) {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		if tok < 0 {
			return "", fmt.Errorf("decode: negative token id %d at %d", tok, i)
		}
		ids[i] = int(tok)
	}
	return t.encoding.Decode(ids), nil
}

// VocabSize returns the number of ordinary tokens of the encoding.
func (t *TikToken) VocabSize() int {
	return encodingInfo[t.name].vocab
}

// EosToken returns the <|endoftext|> id.
func (t *TikToken) EosToken() int32 {
	return encodingInfo[t.name].eos
}

// IsSpecialToken reports whether token is outside the ordinary vocabulary.
func (t *TikToken) IsSpecialToken(token int32) bool {
	return token == t.EosToken() || int(token) >= t.VocabSize()
}

// Name returns the encoding name.
func (t *TikToken) Name() string {
	return t.name
}
