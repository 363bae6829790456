// Package tokens estimates prompt sizes with tiktoken encodings.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Chat overhead per message, following OpenAI's accounting for gpt-4 class models.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
	assistantPriming = 3
)

// Estimator counts tokens for gateway model identifiers. OpenRouter models
// are vendor-prefixed ("openai/gpt-4o"); non-OpenAI models are approximated
// with o200k_base.
type Estimator struct {
	// codecCache caches tokenizer codecs by encoding name
	codecCache map[tokenizer.Encoding]tokenizer.Codec
	cacheMu    sync.RWMutex
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// CountText counts tokens for a plain text string.
func (e *Estimator) CountText(model, text string) (int, error) {
	codec, err := e.getCodec(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("encode text: %w", err)
	}
	return len(ids), nil
}

// CountPrompt estimates the input tokens of a system+user chat request.
func (e *Estimator) CountPrompt(model, system, user string) (int, error) {
	total := assistantPriming
	for _, text := range []string{system, user} {
		n, err := e.CountText(model, text)
		if err != nil {
			return 0, err
		}
		total += tokensPerMessage + tokensPerRole + n
	}
	return total, nil
}

func (e *Estimator) getCodec(model string) (tokenizer.Codec, error) {
	encoding := modelToEncoding(BaseModel(model))

	e.cacheMu.RLock()
	if cached, ok := e.codecCache[encoding]; ok {
		e.cacheMu.RUnlock()
		return cached, nil
	}
	e.cacheMu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	e.cacheMu.Lock()
	e.codecCache[encoding] = codec
	e.cacheMu.Unlock()

	return codec, nil
}

// BaseModel strips the vendor prefix and any ":variant" suffix from a gateway
// model id: "openai/gpt-4o:free" -> "gpt-4o".
func BaseModel(model string) string {
	model = strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	if i := strings.Index(model, ":"); i >= 0 {
		model = model[:i]
	}
	return model
}

// modelToEncoding maps model names to encodings.
//
// - O200kBase: GPT-4o, GPT-4.1, GPT-5, o-series, and unknown models
// - Cl100kBase: GPT-4, GPT-3.5-turbo, text-embedding
func modelToEncoding(model string) tokenizer.Encoding {
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"), strings.HasPrefix(model, "gpt-5"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	case strings.HasPrefix(model, "text-embedding"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}
