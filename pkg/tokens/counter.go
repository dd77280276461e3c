package tokens

import (
	"fmt"
	"sync"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the BPE encoding used for token counts.
const DefaultEncoding = "cl100k_base"

// DefaultCharsPerToken is roughly what BPE tokenizers produce for English text.
const DefaultCharsPerToken = 4.0

// Counter converts text into a token count.
type Counter interface {
	Count(text string) int
}

var (
	loaderOnce sync.Once

	defaultOnce    sync.Once
	defaultCounter Counter
	defaultErr     error
)

// TiktokenCounter counts tokens with a tiktoken BPE encoding. The encoding
// tables are embedded in the binary, so no network access is needed.
type TiktokenCounter struct {
	encoding string
	mu       sync.Mutex
	enc      *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{encoding: encoding, enc: enc}, nil
}

// Encoding returns the encoding name.
func (c *TiktokenCounter) Encoding() string {
	return c.encoding
}

// Count returns the number of tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.enc.Encode(text, nil, nil))
}

// DefaultCounter returns the shared cl100k_base counter. When the encoding
// cannot be loaded it returns an EstimatingCounter together with the load
// error.
func DefaultCounter() (Counter, error) {
	defaultOnce.Do(func() {
		c, err := NewTiktokenCounter(DefaultEncoding)
		if err != nil {
			defaultCounter, defaultErr = NewEstimatingCounter(), err
			return
		}
		defaultCounter = c
	})
	return defaultCounter, defaultErr
}

// EstimatingCounter approximates token counts from a character ratio.
type EstimatingCounter struct {
	CharsPerToken float64
}

// NewEstimatingCounter creates a counter with the default ratio.
func NewEstimatingCounter() *EstimatingCounter {
	return &EstimatingCounter{CharsPerToken: DefaultCharsPerToken}
}

// Count returns the estimated number of tokens, rounded to the nearest integer.
func (c *EstimatingCounter) Count(text string) int {
	ratio := c.CharsPerToken
	if ratio <= 0 {
		ratio = DefaultCharsPerToken
	}
	runes := utf8.RuneCountInString(text)
	return int(float64(runes)/ratio + 0.5)
}
