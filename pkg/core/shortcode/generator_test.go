package shortcode_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/shortcode"
)

func TestRandom_ProducesCorrectLength(t *testing.T) {
	gen := shortcode.NewRandom()

	for i := 0; i < 1000; i++ {
		assert.Len(t, gen.Generate(), shortcode.Length)
	}
}

func TestRandom_ProducesOnlyAlphabetCharacters(t *testing.T) {
	gen := shortcode.NewRandom()

	for i := 0; i < 1000; i++ {
		code := gen.Generate()
		for _, c := range code {
			assert.True(t, strings.ContainsRune(shortcode.Alphabet, c),
				"code %q contains invalid char %q", code, string(c))
		}
	}
}

func TestRandom_CoversAlphabet(t *testing.T) {
	gen := shortcode.NewRandom()
	seen := make(map[rune]bool)

	for i := 0; i < 5000; i++ {
		for _, c := range gen.Generate() {
			seen[c] = true
		}
	}

	assert.Len(t, seen, len(shortcode.Alphabet))
}

func TestRandom_ProducesUniqueCodesStatistically(t *testing.T) {
	gen := shortcode.NewRandom()
	seen := make(map[string]bool)
	count := 10000

	for i := 0; i < count; i++ {
		seen[gen.Generate()] = true
	}

	// 62^7 combinations make a collision among 10k codes negligible
	assert.Len(t, seen, count)
}

func TestRandom_ConcurrentUse(t *testing.T) {
	gen := shortcode.NewRandom()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				assert.Len(t, gen.Generate(), shortcode.Length)
			}
		}()
	}
	wg.Wait()
}
