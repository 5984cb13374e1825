package markov

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
)

// generateOptions Is used by the generate functions to configure default options.
type generateOptions struct {
	temperature float64
	logger      *slog.Logger
}

// GenerateOption is a function that configures generation parameters. It's used
// as a variadic argument in Generate and GenerateStream.
type GenerateOption func(*generateOptions)

// WithTemperature adjusts the randomness of rune selection.
// A value of 1.0 samples from the model's distribution unchanged.
// Values > 1.0 flatten the distribution (rare runes become more likely).
// Values < 1.0 sharpen it (frequent runes become even more likely).
// A value of 0 or less is deterministic: the most probable rune is always chosen,
// with ties going to the rune that comes first in the alphabet. NaN is
// rejected by Generate and GenerateStream with ErrInvalidTemperature.
func WithTemperature(t float64) GenerateOption {
	return func(o *generateOptions) { o.temperature = t }
}

// WithLogger sets the logger generation reports to. By default nothing is logged.
func WithLogger(logger *slog.Logger) GenerateOption {
	return func(o *generateOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newGenerateOptions(opts []GenerateOption) *generateOptions {
	options := &generateOptions{
		temperature: 1.0,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Generate produces exactly length runes. It starts from the window seed, which
// must be Order() runes long, and repeatedly samples the next rune from
// P(· | window), appends it to the output and slides the window forward.
//
// The output depends only on rng. A nil rng is replaced by a freshly seeded one;
// pass rand.New(rand.NewPCG(a, b)) for reproducible output. A *rand.Rand is not
// safe for concurrent use, so concurrent callers should each own one.
func (m *Model) Generate(rng *rand.Rand, seed string, length int, opts ...GenerateOption) (string, error) {
	options := newGenerateOptions(opts)
	if err := m.checkGenerate(seed, length, options); err != nil {
		return "", err
	}
	if rng == nil {
		rng = newRand()
	}

	var builder strings.Builder
	builder.Grow(length)
	window := []rune(seed)
	for i := 0; i < length; i++ {
		next := m.chooseNext(rng, string(window), options)
		builder.WriteRune(next)
		window = slide(window, next)
	}

	options.logger.Debug("Generation completed",
		slog.Int("order", m.order),
		slog.String("seed", seed),
		slog.Int("generated_length", length),
		slog.Float64("temperature", options.temperature),
	)

	return builder.String(), nil
}

// GenerateStream is the streaming form of Generate. Runes are sent on the
// returned channel one at a time; the channel is closed after length runes or
// as soon as ctx is cancelled. Argument errors are reported before any rune is
// produced.
func (m *Model) GenerateStream(ctx context.Context, rng *rand.Rand, seed string, length int, opts ...GenerateOption) (<-chan rune, error) {
	options := newGenerateOptions(opts)
	if err := m.checkGenerate(seed, length, options); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = newRand()
	}

	runeChan := make(chan rune)

	go func() {
		defer close(runeChan)

		window := []rune(seed)
		for i := 0; i < length; i++ {
			next := m.chooseNext(rng, string(window), options)
			select {
			case <-ctx.Done():
				options.logger.DebugContext(ctx, "Generation stream cancelled by context",
					slog.Int("generated_length", i),
				)
				return
			case runeChan <- next:
			}
			window = slide(window, next)
		}
	}()

	return runeChan, nil
}

func (m *Model) checkGenerate(seed string, length int, options *generateOptions) error {
	if err := m.checkKGram(seed); err != nil {
		return fmt.Errorf("invalid seed: %w", err)
	}
	if length < 0 {
		return fmt.Errorf("%w: negative output length %d", ErrInvalidLength, length)
	}
	if math.IsNaN(options.temperature) {
		return ErrInvalidTemperature
	}
	return nil
}

// chooseNext samples the rune that follows kgram.
func (m *Model) chooseNext(rng *rand.Rand, kgram string, options *generateOptions) rune {
	weights, total := m.weights(kgram)
	return m.alphabet[chooseIndex(rng, weights, total, options.temperature)]
}

// chooseIndex picks an index of weights. total must be the sum of weights and
// positive, which every model guarantees since its alphabet is never empty.
func chooseIndex(rng *rand.Rand, weights []int, total int, temperature float64) int {
	if temperature <= 0 { // Deterministic
		best, maxWeight := 0, -1
		for i, w := range weights {
			if w > maxWeight {
				best, maxWeight = i, w
			}
		}
		return best
	}

	if temperature == 1.0 { // Standard weighted random
		choice := rng.IntN(total)
		for i, w := range weights {
			choice -= w
			if choice < 0 {
				return i
			}
		}
		return len(weights) - 1
	}

	// Temperature-based sampling, computed in log space to avoid overflow.
	maxLog := math.Inf(-1)
	logWeights := make([]float64, len(weights))
	for i, w := range weights {
		if w == 0 {
			logWeights[i] = math.Inf(-1)
			continue
		}
		lw := math.Log(float64(w)) / temperature
		logWeights[i] = lw
		if lw > maxLog {
			maxLog = lw
		}
	}
	var totalWeight float64
	scaled := make([]float64, len(weights))
	for i, lw := range logWeights {
		scaled[i] = math.Exp(lw - maxLog)
		totalWeight += scaled[i]
	}
	choice := rng.Float64() * totalWeight
	last := 0
	for i, w := range scaled {
		if w == 0 {
			continue
		}
		last = i
		choice -= w
		if choice < 0 {
			return i
		}
	}
	return last
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
