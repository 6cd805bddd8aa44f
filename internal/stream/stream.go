package stream

import (
	"context"
	"iter"

	"github.com/dshills/critic/internal/providers"
)

// ErrorPrefix starts the text of the synthetic fragment that ends a failed
// stream.
const ErrorPrefix = "Error: "

// Source is anything that can stream a response.
type Source interface {
	Stream(ctx context.Context, req providers.Request) iter.Seq2[string, error]
}

// Fragment is one piece of a streamed response. Err is non-nil only on the
// final fragment of a failed stream, whose Text is ErrorPrefix followed by
// the error description.
type Fragment struct {
	Text string
	Err  error
}

// Failed reports whether the fragment terminates a failed stream.
func (f Fragment) Failed() bool { return f.Err != nil }

// Fragments streams req from src as a finite, forward-only sequence. Every
// failure, before the first fragment or in the middle of the stream, becomes
// exactly one error fragment after which the sequence ends. A context that
// is already done yields that error without contacting src.
func Fragments(ctx context.Context, src Source, req providers.Request) iter.Seq[Fragment] {
	return func(yield func(Fragment) bool) {
		if err := ctx.Err(); err != nil {
			yield(errorFragment(err))
			return
		}
		for text, err := range src.Stream(ctx, req) {
			if err != nil {
				// prefer the cancellation cause over the transport error it produced
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				}
				yield(errorFragment(err))
				return
			}
			if !yield(Fragment{Text: text}) {
				return
			}
		}
	}
}

func errorFragment(err error) Fragment {
	return Fragment{Text: ErrorPrefix + err.Error(), Err: err}
}
