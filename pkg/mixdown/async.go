package mixdown

import "context"

// Submit starts a mix on a new goroutine and returns a channel that receives
// exactly one [Result] and is then closed. The channel is buffered, so an
// abandoned result does not leak the goroutine.
func (e *Engine) Submit(ctx context.Context, req Request) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		out, err := e.Mix(ctx, req)
		ch <- Result{WAV: out, Err: err}
	}()
	return ch
}

// MixAsync starts a mix on a new goroutine and calls exactly one of onSuccess
// or onFailure when it finishes. Nil callbacks are skipped.
func (e *Engine) MixAsync(ctx context.Context, req Request, onSuccess func([]byte), onFailure func(error)) {
	go func() {
		out, err := e.Mix(ctx, req)
		if err != nil {
			if onFailure != nil {
				onFailure(err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(out)
		}
	}()
}
