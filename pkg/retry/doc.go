// Package retry bounds and paces repeated attempts of provider searches and downloads.
//
// The acquisition policy is expressed as an ErrorTypeBackoff: rate limiting
// (HTTP 429/403) waits a base delay multiplied by the attempt number, any other
// transient failure waits a fixed short delay. Fatal errors are returned at once.
//
//	cfg := &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.NewErrorTypeBackoff(2*time.Second, 1500*time.Millisecond, 30*time.Second),
//		Context:     ctx,
//	}
//	result, err := retry.DoWithResult(func() (provider.Result, error) {
//		return p.Search(ctx, query)
//	}, cfg)
//	if retry.IsExhausted(err) {
//		// move on to the next provider
//	}
package retry
