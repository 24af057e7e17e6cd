// Package ratelimit spaces out media downloads.
//
// NewPerMinute wraps golang.org/x/time/rate with a burst of one, so
// requests are evenly spread across the minute rather than sent in bursts.
// A limit of zero yields Unlimited, which never blocks.
//
//	limiter := ratelimit.NewPerMinute(cfg.Download.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
