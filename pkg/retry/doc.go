// Package retry retries remote calls with backoff.
//
// Typed errors from photosync/pkg/errors decide both whether an attempt is
// retried and, when Config.ByErrorType is set, how long to wait: rate limit
// responses back off longer than network blips.
//
//	cfg := retry.FromConfig(appCfg.Retry, log)
//	page, err := retry.DoWithResult(ctx, func(ctx context.Context) (*listPage, error) {
//		return c.fetchPage(ctx, token)
//	}, cfg)
package retry
