// Package photos is a Google Photos Library API client.
//
// Client implements syncer.Source: "All Photos" lists the whole library,
// any other name is resolved against the user's album titles and listed
// through mediaItems:search. Every request goes through the retry policy, and
// clients built with NewFromConfig also pass through an OAuth2 transport and
// a token-bucket rate limiter.
//
//	client, err := photos.NewFromConfig(ctx, cfg, account.RefreshToken, log)
//	if err != nil {
//	    return err
//	}
//	if err := client.Verify(ctx); err != nil {
//	    // errors.IsType(err, errors.ErrorTypeAuth) for rejected credentials
//	}
//	it, err := client.List(ctx, "Holidays")
package photos
