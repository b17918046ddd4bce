// Package fanout issues one fetch per descriptor through a bounded worker pool
// and streams outcomes back in completion order.
//
// Every descriptor resolves to exactly one outcome. A failing or panicking
// fetch only affects its own outcome; siblings keep running. When the caller's
// context is cancelled, descriptors that have not been fetched yet still
// resolve, as failures carrying the context error.
//
// Example usage:
//
//	exec := fanout.NewExecutor(leaderboardClient, fanout.DefaultConfig())
//	for outcome := range exec.Run(ctx, params.All()) {
//		// consume
//	}
//
// The executor:
//   - Feeds descriptors lazily from an iter.Seq
//   - Spawns a worker pool (default 32 workers)
//   - Optionally paces request starts with a token bucket
//   - Bounds every fetch with its own timeout
//   - Closes the outcome channel once every descriptor has resolved
package fanout
