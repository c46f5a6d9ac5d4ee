// Package health reports whether the sync runtime can still reach and trust
// its backend.
//
// A Checker reports a Result with one of three statuses: Healthy, Degraded or
// Unhealthy. The Aggregator runs every registered checker and folds the
// results into one overall status.
//
// The runtime-specific checkers are:
//
//   - StoreChecker: degraded while a store holds a fetch error.
//   - BreakerChecker: unhealthy while the API circuit is open, degraded while
//     it is probing.
//   - GateChecker: degraded while a reconcile run holds its gate for too
//     long.
//
// # Usage
//
//	agg := health.NewAggregator()
//	agg.Register("api", health.NewBreakerChecker("api", client.Breaker()))
//	agg.Register("lecturers", health.NewStoreChecker(lecturers))
//
//	report := health.NewReport(ctx, agg)
//	fmt.Println(report.Status)
//
// # HTTP Endpoints
//
//	health.RegisterHandlers(mux, agg) // /healthz, /readyz, /health
package health
