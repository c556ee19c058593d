// Package localbanker is a client-side budget cache for real-time bidding
// pipelines. It keeps a local, in-memory replica of per-account budget
// authorizations so bid routers and post-auction processors make
// sub-millisecond spend-admission decisions without a network round-trip,
// while three periodic protocols reconcile the replica against the
// authoritative remote ledger: reauthorization pulls fresh balances,
// spend updates push accumulated local spend, and a lazy registration sweep
// retries accounts the ledger has not confirmed yet.
//
// A bid router:
//
//	banker, _ := localbanker.New("http://banker:9985",
//	    localbanker.RoleRouter, "router",
//	    localbanker.WithLogger(logger),
//	    localbanker.WithPrometheus(prometheus.DefaultRegisterer),
//	)
//	banker.Start()
//	defer banker.Shutdown()
//
//	key, _ := localbanker.ParseAccountKey("camp1:strategy1")
//	banker.AddAccount(key)
//
//	if banker.Bid(key, localbanker.MicroUSD(1_000_000)) {
//	    // submit the bid
//	}
//
// A post-auction processor runs the same way with RolePostAuction and calls
// Win with the clearing price once an auction settles.
//
// Consistency model: Bid and Win are synchronous and lock-protected; the
// synchronization protocols are eventually consistent with staleness bounded
// by their intervals. During ledger unavailability balances go stale and Bid
// increasingly denies as the reserved balance drains; registration stalls
// and self-heals when connectivity returns.
package localbanker
