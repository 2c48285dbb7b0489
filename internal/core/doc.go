// Package core is the service layer around the merge engine.
//
// It owns everything a transport needs and nothing transport-specific:
//
//   - Merge runs: [Service.StartMerge] runs the engine in the background,
//     fans progress out to subscribers ([Service.SubscribeProgress]) and keeps
//     the finished workbook for download until it expires.
//   - Records: the viewer's record store, replaced wholesale by publishing a
//     run ([Service.PublishRun]) or syncing a remote feed ([Service.SyncRecords]).
//   - Limits: [MergeLimiter] bounds concurrent runs.
//   - Errors: [MapError] turns technical errors into coded user messages.
//
// The package has no HTTP dependencies; cmd/guarantor-merge and the web
// server both drive it.
package core
