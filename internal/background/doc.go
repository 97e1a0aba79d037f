// Package background runs knowledge-base ingestion jobs off the HTTP
// request path, bounded by a small worker pool (see ingestpool.go).
//
//	pool := background.New(index, logger)
//	pool.Submit(ctx, eventbus.IngestJob{SessionID: sid, DocID: id, Content: text})
//	pool.Wait() // on shutdown, drain in-flight jobs
package background
