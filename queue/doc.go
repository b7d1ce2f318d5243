// Package queue implements the dispatch channel between the domain layer
// and external worker connectors.
//
// Every asynchronous task (enrichment request, export job) is serialized as
// a JSON message and pushed onto the target connector's Redis list. The
// connector consumes its queue with BRPOP at its own pace; the domain layer
// never waits for completion, it only records the Work/Job pair the caller
// polls.
//
// # Message flow
//
//	domain layer                     redis                     connector
//	------------                     -----                     ---------
//	PushToConnector(msg)  --LPUSH-->  connector:<q>:messages
//	                                  connector:<q>:messages  --BRPOP--> worker
//
// Publishing is fire-and-forget: a successful LPUSH is the end of the
// domain layer's responsibility. Work state transitions are written back
// through the store by the connector itself.
//
// # Usage
//
//	pub, err := queue.NewRedisPublisher(queue.RedisOptions{
//		URL: "redis://localhost:6379",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer pub.Close()
//
//	err = pub.PushToConnector(ctx, conn, queue.DispatchMessage{
//		WorkID: work.InternalID,
//		JobID:  job.InternalID,
//	})
package queue
