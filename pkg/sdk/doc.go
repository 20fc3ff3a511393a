// Package newsrag provides an embedded Go client for the newsrag
// retrieval-augmented news service backed by Redis or Valkey.
//
// The client wires the same retrieval, reranking, and generation
// pipeline the HTTP API exposes, without the HTTP layer:
//
//	client, _ := newsrag.New(ctx,
//	    newsrag.WithRedis("localhost:6379", ""),
//	    newsrag.WithEmbedder(myEmbedder),
//	    newsrag.WithGenerator(myGenerator),
//	)
//	defer client.Close()
//
//	hits, _ := client.Search(ctx, newsrag.SearchRequest{Query: "chip exports", Limit: 5})
//	answer, _ := client.Ask(ctx, newsrag.AskRequest{Question: "What changed in chip export rules?"})
//
// Search works with just an Embedder. Ask and Summarize additionally
// need a Generator; without one they return degraded answers.
package newsrag
