// Package mailrag embeds the mail question answering pipeline in a Go program.
//
// The client ingests messages into a vector index and answers questions over them,
// citing the chunks the answer was built from:
//
//	client, _ := mailrag.New(ctx,
//	    mailrag.WithRedis("localhost:6379", ""),
//	    mailrag.WithEmbedder(myEmbedder, "bge-m3"),
//	    mailrag.WithChatModel(myChat),
//	    mailrag.WithVectorDimensions(1024),
//	)
//	defer client.Close()
//
//	report, _ := client.Ingest(ctx, []mailrag.Message{{
//	    Owner: "alice@example.com", ID: "<1@example.com>",
//	    Subject: "Invoice", Body: "The total is 420 EUR.",
//	}})
//	answer, _ := client.Query(ctx, "How much was the invoice?")
//
// Messages are deduplicated per owner, so ingesting the same export twice is cheap.
package mailrag
