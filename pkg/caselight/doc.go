// Package caselight provides a Go client for the caselight search API.
//
//	client := caselight.New("https://api.example.com",
//	    caselight.WithAPIKey("secret"),
//	)
//	result, _ := client.Search(ctx, caselight.SearchRequest{
//	    Query: "flight logs 2002",
//	    Limit: 10,
//	})
//
// Streaming search delivers the answer incrementally over SSE:
//
//	events, _ := client.SearchStream(ctx, caselight.SearchRequest{Query: "flight logs"})
//	for event := range events {
//	    switch event.Type {
//	    case caselight.EventAnswerChunk:
//	        fmt.Print(event.Content)
//	    case caselight.EventComplete:
//	        fmt.Println()
//	    }
//	}
package caselight
