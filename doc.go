// Package docqa answers natural-language questions from a corpus of documents
// while enforcing per-user document access.
//
// An Engine ingests documents into an in-memory chunk index, checks each
// question against the asking user's allowed documents, retrieves the most
// similar chunks from those documents only, and keeps a per-user conversation
// so follow-up questions can draw on earlier answers.
//
//	engine, err := docqa.NewEngine()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	if _, err := engine.IngestDirectory(ctx, "./documents"); err != nil {
//	    log.Fatal(err)
//	}
//	answer, err := engine.Answer(ctx, "alice@email.com", "What was revenue growth?", true)
package docqa
