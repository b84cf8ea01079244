// Package embedder turns curriculum text and search queries into vectors.
//
// Three providers are available: any OpenAI-compatible /embeddings endpoint,
// Ollama's native /api/embed, and a deterministic local hash provider for
// offline use. All providers validate input, retry transient failures with
// exponential backoff, and can share an LRU cache keyed by model and content
// hash.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "ollama", Model: "nomic-embed-text"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "leerlingen kunnen breuken vergelijken",
//	})
//
// # Batch Processing
//
// GenerateBatch returns one embedding per input text in input order. For
// corpora larger than one batch use EmbedAll, which splits the input into
// batches of DefaultBatchSize and concatenates the results:
//
//	vectors, err := embedder.EmbedAll(ctx, emb, texts, embedder.DefaultBatchSize)
//
// # Provider Selection
//
// NewFromEnv picks a provider from the environment:
//
//  1. CURRICULUM_EMBEDDING_PROVIDER if set
//  2. openai if OPENAI_API_KEY is set
//  3. local otherwise
package embedder
