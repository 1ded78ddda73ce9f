// Package gemini implements ai.AIProvider with Google's Gemini embedding API.
//
//	config := ai.NewConfig(
//	    ai.WithProvider(ai.ProviderGemini),
//	    ai.WithEmbeddingModel("text-embedding-004"),
//	    ai.WithAPIKey(os.Getenv("GEMINI_API_KEY")),
//	)
//	provider, err := gemini.NewProvider(ctx, config)
package gemini
