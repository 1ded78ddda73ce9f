// Package semantic implements a semantic text chunker.
//
// Text is split into sentences, each sentence is embedded together with its
// neighbours, and a chunk boundary is placed wherever the cosine distance
// between adjacent sentence embeddings exceeds a percentile of all such
// distances. Embeddings come from any langchaingo embeddings.Embedder;
// Bridge adapts an ai.Embedder for that purpose.
package semantic
