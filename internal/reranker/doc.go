// Package reranker asks a language model to grade how well each candidate
// goal fits a query and turns the answer into a relevance score.
//
// Only the first BatchSize candidates are sent to the model; the rest keep
// their scores and follow the graded prefix in their original order. Calls
// run concurrently up to a fixed limit, each under its own timeout. A call
// that times out, fails, or returns no number leaves the candidate's score
// unchanged and is recorded as a fallback. Rerank itself never fails.
//
// The model is reached through the Completer interface. LLMCompleter adapts
// any langchaingo llms.Model (OpenAI-compatible servers, Ollama) and streams
// the reply so that generation stops as soon as a complete number arrives.
package reranker
