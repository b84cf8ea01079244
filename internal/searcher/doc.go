// Package searcher answers natural-language queries against goals and
// elaborations.
//
// A search runs a fixed sequence of stages over a snapshot of the corpus:
//
//  1. The query is embedded once.
//  2. Every goal with a vector gets a combined score from its own similarity
//     and the best similarity among its linked elaborations. Candidates below
//     CombineFloor are dropped.
//  3. Optionally the leading candidates are graded by an LLM.
//  4. A max-normalized BM25 score is added to every candidate. Scores may
//     exceed 1.0 after this step.
//  5. The caller's threshold and limit are applied to the final scores.
//
// Each candidate keeps an append-only record of the scores the stages gave it.
package searcher
