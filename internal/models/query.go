package models

import "fmt"

// AskRequest is a question submitted to the answer generator.
type AskRequest struct {
	Question string `json:"question"`
}

// Validate returns an error if the request is malformed.
func (r *AskRequest) Validate() error {
	if r.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	return nil
}

// AskResponse carries a generated answer along with the passage that grounded
// it. PassageID and Score are nil when the corpus had no embedded passages and
// the answer was generated without context.
type AskResponse struct {
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	PassageID *int64   `json:"passage_id,omitempty"`
	Score     *float64 `json:"score,omitempty"`
	QueryTime int64    `json:"query_time_ms"`
}

// EvaluateRequest asks for a grounded-vs-ungrounded comparison for a question
// with a known answer.
type EvaluateRequest struct {
	Question   string `json:"question"`
	TrueAnswer string `json:"true_answer"`
}

// Validate returns an error if the request is malformed.
func (r *EvaluateRequest) Validate() error {
	if r.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if r.TrueAnswer == "" {
		return fmt.Errorf("true_answer cannot be empty")
	}
	return nil
}

// EvaluateResponse reports both answers and their embedding-space similarity
// to the true answer. No pass/fail threshold is applied; that is the caller's
// policy.
type EvaluateResponse struct {
	Question     string  `json:"question"`
	RAGAnswer    string  `json:"rag_answer"`
	NonRAGAnswer string  `json:"non_rag_answer"`
	RAGScore     float64 `json:"rag_score"`
	NonRAGScore  float64 `json:"non_rag_score"`
}
