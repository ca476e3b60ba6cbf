package server

// HTTPError is the error envelope returned by every endpoint.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// QuizRequest is the body of generation and evaluation calls: the user's quiz
// answers in receipt order.
type QuizRequest struct {
	Answers []QuizAnswerDTO `json:"answers"`
}

// QuizAnswerDTO is one answered question.
type QuizAnswerDTO struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// GenerateResponse carries the affirmations produced for a quiz.
type GenerateResponse struct {
	Affirmations []string `json:"affirmations"`
}

// EvaluateResponse carries a scored evaluation.
type EvaluateResponse struct {
	Score      int    `json:"score"`
	Commentary string `json:"commentary"`
}

// PeriodicResponse carries a daily or monthly affirmation.
type PeriodicResponse struct {
	Affirmation string `json:"affirmation"`
	Period      string `json:"period"`
}

// DocumentResponse describes an ingested alignment document.
type DocumentResponse struct {
	ID       string `json:"document_id"`
	Filename string `json:"filename"`
	Checksum string `json:"checksum"`
	Chunks   int    `json:"chunks"`
}
