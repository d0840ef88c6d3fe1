package qcm

// Outcome is the correction of one answered question.
type Outcome struct {
	QCMID    string `json:"qcm_id"`
	Question string `json:"question"`
	Chosen   int    `json:"chosen"` // -1 when unanswered
	Given    string `json:"given,omitempty"`
	Expected string `json:"expected"`
	Correct  bool   `json:"correct"`
}

// Result is a graded answer sheet.
type Result struct {
	Correct  int       `json:"correct"`
	Total    int       `json:"total"`
	Outcomes []Outcome `json:"outcomes"`
}

// Grade scores answers, keyed by QCM id, against the questions in order.
// Missing or out-of-range answers count as wrong.
func Grade(qcms []QCM, answers map[string]int) Result {
	res := Result{Total: len(qcms), Outcomes: make([]Outcome, 0, len(qcms))}
	for _, q := range qcms {
		o := Outcome{QCMID: q.ID, Question: q.Question, Chosen: -1, Expected: q.Answer()}
		if idx, ok := answers[q.ID]; ok && idx >= 0 && idx < len(q.Choices) {
			o.Chosen = idx
			o.Given = q.Choices[idx]
			o.Correct = idx == q.AnswerIndex
		}
		if o.Correct {
			res.Correct++
		}
		res.Outcomes = append(res.Outcomes, o)
	}
	return res
}
