package qcm_test

import (
	"testing"

	"github.com/p-n-ai/pai-qcm/internal/qcm"
)

func TestGrade(t *testing.T) {
	qcms := []qcm.QCM{
		{ID: "q1", Question: "Que mange Le chat ?", Choices: []string{"pomme", "lion"}, AnswerIndex: 0},
		{ID: "q2", Question: "Qui est contente ?", Choices: []string{"Paul", "Marie"}, AnswerIndex: 1},
		{ID: "q3", Question: "Quel animal est noir ?", Choices: []string{"chat", "chien"}, AnswerIndex: 0},
		{ID: "q4", Question: "Qui mange ?", Choices: []string{"Léa", "Tom"}, AnswerIndex: 0},
	}
	answers := map[string]int{"q1": 0, "q2": 0, "q4": 7}

	res := qcm.Grade(qcms, answers)

	if res.Correct != 1 || res.Total != 4 {
		t.Errorf("score = %d/%d, want 1/4", res.Correct, res.Total)
	}

	tests := []struct {
		chosen   int
		given    string
		expected string
		correct  bool
	}{
		{0, "pomme", "pomme", true},
		{0, "Paul", "Marie", false},
		{-1, "", "chat", false},
		{-1, "", "Léa", false},
	}
	for i, tt := range tests {
		o := res.Outcomes[i]
		if o.Chosen != tt.chosen || o.Given != tt.given || o.Expected != tt.expected || o.Correct != tt.correct {
			t.Errorf("outcome %d = %+v, want %+v", i, o, tt)
		}
	}
}

func TestGrade_Empty(t *testing.T) {
	res := qcm.Grade(nil, nil)
	if res.Total != 0 || res.Correct != 0 || len(res.Outcomes) != 0 {
		t.Errorf("Grade(nil) = %+v", res)
	}
}
