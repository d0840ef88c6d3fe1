package nlp_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/p-n-ai/pai-qcm/internal/nlp"
)

func TestUDPipeParser_Parse(t *testing.T) {
	doc, err := os.ReadFile("testdata/chat.conllu")
	if err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
			return
		}
		if got := r.PostForm.Get("model"); got != "french-sequoia" {
			t.Errorf("model = %q, want french-sequoia", got)
		}
		if got := r.PostForm.Get("data"); got != "Le chat noir mange une pomme." {
			t.Errorf("data = %q", got)
		}
		if _, ok := r.PostForm["parser"]; !ok {
			t.Error("parser field should be present to enable parsing")
		}

		json.NewEncoder(w).Encode(map[string]string{
			"model":  "french-sequoia",
			"result": string(doc),
		})
	}))
	defer server.Close()

	parser := nlp.NewUDPipeParser(
		nlp.WithUDPipeURL(server.URL+"/"),
		nlp.WithUDPipeModel("french-sequoia"),
		nlp.WithUDPipeHTTPClient(server.Client()),
	)

	sentences, err := parser.Parse(t.Context(), "Le chat noir mange une pomme.")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(sentences) != 1 || len(sentences[0].Tokens) != 7 {
		t.Fatalf("sentences = %+v", sentences)
	}
}

func TestUDPipeParser_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("unknown model"))
	}))
	defer server.Close()

	parser := nlp.NewUDPipeParser(nlp.WithUDPipeURL(server.URL))
	if _, err := parser.Parse(t.Context(), "Bonjour."); err == nil {
		t.Error("Parse() should fail on non-200 status")
	}
}

func TestUDPipeParser_BlankText(t *testing.T) {
	parser := nlp.NewUDPipeParser(nlp.WithUDPipeURL("http://127.0.0.1:1"))
	sentences, err := parser.Parse(t.Context(), "  ")
	if err != nil || sentences != nil {
		t.Errorf("Parse(blank) = %v, %v; want nil, nil without a request", sentences, err)
	}
}

func TestCoNLLUParser_Unknown(t *testing.T) {
	if _, err := nlp.NewCoNLLUParser().Parse(t.Context(), "inconnu"); err == nil {
		t.Error("Parse() should fail for unregistered text")
	}
}
