package llm

import (
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadSpecialTokens(t *testing.T) {
	cases := []struct {
		name  string
		files map[string]string
		want  SpecialTokens
	}{
		{
			name:  "none",
			files: nil,
			want:  UnknownSpecialTokens(),
		},
		{
			name:  "config only, null pad",
			files: map[string]string{"config.json": `{"bos_token_id":151643,"eos_token_id":151643,"pad_token_id":null}`},
			want:  SpecialTokens{BOS: 151643, EOS: 151643, PAD: NoToken},
		},
		{
			name: "generation config wins, eos list",
			files: map[string]string{
				"config.json":            `{"bos_token_id":1,"eos_token_id":2}`,
				"generation_config.json": `{"eos_token_id":[7,8],"pad_token_id":9}`,
			},
			want: SpecialTokens{BOS: 1, EOS: 7, PAD: 9},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := t.TempDir()
			for n, body := range c.files {
				write(t, d, n, body)
			}
			got, err := ReadSpecialTokens(d)
			if err != nil {
				t.Fatalf("ReadSpecialTokens: %v", err)
			}
			if got != c.want {
				t.Fatalf("got %+v want %+v", got, c.want)
			}
		})
	}
}

func TestReadSpecialTokensBadJSON(t *testing.T) {
	d := t.TempDir()
	write(t, d, "config.json", `{"eos_token_id":"two"}`)
	if _, err := ReadSpecialTokens(d); err == nil {
		t.Fatalf("expected error for non-numeric id")
	}
}

func TestSpecialTokensHelpers(t *testing.T) {
	st := SpecialTokens{BOS: NoToken, EOS: 5, PAD: NoToken}
	if st.WithPadFallback().PAD != 5 {
		t.Fatalf("pad fallback failed")
	}
	if st.IsSpecial(NoToken) {
		t.Fatalf("NoToken must never be special")
	}
	if !st.IsSpecial(5) || st.IsSpecial(6) {
		t.Fatalf("IsSpecial wrong")
	}
}
