package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractCodeBlocks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "two blocks in order",
			text: "First:\n```python\nfoo(a=1)\n```\nthen\n```python\nbar(b=2)\n```\n",
			want: []string{"foo(a=1)", "bar(b=2)"},
		},
		{
			name: "no blocks",
			text: "plain answer without code",
			want: nil,
		},
		{
			name: "other language ignored",
			text: "```json\n{\"a\": 1}\n```\n```python\nfoo()\n```",
			want: []string{"foo()"},
		},
		{
			name: "tag is case sensitive",
			text: "```Python\nfoo()\n```",
			want: nil,
		},
		{
			name: "tag is a literal prefix",
			text: "```python3\nfoo()\n```",
			want: []string{"3\nfoo()"},
		},
		{
			name: "empty block dropped",
			text: "```python\n   \n```\n```python\nx = f(a=1)\n```",
			want: []string{"x = f(a=1)"},
		},
		{
			name: "multiline block trimmed",
			text: "```python\n\n  a = 1\nfoo(a=a)\n\n```",
			want: []string{"a = 1\nfoo(a=a)"},
		},
		{
			name: "unclosed fence",
			text: "```python\nfoo(a=1)\n",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCodeBlocks(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExtractCodeBlocks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCodeBlockExtractor_CustomLanguage(t *testing.T) {
	e := NewCodeBlockExtractor("py")
	if e.Language() != "py" {
		t.Errorf("expected language py, got %s", e.Language())
	}

	got := e.Extract("```py\nfoo()\n```\n```python\nbar()\n```")
	want := []string{"foo()", "thon\nbar()"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract mismatch (-want +got):\n%s", diff)
	}
}

func TestCodeBlockExtractor_DefaultLanguage(t *testing.T) {
	if e := NewCodeBlockExtractor(""); e.Language() != DefaultLanguage {
		t.Errorf("expected default language %s, got %s", DefaultLanguage, e.Language())
	}
}
