package taskref

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "single line with trailing segment",
			text: "... https://app.asana.com/0/1202227011896787/1202716380711303 ... https://app.asana.com/0/1202227011896787/1202716380711310/f",
			want: []string{"1202716380711303", "1202716380711310"},
		},
		{
			name: "multi line body",
			text: `
        Foo bar https://app.asana.com/0/1202227011896787/1202716380711303
        asdfasdfasdf
        asfdkhsjf https://app.asana.com/0/1202227011896787/1202716380711310/f
      `,
			want: []string{"1202716380711303", "1202716380711310"},
		},
		{
			name: "order of appearance preserved",
			text: `
      https://app.asana.com/0/1202454337132640/1202824585057615/f
      https://app.asana.com/0/1202454337132640/1202824585057613/f
      https://app.asana.com/0/1202454337132640/1202824585057581/f
      https://app.asana.com/0/1202454337132640/1202824585057575/f
      `,
			want: []string{"1202824585057615", "1202824585057613", "1202824585057581", "1202824585057575"},
		},
		{
			name: "duplicates kept",
			text: "https://app.asana.com/0/1/22 and again https://app.asana.com/0/1/22",
			want: []string{"22", "22"},
		},
		{
			name: "no links",
			text: "Implement the thing in record time",
			want: []string{},
		},
		{
			name: "empty",
			text: "",
			want: []string{},
		},
		{
			name: "non numeric ids ignored",
			text: "https://app.asana.com/0/project/task",
			want: []string{},
		},
		{
			name: "plain http ignored",
			text: "http://app.asana.com/0/1/2",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if got == nil {
				t.Fatalf("Extract() returned nil, want empty slice")
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_KeepsProjectID(t *testing.T) {
	refs := Parse("Asana Task: https://app.asana.com/0/111/222/f")
	want := []Reference{{ProjectID: "111", TaskID: "222"}}
	if diff := cmp.Diff(want, refs); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}
