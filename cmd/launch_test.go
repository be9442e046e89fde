package main

import (
	"reflect"
	"testing"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", "opencode serve", []string{"opencode", "serve"}},
		{"double-quoted path with space",
			`"/opt/my tools/engine" serve --port 4096`,
			[]string{"/opt/my tools/engine", "serve", "--port", "4096"}},
		{"single-quoted argument",
			`engine --label 'dev box'`,
			[]string{"engine", "--label", "dev box"}},
		{"quote inside a token",
			`engine --dir="/tmp/work dir"`,
			[]string{"engine", "--dir=/tmp/work dir"}},
		{"surrounding whitespace", "  engine  ", []string{"engine"}},
		{"empty quoted argument", `engine ''`, []string{"engine", ""}},
		{"whitespace only", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitCommand(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitCommand(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}
