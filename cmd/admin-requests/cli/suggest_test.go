// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"abc", "ab", 1},
		{"ab", "abc", 1},
		{"abc", "bac", 2},
		{"kitten", "sitting", 3},
		{"check", "chek", 1},
		{"actions", "actoins", 2},
	}

	for _, test := range tests {
		t.Run(test.a+"->"+test.b, func(t *testing.T) {
			if got := levenshtein(test.a, test.b); got != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
			}
			if reverse := levenshtein(test.b, test.a); reverse != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, not symmetric", test.b, test.a, reverse)
			}
		})
	}
}

func TestSuggestCommand(t *testing.T) {
	commands := []*Command{{Name: "check"}, {Name: "run"}, {Name: "actions"}}

	tests := []struct {
		input string
		want  string
	}{
		{"chek", "check"},
		{"rnu", "run"},
		{"action", "actions"},
		{"completely-different", ""},
	}
	for _, test := range tests {
		if got := suggestCommand(test.input, commands); got != test.want {
			t.Errorf("suggestCommand(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestSuggestFlag(t *testing.T) {
	flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flagSet.String("queue-dir", "", "")
	flagSet.Bool("json", false, "")
	flagSet.StringP("config", "c", "", "")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--queue-dri=x"}, "--queue-dir"},
		{[]string{"--jsn"}, "--json"},
		{[]string{"-c", "file", "--confg"}, "--config"},
		{[]string{"--json", "--unrelated-flag-name"}, ""},
		{[]string{"--", "--jsn"}, ""},
	}
	for _, test := range tests {
		if got := suggestFlag(test.args, flagSet); got != test.want {
			t.Errorf("suggestFlag(%v) = %q, want %q", test.args, got, test.want)
		}
	}
}
