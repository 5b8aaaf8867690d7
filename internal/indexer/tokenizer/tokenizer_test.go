package tokenizer

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "The quick Brown fox", []string{"the", "quick", "brown", "fox"}},
		{"punctuation dropped whole", "hello, world! don't stop", []string{"stop"}},
		{"digits and mixed", "route 66 mp3 player", []string{"route", "player"}},
		{"whitespace variants", "  tabs\tand\nnewlines  ", []string{"tabs", "and", "newlines"}},
		{"non-ascii letters", "Über café", []string{"über", "café"}},
		{"only noise", "123 $$$ !!!", []string{}},
		{"empty", "", []string{}},
		{"duplicates kept", "dog Dog DOG", []string{"dog", "dog", "dog"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}
