package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fenced", "Here you go:\n```json\n{\"Name\": \"A\"}\n```\nthanks", `{"Name": "A"}`},
		{"bare fence", "```\n{\"a\": {\"b\": 1}}\n```", `{"a": {"b": 1}}`},
		{"inline", `prefix {"a": {"b": 2}} suffix {"c": 3}`, `{"a": {"b": 2}}`},
		{"brace in string", `{"a": "x}y", "b": 1} tail`, `{"a": "x}y", "b": 1}`},
		{"escaped quote", `{"a": "say \"}\""} tail`, `{"a": "say \"}\""}`},
		{"two fenced blocks", "```json\n{\"Name\":\"A\"}\n```\nAlternative format:\n```json\n{\"Name\":\"B\"}\n```", `{"Name":"A"}`},
		{"invalid first fence", "```\n{not json}\n```\n```json\n{\"Name\":\"B\"}\n```", `{"Name":"B"}`},
		{"prose braces before object", `Sure {here} it is: {"Name":"A"}`, `{"Name":"A"}`},
		{"only invalid object", `result: {Name: A}`, `{Name: A}`},
		{"no object", "I could not find anything.", ""},
		{"unbalanced", `{"a": 1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}
