// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the conversation state.
package session

import "testing"

func TestGenerateTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "short message passes through capitalized",
			input: "log my blood pressure",
			want:  "Log my blood pressure",
		},
		{
			name:  "greeting prefix stripped",
			input: "hi, what does my glucose trend look like",
			want:  "What does my glucose trend look like",
		},
		{
			name:  "stacked greetings stripped repeatedly",
			input: "hey hi, remind me about my meds",
			want:  "Remind me about my meds",
		},
		{
			name:  "greeting requires separator",
			input: "history of my readings",
			want:  "History of my readings",
		},
		{
			name:  "hello without separator survives",
			input: "helloween plans",
			want:  "Helloween plans",
		},
		{
			name:  "long message truncates at word boundary",
			input: "hey, can you check my BP trend for May and June and July please",
			want:  "Can you check my BP trend for May and...",
		},
		{
			name:  "greeting only falls back to placeholder",
			input: "hey!",
			want:  PlaceholderTitle,
		},
		{
			name:  "whitespace only falls back to placeholder",
			input: "   \n  ",
			want:  PlaceholderTitle,
		},
		{
			name:  "newlines collapsed before titling",
			input: "track\nmy\nsleep",
			want:  "Track my sleep",
		},
		{
			name:  "trailing punctuation trimmed at truncation point",
			input: "check my sugar, insulin, carbs, exercise, and stress levels today please",
			want:  "Check my sugar, insulin, carbs...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateTitle(tt.input); got != tt.want {
				t.Errorf("GenerateTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestGenerateTitle_IsDeterministic(t *testing.T) {
	input := "good evening, how did I sleep last night"
	first := GenerateTitle(input)
	for i := 0; i < 5; i++ {
		if got := GenerateTitle(input); got != first {
			t.Fatalf("run %d produced %q, first run produced %q", i, got, first)
		}
	}
}
