// Package gemini implements the generation.Generator interface on top of
// Google's Gemini API through the google.golang.org/genai client.
package gemini
