package ocr

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "  hello  ", want: "hello"},
		{name: "fenced", in: "```\nline one\nline two\n```", want: "line one\nline two"},
		{name: "fenced with language", in: "```text\nabc\n```\n", want: "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.in))
		})
	}
}

func TestTesseract_RecognizePage(t *testing.T) {
	var calls [][]string
	engine := NewTesseract("pdftoppm", "tesseract", "eng", 1, 6)
	engine.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		if name == "pdftoppm" {
			root := args[len(args)-1]
			return nil, os.WriteFile(root+".png", []byte("png"), 0o600)
		}
		_, err := os.Stat(args[0])
		require.NoError(t, err, "tesseract must receive the rendered page")
		return []byte("OPENING BALANCE 1,000.00\n\f"), nil
	}

	text, err := engine.RecognizePage(context.Background(), []byte("%PDF-1.4"), 2, 300)
	require.NoError(t, err)
	assert.Equal(t, "OPENING BALANCE 1,000.00", text)

	require.Len(t, calls, 2)
	render := strings.Join(calls[0], " ")
	assert.Contains(t, render, "-f 3 -l 3")
	assert.Contains(t, render, "-r 300")
	recognise := strings.Join(calls[1], " ")
	assert.Contains(t, recognise, "stdout -l eng --oem 1 --psm 6")
}

func TestTesseract_RenderFailure(t *testing.T) {
	engine := NewTesseract("pdftoppm", "tesseract", "eng", 1, 6)
	engine.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}

	_, err := engine.RecognizePage(context.Background(), []byte("%PDF"), 0, 200)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rendering page 1")
}

type fakeGenerator struct {
	reply string
	err   error
	model string
	parts []*genai.Part
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.parts = contents[0].Parts
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.reply}}}},
		},
	}, nil
}

func TestGemini_RecognizePage(t *testing.T) {
	gen := &fakeGenerator{reply: "```\n01/02/2024  POS PURCHASE  1,200.00\n```"}
	engine := &Gemini{models: gen, model: "gemini-2.5-flash"}

	text, err := engine.RecognizePage(context.Background(), []byte("%PDF"), 0, 300)
	require.NoError(t, err)
	assert.Equal(t, "01/02/2024  POS PURCHASE  1,200.00", text)
	assert.Equal(t, "gemini-2.5-flash", gen.model)
	require.Len(t, gen.parts, 2)
	assert.Contains(t, gen.parts[0].Text, "page 1")
	assert.Equal(t, "application/pdf", gen.parts[1].InlineData.MIMEType)
}

func TestGemini_Errors(t *testing.T) {
	_, err := (&Gemini{models: &fakeGenerator{err: errors.New("quota")}}).RecognizePage(context.Background(), nil, 0, 0)
	assert.ErrorContains(t, err, "quota")

	_, err = (&Gemini{models: &fakeGenerator{reply: ""}}).RecognizePage(context.Background(), nil, 0, 0)
	assert.ErrorContains(t, err, "empty response")
}
