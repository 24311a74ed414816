package ocr

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// contentGenerator is the subset of genai.Models used for transcription.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini transcribes pages with a Gemini vision model. It sends the whole PDF
// and asks for the text of a single page, so no local renderer is needed.
type Gemini struct {
	models contentGenerator
	model  string
}

// NewGemini creates a Gemini engine using Application Default Credentials or
// the GOOGLE_API_KEY environment variable.
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}
	return &Gemini{models: client.Models, model: model}, nil
}

// Name implements Engine.
func (g *Gemini) Name() string { return "gemini" }

// RecognizePage implements Engine. dpi is ignored; the model reads the PDF directly.
func (g *Gemini) RecognizePage(ctx context.Context, pdf []byte, pageIndex, dpi int) (string, error) {
	prompt := fmt.Sprintf(
		"Transcribe page %d of the attached bank statement exactly as printed.\n"+
			"- Output plain text only, one printed line per output line.\n"+
			"- Keep table columns separated by at least two spaces.\n"+
			"- Do not summarise, translate, correct or reformat numbers.\n"+
			"- Do not wrap the answer in code fences.\n",
		pageIndex+1,
	)

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     pdf,
					},
				},
			},
		},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("RecognizePage: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("RecognizePage: empty response from model")
	}
	return stripFences(text), nil
}

var _ Engine = (*Gemini)(nil)
