package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ImageGenerator produces images from text prompts via the OpenAI images API.
// It satisfies workflow.ImageGenerator.
type ImageGenerator struct {
	client    openai.Client
	modelName string
}

// NewImageGenerator creates an OpenAI-backed image generator. An empty
// modelName selects dall-e-3.
func NewImageGenerator(apiKey, modelName string) (*ImageGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("openai API key is required")
	}
	if modelName == "" {
		modelName = string(openai.ImageModelDallE3)
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &ImageGenerator{client: client, modelName: modelName}, nil
}

// Generate renders one image for the prompt and returns its URL.
func (g *ImageGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(g.modelName),
	})
	if err != nil {
		return "", fmt.Errorf("openai image API error: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", errors.New("no image returned from OpenAI API")
	}
	return resp.Data[0].URL, nil
}
