package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// ImageGenerator produces an illustration for a text prompt and returns a
// reference (URL or path) to the result.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ImageSpec is one illustration requirement extracted from lesson content.
type ImageSpec struct {
	ID          string `json:"id"`
	Word        string `json:"word"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

// GeneratedImage is one rendered illustration.
type GeneratedImage struct {
	ID      string `json:"id"`
	Word    string `json:"word"`
	URL     string `json:"url"`
	AltText string `json:"alt_text"`
}

// maxImagesPerLesson caps generation cost per lesson.
const maxImagesPerLesson = 4

// boldTerm matches "**word** (gloss)" vocabulary entries in the lesson
// markdown, the format the draft prompt asks the model for.
var boldTerm = regexp.MustCompile(`\*\*([A-Za-z][A-Za-z '-]*)\*\*\s*(?:[（(]([^()（）]*)[)）])?`)

// extractImageSpecs scans the finalized lesson content for key vocabulary and
// builds one illustration spec per word, capped at maxImagesPerLesson.
func extractImageSpecs(content string) []ImageSpec {
	matches := boldTerm.FindAllStringSubmatch(content, -1)
	specs := make([]ImageSpec, 0, maxImagesPerLesson)
	seen := map[string]bool{}
	for _, m := range matches {
		word := strings.TrimSpace(m[1])
		key := strings.ToLower(word)
		if word == "" || seen[key] {
			continue
		}
		seen[key] = true
		desc := strings.TrimSpace(m[2])
		specs = append(specs, ImageSpec{
			ID:          fmt.Sprintf("img_%02d", len(specs)+1),
			Word:        word,
			Description: desc,
			Prompt:      illustrationPrompt(word, desc),
		})
		if len(specs) >= maxImagesPerLesson {
			break
		}
	}
	return specs
}

func illustrationPrompt(word, desc string) string {
	p := fmt.Sprintf("A bright, friendly cartoon illustration for children learning English, showing the word %q", word)
	if desc != "" {
		p += " (" + desc + ")"
	}
	return p + ". Soft colors, simple shapes, no text in the image."
}

// specsFromState decodes the image_specs field, tolerating the []any shape
// that a JSON checkpoint round-trip produces.
func specsFromState(v any) []ImageSpec {
	items, _ := v.([]any)
	specs := make([]ImageSpec, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		specs = append(specs, ImageSpec{
			ID:          asString(m["id"]),
			Word:        asString(m["word"]),
			Description: asString(m["description"]),
			Prompt:      asString(m["prompt"]),
		})
	}
	return specs
}

// imagesFromState decodes the generated_images field.
func imagesFromState(v any) []GeneratedImage {
	items, _ := v.([]any)
	images := make([]GeneratedImage, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		images = append(images, GeneratedImage{
			ID:      asString(m["id"]),
			Word:    asString(m["word"]),
			URL:     asString(m["url"]),
			AltText: asString(m["alt_text"]),
		})
	}
	return images
}

func specsToState(specs []ImageSpec) []any {
	out := make([]any, len(specs))
	for i, s := range specs {
		out[i] = map[string]any{
			"id":          s.ID,
			"word":        s.Word,
			"description": s.Description,
			"prompt":      s.Prompt,
		}
	}
	return out
}

func imagesToState(images []GeneratedImage) []any {
	out := make([]any, len(images))
	for i, img := range images {
		out[i] = map[string]any{
			"id":       img.ID,
			"word":     img.Word,
			"url":      img.URL,
			"alt_text": img.AltText,
		}
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
