package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lessonforge/lessonforge/flow"
	"github.com/lessonforge/lessonforge/model"
)

// fakeImages is a scripted ImageGenerator.
type fakeImages struct {
	prompts []string
	err     error
	failOn  string // prompt substring that triggers err for that call only
}

func (f *fakeImages) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if f.failOn != "" && strings.Contains(prompt, f.failOn) {
		return "", errors.New("render failed")
	}
	return "https://img.test/" + string(rune('0'+len(f.prompts))), nil
}

func writeFramework(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "framework.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFramework(t *testing.T) {
	t.Run("reads file", func(t *testing.T) {
		n := &Nodes{FrameworkPath: writeFramework(t, "# My Framework")}
		patch, err := n.LoadFramework(context.Background(), flow.State{})
		if err != nil {
			t.Fatalf("LoadFramework() error: %v", err)
		}
		if patch[KeyFramework] != "# My Framework" {
			t.Errorf("framework = %v", patch[KeyFramework])
		}
	})

	t.Run("missing file falls back", func(t *testing.T) {
		n := &Nodes{FrameworkPath: "/does/not/exist.md"}
		patch, err := n.LoadFramework(context.Background(), flow.State{})
		if err != nil {
			t.Fatalf("LoadFramework() error: %v", err)
		}
		if fw, _ := patch[KeyFramework].(string); !strings.Contains(fw, "Lesson Framework") {
			t.Errorf("fallback framework = %v", patch[KeyFramework])
		}
	})
}

func TestGenerateDraft(t *testing.T) {
	mock := model.NewMock("# Lesson: Ocean Friends\n\n**dolphin** (a sea animal)")
	n := &Nodes{Model: mock}
	state := flow.State{
		KeyTheme:     "ocean animals",
		KeyFramework: "framework text",
	}

	patch, err := n.GenerateDraft(context.Background(), state)
	if err != nil {
		t.Fatalf("GenerateDraft() error: %v", err)
	}
	if draft, _ := patch[KeyLessonDraft].(string); !strings.Contains(draft, "Ocean Friends") {
		t.Errorf("draft = %v", patch[KeyLessonDraft])
	}

	sent := mock.Calls[0]
	if sent[0].Role != model.RoleSystem {
		t.Errorf("first message role = %q, want system", sent[0].Role)
	}
	if !strings.Contains(sent[1].Content, "framework text") ||
		!strings.Contains(sent[1].Content, "ocean animals") {
		t.Errorf("user prompt missing framework or theme: %q", sent[1].Content)
	}

	log, _ := patch[KeyMessages].([]any)
	if len(log) != 3 {
		t.Errorf("message log has %d entries, want prompt pair plus reply", len(log))
	}
}

func TestGenerateDraftModelFailure(t *testing.T) {
	mock := &model.Mock{Err: errors.New("rate limited")}
	n := &Nodes{Model: mock}

	patch, err := n.GenerateDraft(context.Background(), flow.State{KeyTheme: "x"})
	if err != nil {
		t.Fatalf("model failure must be absorbed, got error: %v", err)
	}
	if draft, _ := patch[KeyLessonDraft].(string); !strings.Contains(draft, "Error") {
		t.Errorf("draft = %v, want error placeholder", patch[KeyLessonDraft])
	}
}

func TestReviseDraft(t *testing.T) {
	mock := model.NewMock("revised draft")
	n := &Nodes{Model: mock}
	state := flow.State{
		KeyLessonDraft:  "original draft",
		KeyUserFeedback: "make the game shorter",
	}

	patch, err := n.ReviseDraft(context.Background(), state)
	if err != nil {
		t.Fatalf("ReviseDraft() error: %v", err)
	}
	if patch[KeyLessonDraft] != "revised draft" {
		t.Errorf("draft = %v", patch[KeyLessonDraft])
	}
	if !strings.Contains(mock.Calls[0][1].Content, "make the game shorter") {
		t.Errorf("feedback missing from prompt: %q", mock.Calls[0][1].Content)
	}

	t.Run("failure keeps prior draft", func(t *testing.T) {
		failing := &model.Mock{Err: errors.New("down")}
		n := &Nodes{Model: failing}
		patch, err := n.ReviseDraft(context.Background(), state)
		if err != nil {
			t.Fatalf("ReviseDraft() error: %v", err)
		}
		if draft, _ := patch[KeyLessonDraft].(string); !strings.Contains(draft, "original draft") {
			t.Errorf("failed revision lost the draft: %v", draft)
		}
	})
}

func TestFinalizeContent(t *testing.T) {
	n := &Nodes{}
	patch, err := n.FinalizeContent(context.Background(), flow.State{
		KeyLessonDraft:  "approved draft",
		KeyUserFeedback: "同意",
	})
	if err != nil {
		t.Fatalf("FinalizeContent() error: %v", err)
	}
	if patch[KeyFinalContent] != "approved draft" {
		t.Errorf("final content = %v", patch[KeyFinalContent])
	}
	if patch[KeyUserFeedback] != "" {
		t.Errorf("content-stage approval must not leak into the webpage stage, feedback = %v",
			patch[KeyUserFeedback])
	}
}

func TestAnalyzeImageNeeds(t *testing.T) {
	n := &Nodes{}
	patch, err := n.AnalyzeImageNeeds(context.Background(), flow.State{
		KeyFinalContent: "**dolphin** (a sea animal) and **whale**",
	})
	if err != nil {
		t.Fatalf("AnalyzeImageNeeds() error: %v", err)
	}
	specs := specsFromState(patch[KeyImageSpecs])
	if len(specs) != 2 || specs[0].Word != "dolphin" || specs[1].Word != "whale" {
		t.Errorf("specs = %+v", specs)
	}
}

func TestGenerateImages(t *testing.T) {
	gen := &fakeImages{failOn: "whale"}
	n := &Nodes{Images: gen}
	state := flow.State{
		KeyImageSpecs: specsToState([]ImageSpec{
			{ID: "img_01", Word: "dolphin", Description: "a sea animal", Prompt: "draw a dolphin"},
			{ID: "img_02", Word: "whale", Description: "a big animal", Prompt: "draw a whale"},
		}),
	}

	patch, err := n.GenerateImages(context.Background(), state)
	if err != nil {
		t.Fatalf("GenerateImages() error: %v", err)
	}
	images := imagesFromState(patch[KeyGeneratedImages])
	if len(images) != 1 {
		t.Fatalf("got %d images, want 1 (failed render skipped): %+v", len(images), images)
	}
	if images[0].Word != "dolphin" || images[0].URL == "" {
		t.Errorf("images[0] = %+v", images[0])
	}
	if images[0].AltText != "dolphin - a sea animal" {
		t.Errorf("alt text = %q", images[0].AltText)
	}
}

func TestGenerateImagesNoGenerator(t *testing.T) {
	n := &Nodes{}
	patch, err := n.GenerateImages(context.Background(), flow.State{
		KeyImageSpecs: specsToState([]ImageSpec{{ID: "img_01", Word: "w", Prompt: "p"}}),
	})
	if err != nil {
		t.Fatalf("GenerateImages() error: %v", err)
	}
	if images := imagesFromState(patch[KeyGeneratedImages]); len(images) != 0 {
		t.Errorf("images = %+v, want none without a generator", images)
	}
}

func TestRegenerateSingleImage(t *testing.T) {
	baseState := func() flow.State {
		return flow.State{
			KeyImageSpecs: specsToState([]ImageSpec{
				{ID: "img_01", Word: "dolphin", Prompt: "draw a dolphin"},
				{ID: "img_02", Word: "whale", Prompt: "draw a whale"},
			}),
			KeyGeneratedImages: imagesToState([]GeneratedImage{
				{ID: "img_01", Word: "dolphin", URL: "https://old/1"},
				{ID: "img_02", Word: "whale", URL: "https://old/2"},
			}),
		}
	}

	t.Run("targets the named image", func(t *testing.T) {
		gen := &fakeImages{}
		n := &Nodes{Images: gen}
		state := baseState()
		state[KeyUserFeedback] = "the whale image looks scary"

		patch, err := n.RegenerateSingleImage(context.Background(), state)
		if err != nil {
			t.Fatalf("RegenerateSingleImage() error: %v", err)
		}
		images := imagesFromState(patch[KeyGeneratedImages])
		if images[0].URL != "https://old/1" {
			t.Errorf("untargeted image changed: %+v", images[0])
		}
		if images[1].URL == "https://old/2" {
			t.Errorf("targeted image unchanged: %+v", images[1])
		}
		if !strings.Contains(gen.prompts[0], "draw a whale") ||
			!strings.Contains(gen.prompts[0], "looks scary") {
			t.Errorf("prompt = %q, want original spec plus revision request", gen.prompts[0])
		}
	})

	t.Run("no match falls back to first image", func(t *testing.T) {
		gen := &fakeImages{}
		n := &Nodes{Images: gen}
		state := baseState()
		state[KeyUserFeedback] = "换一张图"

		patch, err := n.RegenerateSingleImage(context.Background(), state)
		if err != nil {
			t.Fatalf("RegenerateSingleImage() error: %v", err)
		}
		images := imagesFromState(patch[KeyGeneratedImages])
		if images[0].URL == "https://old/1" {
			t.Errorf("first image should have been redone: %+v", images[0])
		}
	})

	t.Run("generator failure keeps the set", func(t *testing.T) {
		gen := &fakeImages{err: errors.New("down")}
		n := &Nodes{Images: gen}
		state := baseState()
		state[KeyUserFeedback] = "whale"

		patch, err := n.RegenerateSingleImage(context.Background(), state)
		if err != nil {
			t.Fatalf("RegenerateSingleImage() error: %v", err)
		}
		if _, ok := patch[KeyGeneratedImages]; ok {
			t.Errorf("failed regeneration must leave the image set untouched")
		}
	})
}

func TestGenerateWebpage(t *testing.T) {
	t.Run("first render", func(t *testing.T) {
		mock := model.NewMock("```html\n<!DOCTYPE html>\n<html><body>page</body></html>\n```")
		n := &Nodes{Model: mock}
		state := flow.State{
			KeyFinalContent: "lesson content",
			KeyGeneratedImages: imagesToState([]GeneratedImage{
				{Word: "dolphin", URL: "https://img.test/1"},
			}),
		}

		patch, err := n.GenerateWebpage(context.Background(), state)
		if err != nil {
			t.Fatalf("GenerateWebpage() error: %v", err)
		}
		html, _ := patch[KeyWebpageHTML].(string)
		if strings.Contains(html, "```") {
			t.Errorf("code fence not stripped: %q", html)
		}
		if !strings.HasPrefix(html, "<!DOCTYPE html>") {
			t.Errorf("html = %q", html)
		}
		if !strings.Contains(mock.Calls[0][1].Content, "https://img.test/1") {
			t.Errorf("image URL missing from prompt: %q", mock.Calls[0][1].Content)
		}
	})

	t.Run("revision pass includes current page", func(t *testing.T) {
		mock := model.NewMock("<html>v2</html>")
		n := &Nodes{Model: mock}
		state := flow.State{
			KeyFinalContent: "lesson content",
			KeyUserFeedback: "make the background blue",
			KeyWebpageHTML:  "<html>v1</html>",
		}

		if _, err := n.GenerateWebpage(context.Background(), state); err != nil {
			t.Fatalf("GenerateWebpage() error: %v", err)
		}
		prompt := mock.Calls[0][1].Content
		if !strings.Contains(prompt, "make the background blue") ||
			!strings.Contains(prompt, "<html>v1</html>") {
			t.Errorf("revision prompt missing feedback or current page: %q", prompt)
		}
	})

	t.Run("model failure yields error page", func(t *testing.T) {
		n := &Nodes{Model: &model.Mock{Err: errors.New("down")}}
		patch, err := n.GenerateWebpage(context.Background(), flow.State{KeyFinalContent: "c"})
		if err != nil {
			t.Fatalf("GenerateWebpage() error: %v", err)
		}
		if html, _ := patch[KeyWebpageHTML].(string); !strings.Contains(html, "Error") {
			t.Errorf("html = %q, want error page", html)
		}
	})
}

func TestDeployWebpage(t *testing.T) {
	n := &Nodes{Deployer: NewLocalDeployer(t.TempDir())}
	patch, err := n.DeployWebpage(context.Background(), flow.State{
		KeyWebpageHTML: "<html></html>",
	})
	if err != nil {
		t.Fatalf("DeployWebpage() error: %v", err)
	}
	if url, _ := patch[KeyDeploymentURL].(string); !strings.HasPrefix(url, "file://") {
		t.Errorf("url = %v", patch[KeyDeploymentURL])
	}
}

func TestExtractHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"html fence", "Here you go:\n```html\n<html>x</html>\n```\nEnjoy!", "<html>x</html>"},
		{"bare fence", "```\n<html>x</html>\n```", "<html>x</html>"},
		{"no fence", "  <!DOCTYPE html>\n<html>x</html>  ", "<!DOCTYPE html>\n<html>x</html>"},
		{"plain text", "just text", "just text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractHTML(tt.in); got != tt.want {
				t.Errorf("extractHTML() = %q, want %q", got, tt.want)
			}
		})
	}
}
