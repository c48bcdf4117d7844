package workflow

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/lessonforge/lessonforge/flow"
	"github.com/lessonforge/lessonforge/model"
)

// Nodes bundles the collaborators the workflow nodes need. One Nodes value is
// constructed at startup and captured by the node closures at registration;
// there is no ambient global state.
//
// Every node absorbs its own recoverable failures into a placeholder field
// rather than returning an error, so a flaky model or deploy target degrades
// the content instead of aborting the graph.
type Nodes struct {
	Model         model.ChatModel
	Images        ImageGenerator
	Deployer      Deployer
	FrameworkPath string
}

const frameworkFallback = `# Lesson Framework

1. Warm-up: greeting song and review.
2. Key vocabulary: 4-6 new words with pictures.
3. Sentence patterns: 2-3 sentences using the new words.
4. Activity: a game or chant practicing the patterns.
5. Wrap-up: review and goodbye song.`

// LoadFramework reads the curriculum framework from disk. A missing file
// degrades to a built-in minimal framework so a fresh checkout still works.
func (n *Nodes) LoadFramework(_ context.Context, _ flow.State) (flow.Patch, error) {
	data, err := os.ReadFile(n.FrameworkPath)
	if err != nil {
		return flow.Patch{KeyFramework: frameworkFallback}, nil
	}
	return flow.Patch{KeyFramework: string(data)}, nil
}

// GenerateDraft asks the model for the first lesson draft from the theme and
// framework.
func (n *Nodes) GenerateDraft(ctx context.Context, state flow.State) (flow.Patch, error) {
	msgs := []model.Message{
		{Role: model.RoleSystem, Content: draftSystemPrompt},
		{Role: model.RoleUser, Content: fmt.Sprintf(draftUserTemplate,
			stringField(state, KeyFramework), stringField(state, KeyTheme))},
	}
	out, err := n.Model.Chat(ctx, msgs)
	if err != nil {
		return flow.Patch{
			KeyLessonDraft: "Error: the model call for the initial draft failed. Please try again.",
			KeyMessages:    messageLog(msgs, ""),
		}, nil
	}
	return flow.Patch{
		KeyLessonDraft: out.Text,
		KeyMessages:    messageLog(msgs, out.Text),
	}, nil
}

// ReviseDraft applies the user's feedback to the current draft.
func (n *Nodes) ReviseDraft(ctx context.Context, state flow.State) (flow.Patch, error) {
	msgs := []model.Message{
		{Role: model.RoleSystem, Content: reviseSystemPrompt},
		{Role: model.RoleUser, Content: fmt.Sprintf(reviseUserTemplate,
			stringField(state, KeyLessonDraft), stringField(state, KeyUserFeedback))},
	}
	out, err := n.Model.Chat(ctx, msgs)
	if err != nil {
		return flow.Patch{
			KeyLessonDraft: stringField(state, KeyLessonDraft) +
				"\n\n(Error: the revision call failed; the draft above is unchanged.)",
			KeyMessages: messageLog(msgs, ""),
		}, nil
	}
	return flow.Patch{
		KeyLessonDraft: out.Text,
		KeyMessages:    messageLog(msgs, out.Text),
	}, nil
}

// FinalizeContent freezes the approved draft as the final lesson content.
// It also clears user_feedback: the approval that routed here belongs to the
// content stage and must not leak into the webpage-stage router.
func (n *Nodes) FinalizeContent(_ context.Context, state flow.State) (flow.Patch, error) {
	return flow.Patch{
		KeyFinalContent: stringField(state, KeyLessonDraft),
		KeyUserFeedback: "",
	}, nil
}

// AnalyzeImageNeeds extracts illustration requirements from the finalized
// lesson content.
func (n *Nodes) AnalyzeImageNeeds(_ context.Context, state flow.State) (flow.Patch, error) {
	specs := extractImageSpecs(stringField(state, KeyFinalContent))
	return flow.Patch{KeyImageSpecs: specsToState(specs)}, nil
}

// GenerateImages renders one illustration per spec. Per-image failures are
// skipped so one bad prompt doesn't lose the rest of the set.
func (n *Nodes) GenerateImages(ctx context.Context, state flow.State) (flow.Patch, error) {
	specs := specsFromState(state[KeyImageSpecs])
	if n.Images == nil || len(specs) == 0 {
		return flow.Patch{KeyGeneratedImages: []any{}}, nil
	}

	images := make([]GeneratedImage, 0, len(specs))
	for _, spec := range specs {
		url, err := n.Images.Generate(ctx, spec.Prompt)
		if err != nil {
			continue
		}
		images = append(images, GeneratedImage{
			ID:      spec.ID,
			Word:    spec.Word,
			URL:     url,
			AltText: spec.Word + " - " + spec.Description,
		})
	}
	return flow.Patch{KeyGeneratedImages: imagesToState(images)}, nil
}

// RegenerateSingleImage re-renders the image the user's feedback targets,
// identified by matching the image's word against the feedback text. If no
// image matches, the set is returned unchanged.
func (n *Nodes) RegenerateSingleImage(ctx context.Context, state flow.State) (flow.Patch, error) {
	images := imagesFromState(state[KeyGeneratedImages])
	feedback := normalize(stringField(state, KeyUserFeedback))
	if n.Images == nil || len(images) == 0 {
		return flow.Patch{}, nil
	}

	target := -1
	for i, img := range images {
		if img.Word != "" && strings.Contains(feedback, strings.ToLower(img.Word)) {
			target = i
			break
		}
	}
	if target < 0 {
		// No specific image named; redo the first one.
		target = 0
	}

	specs := specsFromState(state[KeyImageSpecs])
	prompt := illustrationPrompt(images[target].Word, "")
	for _, spec := range specs {
		if spec.ID == images[target].ID {
			prompt = spec.Prompt
			break
		}
	}
	prompt += " Revision request: " + stringField(state, KeyUserFeedback)

	url, err := n.Images.Generate(ctx, prompt)
	if err != nil {
		return flow.Patch{}, nil
	}
	images[target].URL = url
	return flow.Patch{KeyGeneratedImages: imagesToState(images)}, nil
}

// GenerateWebpage turns the final lesson content into a standalone HTML page.
// When feedback and a prior page exist this is a revision pass; otherwise it
// is the first render.
func (n *Nodes) GenerateWebpage(ctx context.Context, state flow.State) (flow.Patch, error) {
	content := stringField(state, KeyFinalContent)
	feedback := strings.TrimSpace(stringField(state, KeyUserFeedback))
	current := strings.TrimSpace(stringField(state, KeyWebpageHTML))
	gallery := imageGallery(imagesFromState(state[KeyGeneratedImages]))

	var userPrompt string
	if feedback != "" && current != "" {
		userPrompt = fmt.Sprintf(webpageReviseTemplate, feedback, current, content, gallery)
	} else {
		userPrompt = fmt.Sprintf(webpageCreateTemplate, content, gallery)
	}

	msgs := []model.Message{
		{Role: model.RoleSystem, Content: webpageSystemPrompt},
		{Role: model.RoleUser, Content: userPrompt},
	}
	out, err := n.Model.Chat(ctx, msgs)
	if err != nil {
		return flow.Patch{
			KeyWebpageHTML: "<html><body><h1>Error: webpage generation failed</h1></body></html>",
			KeyMessages:    messageLog(msgs, ""),
		}, nil
	}
	return flow.Patch{
		KeyWebpageHTML: extractHTML(out.Text),
		KeyMessages:    messageLog(msgs, out.Text),
	}, nil
}

// DeployWebpage publishes the page and records its URL.
func (n *Nodes) DeployWebpage(ctx context.Context, state flow.State) (flow.Patch, error) {
	html := stringField(state, KeyWebpageHTML)
	url, err := n.Deployer.Deploy(ctx, html)
	if err != nil {
		return flow.Patch{KeyDeploymentURL: "Error: deploy failed - " + err.Error()}, nil
	}
	return flow.Patch{KeyDeploymentURL: url}, nil
}

func imageGallery(images []GeneratedImage) string {
	if len(images) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, img := range images {
		fmt.Fprintf(&b, "- %s: %s\n", img.Word, img.URL)
	}
	return b.String()
}

// codeFence matches a ```html (or bare ```) fenced block.
var codeFence = regexp.MustCompile("(?s)```(?:html)?\\s*\n(.*?)\n```")

// extractHTML pulls the HTML out of a model reply that may wrap it in a code
// fence or add commentary around it.
func extractHTML(text string) string {
	if m := codeFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.Contains(text, "<!DOCTYPE html>") || strings.Contains(text, "<html") {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text)
}
