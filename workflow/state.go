// Package workflow defines the lesson-webpage generation graph: its state
// schema, nodes, routers, and wiring. The engine in package flow sequences
// and checkpoints it; everything model- or deployment-specific lives behind
// the collaborator interfaces in this package.
package workflow

import (
	"github.com/lessonforge/lessonforge/flow"
	"github.com/lessonforge/lessonforge/model"
)

// State field keys. All fields use overwrite semantics except KeyMessages,
// which accumulates the model conversation log.
const (
	KeyTheme        = "theme"
	KeyUserFeedback = "user_feedback"

	KeyFramework    = "curriculum_framework"
	KeyLessonDraft  = "lesson_draft"
	KeyFinalContent = "final_lesson_content"

	KeyImageSpecs      = "image_specs"
	KeyGeneratedImages = "generated_images"

	KeyWebpageHTML   = "webpage_html"
	KeyDeploymentURL = "deployment_url"

	KeyMessages = "messages"
)

// Node names.
const (
	NodeLoadFramework   = "load_framework"
	NodeGenerateDraft   = "generate_initial_draft"
	NodeReviseDraft     = "revise_draft"
	NodeFinalizeContent = "finalize_content"
	NodeAnalyzeImages   = "analyze_image_needs"
	NodeGenerateImages  = "generate_images"
	NodeRegenerateImage = "regenerate_single_image"
	NodeGenerateWebpage = "generate_webpage"
	NodeDeployWebpage   = "deploy_webpage"
)

// Schema declares the lesson-generation state fields and their reducers.
func Schema() *flow.Schema {
	sc := flow.NewSchema()
	for _, key := range []string{
		KeyTheme, KeyUserFeedback,
		KeyFramework, KeyLessonDraft, KeyFinalContent,
		KeyImageSpecs, KeyGeneratedImages,
		KeyWebpageHTML, KeyDeploymentURL,
	} {
		sc.AddField(key, flow.Field{})
	}
	sc.AddField(KeyMessages, flow.Field{
		Default: func() any { return []any{} },
		Reducer: flow.Append,
	})
	return sc
}

// stringField reads a string field, tolerating absence.
func stringField(state flow.State, key string) string {
	s, _ := state[key].(string)
	return s
}

// messageLog converts a model exchange into entries for the accumulating
// message history field.
func messageLog(msgs []model.Message, reply string) []any {
	out := make([]any, 0, len(msgs)+1)
	for _, m := range msgs {
		out = append(out, map[string]any{"role": m.Role, "content": m.Content})
	}
	if reply != "" {
		out = append(out, map[string]any{"role": model.RoleAssistant, "content": reply})
	}
	return out
}
