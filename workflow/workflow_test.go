package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/lessonforge/lessonforge/flow"
	"github.com/lessonforge/lessonforge/flow/store"
	"github.com/lessonforge/lessonforge/model"
)

// TestLessonWorkflow drives a whole lesson-production session through both
// review loops: draft revision, content approval, an image fix, and final
// approval of the page.
func TestLessonWorkflow(t *testing.T) {
	mock := model.NewMock(
		"draft v1",
		"Revised lesson with **dolphin** (a sea animal)",
		"<html>v1</html>",
		"<html>v2</html>",
	)
	gen := &fakeImages{}
	graph, err := Build(&Nodes{
		Model:         mock,
		Images:        gen,
		Deployer:      NewLocalDeployer(t.TempDir()),
		FrameworkPath: writeFramework(t, "# Framework"),
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	engine, err := flow.New(graph, store.NewMemStore())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx := context.Background()
	const sid = "chat-42"

	say := func(feedback string) flow.State {
		t.Helper()
		if err := engine.PatchState(ctx, sid, flow.Patch{KeyUserFeedback: feedback}); err != nil {
			t.Fatalf("PatchState(%q) error: %v", feedback, err)
		}
		state, err := engine.Invoke(ctx, sid, nil)
		if err != nil {
			t.Fatalf("Invoke after %q error: %v", feedback, err)
		}
		return state
	}

	// Start: runs load_framework and the first draft, then suspends for review.
	state, err := engine.Invoke(ctx, sid, flow.Patch{KeyTheme: "ocean animals"})
	if err != nil {
		t.Fatalf("initial Invoke() error: %v", err)
	}
	if state[KeyLessonDraft] != "draft v1" {
		t.Errorf("draft = %v", state[KeyLessonDraft])
	}
	if got := flow.PendingNode(state); got != NodeReviseDraft {
		t.Errorf("pending = %q, want %s", got, NodeReviseDraft)
	}

	// Revision feedback loops back into the content stage.
	state = say("开头再活泼一点")
	if !strings.Contains(stringField(state, KeyLessonDraft), "Revised lesson") {
		t.Errorf("revised draft = %v", state[KeyLessonDraft])
	}
	if flow.IsTerminal(state) {
		t.Fatal("session ended during content review")
	}

	// Approval releases the content stage without another revision pass and
	// runs through deploy.
	state = say("同意")
	if mock.CallCount() != 3 {
		t.Errorf("model calls = %d, want 3 (draft, revision, webpage)", mock.CallCount())
	}
	if !strings.Contains(stringField(state, KeyFinalContent), "dolphin") {
		t.Errorf("final content = %v", state[KeyFinalContent])
	}
	if state[KeyUserFeedback] != "" {
		t.Errorf("approval leaked past finalize: feedback = %v", state[KeyUserFeedback])
	}
	images := imagesFromState(state[KeyGeneratedImages])
	if len(images) != 1 || images[0].Word != "dolphin" {
		t.Errorf("images = %+v", images)
	}
	if url := stringField(state, KeyDeploymentURL); !strings.HasPrefix(url, "file://") {
		t.Errorf("deployment url = %q", url)
	}
	if flow.IsTerminal(state) {
		t.Fatal("session ended before webpage review")
	}

	// An image complaint regenerates the named image and redeploys within one
	// resume.
	state = say("把 dolphin 的图片换一下")
	regenerated := imagesFromState(state[KeyGeneratedImages])
	if len(regenerated) != 1 || regenerated[0].URL == images[0].URL {
		t.Errorf("images after fix = %+v, want a fresh URL for dolphin", regenerated)
	}
	if state[KeyWebpageHTML] != "<html>v2</html>" {
		t.Errorf("reworked page = %v", state[KeyWebpageHTML])
	}
	if flow.IsTerminal(state) {
		t.Fatal("session ended during image fix")
	}

	// Final approval ends the session with no further model work.
	calls := mock.CallCount()
	state = say("很好")
	if !flow.IsTerminal(state) {
		t.Fatalf("pending = %q, want terminal", flow.PendingNode(state))
	}
	if mock.CallCount() != calls {
		t.Errorf("approval triggered %d extra model calls", mock.CallCount()-calls)
	}
	if state[KeyWebpageHTML] != "<html>v2</html>" {
		t.Errorf("final page = %v", state[KeyWebpageHTML])
	}
}

// TestWorkflowResumesAcrossEngines restarts the engine mid-session and checks
// the second engine picks up from the checkpoint.
func TestWorkflowResumesAcrossEngines(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()
	const sid = "restart-1"

	build := func(mock *model.Mock) *flow.Engine {
		t.Helper()
		graph, err := Build(&Nodes{
			Model:         mock,
			Deployer:      NewLocalDeployer(t.TempDir()),
			FrameworkPath: writeFramework(t, "# Framework"),
		})
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}
		engine, err := flow.New(graph, st)
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		return engine
	}

	first := build(model.NewMock("draft v1"))
	if _, err := first.Invoke(ctx, sid, flow.Patch{KeyTheme: "weather"}); err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}

	// A fresh engine (as after a process restart) resumes the same session.
	second := build(model.NewMock("draft v2"))
	if err := second.PatchState(ctx, sid, flow.Patch{KeyUserFeedback: "再短一点"}); err != nil {
		t.Fatalf("PatchState() error: %v", err)
	}
	state, err := second.Invoke(ctx, sid, nil)
	if err != nil {
		t.Fatalf("resumed Invoke() error: %v", err)
	}
	if state[KeyLessonDraft] != "draft v2" {
		t.Errorf("draft after restart = %v", state[KeyLessonDraft])
	}
	if state[KeyTheme] != "weather" {
		t.Errorf("theme lost across restart: %v", state[KeyTheme])
	}
}
