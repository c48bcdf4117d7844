package workflow

import "github.com/lessonforge/lessonforge/flow"

// Build assembles the lesson-production graph.
//
// The graph has two review loops, each gated by a human-in-the-loop
// interrupt: the content loop (draft -> feedback -> revise) and the webpage
// loop (deploy -> feedback -> rework or fix an image). Interrupts fire after
// the nodes whose output the user must review.
func Build(n *Nodes) (*flow.Graph, error) {
	g := flow.NewGraph(Schema())

	contentTargets := map[string]string{
		LabelFinalize: NodeFinalizeContent,
		LabelRevise:   NodeReviseDraft,
	}
	webpageTargets := map[string]string{
		LabelApprove:    flow.End,
		LabelFixImage:   NodeRegenerateImage,
		LabelReworkPage: NodeGenerateWebpage,
	}

	steps := []error{
		g.AddNode(NodeLoadFramework, n.LoadFramework),
		g.AddNode(NodeGenerateDraft, n.GenerateDraft),
		g.AddNode(NodeReviseDraft, n.ReviseDraft),
		g.AddNode(NodeFinalizeContent, n.FinalizeContent),
		g.AddNode(NodeAnalyzeImages, n.AnalyzeImageNeeds),
		g.AddNode(NodeGenerateImages, n.GenerateImages),
		g.AddNode(NodeRegenerateImage, n.RegenerateSingleImage),
		g.AddNode(NodeGenerateWebpage, n.GenerateWebpage),
		g.AddNode(NodeDeployWebpage, n.DeployWebpage),

		g.SetEntryPoint(NodeLoadFramework),
		g.AddEdge(NodeLoadFramework, NodeGenerateDraft),

		g.AddConditionalEdges(NodeGenerateDraft, RouteContentFeedback, contentTargets),
		g.AddConditionalEdges(NodeReviseDraft, RouteContentFeedback, contentTargets),

		g.AddEdge(NodeFinalizeContent, NodeAnalyzeImages),
		g.AddEdge(NodeAnalyzeImages, NodeGenerateImages),
		g.AddEdge(NodeGenerateImages, NodeGenerateWebpage),
		g.AddEdge(NodeGenerateWebpage, NodeDeployWebpage),

		g.AddConditionalEdges(NodeDeployWebpage, RouteWebpageFeedback, webpageTargets),
		g.AddEdge(NodeRegenerateImage, NodeGenerateWebpage),

		g.InterruptAfter(NodeGenerateDraft, NodeReviseDraft, NodeDeployWebpage),
	}
	for _, err := range steps {
		if err != nil {
			return nil, err
		}
	}

	if err := g.Compile(); err != nil {
		return nil, err
	}
	return g, nil
}
