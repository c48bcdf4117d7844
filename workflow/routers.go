package workflow

import (
	"strings"

	"github.com/lessonforge/lessonforge/flow"
)

// Router labels.
const (
	LabelFinalize   = "finalize"
	LabelRevise     = "revise"
	LabelApprove    = "approve"
	LabelFixImage   = "fix_image"
	LabelReworkPage = "rework_page"
)

// Keyword tables for feedback classification. The classification is a
// keyword-scan heuristic with an explicit precedence order, not an NLU
// contract: override categories first (image requests), then full approval
// phrases, then approval keywords gated on negation, then any non-empty
// residual input as rework, then the default.
var (
	approveKeywords = []string{"同意", "approve", "确认", "可以", "满意", "很好", "ok", "好的", "lgtm"}
	approvePhrases  = []string{"没问题", "没意见", "没啥问题", "没什么问题", "looks good"}
	negativeWords   = []string{"不", "别", "无", "非", "not ", "don't"}
	imageKeywords   = []string{"图片", "图", "picture", "image", "照片", "配图", "photo"}
)

// RouteContentFeedback decides the next step after a draft was produced.
//
//   - explicit approval -> finalize
//   - any other non-empty feedback -> revise
//   - empty feedback -> revise (the default recorded before the interrupt;
//     the router runs again once real feedback arrives)
func RouteContentFeedback(state flow.State) string {
	feedback := normalize(stringField(state, KeyUserFeedback))

	if containsAny(feedback, approvePhrases) {
		return LabelFinalize
	}
	if containsAny(feedback, approveKeywords) && !containsAny(feedback, negativeWords) {
		return LabelFinalize
	}
	if feedback != "" {
		return LabelRevise
	}
	// First pass, before any feedback exists. The recorded pending node is
	// provisional; resumption re-evaluates with the real feedback.
	return LabelRevise
}

// RouteWebpageFeedback decides the next step after the webpage was deployed.
//
// Image-modification requests take precedence over approval so that feedback
// like "满意，但是图片换一下" still routes to the image fix. Approval phrases are
// checked before approval keywords so "没问题" is not misread through its
// leading negation character.
func RouteWebpageFeedback(state flow.State) string {
	feedback := normalize(stringField(state, KeyUserFeedback))

	if containsAny(feedback, imageKeywords) {
		return LabelFixImage
	}
	if containsAny(feedback, approvePhrases) {
		return LabelApprove
	}
	hasApprove := containsAny(feedback, approveKeywords)
	hasNegative := containsAny(feedback, negativeWords)
	if hasApprove && !hasNegative {
		return LabelApprove
	}
	if feedback != "" {
		return LabelReworkPage
	}
	return LabelReworkPage
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
