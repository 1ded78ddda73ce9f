// Package prompts holds the static prompt templates used by the PR agent.
//
// Templates are plain strings with a {document} placeholder. The client
// brief template also takes a list of media outlets.
//
//	text := prompts.Render(prompts.PressReleaseAnalysis, releaseText)
//	brief := prompts.RenderClientBrief(briefText, []string{"Wired", "TechCrunch"})
package prompts
