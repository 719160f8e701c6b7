package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/pulsedeck/voicepilot/pkg/inference"
	"github.com/pulsedeck/voicepilot/pkg/plan"
)

// RecordIdeaTool builds the tool that captures a content idea into the plan.
func RecordIdeaTool(planner plan.Planner) Tool {
	return Tool{
		Name:        "record_content_idea",
		Description: "Record a content idea the user wants to post about later. Use whenever the user mentions something they might want to create content on.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Short working title for the idea",
				},
				"notes": map[string]any{
					"type":        "string",
					"description": "Free-form detail about the idea",
				},
				"platforms": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Target platforms, e.g. instagram, tiktok",
				},
			},
			"required": []string{"title"},
		},
		Handler: func(ctx context.Context, args map[string]any) (*ToolOutput, error) {
			title, _ := args["title"].(string)
			title = strings.TrimSpace(title)
			if title == "" {
				return nil, fmt.Errorf("title must not be empty")
			}
			notes, _ := args["notes"].(string)

			idea := plan.Idea{
				Title:     title,
				Notes:     notes,
				Platforms: stringSlice(args["platforms"]),
			}
			if err := planner.RecordIdea(ctx, idea); err != nil {
				return nil, fmt.Errorf("record idea: %w", err)
			}
			return &ToolOutput{Text: fmt.Sprintf("Recorded idea %q", title)}, nil
		},
	}
}

// GenerateImageTool builds the tool that produces a draft image for a post.
// The one-shot request may take seconds; the dispatcher keeps the audio
// pipeline running while it is in flight.
func GenerateImageTool(provider inference.Provider) Tool {
	return Tool{
		Name:        "generate_image",
		Description: "Generate a draft image for a social media post from a text description.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "Description of the image to generate",
				},
			},
			"required": []string{"prompt"},
		},
		Handler: func(ctx context.Context, args map[string]any) (*ToolOutput, error) {
			prompt, _ := args["prompt"].(string)
			prompt = strings.TrimSpace(prompt)
			if prompt == "" {
				return nil, fmt.Errorf("prompt must not be empty")
			}

			artifact, err := provider.Generate(ctx, &inference.Request{
				Kind:   inference.KindImage,
				Prompt: prompt,
			})
			if err != nil {
				return nil, fmt.Errorf("generate image: %w", err)
			}

			return &ToolOutput{
				Text: fmt.Sprintf("Generated image for %q", prompt),
				Attachment: &ArtifactRef{
					ID:   artifact.ID,
					Kind: string(artifact.Kind),
					URL:  artifact.URL,
				},
			}, nil
		},
	}
}

// stringSlice converts a decoded JSON array into a string slice, skipping
// non-string elements.
func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
