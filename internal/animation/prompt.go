package animation

import (
	"fmt"
	"strings"
)

// BuildFramePrompt renders the generation prompt for a single frame of
// a motion cycle. frame is 1-based. Every frame of a run shares the
// same template so the model keeps composition and identity stable.
func BuildFramePrompt(action string, frame, total int, preset MotionPreset) string {
	if total < 1 {
		total = 1
	}
	if frame < 1 {
		frame = 1
	}
	if frame > total {
		frame = total
	}
	action = strings.TrimSpace(action)
	if action == "" {
		action = "an idle stance"
	}

	var b strings.Builder
	b.Grow(2048)

	b.WriteString(fmt.Sprintf("TASK: Generate frame %d of %d for a looping 2D character animation.\n\n", frame, total))

	b.WriteString("REFERENCE IMAGE (IDENTITY LOCK): The attached image is the character to animate.\n")
	b.WriteString("- Redraw the exact same character: identical proportions, colors, outfit, and art style.\n")
	b.WriteString("- Do NOT redesign the character, change its body shape, or add new accessories.\n")
	b.WriteString("- Keep line weight, shading style, and palette consistent with the reference.\n\n")

	b.WriteString("MOTION:\n")
	b.WriteString(fmt.Sprintf("- Action: %s.\n", action))
	b.WriteString(fmt.Sprintf("- Pose the character at phase %d/%d of the motion cycle.\n", frame, total))
	b.WriteString("- The cycle must loop seamlessly: the pose after the last frame is frame 1 again.\n")
	b.WriteString("- Motion between neighboring frames is small and even; no sudden jumps.\n")
	for _, line := range uniq(preset.Guidance) {
		b.WriteString("- " + line + "\n")
	}
	b.WriteString("\n")

	b.WriteString("HARD CONSTRAINTS:\n")
	for _, line := range []string{
		"Frontal orthographic view: camera straight-on, no perspective distortion.",
		"Pure white background (#FFFFFF). No shadows, gradients, floors, or props behind the character.",
		"Full-body framing: the entire character visible with clear margin to every edge.",
		"Exactly one character. No duplicates, text, labels, grids, panels, or sprite sheets.",
		"Same composition every frame: character centered at the same scale, feet on the same line.",
	} {
		b.WriteString("- " + line + "\n")
	}
	b.WriteString("\n")

	b.WriteString("OUTPUT RULES:\n")
	b.WriteString("- Return exactly 1 image.\n")
	b.WriteString("- Images only. No text, no JSON.\n")

	return strings.TrimSpace(b.String())
}

func uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
