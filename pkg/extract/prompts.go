package extract

import (
	"fmt"

	"github.com/harrisonrobin/gsd/pkg/model"
)

const taskSchema = `{
  "task": "Clear, actionable task description",
  "priority": "high|medium|low",
  "estimatedDuration": number in minutes,
  "deadline": "YYYY-MM-DD or YYYY-MM-DDTHH:MM, or null",
  "project": "inferred project/category name",
  "tags": ["tag1", "tag2"]
}`

func textPrompt(text string, c model.CaptureContext) string {
	return fmt.Sprintf(`Analyze the following highlighted text and extract a clear, actionable task.

Context:
- Page: %s
- URL: %s

Highlighted text:
%q

Extract the following in JSON format:
%s

Be concise and specific. If information is not explicit, make reasonable inferences.`, c.Title, c.URL, text, taskSchema)
}

func imagePrompt(c model.CaptureContext) string {
	return fmt.Sprintf(`Analyze this screenshot and extract any tasks, action items, or work to be done.

Context:
- Page: %s
- URL: %s

Look for:
- Task descriptions or action items
- Deadlines or dates mentioned
- Priority indicators
- Project or category information

Extract the following in JSON format:
{
  "tasks": [
    %s
  ]
}

If no clear tasks are found, describe what you see and suggest potential action items.`, c.Title, c.URL, taskSchema)
}

func audioPrompt(c model.CaptureContext, recordedAt string) string {
	source := c.Source
	if source == "" {
		source = "Voice memo"
	}
	return fmt.Sprintf(`Transcribe and analyze this audio recording to extract tasks and action items.

Context:
- Recorded at: %s
- Source: %s

Extract the following in JSON format:
{
  "transcription": "Full transcription of the audio",
  "tasks": [
    %s
  ]
}

Identify all action items, meetings mentioned, deadlines, and key points.`, recordedAt, source, taskSchema)
}
