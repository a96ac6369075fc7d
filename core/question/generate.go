package question

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// model call temperatures; lower = more deterministic
const (
	generateTemperature = 0.7
	customTemperature   = 0.0
	rubricTemperature   = 0.1
)

const defaultMarks = 7

const generateSystemPromptFmt = `You are a JSON generation service. Your sole purpose is to take a list of topics and a number, and return a valid JSON object. You must not output any other text, explanations, or conversational filler.

The JSON object you generate must have a single root key called "questions". The value of "questions" must be a JSON array containing exactly %d question objects.

Even if %d is 1, the "questions" key must still contain an array with that single object.

Each object in the "questions" array must have the following structure:
{
  "question": "The actual question text?",
  "topic": ["List", "of", "relevant", "topics"],
  "marks": <an integer mark between 1 and 8>
}

Here is an example of a well-formed response to use as a reference for style and content:
{
  "questions": %s
}
`

const customSystemPrompt = `You are a JSON generation service. Your sole purpose is to take a user's proposed assignment question and return a single, valid JSON object. You must not output any other text, explanations, or conversational filler.

The JSON object you generate must have the following structure:
{
  "question": "The refined, clear, and well-structured question text.",
  "topic": ["A", "list", "of", "relevant", "topics"],
  "marks": <an integer mark between 1 and 8>
}

Here is an example:
---
User Input: "make a hough transform thing to find lines"
Your Output:
{
  "question": "Implement the Hough Transform from scratch to detect straight lines in a binary edge-detected image. Your implementation should include creating and visualizing the parameter space (Hough space). Finally, draw the detected lines over the original image.",
  "topic": ["Hough Transform", "Edge Detection", "Feature Extraction", "Image Processing"],
  "marks": 7
}
---
Now, process the user's input and provide only the JSON object as output.
`

const rubricSystemPrompt = `You are an expert in academic assessments. Your task is to create a detailed evaluation rubric for a given assignment question. The rubric must be a valid JSON object.

The root of the JSON object should be a "rubric" key, which contains an array of criteria objects. Each criterion object must have two keys: "criterion" (a string describing the assessment point) and "marks" (an integer).

The total marks for all criteria should sum up to the marks assigned to the question, which will be mentioned in the user prompt.

Example:
---
User Input: "Implement the Hough Transform from scratch to detect straight lines in a binary edge-detected image. (7 marks)"
Your Output:
{
  "rubric": [
    {
      "criterion": "Correct implementation of the Hough accumulator space.",
      "marks": 3
    },
    {
      "criterion": "Accurate detection and visualization of peaks in the accumulator.",
      "marks": 2
    },
    {
      "criterion": "Correctly drawing the detected lines back onto the original image.",
      "marks": 2
    }
  ]
}
---

Now, generate the rubric for the following question.
`

func buildGeneratePrompt(topics []string, count int) (core.ChatRequest, error) {
	shots, err := json.MarshalIndent(selectFewShots(topics, 3), "", "  ")
	if err != nil {
		return core.ChatRequest{}, errors.Wrap(err, "serializing few-shot examples")
	}
	return core.ChatRequest{
		SystemPrompt: fmt.Sprintf(generateSystemPromptFmt, count, count, shots),
		UserPrompt: fmt.Sprintf(
			"Topics: %s\nNumber of Questions to Generate: %d\n",
			strings.Join(topics, ", "), count,
		),
		Temperature: generateTemperature,
	}, nil
}

// parseGenerated extracts the question array from the model's JSON document,
// regardless of the root key it was placed under.
func parseGenerated(raw []byte) ([]Generated, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding model response")
	}

	for _, val := range doc {
		var generated []Generated
		if err := json.Unmarshal(val, &generated); err == nil && len(generated) > 0 {
			return fillDefaults(generated), nil
		}
	}
	return nil, errors.New("no question array in model response")
}

func parseCustom(raw []byte) (Generated, error) {
	var g Generated
	if err := json.Unmarshal(raw, &g); err != nil {
		return Generated{}, errors.Wrap(err, "decoding model response")
	}
	if g.Text == "" {
		return Generated{}, errors.New("no question in model response")
	}
	if g.Marks.Int() <= 0 {
		g.Marks = defaultMarks
	}
	return g, nil
}

func parseRubric(raw []byte) ([]RubricItem, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding model response")
	}

	if val, ok := doc["rubric"]; ok {
		var rubric []RubricItem
		if err := json.Unmarshal(val, &rubric); err == nil && len(rubric) > 0 {
			return rubric, nil
		}
	}
	for _, val := range doc {
		var rubric []RubricItem
		if err := json.Unmarshal(val, &rubric); err == nil && len(rubric) > 0 {
			return rubric, nil
		}
	}
	return nil, errors.New("no rubric array in model response")
}

func fillDefaults(generated []Generated) []Generated {
	for i := range generated {
		if generated[i].Marks.Int() <= 0 {
			generated[i].Marks = defaultMarks
		}
	}
	return generated
}
