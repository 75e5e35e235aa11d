package recap

// Pass result contracts. Each pass prompt carries the matching response
// format block; the structured caller decodes and validates model output
// against these types, and any mismatch is fatal to the generation.

// Pass1Result is the scene-discovery output.
type Pass1Result struct {
	// Scenes is the discovered scene list. An empty list passes schema
	// validation; the orchestrator turns it into [ErrNoScenes].
	Scenes []DiscoveredScene `json:"scenes" validate:"dive"`

	// NPCs are non-player characters detected alongside scene discovery.
	NPCs []DetectedNPC `json:"npcs" validate:"dive"`
}

// Pass2Result is the per-scene extraction output.
type Pass2Result = SceneDetails

// Pass3Result is the synthesis output, merged with roster-derived metadata
// into the final [SessionRecap].
type Pass3Result struct {
	Scenes          []RecapScene   `json:"scenes" validate:"required,dive"`
	OpeningContext  OpeningContext `json:"openingContext"`
	SceneHighlights []SceneSection `json:"sceneHighlights" validate:"dive"`
	Highlights      []Highlight    `json:"highlights" validate:"dive"`
	Quotes          []Quote        `json:"quotes" validate:"dive"`
	Narrative       string         `json:"narrative" validate:"required"`
}

// pass1ResponseFormat is appended to the pass-1 prompt. The JSON shape must
// stay in sync with [Pass1Result].
const pass1ResponseFormat = `## Response Format

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "scenes": [
    {
      "name": "<descriptive scene name>",
      "startTimestampSeconds": <integer>,
      "endTimestampSeconds": <integer>,
      "location": "<primary location>",
      "characters": ["<character name>", ...]
    }
  ],
  "npcs": [
    {
      "canonicalName": "<best spelling of the NPC's name>",
      "variations": ["<spelling heard in transcript>", ...]
    }
  ]
}`

// pass2ResponseFormat is appended to the pass-2 prompt. The JSON shape must
// stay in sync with [SceneDetails].
const pass2ResponseFormat = `## Response Format

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "sceneName": "<scene name>",
  "charactersPresent": ["<character name>", ...],
  "timeOfDay": "<morning|afternoon|evening|night>" or null,
  "events": [
    {
      "description": "<specific action or occurrence>",
      "character": "<acting character>" or null,
      "items": ["<item with quantity and cost>", ...],
      "goldAmounts": ["<gold amount verbatim>", ...]
    }
  ],
  "quotes": [
    {"speaker": "<character name>", "text": "<exact quote>", "context": "<why it matters>" or null}
  ],
  "enemies": ["<enemy or hostile NPC>", ...]
}`

// pass3ResponseFormat is appended to the pass-3 prompt. The JSON shape must
// stay in sync with [Pass3Result].
const pass3ResponseFormat = `## Response Format

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "scenes": [
    {"name": "...", "characters": [...], "locations": [...], "enemies": [...]}
  ],
  "openingContext": {"startingState": "...", "objectives": ["...", ...]},
  "sceneHighlights": [
    {
      "sceneName": "...",
      "charactersPresent": [...],
      "timeOfDay": "..." or null,
      "highlights": [
        {"text": "<parent bullet>", "subBullets": ["<detail>", ...]}
      ]
    }
  ],
  "highlights": [
    {"category": "combat|roleplay|discovery|decision|humor", "description": "...", "participants": [...] or null}
  ],
  "quotes": [
    {"speaker": "<character name>", "text": "...", "context": "..." or null}
  ],
  "narrative": "<2-3 paragraphs of prose>"
}`
