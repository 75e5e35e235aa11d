// Package recap implements the multi-pass session recap pipeline:
// scene discovery (pass 1), parallel per-scene detail extraction (pass 2) and
// synthesis into the final recap document (pass 3), preceded by name
// normalisation of the input transcript.
//
// The pipeline is a straight-through data transformation: the first failed
// model call aborts the whole generation, nothing is retried, and no
// intermediate pass results are persisted. Progress is reported through a
// caller-supplied sink as discrete [Event] values.
package recap

import (
	"time"

	"github.com/MrWong99/lorequill/internal/config"
)

// DiscoveredScene is one scene boundary produced by pass 1.
//
// The model is instructed to return scenes in chronological, non-overlapping,
// contiguous order covering the full transcript span. That contract is
// asserted by prompt only and deliberately not validated or repaired here —
// matching the trust-the-model behaviour of the original pipeline. Entries
// falling outside every scene window simply contribute to no scene.
type DiscoveredScene struct {
	// Name is a short descriptive scene name.
	Name string `json:"name" validate:"required"`

	// StartTimestampSeconds is the inclusive scene start.
	StartTimestampSeconds int `json:"startTimestampSeconds" validate:"min=0"`

	// EndTimestampSeconds is the inclusive scene end.
	EndTimestampSeconds int `json:"endTimestampSeconds" validate:"min=0"`

	// Location is the primary location of the scene.
	Location string `json:"location"`

	// Characters lists the player characters present in the scene.
	Characters []string `json:"characters"`
}

// DetectedNPC is a non-player character the model spotted in the transcript
// during pass 1, with the spelling variants it was heard under. Detected NPCs
// are returned to the caller (for optional persistence into the NPC config)
// and are not referenced again inside the pipeline.
type DetectedNPC struct {
	// CanonicalName is the model's preferred spelling.
	CanonicalName string `json:"canonicalName" validate:"required"`

	// Variations are spellings as they appeared in the transcript.
	Variations []string `json:"variations"`
}

// SceneEvent is a single extracted occurrence inside a scene.
type SceneEvent struct {
	// Description is the specific action or occurrence, with exact item
	// names, quantities and gold amounts preserved verbatim.
	Description string `json:"description" validate:"required"`

	// Character is the acting character, or nil for general/party actions.
	Character *string `json:"character"`

	// Items lists items mentioned, with quantities and costs where stated.
	Items []string `json:"items"`

	// GoldAmounts lists gold amounts verbatim (e.g. "1000gp line of credit").
	GoldAmounts []string `json:"goldAmounts"`
}

// Quote is a memorable in-character quote.
type Quote struct {
	// Speaker is the character name (never the player name).
	Speaker string `json:"speaker" validate:"required"`

	// Text is the exact quote.
	Text string `json:"text" validate:"required"`

	// Context is a brief note on why the quote matters, or nil.
	Context *string `json:"context"`
}

// SceneDetails is the pass-2 output for one scene. For a scene whose time
// window contains no transcript entries this record is synthesised locally
// with empty collections — the model is never called for empty scenes.
type SceneDetails struct {
	SceneName         string       `json:"sceneName" validate:"required"`
	CharactersPresent []string     `json:"charactersPresent"`
	TimeOfDay         *string      `json:"timeOfDay"`
	Events            []SceneEvent `json:"events" validate:"dive"`
	Quotes            []Quote      `json:"quotes" validate:"dive"`
	Enemies           []string     `json:"enemies"`
}

// RecapScene is a finalised scene in the recap document.
type RecapScene struct {
	Name       string   `json:"name" validate:"required"`
	Characters []string `json:"characters"`
	Locations  []string `json:"locations"`
	Enemies    []string `json:"enemies"`
}

// OpeningContext describes where the party stood at session start.
type OpeningContext struct {
	// StartingState is where the party was when the session began.
	StartingState string `json:"startingState" validate:"required"`

	// Objectives are the goals or missions the party held.
	Objectives []string `json:"objectives"`
}

// SceneHighlight is one highlight bullet with optional nested sub-bullets
// grouping related or sequential events.
type SceneHighlight struct {
	Text       string   `json:"text" validate:"required"`
	SubBullets []string `json:"subBullets"`
}

// SceneSection is the scene-by-scene breakdown in the recap document.
type SceneSection struct {
	SceneName         string           `json:"sceneName" validate:"required"`
	CharactersPresent []string         `json:"charactersPresent"`
	TimeOfDay         *string          `json:"timeOfDay"`
	Highlights        []SceneHighlight `json:"highlights" validate:"dive"`
}

// HighlightCategory tags a legacy highlight.
type HighlightCategory string

const (
	CategoryCombat    HighlightCategory = "combat"
	CategoryRoleplay  HighlightCategory = "roleplay"
	CategoryDiscovery HighlightCategory = "discovery"
	CategoryDecision  HighlightCategory = "decision"
	CategoryHumor     HighlightCategory = "humor"
)

// Highlight is a categorised highlight kept for older recap consumers.
type Highlight struct {
	Category     HighlightCategory `json:"category" validate:"required,oneof=combat roleplay discovery decision humor"`
	Description  string            `json:"description" validate:"required"`
	Participants []string          `json:"participants"`
}

// RecapHeader carries the recap title and session date. The date is always
// taken from the original (pre-normalisation) transcript metadata.
type RecapHeader struct {
	SessionTitle string    `json:"sessionTitle"`
	Date         time.Time `json:"date"`
}

// Attendance records the full roster for the session.
type Attendance struct {
	Players []config.Player `json:"players"`
}

// RecapMetadata is roster-derived presence information.
type RecapMetadata struct {
	CharactersPresent []string `json:"charactersPresent"`
	PlayersPresent    []string `json:"playersPresent"`
}

// SessionRecap is the final artifact of a generation run. It is assembled
// once per run and immutable afterwards.
type SessionRecap struct {
	Header          RecapHeader     `json:"header"`
	Attendance      Attendance      `json:"attendance"`
	Metadata        RecapMetadata   `json:"metadata"`
	Scenes          []RecapScene    `json:"scenes"`
	OpeningContext  OpeningContext  `json:"openingContext"`
	SceneHighlights []SceneSection  `json:"sceneHighlights"`
	Highlights      []Highlight     `json:"highlights"`
	Quotes          []Quote         `json:"quotes"`
	Narrative       string          `json:"narrative"`
}

// Result is what a successful generation run returns.
type Result struct {
	// Recap is the assembled recap document.
	Recap *SessionRecap

	// DetectedNPCs is the pass-1 NPC list, for optional persistence by the
	// caller.
	DetectedNPCs []DetectedNPC
}
