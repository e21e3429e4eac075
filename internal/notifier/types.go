package notifier

import (
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

// RecommendationView is the rendering payload for a broadcast card. The core
// treats the rendered card as opaque; this struct only carries the fields a
// chat-platform renderer needs to lay out text and buttons.
type RecommendationView struct {
	Recommendation *models.Recommendation
	AnalystName    string
}

// KeyboardButton is one opaque inline button on a posted card.
type KeyboardButton struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// Keyboard is a row-major button grid attached to a posted card.
type Keyboard [][]KeyboardButton
