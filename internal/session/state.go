// Package session holds the per-user state of the math assistant and the
// explicit transitions that change it.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/mathpad/internal/canvas"
	"github.com/abhisek/mathpad/internal/chat"
	"github.com/abhisek/mathpad/internal/classifier"
	"github.com/abhisek/mathpad/internal/imagesrc"
	"github.com/abhisek/mathpad/internal/quiz"
)

// Feedback is the user's own judgment of a solution. It is only displayed.
type Feedback string

const (
	FeedbackNone      Feedback = ""
	FeedbackCorrect   Feedback = "correct"
	FeedbackIncorrect Feedback = "incorrect"
)

// Solution is the outcome of the last solve request.
type Solution struct {
	Text     string   `json:"text"`
	Failed   bool     `json:"failed"`
	Feedback Feedback `json:"feedback"`
}

// State is everything one signed-in user has on screen.
type State struct {
	// ID is the session identifier, also carried in the auth token.
	ID string `json:"id"`

	// Username and DisplayName identify the signed-in user.
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`

	// Mode is the selected activity. PrevMode is the mode recorded by the
	// last SelectMode and decides whether a selection is a change.
	Mode     Mode `json:"mode"`
	PrevMode Mode `json:"prev_mode"`

	// Canvas is the drawing surface.
	Canvas canvas.Surface `json:"canvas"`

	// Upload is the most recent uploaded image, if any.
	Upload *imagesrc.Upload `json:"upload,omitempty"`

	// Solution is the last solve result.
	Solution *Solution `json:"solution,omitempty"`

	// Chat is the tutor transcript.
	Chat chat.Conversation `json:"chat"`

	// Quiz is the current quiz attempt.
	Quiz quiz.Quiz `json:"quiz"`

	// Analysis is the last classifier result.
	Analysis *classifier.Result `json:"analysis,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns the initial state for a freshly signed-in user.
func New(username, displayName string, settings canvas.Settings) *State {
	now := time.Now()
	return &State{
		ID:          uuid.NewString(),
		Username:    username,
		DisplayName: displayName,
		Mode:        ModeDraw,
		PrevMode:    ModeDraw,
		Canvas:      canvas.NewSurface(settings),
		Quiz:        quiz.Quiz{Phase: quiz.NotStarted},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CurrentMode returns Mode, defaulting to Draw.
func (s *State) CurrentMode() Mode {
	if s.Mode == "" {
		return ModeDraw
	}
	return s.Mode
}

// ResetSolution drops the solve result and its feedback.
func (s *State) ResetSolution() {
	s.Solution = nil
}

// ResetChat empties the transcript and forgets the model-side handle.
func (s *State) ResetChat() {
	s.Chat.Clear()
}

// ResetQuiz returns the quiz to NotStarted.
func (s *State) ResetQuiz() {
	s.Quiz.Restart()
}

// ResetCanvas starts a new canvas generation.
func (s *State) ResetCanvas() {
	s.Canvas.Clear()
}

// ResetTransient drops per-mode results that should not follow the user
// into another mode.
func (s *State) ResetTransient() {
	s.Analysis = nil
}
