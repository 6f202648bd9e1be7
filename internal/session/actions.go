package session

import (
	"context"
	"image"

	"github.com/abhisek/mathpad/internal/apperr"
	"github.com/abhisek/mathpad/internal/canvas"
	"github.com/abhisek/mathpad/internal/chat"
	"github.com/abhisek/mathpad/internal/classifier"
	"github.com/abhisek/mathpad/internal/gateway"
	"github.com/abhisek/mathpad/internal/imagesrc"
)

// Model is the gateway surface used by session transitions.
type Model interface {
	Configured() bool
	Solve(ctx context.Context, img image.Image) string
	Chat(ctx context.Context, h *gateway.ChatHandle, message string) (*gateway.ChatHandle, string)
	Generate(ctx context.Context, purpose, prompt string) (string, error)
}

func requireCredential(m Model) error {
	if !m.Configured() {
		return apperr.Configuration("please configure a model API key", gateway.ErrMissingCredential)
	}
	return nil
}

// SelectMode switches to mode. Selecting a different mode than the one
// recorded last clears the solution and transient results; reselecting
// the same mode changes nothing.
func SelectMode(s *State, mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	prev := s.PrevMode
	if prev == "" {
		prev = s.CurrentMode()
	}
	if prev != mode {
		s.ResetSolution()
		s.ResetTransient()
	}
	s.Mode = mode
	s.PrevMode = mode
	return nil
}

// ApplyCanvasSettings updates the drawing settings.
func ApplyCanvasSettings(s *State, settings canvas.Settings) error {
	return s.Canvas.ApplySettings(settings)
}

// HandlePointer feeds one pointer event to the canvas.
func HandlePointer(s *State, ev canvas.PointerEvent) (bool, error) {
	return s.Canvas.Handle(ev)
}

// ClearCanvas discards every stroke.
func ClearCanvas(s *State) {
	s.ResetCanvas()
}

// SetUpload replaces the uploaded image. A new upload invalidates the
// previous solution.
func SetUpload(s *State, u *imagesrc.Upload) {
	s.Upload = u
	s.ResetSolution()
}

// Solve sends the current problem image to the model. The solution is
// replaced even when the model call fails, with the error rendered inline.
func Solve(ctx context.Context, s *State, m Model) error {
	src, ok := imageSource(s.CurrentMode())
	if !ok {
		return apperr.Validation("solving is only available in draw and upload modes")
	}
	img, err := imagesrc.Select(src, &s.Canvas, s.Upload)
	if err != nil {
		return err
	}
	if err := requireCredential(m); err != nil {
		return err
	}

	s.ResetSolution()
	text := m.Solve(ctx, img)
	s.Solution = &Solution{Text: text, Failed: gateway.IsErrorText(text)}
	return nil
}

// SetFeedback records the user's verdict on the solution.
func SetFeedback(s *State, fb Feedback) error {
	if s.Solution == nil || s.Solution.Failed {
		return apperr.Validation("there is no solution to rate")
	}
	switch fb {
	case FeedbackCorrect, FeedbackIncorrect, FeedbackNone:
	default:
		return apperr.Validation("unknown feedback %q", fb)
	}
	s.Solution.Feedback = fb
	return nil
}

// ClearSolution drops the solution.
func ClearSolution(s *State) {
	s.ResetSolution()
}

// ContinueInChat copies a solution marked correct into the chat
// transcript.
func ContinueInChat(s *State) error {
	if s.Solution == nil || s.Solution.Feedback != FeedbackCorrect {
		return apperr.Validation("mark the solution as correct to continue in chat")
	}
	s.Chat.ContinueFrom(s.Solution.Text)
	return nil
}

// SendChat sends prompt to the tutor.
func SendChat(ctx context.Context, s *State, m Model, prompt string) (chat.Message, error) {
	return s.Chat.Send(ctx, m, prompt)
}

// ClearChat empties the transcript.
func ClearChat(s *State) {
	s.ResetChat()
}

// StartQuiz generates a quiz.
func StartQuiz(ctx context.Context, s *State, m Model, topic, difficulty string) error {
	if err := requireCredential(m); err != nil {
		return err
	}
	return s.Quiz.Start(ctx, m, topic, difficulty)
}

// AnswerQuiz submits an answer to the current question.
func AnswerQuiz(s *State, answer string) error {
	return s.Quiz.Submit(answer)
}

// RestartQuiz abandons the quiz.
func RestartQuiz(s *State) {
	s.ResetQuiz()
}

// Classify analyzes problem and stores the result. On failure the
// previous result is kept.
func Classify(ctx context.Context, s *State, m Model, problem string) (*classifier.Result, error) {
	if err := requireCredential(m); err != nil {
		return nil, err
	}
	r, err := classifier.Analyze(ctx, m, problem)
	if err != nil {
		return nil, err
	}
	s.Analysis = r
	return r, nil
}
