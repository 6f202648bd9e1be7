package session

import (
	"github.com/abhisek/mathpad/internal/apperr"
	"github.com/abhisek/mathpad/internal/canvas"
	"github.com/abhisek/mathpad/internal/chat"
	"github.com/abhisek/mathpad/internal/classifier"
	"github.com/abhisek/mathpad/internal/imagesrc"
	"github.com/abhisek/mathpad/internal/quiz"
)

// Mode is the top-level activity the user has selected.
type Mode string

const (
	ModeDraw       Mode = "draw"
	ModeUpload     Mode = "upload"
	ModeChat       Mode = "chat"
	ModeQuiz       Mode = "quiz"
	ModeClassifier Mode = "classifier"
)

// Modes lists every mode in menu order.
var Modes = []Mode{ModeDraw, ModeUpload, ModeChat, ModeQuiz, ModeClassifier}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", apperr.Validation("unknown mode %q", s)
}

// Label is the menu label for m.
func (m Mode) Label() string {
	switch m {
	case ModeDraw:
		return "✏️ Draw"
	case ModeUpload:
		return "📁 Upload"
	case ModeChat:
		return "💬 Chat"
	case ModeQuiz:
		return "🎯 Quiz"
	case ModeClassifier:
		return "🔮 Classifier"
	}
	return string(m)
}

// Panel is the mode-specific view of a session. Each variant carries only
// the state its mode renders.
type Panel interface {
	Mode() Mode
}

// DrawPanel renders the drawing surface and its solution.
type DrawPanel struct {
	Settings   canvas.Settings `json:"settings"`
	Generation int             `json:"generation"`
	Empty      bool            `json:"empty"`
	Solution   *Solution       `json:"solution,omitempty"`
}

// UploadPanel renders the uploaded image and its solution.
type UploadPanel struct {
	Upload   *UploadInfo `json:"upload,omitempty"`
	Solution *Solution   `json:"solution,omitempty"`
}

// UploadInfo describes an upload without its pixels.
type UploadInfo struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// ChatPanel renders the transcript.
type ChatPanel struct {
	Messages []chat.Message `json:"messages"`
}

// QuizPanel renders whichever quiz phase is active.
type QuizPanel struct {
	Phase        quiz.Phase       `json:"phase"`
	Topic        string           `json:"topic,omitempty"`
	Difficulty   string           `json:"difficulty,omitempty"`
	Index        int              `json:"current_index"`
	Total        int              `json:"total"`
	Current      *quiz.Question   `json:"current,omitempty"`
	Score        int              `json:"score"`
	Review       []quiz.ReviewRow `json:"review,omitempty"`
	Topics       []string         `json:"topics"`
	Difficulties []string         `json:"difficulties"`
}

// ClassifierPanel renders the last analysis.
type ClassifierPanel struct {
	Analysis *classifier.Result `json:"analysis,omitempty"`
}

func (DrawPanel) Mode() Mode       { return ModeDraw }
func (UploadPanel) Mode() Mode     { return ModeUpload }
func (ChatPanel) Mode() Mode       { return ModeChat }
func (QuizPanel) Mode() Mode       { return ModeQuiz }
func (ClassifierPanel) Mode() Mode { return ModeClassifier }

// Panel returns the variant for the current mode.
func (s *State) Panel() Panel {
	switch s.CurrentMode() {
	case ModeUpload:
		p := UploadPanel{Solution: s.Solution}
		if u := s.Upload; u != nil {
			p.Upload = &UploadInfo{Filename: u.Filename, Format: u.Format, Width: u.Width, Height: u.Height}
		}
		return p
	case ModeChat:
		return ChatPanel{Messages: s.Chat.Messages}
	case ModeQuiz:
		p := QuizPanel{
			Phase:        s.Quiz.State(),
			Topic:        s.Quiz.Topic,
			Difficulty:   s.Quiz.Difficulty,
			Index:        s.Quiz.Index,
			Total:        len(s.Quiz.Questions),
			Topics:       quiz.Topics,
			Difficulties: quiz.Difficulties,
		}
		if cur, ok := s.Quiz.Current(); ok {
			p.Current = &cur
		}
		if p.Phase == quiz.Complete {
			p.Score = s.Quiz.Score()
			p.Review = s.Quiz.Review()
		}
		return p
	case ModeClassifier:
		return ClassifierPanel{Analysis: s.Analysis}
	default:
		return DrawPanel{
			Settings:   s.Canvas.Settings,
			Generation: s.Canvas.Generation,
			Empty:      s.Canvas.Empty(),
			Solution:   s.Solution,
		}
	}
}

// imageSource maps a solving mode to its image source.
func imageSource(m Mode) (imagesrc.Source, bool) {
	switch m {
	case ModeDraw:
		return imagesrc.SourceCanvas, true
	case ModeUpload:
		return imagesrc.SourceUpload, true
	}
	return 0, false
}
