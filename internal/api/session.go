package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/abhisek/mathpad/internal/apperr"
	"github.com/abhisek/mathpad/internal/auth"
	"github.com/abhisek/mathpad/internal/canvas"
	"github.com/abhisek/mathpad/internal/chat"
	"github.com/abhisek/mathpad/internal/imagesrc"
	"github.com/abhisek/mathpad/internal/quiz"
	"github.com/abhisek/mathpad/internal/session"
	"github.com/abhisek/mathpad/internal/store"
)

type modeView struct {
	ID    session.Mode `json:"id"`
	Label string       `json:"label"`
}

// StateView is the JSON rendering of a session.
type StateView struct {
	ID          string        `json:"id"`
	Username    string        `json:"username"`
	DisplayName string        `json:"display_name"`
	Mode        session.Mode  `json:"mode"`
	Modes       []modeView    `json:"modes"`
	Configured  bool          `json:"configured"`
	Panel       session.Panel `json:"panel"`
	Notice      string        `json:"notice,omitempty"`
}

func (s *Server) view(st *session.State) StateView {
	modes := make([]modeView, len(session.Modes))
	for i, m := range session.Modes {
		modes[i] = modeView{ID: m, Label: m.Label()}
	}
	return StateView{
		ID:          st.ID,
		Username:    st.Username,
		DisplayName: st.DisplayName,
		Mode:        st.CurrentMode(),
		Modes:       modes,
		Configured:  s.model.Configured(),
		Panel:       st.Panel(),
	}
}

// act runs fn under the session lock and returns the saved state. Errors
// are written to w; ok is false in that case.
func (s *Server) act(w http.ResponseWriter, r *http.Request, fn func(*session.State) error) (*session.State, *auth.Identity, bool) {
	id, err := identity(r)
	if err != nil {
		s.writeError(w, r, err)
		return nil, nil, false
	}
	st, err := s.sessions.Do(r.Context(), id.SessionID, fn)
	if err != nil {
		s.writeError(w, r, err)
		return nil, id, false
	}
	return st, id, true
}

// load returns the session without taking the action lock.
func (s *Server) load(w http.ResponseWriter, r *http.Request) (*session.State, bool) {
	id, err := identity(r)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	st, err := s.sessions.Get(r.Context(), id.SessionID)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return st, true
}

// GetState returns the session view.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	st, ok := s.load(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, s.view(st))
}

type optionsResponse struct {
	Modes          []modeView      `json:"modes"`
	Tools          []canvas.Tool   `json:"tools"`
	MinStrokeWidth int             `json:"min_stroke_width"`
	MaxStrokeWidth int             `json:"max_stroke_width"`
	Canvas         canvas.Settings `json:"canvas_defaults"`
	Topics         []string        `json:"topics"`
	Difficulties   []string        `json:"difficulties"`
	MaxUploadBytes int             `json:"max_upload_bytes"`
	Provider       string          `json:"provider"`
	Configured     bool            `json:"configured"`
}

// Options lists the selectable values the page renders controls for.
func (s *Server) Options(w http.ResponseWriter, r *http.Request) {
	st, ok := s.load(w, r)
	if !ok {
		return
	}
	v := s.view(st)
	JSON(w, http.StatusOK, optionsResponse{
		Modes:          v.Modes,
		Tools:          canvas.Tools,
		MinStrokeWidth: canvas.MinStrokeWidth,
		MaxStrokeWidth: canvas.MaxStrokeWidth,
		Canvas:         st.Canvas.Settings,
		Topics:         quiz.Topics,
		Difficulties:   quiz.Difficulties,
		MaxUploadBytes: imagesrc.MaxUploadBytes,
		Provider:       s.provider,
		Configured:     v.Configured,
	})
}

// SelectMode switches the active mode.
func (s *Server) SelectMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, _, ok := s.act(w, r, func(st *session.State) error {
		return session.SelectMode(st, mode)
	})
	if !ok {
		return
	}
	JSON(w, http.StatusOK, s.view(st))
}

// CanvasSettings replaces the drawing settings.
func (s *Server) CanvasSettings(w http.ResponseWriter, r *http.Request) {
	var settings canvas.Settings
	if err := decode(w, r, &settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, _, ok := s.act(w, r, func(st *session.State) error {
		return session.ApplyCanvasSettings(st, settings)
	})
	if !ok {
		return
	}
	JSON(w, http.StatusOK, s.view(st))
}

type canvasEventsRequest struct {
	Events []canvas.PointerEvent `json:"events"`
}

type canvasEventsResponse struct {
	Changed    bool `json:"changed"`
	Generation int  `json:"generation"`
	Empty      bool `json:"empty"`
}

// CanvasEvents applies a batch of pointer events. The batch is applied
// atomically: one invalid event rejects all of them.
func (s *Server) CanvasEvents(w http.ResponseWriter, r *http.Request) {
	var req canvasEventsRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	changed := false
	st, _, ok := s.act(w, r, func(st *session.State) error {
		for _, ev := range req.Events {
			c, err := session.HandlePointer(st, ev)
			if err != nil {
				return err
			}
			changed = changed || c
		}
		return nil
	})
	if !ok {
		return
	}
	JSON(w, http.StatusOK, canvasEventsResponse{
		Changed:    changed,
		Generation: st.Canvas.Generation,
		Empty:      st.Canvas.Empty(),
	})
}

// CanvasClear discards every stroke.
func (s *Server) CanvasClear(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.act(w, r, func(st *session.State) error {
		session.ClearCanvas(st)
		return nil
	})
	if !ok {
		return
	}
	JSON(w, http.StatusOK, s.view(st))
}

// CanvasPNG renders the current canvas.
func (s *Server) CanvasPNG(w http.ResponseWriter, r *http.Request) {
	st, ok := s.load(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := st.Canvas.EncodePNG(w); err != nil {
		s.log.Warn("failed to encode canvas", "session", st.ID, "error", err)
	}
}

// Upload decodes a multipart "file" field and makes it the upload-mode
// problem image.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imagesrc.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imagesrc.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, apperr.Validation("file is larger than %d MiB", imagesrc.MaxUploadBytes>>20))
			return
		}
		s.writeError(w, r, apperr.Validation("invalid upload: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, apperr.Validation("missing file field"))
		return
	}
	defer file.Close()

	up, err := imagesrc.Decode(header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, _, ok := s.act(w, r, func(st *session.State) error {
		session.SetUpload(st, up)
		return nil
	})
	if !ok {
		return
	}
	JSON(w, http.StatusOK, s.view(st))
}

// UploadPNG returns the normalized upload.
func (s *Server) UploadPNG(w http.ResponseWriter, r *http.Request) {
	st, ok := s.load(w, r)
	if !ok {
		return
	}
	if st.Upload == nil {
		Error(w, http.StatusNotFound, apperr.KindValidation, "no image uploaded")
		return
	}
	data, err := st.Upload.Bytes()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

// Solve sends the current problem image to the model.
func (s *Server) Solve(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.act(w, r, func(st *session.State) error {
		return session.Solve(r.Context(), st, s.model)
	})
	if !ok {
		return
	}
	detail := string(st.CurrentMode())
	if st.Solution != nil && st.Solution.Failed {
		detail += " failed"
	}
	s.record(r.Context(), id.Username, store.ActivitySolve, detail)
	JSON(w, http.StatusOK, s.view(st))
}

// Feedback records the user's verdict on the solution.
func (s *Server) Feedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Feedback session.Feedback `json:"feedback"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, id, ok := s.act(w, r, func(st *session.State) error {
		return session.SetFeedback(st, req.Feedback)
	})
	if !ok {
		return
	}
	s.record(r.Context(), id.Username, store.ActivityFeedback, string(req.Feedback))
	JSON(w, http.StatusOK, s.view(st))
}

// ClearSolution drops the solution.
func (s *Server) ClearSolution(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.act(w, r, func(st *session.State) error {
		session.ClearSolution(st)
		return nil
	})
	if !ok {
		return
	}
	JSON(w, http.StatusOK, s.view(st))
}

// ContinueInChat copies the solution into the chat transcript.
func (s *Server) ContinueInChat(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.act(w, r, session.ContinueInChat)
	if !ok {
		return
	}
	v := s.view(st)
	v.Notice = "Added to chat history! Switch to 'Chat' mode to continue."
	JSON(w, http.StatusOK, v)
}

type chatResponse struct {
	Reply chat.Message `json:"reply"`
	StateView
}

// SendChat sends a message to the tutor.
func (s *Server) SendChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var reply chat.Message
	st, _, ok := s.act(w, r, func(st *session.State) error {
		var err error
		reply, err = session.SendChat(r.Context(), st, s.model, req.Message)
		return err
	})
	if !ok {
		return
	}
	JSON(w, http.StatusOK, chatResponse{Reply: reply, StateView: s.view(st)})
}

// ClearChat empties the transcript.
func (s *Server) ClearChat(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.act(w, r, func(st *session.State) error {
		session.ClearChat(st)
		return nil
	})
	if !ok {
		return
	}
	JSON(w, http.StatusOK, s.view(st))
}

// StartQuiz generates a new quiz.
func (s *Server) StartQuiz(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic      string `json:"topic"`
		Difficulty string `json:"difficulty"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, _, ok := s.act(w, r, func(st *session.State) error {
		return session.StartQuiz(r.Context(), st, s.model, req.Topic, req.Difficulty)
	})
	if !ok {
		return
	}
	JSON(w, http.StatusOK, s.view(st))
}

// AnswerQuiz submits an answer to the current question.
func (s *Server) AnswerQuiz(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, id, ok := s.act(w, r, func(st *session.State) error {
		return session.AnswerQuiz(st, req.Answer)
	})
	if !ok {
		return
	}
	if st.Quiz.State() == quiz.Complete {
		detail := fmt.Sprintf("%s/%s %d/%d", st.Quiz.Topic, st.Quiz.Difficulty, st.Quiz.Score(), len(st.Quiz.Questions))
		s.record(r.Context(), id.Username, store.ActivityQuizComplete, detail)
	}
	JSON(w, http.StatusOK, s.view(st))
}

// RestartQuiz abandons the current quiz.
func (s *Server) RestartQuiz(w http.ResponseWriter, r *http.Request) {
	st, _, ok := s.act(w, r, func(st *session.State) error {
		session.RestartQuiz(st)
		return nil
	})
	if !ok {
		return
	}
	JSON(w, http.StatusOK, s.view(st))
}

// Classify analyzes a problem statement.
func (s *Server) Classify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Problem string `json:"problem"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, id, ok := s.act(w, r, func(st *session.State) error {
		_, err := session.Classify(r.Context(), st, s.model, req.Problem)
		return err
	})
	if !ok {
		return
	}
	s.record(r.Context(), id.Username, store.ActivityClassify, st.Analysis.Difficulty)
	JSON(w, http.StatusOK, s.view(st))
}
