package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mathpad/internal/apperr"
	"github.com/abhisek/mathpad/internal/canvas"
	"github.com/abhisek/mathpad/internal/classifier"
	"github.com/abhisek/mathpad/internal/gateway"
	"github.com/abhisek/mathpad/internal/imagesrc"
	"github.com/abhisek/mathpad/internal/llm"
	"github.com/abhisek/mathpad/internal/quiz"
)

func testSettings() canvas.Settings {
	s := canvas.DefaultSettings()
	s.Width, s.Height = 40, 30
	return s
}

func newState() *State {
	return New("ada", "Ada", testSettings())
}

func draw(t *testing.T, s *State) {
	t.Helper()
	for _, ev := range []canvas.PointerEvent{
		{Kind: canvas.PointerDown, X: 5, Y: 5},
		{Kind: canvas.PointerMove, X: 15, Y: 10},
		{Kind: canvas.PointerUp, X: 25, Y: 20},
	} {
		ev.Generation = s.Canvas.Generation
		_, err := HandlePointer(s, ev)
		require.NoError(t, err)
	}
}

func mockModel(responses ...llm.MockResponse) (*gateway.Gateway, *llm.MockProvider) {
	mock := llm.NewMockProvider(responses...)
	return gateway.NewWithProvider(mock, nil), mock
}

func TestNewState(t *testing.T) {
	s := newState()
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, ModeDraw, s.CurrentMode())
	assert.Equal(t, quiz.NotStarted, s.Quiz.State())
	assert.True(t, s.Canvas.Empty())
}

func TestSelectMode_UnknownMode(t *testing.T) {
	s := newState()
	err := SelectMode(s, "paint")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, ModeDraw, s.Mode)
}

func TestSelectMode_ClearsSolutionOnlyOnChange(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	s := newState()
	for i := 0; i < 500; i++ {
		s.Solution = &Solution{Text: "x"}
		prev := s.Mode
		next := Modes[rng.IntN(len(Modes))]

		require.NoError(t, SelectMode(s, next))

		if next == prev {
			require.NotNil(t, s.Solution, "reselecting %s cleared the solution", next)
		} else {
			require.Nil(t, s.Solution, "switching %s -> %s kept the solution", prev, next)
		}
		require.Equal(t, next, s.PrevMode)
	}
}

func TestSelectMode_ClearsAnalysisButKeepsQuizAndChat(t *testing.T) {
	s := newState()
	require.NoError(t, SelectMode(s, ModeClassifier))
	s.Analysis = &classifier.Result{Difficulty: "Easy"}
	s.Chat.ContinueFrom("earlier")
	s.Quiz.Phase = quiz.InProgress

	require.NoError(t, SelectMode(s, ModeChat))
	assert.Nil(t, s.Analysis)
	assert.Len(t, s.Chat.Messages, 1)
	assert.Equal(t, quiz.InProgress, s.Quiz.Phase)
}

func TestPanelVariants(t *testing.T) {
	s := newState()
	tests := []struct {
		mode Mode
		want any
	}{
		{ModeDraw, DrawPanel{}},
		{ModeUpload, UploadPanel{}},
		{ModeChat, ChatPanel{}},
		{ModeQuiz, QuizPanel{}},
		{ModeClassifier, ClassifierPanel{}},
	}
	for _, tt := range tests {
		require.NoError(t, SelectMode(s, tt.mode))
		p := s.Panel()
		assert.IsType(t, tt.want, p)
		assert.Equal(t, tt.mode, p.Mode())
	}
}

func TestSolve_EmptyCanvasIsValidation(t *testing.T) {
	s := newState()
	g, mock := mockModel(llm.MockText("unused"))

	err := Solve(context.Background(), s, g)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.True(t, errors.Is(err, imagesrc.ErrNoImage))
	assert.Zero(t, mock.CallCount())
}

func TestSolve_ClearedCanvasIsValidationNotGateway(t *testing.T) {
	s := newState()
	draw(t, s)
	ClearCanvas(s)

	g, mock := mockModel(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}})
	err := Solve(context.Background(), s, g)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Zero(t, mock.CallCount())
}

func TestSolve_Draw(t *testing.T) {
	s := newState()
	draw(t, s)
	g, _ := mockModel(llm.MockText("**Answer:** 2"))

	require.NoError(t, Solve(context.Background(), s, g))
	require.NotNil(t, s.Solution)
	assert.Equal(t, "**Answer:** 2", s.Solution.Text)
	assert.False(t, s.Solution.Failed)
	assert.Equal(t, FeedbackNone, s.Solution.Feedback)
}

func TestSolve_GatewayFailureRendersInline(t *testing.T) {
	s := newState()
	draw(t, s)
	g, _ := mockModel(llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("503")}})

	require.NoError(t, Solve(context.Background(), s, g))
	assert.True(t, s.Solution.Failed)
	assert.True(t, gateway.IsErrorText(s.Solution.Text))
}

func TestSolve_MissingCredential(t *testing.T) {
	s := newState()
	draw(t, s)
	g := gateway.New(llm.Config{Provider: "gemini"}, nil, nil)

	err := Solve(context.Background(), s, g)
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
	assert.Nil(t, s.Solution)
}

func TestSolve_NotInSolvingMode(t *testing.T) {
	s := newState()
	require.NoError(t, SelectMode(s, ModeChat))
	g, _ := mockModel()
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(Solve(context.Background(), s, g)))
}

func uploadFixture(t *testing.T) *imagesrc.Upload {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = byte(i * 13)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	u, err := imagesrc.Decode("eq.png", &buf)
	require.NoError(t, err)
	return u
}

func TestUpload_ClearsSolutionAndSurvivesModeSwitch(t *testing.T) {
	s := newState()
	require.NoError(t, SelectMode(s, ModeUpload))
	s.Solution = &Solution{Text: "old"}

	u := uploadFixture(t)
	SetUpload(s, u)
	assert.Nil(t, s.Solution)

	before, err := s.Upload.Image()
	require.NoError(t, err)

	require.NoError(t, SelectMode(s, ModeDraw))
	require.NoError(t, SelectMode(s, ModeUpload))

	after, err := s.Upload.Image()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	p := s.Panel().(UploadPanel)
	require.NotNil(t, p.Upload)
	assert.Equal(t, 3, p.Upload.Width)
}

func TestFeedbackAndContinue(t *testing.T) {
	s := newState()
	assert.Error(t, SetFeedback(s, FeedbackCorrect))

	s.Solution = &Solution{Text: "**Answer:** 9"}
	assert.Error(t, ContinueInChat(s))

	require.NoError(t, SetFeedback(s, FeedbackIncorrect))
	assert.Error(t, ContinueInChat(s))

	require.NoError(t, SetFeedback(s, FeedbackCorrect))
	require.NoError(t, ContinueInChat(s))
	require.Len(t, s.Chat.Messages, 1)
	assert.Contains(t, s.Chat.Messages[0].Content, "**Answer:** 9")

	assert.Error(t, SetFeedback(s, "meh"))

	ClearSolution(s)
	assert.Nil(t, s.Solution)
}

func TestQuizFlowThroughSession(t *testing.T) {
	s := newState()
	require.NoError(t, SelectMode(s, ModeQuiz))

	g, _ := mockModel(llm.MockText("not json"))
	err := StartQuiz(context.Background(), s, g, "Algebra", "Easy")
	assert.Equal(t, apperr.KindParse, apperr.KindOf(err))
	assert.Equal(t, quiz.NotStarted, s.Quiz.State())

	p := s.Panel().(QuizPanel)
	assert.Equal(t, quiz.NotStarted, p.Phase)
	assert.Equal(t, quiz.Topics, p.Topics)
}

func TestClassify_ParseErrorKeepsNoResult(t *testing.T) {
	s := newState()
	require.NoError(t, SelectMode(s, ModeClassifier))
	g, _ := mockModel(llm.MockText("{difficulty: easy"))

	r, err := Classify(context.Background(), s, g, "2+2")
	assert.Nil(t, r)
	assert.Equal(t, apperr.KindParse, apperr.KindOf(err))
	assert.Equal(t, "{difficulty: easy", apperr.RawOf(err))
	assert.Nil(t, s.Analysis)
	assert.Nil(t, s.Panel().(ClassifierPanel).Analysis)
}

func TestClassify_Success(t *testing.T) {
	s := newState()
	g, _ := mockModel(llm.MockText(`{"difficulty":"Hard","required_concepts":["limits"]}`))
	r, err := Classify(context.Background(), s, g, "lim x->0 sin x / x")
	require.NoError(t, err)
	assert.Equal(t, "Hard", r.Difficulty)
	assert.Equal(t, r, s.Analysis)
}

func TestChatClearThroughSession(t *testing.T) {
	s := newState()
	g, mock := mockModel(llm.MockText("a"), llm.MockText("b"))

	_, err := SendChat(context.Background(), s, g, "one")
	require.NoError(t, err)
	ClearChat(s)
	_, err = SendChat(context.Background(), s, g, "two")
	require.NoError(t, err)

	assert.Equal(t, "two", s.Chat.Messages[0].Content)
	assert.Len(t, mock.Calls[1].Messages, 1)
}
