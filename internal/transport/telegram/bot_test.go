package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizbot/internal/app"
	"quizbot/internal/infra/memory"
)

const (
	adminID = int64(7)
	chatID  = int64(42)
)

func TestStartCommandRunsQuizThroughPolls(t *testing.T) {
	h := newBotHarness(t, map[string]string{"basics": "2+2,3,4,1\nCapital of France,Paris,Lyon,0\n"})

	h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, chatID, "/start_basics"))
	if got := h.api.texts(); len(got) == 0 || got[0] != "Starting basics! 2 questions." {
		t.Fatalf("unexpected greeting %v", got)
	}

	for i := 1; i <= 2; i++ {
		poll := h.api.lastPoll(t)
		if poll.Type != "quiz" || poll.IsAnonymous || poll.ChatID != chatID {
			t.Fatalf("unexpected poll %+v", poll)
		}
		if !strings.HasPrefix(poll.Question, fmt.Sprintf("[%d/2] ", i)) {
			t.Fatalf("unexpected prompt %q", poll.Question)
		}

		h.bot.HandleUpdate(context.Background(), tgbotapi.Update{PollAnswer: &tgbotapi.PollAnswer{
			PollID:    h.api.lastPollID(),
			User:      tgbotapi.User{ID: chatID},
			OptionIDs: []int{int(poll.CorrectOptionID)},
		}})
	}

	if got := h.api.lastText(); got != "Finished! Score: 2/2" {
		t.Fatalf("unexpected result %q", got)
	}
	if _, ok := h.engine.Progress(participantOf(chatID)); ok {
		t.Fatalf("session should be gone after the last question")
	}
}

func TestDeepLinkStartsQuiz(t *testing.T) {
	h := newBotHarness(t, map[string]string{"basics": "2+2,3,4,1\n"})

	h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, chatID, "/start basics"))

	progress, ok := h.engine.Progress(participantOf(chatID))
	if !ok || progress.BankID != "basics" {
		t.Fatalf("expected basics session, got %+v (ok=%v)", progress, ok)
	}
	if n := len(h.api.polls()); n != 1 {
		t.Fatalf("expected 1 poll, got %d", n)
	}
}

func TestRetractedVoteIsIgnored(t *testing.T) {
	h := newBotHarness(t, map[string]string{"basics": "2+2,3,4,1\n"})
	h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, chatID, "/start_basics"))

	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{PollAnswer: &tgbotapi.PollAnswer{
		PollID: h.api.lastPollID(),
		User:   tgbotapi.User{ID: chatID},
	}})

	progress, ok := h.engine.Progress(participantOf(chatID))
	if !ok || progress.Cursor != 0 {
		t.Fatalf("expected session still on question 1, got %+v (ok=%v)", progress, ok)
	}
}

func TestUnknownBankReply(t *testing.T) {
	h := newBotHarness(t, nil)

	h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, chatID, "/start_missing"))

	if got := h.api.lastText(); !strings.Contains(got, `Quiz "missing" not found`) {
		t.Fatalf("unexpected reply %q", got)
	}
	if n := len(h.api.polls()); n != 0 {
		t.Fatalf("expected no polls, got %d", n)
	}
}

func TestCancelCommand(t *testing.T) {
	h := newBotHarness(t, map[string]string{"basics": "2+2,3,4,1\n"})

	h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, chatID, "/cancel"))
	if got := h.api.lastText(); got != "No active quiz." {
		t.Fatalf("unexpected reply %q", got)
	}

	h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, chatID, "/start_basics"))
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		Data:    "cancel",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}})
	if got := h.api.lastText(); got != "🚪 Quiz cancelled." {
		t.Fatalf("unexpected reply %q", got)
	}

	h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, chatID, "/cancel"))
	if got := h.api.lastText(); got != "No active quiz." {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestListOffersShortcutsAndButtons(t *testing.T) {
	h := newBotHarness(t, map[string]string{"zeta": "q,a,b,0\n", "alpha": "q,a,b,0\n"})

	h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, chatID, "/list"))

	msg := h.api.lastMessage(t)
	if !strings.Contains(msg.Text, "/start_alpha") {
		t.Fatalf("missing shortcut in %q", msg.Text)
	}
	if strings.Index(msg.Text, "alpha") > strings.Index(msg.Text, "zeta") {
		t.Fatalf("banks not sorted: %q", msg.Text)
	}
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard) != 2 {
		t.Fatalf("expected two keyboard rows, got %+v", msg.ReplyMarkup)
	}
	if data := *markup.InlineKeyboard[0][0].CallbackData; data != "start:alpha" {
		t.Fatalf("unexpected callback data %q", data)
	}

	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-2",
		Data:    "start:zeta",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}})
	progress, ok := h.engine.Progress(participantOf(chatID))
	if !ok || progress.BankID != "zeta" {
		t.Fatalf("expected zeta session, got %+v (ok=%v)", progress, ok)
	}
}

func TestStatusReportsProgress(t *testing.T) {
	h := newBotHarness(t, map[string]string{"basics": "2+2,3,4,1\nCapital of France,Paris,Lyon,0\n"})
	h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, chatID, "/start_basics"))

	h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, chatID, "/status"))

	if got := h.api.lastText(); got != "📊 basics: question 1/2, score 0" {
		t.Fatalf("unexpected status %q", got)
	}
}

func TestOperatorUploadSavesBank(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("q1;a;b;0\nq2;a;b;1\n"))
	}))
	defer files.Close()

	h := newBotHarness(t, nil)
	h.api.fileURL = files.URL

	h.bot.HandleUpdate(context.Background(), documentUpdate(chatID, adminID, "My Quiz.csv"))

	if got := h.api.lastText(); !strings.Contains(got, "Saved my_quiz with 2 questions") {
		t.Fatalf("unexpected reply %q", got)
	}
	ids, err := h.library.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !slices.Equal(ids, []string{"my_quiz"}) {
		t.Fatalf("unexpected banks %v", ids)
	}
}

func TestOversizedUploadRejected(t *testing.T) {
	// the document claims to be small, but the body exceeds the limit
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		row := []byte("q,a,b,0\n")
		for written := 0; written <= maxUploadBytes; written += len(row) {
			w.Write(row)
		}
	}))
	defer files.Close()

	h := newBotHarness(t, nil)
	h.api.fileURL = files.URL

	h.bot.HandleUpdate(context.Background(), documentUpdate(chatID, adminID, "big.csv"))

	if got := h.api.lastText(); got != "❌ File is too large." {
		t.Fatalf("unexpected reply %q", got)
	}
	ids, err := h.library.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("oversized upload must not be saved, got %v", ids)
	}
}

func TestUploadFromNonOperatorIgnored(t *testing.T) {
	h := newBotHarness(t, nil)
	h.api.fileURL = "http://127.0.0.1:1/never"

	h.bot.HandleUpdate(context.Background(), documentUpdate(chatID, chatID, "quiz.csv"))

	if texts := h.api.texts(); len(texts) != 0 {
		t.Fatalf("expected no reply, got %v", texts)
	}
	ids, err := h.library.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no banks, got %v", ids)
	}
}

func TestDeleteRequiresOperator(t *testing.T) {
	h := newBotHarness(t, map[string]string{"basics": "q,a,b,0\n"})

	h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, chatID, "/delete basics"))
	if ids, _ := h.library.List(context.Background()); !slices.Equal(ids, []string{"basics"}) {
		t.Fatalf("non-operator delete took effect: %v", ids)
	}

	h.bot.HandleUpdate(context.Background(), commandUpdate(chatID, adminID, "/delete basics"))
	if got := h.api.lastText(); got != "🗑 Deleted basics." {
		t.Fatalf("unexpected reply %q", got)
	}
	if ids, _ := h.library.List(context.Background()); len(ids) != 0 {
		t.Fatalf("expected no banks, got %v", ids)
	}
}

type botHarness struct {
	api     *fakeAPI
	engine  *app.Engine
	library *app.Library
	bot     *Bot
}

func newBotHarness(t *testing.T, banks map[string]string) *botHarness {
	t.Helper()
	api := &fakeAPI{}
	store := memory.NewBankStore(banks)
	engine := app.NewEngine(memory.NewSessionStore(), memory.NewCorrelationStore(), store, NewDelivery(api))
	library := app.NewLibrary(store)
	return &botHarness{
		api:     api,
		engine:  engine,
		library: library,
		bot:     NewBot(api, engine, library, adminID, 0),
	}
}

func commandUpdate(chatID, fromID int64, text string) tgbotapi.Update {
	command, _, _ := strings.Cut(text, " ")
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: fromID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}},
	}}
}

func documentUpdate(chatID, fromID int64, name string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: fromID},
		Document: &tgbotapi.Document{FileID: "file-1", FileName: name, FileSize: 32},
	}}
}

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	pollSeq int
	fileURL string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if _, ok := c.(tgbotapi.SendPollConfig); ok {
		f.pollSeq++
		return tgbotapi.Message{Poll: &tgbotapi.Poll{ID: fmt.Sprintf("poll-%d", f.pollSeq)}}, nil
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	return f.fileURL, nil
}

func (f *fakeAPI) polls() []tgbotapi.SendPollConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.SendPollConfig
	for _, c := range f.sent {
		if p, ok := c.(tgbotapi.SendPollConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeAPI) lastPoll(t *testing.T) tgbotapi.SendPollConfig {
	t.Helper()
	polls := f.polls()
	if len(polls) == 0 {
		t.Fatalf("no poll sent")
	}
	return polls[len(polls)-1]
}

func (f *fakeAPI) lastPollID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("poll-%d", f.pollSeq)
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeAPI) texts() []string {
	var out []string
	for _, m := range f.messages() {
		out = append(out, m.Text)
	}
	return out
}

func (f *fakeAPI) lastMessage(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	msgs := f.messages()
	if len(msgs) == 0 {
		t.Fatalf("no message sent")
	}
	return msgs[len(msgs)-1]
}

func (f *fakeAPI) lastText() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}
