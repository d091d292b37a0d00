package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizbot/internal/app"
	"quizbot/internal/domain"
)

const (
	maxUploadBytes  = 1 << 20
	maxCallbackData = 64
)

var errUploadTooLarge = errors.New("upload exceeds size limit")

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Sender
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFileDirectURL(fileID string) (string, error)
}

// Bot routes Telegram updates to the quiz engine and the bank library.
type Bot struct {
	api         API
	engine      *app.Engine
	library     *app.Library
	adminID     int64
	pollTimeout int
	httpClient  *http.Client
}

func NewBot(api API, engine *app.Engine, library *app.Library, adminID int64, pollTimeout int) *Bot {
	return &Bot{
		api:         api,
		engine:      engine,
		library:     library,
		adminID:     adminID,
		pollTimeout: pollTimeout,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Run processes updates one at a time until ctx is cancelled, which keeps
// every chat's events in arrival order.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	u.AllowedUpdates = []string{"message", "callback_query", "poll_answer"}

	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.PollAnswer != nil:
		b.handlePollAnswer(ctx, update.PollAnswer)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if msg.Document != nil {
		b.handleDocument(ctx, msg)
		return
	}
	if !msg.IsCommand() {
		return
	}

	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	switch {
	case cmd == "start" && args != "":
		b.startQuiz(ctx, chatID, args)
	case cmd == "start":
		b.sendMessage(chatID, "👋 Bot online!\nType /list to see the quizzes or upload a CSV to add one.")
	case strings.HasPrefix(cmd, "start_"):
		b.startQuiz(ctx, chatID, strings.TrimPrefix(cmd, "start_"))
	case cmd == "list":
		b.sendList(ctx, chatID)
	case cmd == "cancel":
		b.cancelQuiz(ctx, chatID)
	case cmd == "status":
		b.sendStatus(chatID)
	case cmd == "delete":
		b.deleteBank(ctx, msg, args)
	case cmd == "help":
		b.sendMessage(chatID, helpText)
	default:
		b.sendMessage(chatID, "Unknown command. Type /help.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		log.Printf("error answering callback: %v", err)
	}
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID

	switch data := callback.Data; {
	case strings.HasPrefix(data, "start:"):
		b.startQuiz(ctx, chatID, strings.TrimPrefix(data, "start:"))
	case data == "cancel":
		b.cancelQuiz(ctx, chatID)
	}
}

func (b *Bot) handlePollAnswer(ctx context.Context, answer *tgbotapi.PollAnswer) {
	// a retracted vote carries no options
	if len(answer.OptionIDs) == 0 {
		return
	}
	if err := b.engine.Resolve(ctx, answer.PollID, answer.OptionIDs[0]); err != nil {
		log.Printf("resolve poll %s: %v", answer.PollID, err)
	}
}

func (b *Bot) startQuiz(ctx context.Context, chatID int64, bankID string) {
	_, err := b.engine.Start(ctx, participantOf(chatID), bankID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrBankNotFound), errors.Is(err, domain.ErrInvalidBankID):
		b.sendMessage(chatID, fmt.Sprintf("❌ Quiz %q not found. Type /list to see the available quizzes.", bankID))
	case errors.Is(err, domain.ErrEmptyBank):
		b.sendMessage(chatID, fmt.Sprintf("❌ Quiz %q has no valid questions. Each row must be: question,option,option,...,correct index", bankID))
	default:
		log.Printf("start quiz %s for %d: %v", bankID, chatID, err)
		b.sendMessage(chatID, "Something went wrong starting the quiz. Please try again.")
	}
}

func (b *Bot) cancelQuiz(ctx context.Context, chatID int64) {
	cancelled, err := b.engine.Cancel(ctx, participantOf(chatID))
	if err != nil {
		log.Printf("cancel quiz for %d: %v", chatID, err)
	}
	if !cancelled {
		b.sendMessage(chatID, "No active quiz.")
		return
	}
	b.sendMessage(chatID, "🚪 Quiz cancelled.")
}

func (b *Bot) sendStatus(chatID int64) {
	progress, ok := b.engine.Progress(participantOf(chatID))
	if !ok {
		b.sendMessage(chatID, "No active quiz. Type /list to pick one.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("📊 %s: question %d/%d, score %d",
		progress.BankID, min(progress.Cursor+1, progress.Total), progress.Total, progress.Score))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚪 Cancel quiz", "cancel"),
		),
	)
	b.send(msg)
}

func (b *Bot) sendList(ctx context.Context, chatID int64) {
	ids, err := b.library.List(ctx)
	if err != nil {
		log.Printf("list banks: %v", err)
		b.sendMessage(chatID, "Could not list quizzes right now.")
		return
	}
	if len(ids) == 0 {
		b.sendMessage(chatID, "📂 No quizzes found. Upload a CSV.")
		return
	}

	var text strings.Builder
	text.WriteString("📂 Available quizzes:\n\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, id := range ids {
		fmt.Fprintf(&text, "• %s → /start_%s\n", id, id)
		data := "start:" + id
		if len(data) <= maxCallbackData {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("▶️ "+id, data)))
		}
	}

	msg := tgbotapi.NewMessage(chatID, text.String())
	if len(rows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	b.send(msg)
}

func (b *Bot) deleteBank(ctx context.Context, msg *tgbotapi.Message, name string) {
	if !b.isAdmin(msg.From) {
		return
	}
	if name == "" {
		b.sendMessage(msg.Chat.ID, "Usage: /delete <quiz>")
		return
	}
	id, err := b.library.Delete(ctx, name)
	switch {
	case err == nil:
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("🗑 Deleted %s.", id))
	case errors.Is(err, domain.ErrBankNotFound), errors.Is(err, domain.ErrInvalidBankID):
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("❌ Quiz %q not found.", name))
	default:
		log.Printf("delete bank %s: %v", name, err)
		b.sendMessage(msg.Chat.ID, "Could not delete the quiz.")
	}
}

func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	doc := msg.Document
	if !b.isAdmin(msg.From) || !strings.HasSuffix(strings.ToLower(doc.FileName), ".csv") {
		return
	}
	if doc.FileSize > maxUploadBytes {
		b.sendMessage(msg.Chat.ID, "❌ File is too large.")
		return
	}

	data, err := b.download(ctx, doc.FileID)
	if errors.Is(err, errUploadTooLarge) {
		b.sendMessage(msg.Chat.ID, "❌ File is too large.")
		return
	}
	if err != nil {
		log.Printf("download %s: %v", doc.FileName, err)
		b.sendMessage(msg.Chat.ID, "❌ Could not download the file.")
		return
	}

	id, count, err := b.library.Save(ctx, doc.FileName, data)
	switch {
	case errors.Is(err, domain.ErrInvalidBankID):
		b.sendMessage(msg.Chat.ID, "❌ Rename the file using letters, digits, '-', '_' or '.' only.")
	case err != nil:
		log.Printf("save bank %s: %v", doc.FileName, err)
		b.sendMessage(msg.Chat.ID, "❌ Could not save the quiz.")
	case count == 0:
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("⚠️ Saved %s, but no row parsed as a question. Each row must be: question,option,option,...,correct index", id))
	default:
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Saved %s with %d questions!\nStart it with /start_%s", id, count, id))
	}
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxUploadBytes {
		return nil, errUploadTooLarge
	}
	return data, nil
}

func (b *Bot) isAdmin(user *tgbotapi.User) bool {
	return user != nil && b.adminID != 0 && user.ID == b.adminID
}

func (b *Bot) sendMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		log.Printf("error sending message: %v", err)
	}
}

const helpText = `/list - available quizzes
/start_<quiz> - start a quiz
/status - progress of the running quiz
/cancel - stop the running quiz

Operators can upload a CSV (question,option,option,...,correct index) or remove one with /delete <quiz>.`
