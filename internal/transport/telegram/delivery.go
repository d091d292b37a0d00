package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizbot/internal/domain"
)

// Telegram quiz poll limits.
const (
	maxQuestionLen = 300
	maxOptionLen   = 100
)

// Sender is the part of the Bot API needed to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Delivery presents questions as Telegram quiz polls. The poll id is the
// correlation token echoed back in poll answers.
type Delivery struct {
	api Sender
}

func NewDelivery(api Sender) *Delivery {
	return &Delivery{api: api}
}

func (d *Delivery) PresentQuestion(_ context.Context, participantID, prompt string, options []string, correctIndex int) (string, error) {
	chatID, err := chatIDOf(participantID)
	if err != nil {
		return "", err
	}
	if err := checkPollLimits(prompt, options); err != nil {
		return "", err
	}

	poll := tgbotapi.NewPoll(chatID, prompt, options...)
	poll.Type = "quiz"
	poll.IsAnonymous = false
	poll.CorrectOptionID = int64(correctIndex)

	msg, err := d.api.Send(poll)
	if err != nil {
		return "", fmt.Errorf("send poll: %w", err)
	}
	if msg.Poll == nil {
		return "", errors.New("send poll: response has no poll")
	}
	return msg.Poll.ID, nil
}

func (d *Delivery) Notify(_ context.Context, participantID, text string) error {
	chatID, err := chatIDOf(participantID)
	if err != nil {
		return err
	}
	if _, err := d.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func checkPollLimits(prompt string, options []string) error {
	if n := utf8.RuneCountInString(prompt); n > maxQuestionLen {
		return fmt.Errorf("%w: question is %d characters, max %d", domain.ErrPollLimits, n, maxQuestionLen)
	}
	if len(options) < domain.MinOptions || len(options) > domain.MaxOptions {
		return fmt.Errorf("%w: %d options", domain.ErrPollLimits, len(options))
	}
	for i, opt := range options {
		if n := utf8.RuneCountInString(opt); n > maxOptionLen {
			return fmt.Errorf("%w: option %d is %d characters, max %d", domain.ErrPollLimits, i+1, n, maxOptionLen)
		}
	}
	return nil
}

func chatIDOf(participantID string) (int64, error) {
	chatID, err := strconv.ParseInt(participantID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("participant %q is not a telegram chat id", participantID)
	}
	return chatID, nil
}

func participantOf(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
