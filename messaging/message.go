package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/kindauth/model"
)

var (
	// ErrNoRoute is returned when no sender handles the channel.
	ErrNoRoute = errors.New("messaging: no sender for channel")
	// ErrBadDestination is returned for empty or header-injecting addresses.
	ErrBadDestination = errors.New("messaging: invalid destination")
)

// Message is one outbound notification.
type Message struct {
	Channel     model.Channel
	Destination string
	Subject     string
	Body        string
}

// Sender delivers a message on one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Router dispatches by channel.
type Router struct {
	Email Sender
	Phone Sender
}

func (r Router) Send(ctx context.Context, msg Message) error {
	var s Sender
	switch msg.Channel {
	case model.ChannelEmail:
		s = r.Email
	case model.ChannelPhone:
		s = r.Phone
	}
	if s == nil {
		return fmt.Errorf("%w: %s", ErrNoRoute, msg.Channel)
	}
	return s.Send(ctx, msg)
}

// LogSender writes messages to a slog logger instead of delivering them.
// Codes are included, so it is meant for local development only.
type LogSender struct {
	Logger *slog.Logger
}

func (l LogSender) Send(ctx context.Context, msg Message) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "otp message",
		"channel", msg.Channel,
		"destination", msg.Destination,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}

// Compose renders the OTP notification for purpose.
func Compose(appName string, ch model.Channel, dest string, purpose model.Purpose, code string, ttl time.Duration) Message {
	if appName == "" {
		appName = "kindauth"
	}
	var action string
	switch purpose {
	case model.PurposeActivation:
		action = "activate your account"
	case model.PurposePasswordReset:
		action = "reset your password"
	case model.PurposeContactChange:
		action = "confirm your new contact details"
	default:
		action = "continue"
	}
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	msg := Message{Channel: ch, Destination: dest}
	if ch == model.ChannelPhone {
		msg.Body = fmt.Sprintf("%s code: %s. Use it to %s. Expires in %d min.", appName, code, action, minutes)
		return msg
	}
	msg.Subject = fmt.Sprintf("%s - your verification code", appName)
	msg.Body = fmt.Sprintf(
		"Hello,\n\nUse the code below to %s:\n\n    %s\n\nThis code expires in %d minutes. If you did not request it, you can ignore this message.\n\nThe %s team",
		action, code, minutes, appName,
	)
	return msg
}

func validHeaderValue(s string) bool {
	return s != "" && !strings.ContainsAny(s, "\r\n")
}
