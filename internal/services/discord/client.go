// Package discord announces releases as channel messages through a bot.
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"confops/internal/services"
	"confops/internal/services/social"
)

// maxMessageLength is the platform's per-message character limit.
const maxMessageLength = 2000

// MessageSender is the subset of *discordgo.Session the client uses.
type MessageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Client posts to one channel.
type Client struct {
	sender    MessageSender
	channelID string
}

// New opens a bot session for token.
func New(token, channelID string) (*Client, error) {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(channelID) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "discord", "init",
			"social.discord_bot_token and social.discord_channel_id are required", nil)
	}
	session, err := discordgo.New(normalizeBotToken(token))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "discord", "init", "create session", err)
	}
	return NewWithSender(session, channelID), nil
}

// NewWithSender wraps an existing sender.
func NewWithSender(sender MessageSender, channelID string) *Client {
	return &Client{sender: sender, channelID: strings.TrimSpace(channelID)}
}

// CreatePost sends the post text, with the link appended when the text does
// not already carry it, and returns the created message.
func (c *Client) CreatePost(ctx context.Context, post social.Post) (json.RawMessage, error) {
	content := strings.TrimSpace(post.Text)
	if post.Link != "" && !strings.Contains(content, post.Link) {
		content += "\n" + post.Link
	}
	if content == "" {
		return nil, services.Wrap(services.ErrValidation, "discord", "create post", "post text is empty", nil)
	}
	if r := []rune(content); len(r) > maxMessageLength {
		content = string(r[:maxMessageLength])
	}
	msg, err := c.sender.ChannelMessageSend(c.channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "discord", "create post", "send message", err)
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return raw, nil
}

func normalizeBotToken(token string) string {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(strings.ToLower(token), "bot ") {
		return token
	}
	return "Bot " + token
}
