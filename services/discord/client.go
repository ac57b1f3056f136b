package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront-bot/pkg/config"
	"storefront-bot/services/role"

	"github.com/bwmarrin/discordgo"
)

// Client scopes the REST half of a session to the configured guild.
type Client struct {
	session *discordgo.Session
	guildID string
}

func NewClient(session *discordgo.Session, cfg *config.Config) *Client {
	return &Client{session: session, guildID: cfg.Discord.GuildID}
}

func (c *Client) Session() *discordgo.Session { return c.session }

func (c *Client) GuildID() string { return c.guildID }

// BotID is empty until the gateway READY event populated the state.
func (c *Client) BotID() string {
	if c.session.State == nil || c.session.State.User == nil {
		return ""
	}
	return c.session.State.User.ID
}

func (c *Client) MemberRoles(ctx context.Context, memberID string) ([]string, error) {
	member, err := c.session.GuildMember(c.guildID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return member.Roles, nil
}

func (c *Client) AddRole(ctx context.Context, memberID, roleID string) error {
	return c.session.GuildMemberRoleAdd(c.guildID, memberID, roleID, discordgo.WithContext(ctx))
}

func (c *Client) RemoveRole(ctx context.Context, memberID, roleID string) error {
	return c.session.GuildMemberRoleRemove(c.guildID, memberID, roleID, discordgo.WithContext(ctx))
}

func (c *Client) Roles(ctx context.Context) ([]role.GuildRole, error) {
	roles, err := c.session.GuildRoles(c.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]role.GuildRole, 0, len(roles))
	for _, r := range roles {
		out = append(out, role.GuildRole{ID: r.ID, Name: r.Name, Color: r.Color})
	}
	return out, nil
}

func (c *Client) CreateRole(ctx context.Context, name string, color int) (role.GuildRole, error) {
	r, err := c.session.GuildRoleCreate(c.guildID, &discordgo.RoleParams{Name: name, Color: &color}, discordgo.WithContext(ctx))
	if err != nil {
		return role.GuildRole{}, err
	}
	return role.GuildRole{ID: r.ID, Name: r.Name, Color: r.Color}, nil
}

// DirectMessage opens (or reuses) the DM channel with userID and posts msg.
func (c *Client) DirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) error {
	ch, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	_, err = c.session.ChannelMessageSendComplex(ch.ID, msg, discordgo.WithContext(ctx))
	return err
}

func (c *Client) Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error) {
	m, err := c.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// BotMessages returns the IDs of the bot's own messages among the latest limit.
func (c *Client) BotMessages(ctx context.Context, channelID string, limit int) ([]string, error) {
	msgs, err := c.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	botID := c.BotID()
	var ids []string
	for _, m := range msgs {
		if m.Author != nil && m.Author.ID == botID {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

// ChannelExists reports false only when the API says the channel is gone.
func (c *Client) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	_, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err == nil {
		return true, nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := c.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return err
}

type PrivateChannel struct {
	Name     string
	Topic    string
	Category string
	MemberID string
}

const (
	memberAllow = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory | discordgo.PermissionAttachFiles
	botAllow = memberAllow | discordgo.PermissionManageChannels | discordgo.PermissionEmbedLinks
)

// CreatePrivateChannel creates a text channel under the named category (created
// on demand) that only the member, the bot and administrators can see.
func (c *Client) CreatePrivateChannel(ctx context.Context, p PrivateChannel) (string, error) {
	parentID, err := c.category(ctx, p.Category)
	if err != nil {
		return "", err
	}

	overwrites := []*discordgo.PermissionOverwrite{
		{ID: c.guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: p.MemberID, Type: discordgo.PermissionOverwriteTypeMember, Allow: memberAllow},
	}
	if botID := c.BotID(); botID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{ID: botID, Type: discordgo.PermissionOverwriteTypeMember, Allow: botAllow})
	}

	ch, err := c.session.GuildChannelCreateComplex(c.guildID, discordgo.GuildChannelCreateData{
		Name:                 p.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                p.Topic,
		ParentID:             parentID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return ch.ID, nil
}

func (c *Client) category(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	channels, err := c.session.GuildChannels(c.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory && strings.EqualFold(ch.Name, name) {
			return ch.ID, nil
		}
	}
	cat, err := c.session.GuildChannelCreate(c.guildID, name, discordgo.ChannelTypeGuildCategory, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return cat.ID, nil
}

// EnsureTextChannel returns the ID of the named text channel, creating it under
// category when the guild has none. created reports whether it was made now.
func (c *Client) EnsureTextChannel(ctx context.Context, name, topic, category string) (id string, created bool, err error) {
	channels, err := c.session.GuildChannels(c.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", false, err
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText && strings.EqualFold(ch.Name, name) {
			return ch.ID, false, nil
		}
	}

	parentID, err := c.category(ctx, category)
	if err != nil {
		return "", false, err
	}
	ch, err := c.session.GuildChannelCreateComplex(c.guildID, discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildText,
		Topic:    topic,
		ParentID: parentID,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", false, err
	}
	return ch.ID, true, nil
}

// Connected reports whether the gateway handshake completed.
func (c *Client) Connected() bool {
	return c.session.DataReady
}
