package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/rolebot/pkg/rolebot/channels"
)

func (d *Discord) onReady(s *discordgo.Session, r *discordgo.Ready) {
	d.connected.Store(true)
	d.logger.Info("discord: connected",
		"user", r.User.Username, "guilds", len(r.Guilds))

	status := presence(d.cfg.Status, r.User)
	if status == "" {
		return
	}
	if err := s.UpdateGameStatus(0, status); err != nil {
		d.logger.Warn("discord: setting presence failed", "error", err)
	}
}

// presence fills SelfName in status with the connected user's name.
func presence(status string, self *discordgo.User) string {
	if !strings.Contains(status, SelfName) {
		return status
	}
	return strings.ReplaceAll(status, SelfName, displayName(nil, self))
}

func (d *Discord) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	d.connected.Store(false)
	d.logger.Warn("discord: disconnected")
}

func (d *Discord) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	d.connected.Store(true)
	d.logger.Info("discord: session resumed")
}

func (d *Discord) onMessageCreate(s *discordgo.Session, evt *discordgo.MessageCreate) {
	if evt.Message == nil || evt.Author == nil {
		return
	}
	msg := toIncoming(evt.Message, stateNames(s.State, evt.GuildID))
	d.emit(msg)
}

// stateNames resolves display names from the session's member cache,
// falling back to the user's own names.
func stateNames(state *discordgo.State, guildID string) func(*discordgo.User) string {
	return func(u *discordgo.User) string {
		var m *discordgo.Member
		if state != nil && guildID != "" {
			m, _ = state.Member(guildID, u.ID)
		}
		return displayName(m, u)
	}
}

// toIncoming converts a gateway message. User mentions in the content are
// rendered as "@<display name>" so the router sees the same text a reader does.
func toIncoming(m *discordgo.Message, name func(*discordgo.User) string) *channels.IncomingMessage {
	authorName := displayName(m.Member, m.Author)
	return &channels.IncomingMessage{
		ID:          m.ID,
		Channel:     ChannelName,
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		AuthorID:    m.Author.ID,
		AuthorName:  authorName,
		Content:     renderMentions(m.Content, m.Mentions, name),
		FromBot:     m.Author.Bot,
		FromWebhook: m.WebhookID != "",
		Timestamp:   m.Timestamp,
	}
}

// renderMentions replaces <@id> and <@!id> tokens of the mentioned users.
func renderMentions(content string, mentions []*discordgo.User, name func(*discordgo.User) string) string {
	if len(mentions) == 0 {
		return content
	}
	pairs := make([]string, 0, len(mentions)*4)
	for _, u := range mentions {
		if u == nil {
			continue
		}
		rendered := "@" + name(u)
		pairs = append(pairs, "<@"+u.ID+">", rendered, "<@!"+u.ID+">", rendered)
	}
	return strings.NewReplacer(pairs...).Replace(content)
}

// displayName picks the guild nickname, then the global name, then the
// username.
func displayName(m *discordgo.Member, u *discordgo.User) string {
	if m != nil && m.Nick != "" {
		return m.Nick
	}
	if u == nil && m != nil {
		u = m.User
	}
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
