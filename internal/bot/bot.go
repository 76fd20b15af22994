// Package bot is the Discord front end. Slash commands arrive on the interactions
// endpoint; free-text messages arrive over the gateway when natural language or
// memory extraction is enabled. Every inventory change goes through the API's bot
// surface, acting as the member linked to the Discord account.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"homestock/internal/apiclient"
	"homestock/internal/intent"
	"homestock/internal/logging"
	"homestock/internal/memory"
	"homestock/internal/metrics"
	"homestock/internal/models"
)

// API is the subset of the Homestock API the bot uses
type API interface {
	Me(ctx context.Context, caller apiclient.Caller) (*models.User, error)
	Family(ctx context.Context, caller apiclient.Caller) (*models.Family, error)
	ListItems(ctx context.Context, caller apiclient.Caller, filter models.ItemFilter) ([]models.Item, error)
	CreateItem(ctx context.Context, caller apiclient.Caller, input models.CreateItemInput) (*models.Item, error)
	TransitionItem(ctx context.Context, caller apiclient.Caller, id, action, note string) (*models.Item, error)
	ListWishlist(ctx context.Context, caller apiclient.Caller, status models.WishlistStatus) ([]models.WishlistItem, error)
	CreateWish(ctx context.Context, caller apiclient.Caller, input models.CreateWishlistInput) (*models.WishlistItem, error)
	PurchaseWish(ctx context.Context, caller apiclient.Caller, id string, input models.PurchaseInput) (*apiclient.PurchaseResult, error)
	CancelWish(ctx context.Context, caller apiclient.Caller, id string) (*models.WishlistItem, error)
	ListBoxes(ctx context.Context, caller apiclient.Caller) ([]models.Box, error)
	CreateBox(ctx context.Context, caller apiclient.Caller, input models.CreateBoxInput) (*models.Box, error)
	ListLocations(ctx context.Context, caller apiclient.Caller) ([]models.Location, error)
	CreateLocation(ctx context.Context, caller apiclient.Caller, input models.NamedInput) (*models.Location, error)
}

// Memory stores and recalls facts per Discord user
type Memory interface {
	Remember(ctx context.Context, discordID, channelID string, facts []intent.Fact) (int, error)
	Recall(ctx context.Context, discordID string, limit int) ([]memory.Record, error)
}

// MessageSender posts channel messages
type MessageSender interface {
	SendMessage(ctx context.Context, channelID, content, replyTo string) error
}

// Options toggles the free-text features
type Options struct {
	NaturalLanguage  bool
	MemoryExtraction bool
}

// Bot turns commands and messages into API calls and replies
type Bot struct {
	api       API
	memory    Memory
	sender    MessageSender
	parser    intent.Parser
	extractor intent.Extractor
	opts      Options
}

// New builds a Bot. memory and sender may be nil when the features using them are off.
func New(api API, mem Memory, sender MessageSender, opts Options) *Bot {
	return &Bot{
		api:       api,
		memory:    mem,
		sender:    sender,
		parser:    intent.NewPatternParser(),
		extractor: intent.NewPatternExtractor(),
		opts:      opts,
	}
}

// userError is a reply for a request the bot could not act on, shown verbatim
type userError struct {
	msg string
}

func (e *userError) Error() string { return e.msg }

func userErrorf(format string, args ...any) error {
	return &userError{msg: fmt.Sprintf(format, args...)}
}

// failureReply renders err for chat
func failureReply(err error) string {
	var ue *userError
	if errors.As(err, &ue) {
		return ue.msg
	}
	if apiclient.IsCode(err, "USER_NOT_FOUND") {
		return "Your Discord account isn't linked to a Homestock member yet. Link it from your profile page, then try again."
	}
	return "Sorry, that didn't work, please try again. " + apiclient.Message(err)
}

func outcome(err error) string {
	var ue *userError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ue):
		return "rejected"
	default:
		return "error"
	}
}

// Message is a chat message seen on the gateway
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	AuthorBot bool
	Content   string
	// Mentioned is set when the message addresses the bot directly
	Mentioned bool
}

// HandleMessage runs the free-text pipeline for one message
func (b *Bot) HandleMessage(ctx context.Context, msg Message) {
	if msg.AuthorBot || msg.AuthorID == "" || strings.TrimSpace(msg.Content) == "" {
		return
	}
	log := logging.Ctx(ctx).With().
		Str("channel_id", msg.ChannelID).
		Str("discord_id", msg.AuthorID).
		Logger()

	if b.opts.MemoryExtraction && b.memory != nil {
		if facts := b.extractor.Extract(msg.Content); len(facts) > 0 {
			if _, err := b.memory.Remember(ctx, msg.AuthorID, msg.ChannelID, facts); err != nil {
				log.Error().Err(err).Msg("Failed to store facts")
			}
		}
	}

	if !b.opts.NaturalLanguage || b.sender == nil {
		return
	}

	cmd, ok := b.parser.Parse(msg.Content)
	if !ok {
		if msg.Mentioned {
			b.reply(ctx, msg, "Sorry, I didn't catch that. Could you rephrase? Try `/help` for what I can do.")
		}
		return
	}

	reply, err := b.Run(ctx, apiclient.Discord(msg.AuthorID), cmd)
	metrics.BotCommands.WithLabelValues("nl:"+string(cmd.Action), outcome(err)).Inc()
	if err != nil {
		if outcome(err) == "error" {
			log.Warn().Err(err).Str("action", string(cmd.Action)).Msg("Natural language command failed")
		}
		reply = failureReply(err)
	}
	b.reply(ctx, msg, reply)
}

func (b *Bot) reply(ctx context.Context, msg Message, content string) {
	if err := b.sender.SendMessage(ctx, msg.ChannelID, content, msg.ID); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("channel_id", msg.ChannelID).Msg("Failed to send reply")
	}
}

// Run executes a parsed command
func (b *Bot) Run(ctx context.Context, caller apiclient.Caller, cmd intent.Command) (string, error) {
	switch cmd.Action {
	case intent.ActionAddItem:
		return b.addItem(ctx, caller, cmd.Name, cmd.Quantity, cmd.Box)
	case intent.ActionFindItem:
		return b.findItem(ctx, caller, cmd.Name)
	case intent.ActionListItems:
		return b.listItems(ctx, caller)
	case intent.ActionConsumeItem:
		return b.transitionItem(ctx, caller, cmd.Name, apiclient.Consume, cmd.Note)
	case intent.ActionGiveItem:
		return b.transitionItem(ctx, caller, cmd.Name, apiclient.Give, cmd.Note)
	case intent.ActionSellItem:
		return b.transitionItem(ctx, caller, cmd.Name, apiclient.Sell, cmd.Note)
	case intent.ActionAddWish:
		return b.addWish(ctx, caller, cmd.Name, 0)
	case intent.ActionListWishlist:
		return b.listWishlist(ctx, caller)
	case intent.ActionListBoxes:
		return b.listBoxes(ctx, caller)
	case intent.ActionListLocations:
		return b.listPlaces(ctx, caller)
	}
	return "", userErrorf("I don't know how to do that yet.")
}
