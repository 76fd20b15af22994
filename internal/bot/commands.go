package bot

import (
	"context"

	"homestock/internal/apiclient"
	"homestock/internal/logging"
	"homestock/internal/metrics"
)

func stringOpt(name, description string, required bool) CommandOption {
	return CommandOption{Type: OptionString, Name: name, Description: description, Required: required}
}

func subCommand(name, description string, options ...CommandOption) CommandOption {
	return CommandOption{Type: OptionSubCommand, Name: name, Description: description, Options: options}
}

var statusNote = stringOpt("note", "Optional note, e.g. who it went to", false)

// Commands is the slash command table registered with Discord
func Commands() []ApplicationCommand {
	return []ApplicationCommand{
		{Name: "ping", Description: "Check the bot is alive"},
		{Name: "whoami", Description: "Show which Homestock member you are"},
		{Name: "help", Description: "List what the bot can do"},
		{
			Name:        "item",
			Description: "Manage household items",
			Options: []CommandOption{
				subCommand("add", "Add an item",
					stringOpt("name", "Item name", true),
					CommandOption{Type: OptionInteger, Name: "quantity", Description: "How many (default 1)"},
					stringOpt("box", "Box to put it in", false),
				),
				subCommand("list", "List owned items"),
				subCommand("find", "Find which box an item is in", stringOpt("name", "Item name", true)),
				subCommand("consume", "Mark an item as used up", stringOpt("name", "Item name", true), statusNote),
				subCommand("give", "Mark an item as given away", stringOpt("name", "Item name", true), statusNote),
				subCommand("sell", "Mark an item as sold", stringOpt("name", "Item name", true), statusNote),
			},
		},
		{
			Name:        "want",
			Description: "Manage the family wishlist",
			Options: []CommandOption{
				subCommand("add", "Add something to the wishlist",
					stringOpt("name", "What you want", true),
					CommandOption{
						Type:        OptionInteger,
						Name:        "priority",
						Description: "0 (someday) to 5 (urgent)",
						Choices: []OptionChoice{
							{Name: "someday", Value: 0}, {Name: "low", Value: 1}, {Name: "normal", Value: 3}, {Name: "urgent", Value: 5},
						},
					},
				),
				subCommand("list", "Show the wishlist"),
				subCommand("purchase", "Mark a wish as bought",
					stringOpt("name", "Wishlist entry", true),
					CommandOption{Type: OptionBoolean, Name: "add_to_inventory", Description: "Also add it as an owned item"},
				),
				subCommand("cancel", "Remove a wish", stringOpt("name", "Wishlist entry", true)),
			},
		},
		{
			Name:        "box",
			Description: "Manage storage boxes",
			Options: []CommandOption{
				subCommand("add", "Create a box", stringOpt("name", "Box name", true), stringOpt("place", "Where the box lives", false)),
				subCommand("list", "List boxes"),
			},
		},
		{
			Name:        "place",
			Description: "Manage places boxes live in",
			Options: []CommandOption{
				subCommand("add", "Create a place", stringOpt("name", "Place name", true)),
				subCommand("list", "List places"),
			},
		},
		{
			Name:        "recall",
			Description: "Show what the bot remembers from your messages",
			Options: []CommandOption{
				{Type: OptionInteger, Name: "limit", Description: "How many facts (default 10)"},
			},
		},
	}
}

const helpText = "**Homestock**\n" +
	"`/item add|list|find|consume|give|sell` manage items\n" +
	"`/want add|list|purchase|cancel` manage the wishlist\n" +
	"`/box add|list` and `/place add|list` organise storage\n" +
	"`/whoami` shows your linked member, `/recall` what I remember\n" +
	"You can also just talk to me, e.g. \"put 3 batteries in box Garage 1\" or \"where is the drill?\""

// Dispatch runs an application command and returns the reply content
func (b *Bot) Dispatch(ctx context.Context, in Interaction) string {
	if in.Data == nil {
		return "That command is missing its data."
	}
	author := in.Author()
	if author == nil || author.ID == "" {
		return "I couldn't tell who sent that."
	}

	name, sub, opts := in.Data.Name, "", optionList(in.Data.Options)
	if len(opts) == 1 && opts[0].Type == OptionSubCommand {
		sub = opts[0].Name
		opts = optionList(opts[0].Options)
	}
	label := name
	if sub != "" {
		label += " " + sub
	}

	reply, err := b.runSlash(ctx, author.ID, name, sub, opts)
	metrics.BotCommands.WithLabelValues(label, outcome(err)).Inc()
	if err != nil {
		if outcome(err) == "error" {
			logging.Ctx(ctx).Warn().Err(err).Str("command", label).Str("discord_id", author.ID).Msg("Command failed")
		}
		return failureReply(err)
	}
	return reply
}

func (b *Bot) runSlash(ctx context.Context, discordID, name, sub string, opts optionList) (string, error) {
	caller := apiclient.Discord(discordID)

	switch name {
	case "ping":
		return "Pong!", nil
	case "help":
		return helpText, nil
	case "whoami":
		return b.whoami(ctx, caller)
	case "recall":
		return b.recall(ctx, discordID, opts.Int("limit", 0))
	case "item":
		switch sub {
		case "add":
			return b.addItem(ctx, caller, opts.Text("name"), opts.Int("quantity", 1), opts.Text("box"))
		case "list":
			return b.listItems(ctx, caller)
		case "find":
			return b.findItem(ctx, caller, opts.Text("name"))
		case "consume":
			return b.transitionItem(ctx, caller, opts.Text("name"), apiclient.Consume, opts.Text("note"))
		case "give":
			return b.transitionItem(ctx, caller, opts.Text("name"), apiclient.Give, opts.Text("note"))
		case "sell":
			return b.transitionItem(ctx, caller, opts.Text("name"), apiclient.Sell, opts.Text("note"))
		}
	case "want":
		switch sub {
		case "add":
			return b.addWish(ctx, caller, opts.Text("name"), opts.Int("priority", 0))
		case "list":
			return b.listWishlist(ctx, caller)
		case "purchase":
			return b.purchaseWish(ctx, caller, opts.Text("name"), opts.Bool("add_to_inventory"))
		case "cancel":
			return b.cancelWish(ctx, caller, opts.Text("name"))
		}
	case "box":
		switch sub {
		case "add":
			return b.addBox(ctx, caller, opts.Text("name"), opts.Text("place"))
		case "list":
			return b.listBoxes(ctx, caller)
		}
	case "place":
		switch sub {
		case "add":
			return b.addPlace(ctx, caller, opts.Text("name"))
		case "list":
			return b.listPlaces(ctx, caller)
		}
	}
	return "", userErrorf("Unknown command. Try `/help`.")
}
