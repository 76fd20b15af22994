package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// Action is an inventory operation a chat message can ask for
type Action string

const (
	ActionAddItem       Action = "add_item"
	ActionFindItem      Action = "find_item"
	ActionListItems     Action = "list_items"
	ActionConsumeItem   Action = "consume_item"
	ActionGiveItem      Action = "give_item"
	ActionSellItem      Action = "sell_item"
	ActionAddWish       Action = "add_wish"
	ActionListWishlist  Action = "list_wishlist"
	ActionListBoxes     Action = "list_boxes"
	ActionListLocations Action = "list_locations"
)

// Command is a parsed chat request. Name is the item (or wish) the user mentioned;
// Box and Note are only set by the actions that use them.
type Command struct {
	Action   Action
	Name     string
	Quantity int
	Box      string
	Note     string
}

// Parser maps free text to a Command
type Parser interface {
	Parse(text string) (Command, bool)
}

type commandRule struct {
	pattern *regexp.Regexp
	build   func(m []string) Command
}

const articles = `(?:(?:the|a|an|some|my|our)\s+)?`

// commandRules is evaluated in order. Wishlist phrasings come before the generic "add"
// so "add tent to the wishlist" is not stored as an owned item.
var commandRules = []commandRule{
	{
		regexp.MustCompile(`(?i)^(?:add|put)\s+` + articles + `(.+?)\s+(?:to|on)\s+` + articles + `(?:wish\s*list|shopping list|wants)$`),
		func(m []string) Command { return Command{Action: ActionAddWish, Name: m[1], Quantity: 1} },
	},
	{
		regexp.MustCompile(`(?i)^(?:we|i)\s+(?:want|need)\s+(?:to\s+buy\s+(?:(?:a|an|some|the|new|more)\s+)?|(?:a|an|some|more|new)\s+(?:new\s+)?)(.+)$`),
		func(m []string) Command { return Command{Action: ActionAddWish, Name: m[1], Quantity: 1} },
	},
	{
		regexp.MustCompile(`(?i)^(?:what(?:'s|\s+is)\s+on|show|list)\s+` + articles + `(?:wish\s*list|shopping list|wants)$`),
		func(m []string) Command { return Command{Action: ActionListWishlist} },
	},
	{
		regexp.MustCompile(`(?i)^(?:add|put|store)\s+(?:(\d+)\s+)?` + articles + `(.+?)(?:\s+(?:in|into)\s+` + articles + `(?:box\s+)?(.+))?$`),
		func(m []string) Command {
			return Command{Action: ActionAddItem, Name: m[2], Quantity: quantity(m[1]), Box: m[3]}
		},
	},
	{
		regexp.MustCompile(`(?i)^(?:we\s+|i\s+)?(?:used up|finished|ate|drank|consumed?)\s+` + articles + `(.+)$`),
		func(m []string) Command { return Command{Action: ActionConsumeItem, Name: m[1]} },
	},
	{
		regexp.MustCompile(`(?i)^(?:we\s+|i\s+)?(?:gave|give)\s+(?:away\s+)?` + articles + `(.+?)(?:\s+to\s+(.+))?$`),
		func(m []string) Command {
			cmd := Command{Action: ActionGiveItem, Name: m[1]}
			if m[2] != "" {
				cmd.Note = "given to " + m[2]
			}
			return cmd
		},
	},
	{
		regexp.MustCompile(`(?i)^(?:we\s+|i\s+)?(?:sold|sell)\s+` + articles + `(.+?)(?:\s+((?:to|for)\s+.+))?$`),
		func(m []string) Command {
			cmd := Command{Action: ActionSellItem, Name: m[1]}
			if m[2] != "" {
				cmd.Note = "sold " + m[2]
			}
			return cmd
		},
	},
	{
		regexp.MustCompile(`(?i)^where\s+(?:is|are|did\s+(?:we|i)\s+put)\s+` + articles + `(.+)$`),
		func(m []string) Command { return Command{Action: ActionFindItem, Name: m[1]} },
	},
	{
		regexp.MustCompile(`(?i)^(?:(?:show|list)\s+(?:me\s+)?(?:all\s+)?` + articles + `(?:all\s+)?(?:boxes)|what\s+boxes\b.*)$`),
		func(m []string) Command { return Command{Action: ActionListBoxes} },
	},
	{
		regexp.MustCompile(`(?i)^(?:(?:show|list)\s+(?:me\s+)?(?:all\s+)?` + articles + `(?:all\s+)?(?:locations|places|rooms)|what\s+(?:locations|places)\b.*)$`),
		func(m []string) Command { return Command{Action: ActionListLocations} },
	},
	{
		regexp.MustCompile(`(?i)^(?:(?:show|list)\s+(?:me\s+)?(?:all\s+)?` + articles + `(?:all\s+)?(?:items|things|stuff|inventory)|what\s+(?:do\s+we\s+have|items|things)\b.*)$`),
		func(m []string) Command { return Command{Action: ActionListItems} },
	},
}

var (
	mentionPattern = regexp.MustCompile(`<@!?\d+>`)
	trailingPunct  = regexp.MustCompile(`[\s.!?]+$`)
	leadingPolite  = regexp.MustCompile(`(?i)^(?:(?:hey|hi|ok|okay)[,\s]+)?(?:(?:please|can you|could you)\s+)?`)
)

// PatternParser is the regex-table Parser
type PatternParser struct {
	rules []commandRule
}

func NewPatternParser() *PatternParser {
	return &PatternParser{rules: commandRules}
}

// Parse reads the first line of text. Mentions, politeness and trailing punctuation are ignored.
func (p *PatternParser) Parse(text string) (Command, bool) {
	line, _, _ := strings.Cut(text, "\n")
	line = mentionPattern.ReplaceAllString(line, "")
	line = strings.TrimSpace(line)
	line = leadingPolite.ReplaceAllString(line, "")
	line = trailingPunct.ReplaceAllString(line, "")
	line = strings.Join(strings.Fields(line), " ")
	if line == "" {
		return Command{}, false
	}

	for _, rule := range p.rules {
		m := rule.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		cmd := rule.build(m)
		cmd.Name = strings.TrimSpace(cmd.Name)
		cmd.Box = strings.TrimSpace(cmd.Box)
		return cmd, true
	}
	return Command{}, false
}

var defaultParser = NewPatternParser()

// ParseCommand runs the built-in parser
func ParseCommand(text string) (Command, bool) {
	return defaultParser.Parse(text)
}

func quantity(raw string) int {
	if raw == "" {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
