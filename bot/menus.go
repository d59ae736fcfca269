package bot

import (
	"mentorgate/entity"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

// Per-role command lists for Telegram's menu button (the "/" icon in the chat input).
// These are pushed via SetMyCommands with BotCommandScopeChat; syncAllUserMenus sets them on startup.

var commandsAnonymous = []tgbotapi.BotCommand{
	{Command: "start", Description: "Link this chat and enable notifications"},
	{Command: "help", Description: "Show available commands"},
}

var commandsUser = []tgbotapi.BotCommand{
	{Command: "start", Description: "Enable notifications"},
	{Command: "stop", Description: "Disable notifications"},
	{Command: "level", Description: "Set log level filter"},
	{Command: "help", Description: "Show available commands"},
}

var commandsAdmin = []tgbotapi.BotCommand{
	{Command: "start", Description: "Enable notifications"},
	{Command: "stop", Description: "Disable notifications"},
	{Command: "level", Description: "Set log level filter"},
	{Command: "invite", Description: "Issue a mentor code"},
	{Command: "codes", Description: "List recent mentor codes"},
	{Command: "requests", Description: "List recent mentor requests"},
	{Command: "pending", Description: "Review pending requests"},
	{Command: "approve", Description: "Approve a request by id"},
	{Command: "reject", Description: "Reject a request by id"},
	{Command: "help", Description: "Show available commands"},
}

func commandsFor(role entity.Role) []tgbotapi.BotCommand {
	switch role {
	case entity.RoleAdmin:
		return commandsAdmin
	case entity.RoleService:
		return commandsUser
	default:
		return commandsAnonymous
	}
}

// setDefaultCommands sets the default bot menu for unknown users.
func (t *TgBot) setDefaultCommands() {
	_, err := t.api.SetMyCommands(commandsAnonymous, &tgbotapi.SetMyCommandsOpts{
		Scope: tgbotapi.BotCommandScopeDefault{},
	})
	if err != nil {
		t.log.Warn("setting default commands", "error", err)
	}
}

// setUserCommands sets the command menu for a specific user based on their role.
func (t *TgBot) setUserCommands(chatId int64, role entity.Role) {
	_, err := t.api.SetMyCommands(commandsFor(role), &tgbotapi.SetMyCommandsOpts{
		Scope: tgbotapi.BotCommandScopeChat{ChatId: chatId},
	})
	if err != nil {
		t.log.Warn("setting user commands", "chat_id", chatId, "error", err)
	}
}

// syncAllUserMenus sets command menus for all known users based on their roles.
func (t *TgBot) syncAllUserMenus() {
	t.mu.RLock()
	users := make(map[int64]entity.Role, len(t.users))
	for id, u := range t.users {
		users[id] = u.Role
	}
	t.mu.RUnlock()

	for chatId, role := range users {
		t.setUserCommands(chatId, role)
	}
}
