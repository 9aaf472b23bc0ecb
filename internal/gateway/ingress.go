package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/taskrelay/internal/models"
	"github.com/zulandar/taskrelay/internal/telegram"
	"gorm.io/gorm"
)

// Gateway handles one platform Update per invocation. It holds no mutable
// state of its own — everything cross-invocation lives in the store — so
// updates may be processed concurrently and redelivered safely.
type Gateway struct {
	db        *gorm.DB
	messenger Messenger
	linker    *Linker
	actions   *Actions
	out       io.Writer
}

// GatewayOpts holds parameters for creating a Gateway.
type GatewayOpts struct {
	DB        *gorm.DB
	Messenger Messenger
	Linker    *Linker   // optional; built from DB when nil
	Actions   *Actions  // optional; built from DB and Messenger when nil
	Out       io.Writer // defaults to os.Stdout
}

// NewGateway creates a Gateway.
func NewGateway(opts GatewayOpts) (*Gateway, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("gateway: db is required")
	}
	if opts.Messenger == nil {
		return nil, fmt.Errorf("gateway: messenger is required")
	}
	linker := opts.Linker
	if linker == nil {
		var err error
		if linker, err = NewLinker(LinkerOpts{DB: opts.DB}); err != nil {
			return nil, err
		}
	}
	actions := opts.Actions
	if actions == nil {
		var err error
		if actions, err = NewActions(ActionsOpts{DB: opts.DB, Messenger: opts.Messenger}); err != nil {
			return nil, err
		}
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Gateway{
		db:        opts.DB,
		messenger: opts.Messenger,
		linker:    linker,
		actions:   actions,
		out:       out,
	}, nil
}

// Linker exposes the account-linking service, used by the account system's
// own verification endpoint.
func (g *Gateway) Linker() *Linker {
	return g.linker
}

// HandleUpdate routes one inbound Update. It never fails outward: every
// internal error ends in a logged entry and, where a chat is known, a
// friendly reply. The HTTP layer above always acknowledges the platform
// with success to avoid redelivery storms.
func (g *Gateway) HandleUpdate(ctx context.Context, update *telegram.Update) {
	switch {
	case update.CallbackQuery != nil:
		fmt.Fprintf(g.out, "gateway: update %d → callback %q\n", update.UpdateID, update.CallbackQuery.Data)
		g.actions.HandleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		fmt.Fprintf(g.out, "gateway: update %d → message [chat=%d] %q\n",
			update.UpdateID, update.Message.Chat.ID, truncate(update.Message.Text, 80))
		g.handleMessage(ctx, update.Message)
	default:
		// Edits, joins, stickers and the rest are not consumed.
		fmt.Fprintf(g.out, "gateway: update %d → ignore\n", update.UpdateID)
	}
}

// handleMessage dispatches on the fixed command prefix set, falling through
// to free-text handling.
func (g *Gateway) handleMessage(ctx context.Context, msg *telegram.Message) {
	cmd := ParseCommand(msg.Text)

	switch cmd.Kind {
	case CommandStart:
		g.reply(ctx, msg.Chat.ID, startText())
	case CommandConnect:
		g.handleConnect(ctx, msg)
	case CommandMyTasks:
		g.handleMyTasks(ctx, msg)
	case CommandAssign:
		g.handleAssign(ctx, msg, cmd.Assign)
	case CommandInvalidAssign:
		g.reply(ctx, msg.Chat.ID, cmd.Usage)
	default:
		g.handleFreeText(ctx, msg)
	}
}

// handleConnect issues a one-time connection code, or reports that the
// sender is already linked.
func (g *Gateway) handleConnect(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil {
		g.reply(ctx, msg.Chat.ID, "I can't identify you on this chat, sorry.")
		return
	}

	code, already, err := g.linker.IssueConnectionCode(msg.Chat.ID, msg.From.ID, msg.From.Username)
	if err != nil {
		log.Printf("gateway: connect: %v", err)
		g.reply(ctx, msg.Chat.ID, "Connecting failed, please try again.")
		return
	}
	if already {
		g.reply(ctx, msg.Chat.ID, "This chat is already connected to your account ✅")
		return
	}
	g.reply(ctx, msg.Chat.ID, fmt.Sprintf(
		"Your connection code is <b>%s</b>.\nEnter it in your tracker profile to link this chat.", code))
}

// handleMyTasks lists the sender's open tasks.
func (g *Gateway) handleMyTasks(ctx context.Context, msg *telegram.Message) {
	acct := g.linkedAccount(msg)
	if acct == nil {
		g.reply(ctx, msg.Chat.ID, "You're not connected yet — use /connect first.")
		return
	}

	var tasks []models.Task
	if err := g.db.Where("assignee_id = ? AND status IN ?", acct.ID, nonTerminalStatuses).
		Order("due_at").Find(&tasks).Error; err != nil {
		log.Printf("gateway: mytasks for %s: %v", acct.ID, err)
		g.reply(ctx, msg.Chat.ID, "Listing your tasks failed, please try again.")
		return
	}
	g.reply(ctx, msg.Chat.ID, formatTaskList(tasks))
}

// handleAssign creates a task for another account. Admin only.
func (g *Gateway) handleAssign(ctx context.Context, msg *telegram.Message, assign *AssignCommand) {
	acct := g.linkedAccount(msg)
	if acct == nil {
		g.reply(ctx, msg.Chat.ID, "You're not connected yet — use /connect first.")
		return
	}
	if acct.Role != "admin" {
		g.reply(ctx, msg.Chat.ID, "Only admins can assign tasks.")
		return
	}

	var assignee models.Account
	result := g.db.Where("telegram_username = ? OR name = ?", assign.Assignee, assign.Assignee).
		First(&assignee)
	if result.Error == gorm.ErrRecordNotFound {
		g.reply(ctx, msg.Chat.ID, fmt.Sprintf("I don't know anyone called @%s.", assign.Assignee))
		return
	}
	if result.Error != nil {
		log.Printf("gateway: assign: find %q: %v", assign.Assignee, result.Error)
		g.reply(ctx, msg.Chat.ID, "Creating the task failed, please try again.")
		return
	}

	task := models.Task{
		ID:         uuid.NewString(),
		Title:      assign.Title,
		Status:     models.TaskStatusPending,
		Priority:   assign.Priority,
		AssigneeID: &assignee.ID,
	}
	if task.Priority == "" {
		task.Priority = "medium"
	}
	if assign.DueExpr != "" {
		due := ResolveDueDate(assign.DueExpr, time.Now())
		task.DueAt = &due
	}
	if err := g.db.Create(&task).Error; err != nil {
		log.Printf("gateway: assign: create task: %v", err)
		g.reply(ctx, msg.Chat.ID, "Creating the task failed, please try again.")
		return
	}

	confirmation := fmt.Sprintf("Task created for @%s: %s", assign.Assignee, task.Title)
	if task.DueAt != nil {
		confirmation += fmt.Sprintf(" (due %s)", task.DueAt.Format("Mon Jan 2 15:04"))
	}
	g.reply(ctx, msg.Chat.ID, confirmation)

	// Notify the assignee when they have a linked chat of their own.
	if assignee.TelegramLinked && assignee.TelegramChatID != nil && *assignee.TelegramChatID != msg.Chat.ID {
		if _, err := g.messenger.SendMessage(ctx, telegram.SendMessageParams{
			ChatID:      *assignee.TelegramChatID,
			Text:        formatReminder(&task, time.Now()),
			ParseMode:   parseModeHTML,
			ReplyMarkup: taskButtons(task.ID),
		}); err != nil {
			log.Printf("gateway: assign: notify assignee %s: %v", assignee.ID, err)
		}
	}
}

// handleFreeText feeds the text to the pending-comment flow; when nothing is
// pending, it replies with the help menu.
func (g *Gateway) handleFreeText(ctx context.Context, msg *telegram.Message) {
	if g.actions.HandlePendingComment(ctx, msg) {
		return
	}
	g.reply(ctx, msg.Chat.ID, helpText())
}

// linkedAccount resolves the sender's linked account, or nil.
func (g *Gateway) linkedAccount(msg *telegram.Message) *models.Account {
	if msg.From == nil {
		return nil
	}
	var acct models.Account
	err := g.db.Where("telegram_user_id = ? AND telegram_linked = ? AND active = ?",
		msg.From.ID, true, true).First(&acct).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Printf("gateway: account lookup for user %d: %v", msg.From.ID, err)
		}
		return nil
	}
	return &acct
}

// reply sends a chat reply in the default markup mode, logging on failure.
func (g *Gateway) reply(ctx context.Context, chatID int64, text string) {
	if _, err := g.messenger.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: parseModeHTML,
	}); err != nil {
		log.Printf("gateway: reply to %d: %v", chatID, err)
	}
}
