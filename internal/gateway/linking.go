package gateway

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/zulandar/taskrelay/internal/models"
	"gorm.io/gorm"
)

// DefaultCodeTTL is how long a connection code stays valid. Stale rows are
// ignored at verification time rather than purged.
const DefaultCodeTTL = 24 * time.Hour

// maxCodeAttempts bounds regeneration when a fresh code collides with an
// outstanding unprocessed one.
const maxCodeAttempts = 5

// Linker binds Telegram chat identities to tracker accounts via one-time
// numeric codes.
type Linker struct {
	db      *gorm.DB
	codeTTL time.Duration
}

// LinkerOpts holds parameters for creating a Linker.
type LinkerOpts struct {
	DB      *gorm.DB
	CodeTTL time.Duration // defaults to DefaultCodeTTL
}

// NewLinker creates a Linker.
func NewLinker(opts LinkerOpts) (*Linker, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("gateway: linker: db is required")
	}
	ttl := opts.CodeTTL
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &Linker{db: opts.DB, codeTTL: ttl}, nil
}

// IssueConnectionCode generates a 6-digit code for the given Telegram
// identity and persists it as a pending connect command. When the identity
// is already bound to an account it returns already=true and no code —
// repeated /connect from a linked user is an idempotent no-op.
func (l *Linker) IssueConnectionCode(chatID, userID int64, username string) (code string, already bool, err error) {
	var linked models.Account
	result := l.db.Where("telegram_user_id = ? AND telegram_linked = ?", userID, true).First(&linked)
	if result.Error == nil {
		return "", true, nil
	}
	if result.Error != gorm.ErrRecordNotFound {
		return "", false, fmt.Errorf("gateway: issue code: check existing link: %w", result.Error)
	}

	cutoff := time.Now().Add(-l.codeTTL)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err = generateCode()
		if err != nil {
			return "", false, fmt.Errorf("gateway: issue code: %w", err)
		}

		// Regenerate while another live code holds the same digits, so two
		// concurrent sign-ups can't briefly share a code.
		var clash int64
		if err := l.db.Model(&models.PendingCommand{}).
			Where("kind = ? AND code = ? AND processed = ? AND created_at >= ?",
				models.PendingKindConnect, code, false, cutoff).
			Count(&clash).Error; err != nil {
			return "", false, fmt.Errorf("gateway: issue code: collision check: %w", err)
		}
		if clash == 0 {
			break
		}
		code = ""
	}
	if code == "" {
		return "", false, fmt.Errorf("gateway: issue code: could not find a free code after %d attempts", maxCodeAttempts)
	}

	pending := models.PendingCommand{
		ChatID:   chatID,
		UserID:   userID,
		Kind:     models.PendingKindConnect,
		Code:     code,
		Username: username,
	}
	if err := l.db.Create(&pending).Error; err != nil {
		return "", false, fmt.Errorf("gateway: issue code: persist: %w", err)
	}
	return code, false, nil
}

// VerifyConnectionCode consumes a pending connect command whose code matches
// and binds its Telegram identity onto the account. Returns false when no
// live code matches or the code was already consumed. The consume is a
// guarded update inside a transaction, so two racing verifications of the
// same code cannot both succeed.
func (l *Linker) VerifyConnectionCode(accountID, submittedCode string) (bool, error) {
	code := strings.ToLower(strings.TrimSpace(submittedCode))
	if code == "" {
		return false, nil
	}
	cutoff := time.Now().Add(-l.codeTTL)

	matched := false
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var pending models.PendingCommand
		result := tx.Where("kind = ? AND processed = ? AND LOWER(code) = ? AND created_at >= ?",
			models.PendingKindConnect, false, code, cutoff).
			Order("created_at DESC").First(&pending)
		if result.Error == gorm.ErrRecordNotFound {
			return nil
		}
		if result.Error != nil {
			return fmt.Errorf("find pending code: %w", result.Error)
		}

		// Consume exactly once: the processed=false guard loses the race
		// when another verification already flipped the flag.
		consume := tx.Model(&models.PendingCommand{}).
			Where("id = ? AND processed = ?", pending.ID, false).
			Update("processed", true)
		if consume.Error != nil {
			return fmt.Errorf("consume pending code: %w", consume.Error)
		}
		if consume.RowsAffected == 0 {
			return nil
		}

		now := time.Now()
		bind := tx.Model(&models.Account{}).
			Where("id = ?", accountID).
			Updates(map[string]interface{}{
				"telegram_chat_id":   pending.ChatID,
				"telegram_user_id":   pending.UserID,
				"telegram_username":  pending.Username,
				"telegram_linked":    true,
				"telegram_linked_at": now,
			})
		if bind.Error != nil {
			return fmt.Errorf("bind account: %w", bind.Error)
		}
		if bind.RowsAffected == 0 {
			return fmt.Errorf("account %s not found", accountID)
		}

		matched = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("gateway: verify code: %w", err)
	}
	return matched, nil
}

// generateCode returns a uniform random 6-digit code, zero-padded.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
