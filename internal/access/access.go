// Package access decides who may use the bot.
package access

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
)

var ErrDenied = errors.New("access denied")

// Config holds the access configuration.
// When PrivateMode is off, everybody is allowed.
type Config struct {
	AllowedUserIDs []int64 `env:"ALLOWED_USER_IDS"`
	AllowedChatIDs []int64 `env:"ALLOWED_CHAT_IDS"`
	PrivateMode    bool    `env:"PRIVATE_MODE"`

	// File is an optional JSON file with the same settings.
	// Its IDs are added to the ones above and its private mode is or-ed with PrivateMode.
	File string `env:"FILE"`
}

type fileConfig struct {
	AllowedUserIDs []int64 `json:"allowed_users_id"`
	AllowedChatIDs []int64 `json:"allowed_chats_id"`
	PrivateMode    bool    `json:"private_mode"`
}

type Checker struct {
	allowedUserIDs []int64
	allowedChatIDs []int64
	privateMode    bool
}

// NewChecker returns a Checker for cfg, reading cfg.File if it is set.
func NewChecker(cfg *Config) (*Checker, error) {
	c := &Checker{
		allowedUserIDs: slices.Clone(cfg.AllowedUserIDs),
		allowedChatIDs: slices.Clone(cfg.AllowedChatIDs),
		privateMode:    cfg.PrivateMode,
	}

	if cfg.File != "" {
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("access.NewChecker: %w", err)
		}
		var fc fileConfig
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err = dec.Decode(&fc); err != nil {
			return nil, fmt.Errorf("access.NewChecker: %s: %w", cfg.File, err)
		}
		c.allowedUserIDs = append(c.allowedUserIDs, fc.AllowedUserIDs...)
		c.allowedChatIDs = append(c.allowedChatIDs, fc.AllowedChatIDs...)
		c.privateMode = c.privateMode || fc.PrivateMode
	}

	return c, nil
}

// Check returns ErrDenied if neither the user nor the chat is allowed in private mode.
// A zero chatID means there is no chat.
func (c *Checker) Check(userID, chatID int64) error {
	if !c.privateMode {
		return nil
	}
	if slices.Contains(c.allowedUserIDs, userID) {
		return nil
	}
	if chatID != 0 && slices.Contains(c.allowedChatIDs, chatID) {
		return nil
	}
	return ErrDenied
}
