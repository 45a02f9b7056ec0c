package access

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestChecker(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		userID  int64
		chatID  int64
		allowed bool
	}{
		{"public mode allows anybody", Config{}, 42, 0, true},
		{"private mode allows a user", Config{PrivateMode: true, AllowedUserIDs: []int64{42}}, 42, 0, true},
		{"private mode allows a chat", Config{PrivateMode: true, AllowedChatIDs: []int64{-100}}, 7, -100, true},
		{"private mode denies others", Config{PrivateMode: true, AllowedUserIDs: []int64{42}, AllowedChatIDs: []int64{-100}}, 7, -200, false},
		{"private mode denies a missing chat", Config{PrivateMode: true, AllowedChatIDs: []int64{0}}, 7, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChecker(&tt.cfg)
			if err != nil {
				t.Fatalf("didn't want %q", err)
			}

			err = c.Check(tt.userID, tt.chatID)
			if tt.allowed && err != nil {
				t.Fatalf("didn't want %q", err)
			}
			if !tt.allowed && !errors.Is(err, ErrDenied) {
				t.Fatalf("got %v, want %v", err, ErrDenied)
			}
		})
	}
}

func TestCheckerFile(t *testing.T) {
	t.Run("reads a config file", func(t *testing.T) {
		name := filepath.Join(t.TempDir(), "config.json")
		data := `{"allowed_users_id":[42],"allowed_chats_id":[-100],"private_mode":true}`
		if err := os.WriteFile(name, []byte(data), 0o666); err != nil {
			t.Fatalf("didn't want %q", err)
		}

		c, err := NewChecker(&Config{File: name, AllowedUserIDs: []int64{7}})
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}

		for _, userID := range []int64{7, 42} {
			if err = c.Check(userID, 0); err != nil {
				t.Fatalf("user %d: didn't want %q", userID, err)
			}
		}
		if err = c.Check(1, -100); err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if err = c.Check(1, 0); !errors.Is(err, ErrDenied) {
			t.Fatalf("got %v, want %v", err, ErrDenied)
		}
	})

	t.Run("doesn't read a malformed config file", func(t *testing.T) {
		name := filepath.Join(t.TempDir(), "config.json")
		if err := os.WriteFile(name, []byte(`{"private":true}`), 0o666); err != nil {
			t.Fatalf("didn't want %q", err)
		}

		if _, err := NewChecker(&Config{File: name}); err == nil {
			t.Fatal("got nil error")
		}
	})
}
