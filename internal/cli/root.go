// Package cli is the museflow terminal client.
package cli

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"museflow/internal/client"
)

// TokenStore keeps the signed-in token between runs.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
}

// App holds what every command needs.
type App struct {
	Client *client.Client
	Tokens TokenStore
	In     io.Reader
	Log    *zap.Logger

	// Interactive prints a prompt before each line read by write.
	Interactive bool
	QuietPeriod time.Duration
}

func (a *App) logger() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

func (a *App) rememberToken(token string) error {
	if a.Tokens == nil {
		return nil
	}
	return a.Tokens.Save(token)
}

// NewRootCmd creates the top-level "museflow" command.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "museflow",
		Short:         "Creative writing practice with AI feedback",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSignupCmd(app),
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newTopicsCmd(app),
		newWriteCmd(app),
		newHistoryCmd(app),
		newStatsCmd(app),
	)
	return root
}

// FileTokenStore keeps the token in a 0600 file.
type FileTokenStore struct {
	Path string
}

// DefaultTokenPath is ~/.museflow/token.
func DefaultTokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".museflow", "token"), nil
}

func (s FileTokenStore) Load() (string, error) {
	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// Save writes token, or removes the file when token is empty.
func (s FileTokenStore) Save(token string) error {
	if token == "" {
		err := os.Remove(s.Path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.Path, []byte(token+"\n"), 0o600)
}
