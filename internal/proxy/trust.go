package proxy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/elazarl/goproxy"
	"github.com/rs/zerolog"
)

// DefaultNickname is the NSS nickname of the proxy CA.
const DefaultNickname = "pagegraph-mitm-ca"

// Runner runs an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// TrustStore registers the proxy CA with the NSS database browsers read
// on Linux.
type TrustStore struct {
	// DBDir is the NSS directory, "$HOME/.pki/nssdb" when empty.
	DBDir    string
	Nickname string
	Run      Runner
	Logger   zerolog.Logger

	once sync.Once
	err  error
}

func (t *TrustStore) db() (string, error) {
	if t.DBDir != "" {
		return t.DBDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate nss database: %w", err)
	}
	return filepath.Join(home, ".pki", "nssdb"), nil
}

// Register imports the CA certificate at certPath, or goproxy's CA when
// certPath is empty. It runs at most once per TrustStore and is a no-op
// when the nickname already exists.
func (t *TrustStore) Register(ctx context.Context, certPath string) error {
	t.once.Do(func() {
		t.err = t.register(ctx, certPath)
	})
	return t.err
}

func (t *TrustStore) register(ctx context.Context, certPath string) error {
	run := t.Run
	if run == nil {
		run = execRunner
	}
	nick := t.Nickname
	if nick == "" {
		nick = DefaultNickname
	}
	dir, err := t.db()
	if err != nil {
		return err
	}
	db := "sql:" + dir

	if _, err := run(ctx, "certutil", "-d", db, "-L", "-n", nick); err == nil {
		t.Logger.Info().Str("nickname", nick).Msg("Proxy CA already trusted, skipping import")
		return nil
	}

	if certPath == "" {
		f, err := os.CreateTemp("", "pagegraph-ca-*.pem")
		if err != nil {
			return fmt.Errorf("write proxy ca: %w", err)
		}
		defer os.Remove(f.Name())
		if _, err := f.Write(goproxy.CA_CERT); err != nil {
			f.Close()
			return fmt.Errorf("write proxy ca: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("write proxy ca: %w", err)
		}
		certPath = f.Name()
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create nss database dir: %w", err)
	}
	out, err := run(ctx, "certutil", "-d", db, "-A", "-t", "C,,", "-n", nick, "-i", certPath)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("certutil import: %w: %s", err, out)
		}
		return fmt.Errorf("certutil import: %w", err)
	}
	t.Logger.Info().Str("nickname", nick).Msg("Proxy CA imported")
	return nil
}
