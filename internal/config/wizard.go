package config

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
)

// RunWizard asks for the settings an operator usually changes and writes
// the answers into cfg. Values already in cfg are offered as defaults.
func RunWizard(in io.Reader, out io.Writer, cfg *Config) error {
	stdin := io.NopCloser(in)
	stdout := nopWriteCloser{out}

	fmt.Fprintln(out, "Welcome to supportbot! Let's configure the bot.")
	fmt.Fprintln(out)

	// 1. Operator chat.
	adminPrompt := promptui.Prompt{
		Label:    "Operator chat id",
		Default:  cfg.AdminChatID,
		Validate: validateChatID,
		Stdin:    stdin,
		Stdout:   stdout,
	}
	adminChat, err := adminPrompt.Run()
	if err != nil {
		return fmt.Errorf("operator chat id: %w", err)
	}

	// 2. Database.
	dbPrompt := promptui.Prompt{
		Label:    "Database path",
		Default:  cfg.DatabasePath,
		Validate: validateNonEmpty,
		Stdin:    stdin,
		Stdout:   stdout,
	}
	dbPath, err := dbPrompt.Run()
	if err != nil {
		return fmt.Errorf("database path: %w", err)
	}

	// 3. Hand-off delay.
	delayPrompt := promptui.Prompt{
		Label:    "Delay before the operator connects (e.g. 5s)",
		Default:  cfg.Operator.ConnectDelay.String(),
		Validate: validateDelay,
		Stdin:    stdin,
		Stdout:   stdout,
	}
	delayStr, err := delayPrompt.Run()
	if err != nil {
		return fmt.Errorf("connect delay: %w", err)
	}
	delay, _ := time.ParseDuration(strings.TrimSpace(delayStr))

	// 4. Admin API.
	httpPrompt := promptui.Select{
		Label:  "Serve the read-only admin API",
		Items:  []string{"no", "yes"},
		Stdin:  stdin,
		Stdout: stdout,
	}
	httpIdx, _, err := httpPrompt.Run()
	if err != nil {
		return fmt.Errorf("admin API selection: %w", err)
	}

	port := cfg.HTTP.Port
	if httpIdx == 1 {
		portPrompt := promptui.Prompt{
			Label:    "Admin API port",
			Default:  strconv.Itoa(cfg.HTTP.Port),
			Validate: validatePort,
			Stdin:    stdin,
			Stdout:   stdout,
		}
		portStr, err := portPrompt.Run()
		if err != nil {
			return fmt.Errorf("admin API port: %w", err)
		}
		port, _ = strconv.Atoi(strings.TrimSpace(portStr))
	}

	cfg.AdminChatID = strings.TrimSpace(adminChat)
	cfg.DatabasePath = strings.TrimSpace(dbPath)
	cfg.Operator.ConnectDelay = delay
	cfg.HTTP.Enabled = httpIdx == 1
	cfg.HTTP.Port = port
	return nil
}

func validateNonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("a value is required")
	}
	return nil
}

func validateChatID(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("the operator chat id is required")
	}
	if strings.ContainsAny(s, " \t") {
		return errors.New("chat ids cannot contain spaces")
	}
	return nil
}

func validateDelay(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("not a duration: %w", err)
	}
	if d < 0 {
		return errors.New("the delay cannot be negative")
	}
	return nil
}

func validatePort(s string) error {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid port %q", s)
	}
	return nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
