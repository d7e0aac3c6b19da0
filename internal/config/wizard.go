package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wizard walks the user through the settings a local playground needs
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading answers from in and prompting on out
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run asks for each setting, starting from base. Empty answers keep the
// current value.
func (w *Wizard) Run(base *Config) (*Config, error) {
	cfg := *base
	validator := NewValidator()

	fmt.Fprintln(w.out, "=== fiftplay configuration ===")
	fmt.Fprintln(w.out)

	// Gateway
	fmt.Fprintln(w.out, "Gateway:")
	host, err := w.ask("Listen host", cfg.Gateway.Host)
	if err != nil {
		return nil, err
	}
	cfg.Gateway.Host = host

	for {
		answer, err := w.ask("Listen port", strconv.Itoa(cfg.Gateway.Port))
		if err != nil {
			return nil, err
		}
		port, convErr := strconv.Atoi(answer)
		if convErr == nil {
			convErr = validator.ValidatePort(port)
		}
		if convErr != nil {
			fmt.Fprintf(w.out, "Error: %v\n", convErr)
			continue
		}
		cfg.Gateway.Port = port
		break
	}

	fmt.Fprintln(w.out)

	// Snippets
	fmt.Fprintln(w.out, "Snippet sharing:")
	enable, err := w.ask("Enable snippet sharing? (y/n)", yesNo(cfg.Snippets.Enabled))
	if err != nil {
		return nil, err
	}
	cfg.Snippets.Enabled = strings.EqualFold(enable, "y")

	if cfg.Snippets.Enabled {
		for {
			ttl, err := w.ask("Snippet TTL (e.g. 720h, empty answer keeps current)", cfg.Snippets.TTL)
			if err != nil {
				return nil, err
			}
			if err := validator.ValidateTTL(ttl); err != nil {
				fmt.Fprintf(w.out, "Error: %v\n", err)
				continue
			}
			cfg.Snippets.TTL = ttl
			break
		}
	}

	fmt.Fprintln(w.out)

	// Logging
	fmt.Fprintln(w.out, "Logging:")
	level, err := w.ask("Log level (debug/info/warn/error)", cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateLogLevel(level); err != nil {
		fmt.Fprintf(w.out, "Warning: %v, keeping %s\n", err, cfg.Logging.Level)
	} else {
		cfg.Logging.Level = level
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return &cfg, nil
}

func (w *Wizard) ask(prompt, current string) (string, error) {
	fmt.Fprintf(w.out, "%s [%s]: ", prompt, current)
	answer, err := w.readLine()
	if err != nil {
		return "", err
	}
	if answer == "" {
		return current, nil
	}
	return answer, nil
}

// readLine accepts a final line without a trailing newline
func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}
