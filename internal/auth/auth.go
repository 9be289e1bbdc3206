// Package auth implements the interactive re-authentication step that
// precedes every destructive operation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"golang.org/x/crypto/bcrypt"

	"github.com/lakshaymaurya-felt/macmole/internal/gate"
)

// Authorization methods recorded in the audit log.
const (
	MethodPassword     = "password"
	MethodConfirmation = "confirmation"
	MethodFlag         = "flag"
)

// DefaultAttempts is how many passwords PasswordPrompt accepts before
// denying.
const DefaultAttempts = 3

// MinPasswordLength is enforced by HashPassword.
const MinPasswordLength = 8

var (
	// ErrNoPassword is returned when password authorization is requested
	// but no hash is configured.
	ErrNoPassword = errors.New("no deletion password configured")

	// ErrWeakPassword is returned by HashPassword for short passwords.
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

	errDeclined = errors.New("declined")
)

// await runs a blocking prompt on its own goroutine so the caller can give
// up when ctx is cancelled. A prompt abandoned this way keeps waiting on
// the terminal until the process exits.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, mapPromptErr(r.err)
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func mapPromptErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF):
		return context.Canceled
	case errors.Is(err, promptui.ErrAbort):
		return errDeclined
	default:
		return err
	}
}

// ─── Password ────────────────────────────────────────────────────────────────

// PasswordPrompt asks for the deletion password and checks it against a
// bcrypt hash.
type PasswordPrompt struct {
	hash     []byte
	attempts int
	out      io.Writer
	read     func(label string) (string, error)
}

// NewPasswordPrompt returns a prompt verifying against hash.
func NewPasswordPrompt(hash string) *PasswordPrompt {
	return &PasswordPrompt{
		hash:     []byte(hash),
		attempts: DefaultAttempts,
		out:      os.Stderr,
		read:     readMasked,
	}
}

func readMasked(label string) (string, error) {
	p := promptui.Prompt{Label: label, Mask: '*'}
	return p.Run()
}

// Authorize implements gate.Authorizer.
func (p *PasswordPrompt) Authorize(ctx context.Context, reason string) (gate.Decision, error) {
	if len(p.hash) == 0 {
		return gate.Decision{}, ErrNoPassword
	}
	fmt.Fprintln(p.out, color.YellowString("%s", reason))

	for i := 0; i < p.attempts; i++ {
		pw, err := await(ctx, func() (string, error) { return p.read("Password") })
		if errors.Is(err, errDeclined) {
			return gate.Decision{}, nil
		}
		if err != nil {
			return gate.Decision{}, err
		}

		err = bcrypt.CompareHashAndPassword(p.hash, []byte(pw))
		if err == nil {
			return gate.Decision{Granted: true, Method: MethodPassword}, nil
		}
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return gate.Decision{}, fmt.Errorf("verify password: %w", err)
		}
		fmt.Fprintln(p.out, color.RedString("Incorrect password (%d of %d)", i+1, p.attempts))
	}
	return gate.Decision{}, nil
}

// ─── Confirmation ────────────────────────────────────────────────────────────

// ConfirmPrompt asks a yes/no question. It is used when no password has
// been set.
type ConfirmPrompt struct {
	confirm func(label string) error
}

// NewConfirmPrompt returns an interactive yes/no prompt.
func NewConfirmPrompt() *ConfirmPrompt {
	return &ConfirmPrompt{confirm: func(label string) error {
		p := promptui.Prompt{Label: label, IsConfirm: true}
		_, err := p.Run()
		return err
	}}
}

// Authorize implements gate.Authorizer.
func (c *ConfirmPrompt) Authorize(ctx context.Context, reason string) (gate.Decision, error) {
	_, err := await(ctx, func() (struct{}, error) { return struct{}{}, c.confirm(reason) })
	switch {
	case errors.Is(err, errDeclined):
		return gate.Decision{}, nil
	case err != nil:
		return gate.Decision{}, err
	}
	return gate.Decision{Granted: true, Method: MethodConfirmation}, nil
}

// ─── Non-interactive ─────────────────────────────────────────────────────────

// Static returns a fixed decision. It backs --yes and tests.
type Static struct {
	Decision gate.Decision
}

// Yes grants every request with the "flag" method.
func Yes() Static {
	return Static{Decision: gate.Decision{Granted: true, Method: MethodFlag}}
}

// Authorize implements gate.Authorizer.
func (s Static) Authorize(ctx context.Context, _ string) (gate.Decision, error) {
	if err := ctx.Err(); err != nil {
		return gate.Decision{}, err
	}
	return s.Decision, nil
}

// ForSettings picks the interactive authorizer for the configured hash.
func ForSettings(passwordHash string) gate.Authorizer {
	if passwordHash != "" {
		return NewPasswordPrompt(passwordHash)
	}
	return NewConfirmPrompt()
}

// ─── Setup ───────────────────────────────────────────────────────────────────

// HashPassword returns the bcrypt hash stored in the settings file.
func HashPassword(pw string) (string, error) {
	if len(pw) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// PromptNewPassword asks for a new password twice.
func PromptNewPassword() (string, error) {
	first := promptui.Prompt{
		Label: "New deletion password",
		Mask:  '*',
		Validate: func(s string) error {
			if len(s) < MinPasswordLength {
				return ErrWeakPassword
			}
			return nil
		},
	}
	pw, err := first.Run()
	if err != nil {
		return "", mapPromptErr(err)
	}

	again := promptui.Prompt{Label: "Repeat password", Mask: '*'}
	pw2, err := again.Run()
	if err != nil {
		return "", mapPromptErr(err)
	}
	if pw != pw2 {
		return "", errors.New("passwords do not match")
	}
	return pw, nil
}
