// Package cli is a terminal front end for the intake conversation.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"inquiry-agent/internal/conversation"
	"inquiry-agent/internal/domain"
)

const help = `Type a message and press enter.
  /record <file>  start a voice turn from an audio file
  /stop           finish the voice turn and send it
  /quit           leave`

// REPL drives a conversation.Controller from line-oriented input.
type REPL struct {
	ctrl     *conversation.Controller
	recorder *FileRecorder
	in       *bufio.Scanner
	out      io.Writer
}

func NewREPL(ctrl *conversation.Controller, recorder *FileRecorder, in io.Reader, out io.Writer) *REPL {
	return &REPL{ctrl: ctrl, recorder: recorder, in: bufio.NewScanner(in), out: out}
}

// Run reads until DONE, /quit or end of input.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, "Tell us about your project.")
	fmt.Fprintln(r.out, help)
	for {
		snap := r.ctrl.Snapshot()
		switch snap.State {
		case conversation.StateDone:
			fmt.Fprintln(r.out, "Thanks! We'll be in touch.")
			return nil
		case conversation.StateContact:
			if err := r.contact(ctx); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				return err
			}
			continue
		}

		line, ok := r.readLine("> ")
		if !ok {
			return r.in.Err()
		}
		if err := r.handle(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(r.out, "! %v\n", err)
		}
	}
}

var errQuit = errors.New("quit")

func (r *REPL) handle(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "":
		return nil
	case "/quit":
		return errQuit
	case "/help":
		fmt.Fprintln(r.out, help)
		return nil
	case "/record":
		arg = strings.TrimSpace(arg)
		if arg == "" {
			return errors.New("usage: /record <file>")
		}
		if r.ctrl.Snapshot().State == conversation.StateRecording {
			return errors.New("already recording, /stop first")
		}
		r.recorder.Queue(arg)
		if err := r.ctrl.ToggleRecording(ctx); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "(recording, /stop to send)")
		return nil
	case "/stop":
		if r.ctrl.Snapshot().State != conversation.StateRecording {
			return errors.New("not recording")
		}
		fmt.Fprintln(r.out, "(transcribing...)")
		if err := r.ctrl.ToggleRecording(ctx); err != nil {
			return err
		}
		r.printTurn(true)
		return nil
	}
	if err := r.ctrl.SendText(ctx, line); err != nil {
		return err
	}
	r.printTurn(false)
	return nil
}

func (r *REPL) printTurn(voice bool) {
	snap := r.ctrl.Snapshot()
	if snap.LastError != "" {
		fmt.Fprintf(r.out, "! %s\n", snap.LastError)
		return
	}
	if n := len(snap.Messages); n > 0 && snap.Messages[n-1].Role == domain.RoleAssistant {
		if voice && n >= 2 {
			fmt.Fprintf(r.out, "you said: %s\n", snap.Messages[n-2].Content)
		}
		fmt.Fprintf(r.out, "ai: %s\n", snap.Messages[n-1].Content)
	}
	if ex := snap.Extracted; ex != nil {
		fmt.Fprintf(r.out, "   [type=%s budget=%s urgency=%s mood=%s]\n",
			dash(ex.ProjectType), dash(ex.BudgetSignal), dash(ex.Urgency), dash(ex.Sentiment))
	}
	if snap.State == conversation.StateContact {
		fmt.Fprintln(r.out, "Great, let's get your details so we can follow up.")
	}
}

func (r *REPL) contact(ctx context.Context) error {
	name, ok := r.readLine("name: ")
	if !ok {
		return r.endOfInput()
	}
	email, ok := r.readLine("email: ")
	if !ok {
		return r.endOfInput()
	}
	if err := r.ctrl.SubmitContact(ctx, name, email); err != nil {
		if msg := r.ctrl.Snapshot().LastError; msg != "" {
			fmt.Fprintf(r.out, "! %s\n", msg)
			return nil
		}
		fmt.Fprintf(r.out, "! %v\n", err)
	}
	return nil
}

func (r *REPL) endOfInput() error {
	if err := r.in.Err(); err != nil {
		return err
	}
	return errQuit
}

func (r *REPL) readLine(prompt string) (string, bool) {
	fmt.Fprint(r.out, prompt)
	if !r.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.in.Text()), true
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
