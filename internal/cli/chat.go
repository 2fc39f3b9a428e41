package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/soyeahso/advisor/internal/conversation"
	"github.com/soyeahso/advisor/internal/domain"
	"github.com/soyeahso/advisor/internal/hooks"
	"github.com/spf13/cobra"
)

const chatHookName = "cli.chat"

const chatHelp = `Commands:
  /personas          list shoppers in the current space
  /persona <id>      switch shopper (parks the current conversation)
  /reset <id>        switch shopper and drop its parked conversation
  /space <space>     switch to consumer or b2b
  /identify <email>  identify the shopper by email
  /clear             clear the conversation
  /state             show who is selected and the scene
  /quit              exit
Anything else is sent to the advisor.`

func newChatCmd() *cobra.Command {
	var persona string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the advisor from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := openStack(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			r := newREPL(st.conv, st.hooks, cmd.OutOrStdout())
			defer r.close()
			if persona != "" {
				r.handle(ctx, "/persona "+persona)
			}
			return r.run(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&persona, "persona", "", "select a shopper before the first prompt")
	return cmd
}

// repl drives an orchestrator from line input. Agent output arrives
// through hooks so welcomes and captures print the same way replies do.
type repl struct {
	conv  *conversation.Orchestrator
	hooks *hooks.Manager

	mu  sync.Mutex
	out io.Writer
}

func newREPL(conv *conversation.Orchestrator, hm *hooks.Manager, out io.Writer) *repl {
	r := &repl{conv: conv, hooks: hm, out: out}
	hm.On(hooks.EventConversationMessage, chatHookName, r.onMessage)
	hm.On(hooks.EventCapture, chatHookName, r.onCapture)
	hm.On(hooks.EventSceneChanged, chatHookName, r.onScene)
	return r
}

func (r *repl) close() {
	for _, ev := range []string{hooks.EventConversationMessage, hooks.EventCapture, hooks.EventSceneChanged} {
		r.hooks.Off(ev, chatHookName)
	}
}

func (r *repl) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *repl) onMessage(_ context.Context, p hooks.Payload) error {
	ev, ok := p.Data.(conversation.MessageEvent)
	if !ok || ev.Message.Role != domain.RoleAgent {
		return nil
	}
	r.printf("advisor> %s\n", ev.Message.Content)
	return nil
}

func (r *repl) onCapture(_ context.Context, p hooks.Payload) error {
	if ev, ok := p.Data.(conversation.CaptureEvent); ok {
		r.printf("  [captured %s: %s]\n", ev.Capture.Type, ev.Capture.Label)
	}
	return nil
}

func (r *repl) onScene(_ context.Context, p hooks.Payload) error {
	ev, ok := p.Data.(conversation.SceneEvent)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(ev.Scene.Products))
	for _, prod := range ev.Scene.Products {
		names = append(names, prod.Name)
	}
	line := fmt.Sprintf("  [scene %s, %s", ev.Scene.Setting, ev.Scene.Layout)
	if len(names) > 0 {
		line += ": " + strings.Join(names, ", ")
	}
	r.printf("%s]\n", line)
	return nil
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	r.printf("Type /help for commands.\n")
	lines := bufio.NewScanner(in)
	for {
		r.printf("> ")
		if !lines.Scan() {
			r.printf("\n")
			return lines.Err()
		}
		if !r.handle(ctx, lines.Text()) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handle processes one input line and reports whether to keep reading.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if !strings.HasPrefix(line, "/") {
		r.send(ctx, line)
		return true
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "quit", "exit":
		return false
	case "help":
		r.printf("%s\n", chatHelp)
	case "personas":
		list := r.conv.Personas().InSpace(r.conv.State().Space)
		r.mu.Lock()
		printPersonas(r.out, list)
		r.mu.Unlock()
	case "persona", "reset":
		if arg == "" {
			r.printf("usage: /%s <id>\n", name)
			return true
		}
		var st conversation.State
		var err error
		if name == "reset" {
			st, err = r.conv.ResetPersona(ctx, arg)
		} else {
			st, err = r.conv.SelectPersona(ctx, arg)
		}
		r.after(st, err)
	case "space":
		sp, err := parseSpace(arg)
		if err != nil {
			r.printf("error: %v\n", err)
			return true
		}
		r.conv.SetSpace(sp)
		r.printf("Space is now %s. Pick a shopper with /persona.\n", sp)
	case "identify":
		if arg == "" {
			r.printf("usage: /identify <email>\n")
			return true
		}
		r.after(r.conv.IdentifyByEmail(ctx, arg))
	case "clear":
		r.conv.ClearConversation()
		r.printf("Conversation cleared.\n")
	case "state":
		r.printState(r.conv.State())
	default:
		r.printf("unknown command /%s (try /help)\n", name)
	}
	return true
}

func (r *repl) send(ctx context.Context, content string) {
	if _, err := r.conv.Send(ctx, content); err != nil {
		if errors.Is(err, conversation.ErrSuperseded) {
			r.printf("(reply dropped: the shopper changed)\n")
			return
		}
		r.printf("error: %v\n", err)
		return
	}
	r.conv.Wait()
	r.printActions(r.conv.State())
}

// after reports a persona change once its welcome has been delivered.
func (r *repl) after(st conversation.State, err error) {
	if err != nil {
		r.printf("error: %v\n", err)
		return
	}
	r.printf("Now talking to %s.\n", shopperName(st))
	r.conv.Wait()
	r.printActions(r.conv.State())
}

func (r *repl) printActions(st conversation.State) {
	if len(st.SuggestedActions) > 0 {
		r.printf("  try: %s\n", strings.Join(st.SuggestedActions, " | "))
	}
}

func (r *repl) printState(st conversation.State) {
	r.printf("Space:    %s\n", st.Space)
	r.printf("Shopper:  %s\n", shopperName(st))
	r.printf("Messages: %d\n", len(st.Messages))
	r.printf("Scene:    %s (%s)\n", st.Scene.Setting, st.Scene.Layout)
	if st.Error != "" {
		r.printf("Error:    %s\n", st.Error)
	}
}

func shopperName(st conversation.State) string {
	switch {
	case st.PersonaID == "":
		return "nobody"
	case st.Customer == nil || st.Customer.Name == "":
		return st.PersonaID + " (anonymous)"
	default:
		return st.Customer.Name + " (" + st.PersonaID + ")"
	}
}
