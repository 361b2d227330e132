package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"AldebaranChat/internal/auth"
	"AldebaranChat/internal/backend"
	"AldebaranChat/internal/conversation"
	"AldebaranChat/internal/message"

	"golang.org/x/sync/errgroup"
)

const conversationPath = "/conversation"

func conversationPathFor(id int64) string {
	return fmt.Sprintf("%s/%d", conversationPath, id)
}

func parseID(parts []string, usage string) (int64, error) {
	if len(parts) < 2 {
		return 0, fmt.Errorf("usage: %s", usage)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid conversation id: %s", parts[1])
	}
	return id, nil
}

// handleCommand handles special commands
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}
	rest := strings.TrimSpace(strings.TrimPrefix(cmd, parts[0]))

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/signup":
		return false, cb.signup(ctx)

	case "/login":
		return false, cb.login(ctx, rest)

	case "/logout":
		cb.auth.Logout()
		cb.channel.Close()
		cb.directory.Clear()
		cb.composer.SetInput("")
		cb.notifier.Info("You have been logged out")
		return false, nil

	case "/whoami":
		cb.whoami()
		return false, nil

	case "/conversations":
		return false, cb.listConversations(ctx)

	case "/search":
		if !cb.enter(conversationPath) {
			return false, nil
		}
		cb.printConversations(cb.directory.Search(rest))
		return false, nil

	case "/new":
		return false, cb.newConversation(ctx, rest)

	case "/open":
		id, err := parseID(parts, "/open <id>")
		if err != nil {
			return false, err
		}
		return false, cb.openConversation(ctx, id)

	case "/close":
		cb.channel.Close()
		cb.guard.Navigate("/")
		return false, nil

	case "/rename":
		id, err := parseID(parts, "/rename <id> <title>")
		if err != nil {
			return false, err
		}
		title := strings.TrimSpace(strings.TrimPrefix(rest, parts[1]))
		if title == "" {
			return false, fmt.Errorf("usage: /rename <id> <title>")
		}
		return false, cb.updateConversation(ctx, id, conversation.Patch{Title: &title})

	case "/mode":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /mode <doctor|therapist>")
		}
		kind, ok := backend.ParseSessionType(parts[1])
		if !ok {
			return false, fmt.Errorf("unknown session type: %s", parts[1])
		}
		id := cb.channel.ConversationID()
		if id == 0 {
			return false, fmt.Errorf("open a conversation first")
		}
		return false, cb.updateConversation(ctx, id, conversation.Patch{SessionType: &kind})

	case "/delete":
		id, err := parseID(parts, "/delete <id>")
		if err != nil {
			return false, err
		}
		return false, cb.deleteConversation(ctx, id)

	case "/retry":
		if cb.composer.Input() == "" {
			cb.notifier.Info("Nothing to resend")
			return false, nil
		}
		return false, cb.send(ctx)

	case "/hospitals":
		return false, cb.findHospitals(ctx, rest)

	case "/stress":
		return false, cb.stressQuestionnaire(ctx)

	case "/help":
		cb.help()
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (try /help)", parts[0])
	}
}

func (cb *ChatBot) help() {
	fmt.Fprintln(cb.out, "Available commands:")
	fmt.Fprintln(cb.out, "  /signup                   - Create an account")
	fmt.Fprintln(cb.out, "  /login [email]            - Sign in")
	fmt.Fprintln(cb.out, "  /logout                   - Sign out")
	fmt.Fprintln(cb.out, "  /whoami                   - Show the signed-in user")
	fmt.Fprintln(cb.out, "  /conversations            - List your conversations")
	fmt.Fprintln(cb.out, "  /search <term>            - Filter conversations by name")
	fmt.Fprintln(cb.out, "  /new [title]              - Start a conversation")
	fmt.Fprintln(cb.out, "  /open <id>                - Open a conversation")
	fmt.Fprintln(cb.out, "  /close                    - Leave the open conversation")
	fmt.Fprintln(cb.out, "  /rename <id> <title>      - Rename a conversation")
	fmt.Fprintln(cb.out, "  /mode <doctor|therapist>  - Change the open conversation's support mode")
	fmt.Fprintln(cb.out, "  /delete <id>              - Delete a conversation")
	fmt.Fprintln(cb.out, "  /retry                    - Resend the message that failed")
	fmt.Fprintln(cb.out, "  /hospitals <location>     - Find hospitals near a place")
	fmt.Fprintln(cb.out, "  /stress                   - Take the PSS-10 stress questionnaire")
	fmt.Fprintln(cb.out, "  /help                     - Show this help message")
	fmt.Fprintln(cb.out, "  /quit, /exit              - Exit")
}

func (cb *ChatBot) signup(ctx context.Context) error {
	var form auth.SignupForm
	var ok bool
	if form.UserName, ok = cb.ask(ctx, "Username: "); !ok {
		return nil
	}
	if form.Email, ok = cb.ask(ctx, "Email: "); !ok {
		return nil
	}
	if form.Password, ok = cb.ask(ctx, "Password: "); !ok {
		return nil
	}
	if form.ConfirmPassword, ok = cb.ask(ctx, "Confirm password: "); !ok {
		return nil
	}

	var user *backend.UserResponse
	err := cb.busy("Creating account...", func() error {
		var err error
		user, err = cb.auth.Signup(ctx, form)
		return err
	})

	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		cb.notifier.Warning(verr.Message)
		return nil
	case err != nil:
		cb.logger.Error("signup failed", "error", err)
		cb.notifier.Error("Failed to sign up for user: " + err.Error())
		return nil
	}

	cb.notifier.Success("Successfully create an account!")
	fmt.Fprintf(cb.out, "Account %s created. Log in with /login %s\n", user.UserName, user.Email)
	return nil
}

func (cb *ChatBot) login(ctx context.Context, email string) error {
	var ok bool
	if email == "" {
		if email, ok = cb.ask(ctx, "Email: "); !ok {
			return nil
		}
	}
	password, ok := cb.ask(ctx, "Password: ")
	if !ok {
		return nil
	}

	var resp *backend.LoginResponse
	err := cb.busy("Signing in...", func() error {
		var err error
		resp, err = cb.auth.Login(ctx, backend.LoginRequest{Email: email, Password: password})
		return err
	})
	if err != nil {
		return err
	}

	cb.notifier.Success("Welcome, " + resp.UserResponse.UserName)
	if from := cb.guard.Resume(); from != "" {
		cb.logger.Debug("login after denied navigation", "from", from)
	}
	return nil
}

func (cb *ChatBot) whoami() {
	st := cb.auth.State()
	if st.Status != auth.StatusAuthenticated {
		fmt.Fprintf(cb.out, "Status: %s\n", st.Status)
		return
	}
	fmt.Fprintf(cb.out, "%s <%s>\n", st.User.UserName, st.User.Email)
	if !st.User.CreatedAt.IsZero() {
		fmt.Fprintf(cb.out, "Member since %s\n", st.User.CreatedAt.Format("2006-01-02"))
	}
	if !st.ExpiresAt.IsZero() {
		fmt.Fprintf(cb.out, "Session expires %s\n", st.ExpiresAt.Local().Format(time.RFC1123))
		if st.Expired(time.Now()) {
			cb.notifier.Warning("Your session has expired, please log in again")
		}
	}
}

func (cb *ChatBot) printConversations(list []conversation.Conversation) {
	if len(list) == 0 {
		fmt.Fprintln(cb.out, "No conversations")
		return
	}
	open := cb.channel.ConversationID()
	for _, c := range list {
		marker := " "
		if c.ID == open {
			marker = "*"
		}
		mode := ""
		if c.SessionType != "" {
			mode = " (" + strings.ToLower(string(c.SessionType)) + ")"
		}
		fmt.Fprintf(cb.out, "%s %d. %s%s\n", marker, c.ID, c.Name, mode)
	}
}

func (cb *ChatBot) listConversations(ctx context.Context) error {
	if !cb.enter(conversationPath) {
		return nil
	}

	var list []conversation.Conversation
	err := cb.busy("Loading conversations...", func() error {
		var err error
		list, err = cb.directory.List(ctx)
		return err
	})
	if err != nil {
		return err
	}
	cb.printConversations(list)
	return nil
}

func (cb *ChatBot) newConversation(ctx context.Context, title string) error {
	if !cb.enter(conversationPath) {
		return nil
	}
	if title == "" {
		title = conversation.DefaultTitle(time.Now())
	}

	var conv conversation.Conversation
	err := cb.busy("Creating conversation...", func() error {
		var err error
		conv, err = cb.directory.Create(ctx, title)
		return err
	})
	if err != nil {
		return err
	}

	cb.notifier.Success("New conversation created!")
	return cb.openConversation(ctx, conv.ID)
}

// openConversation fetches the summary and the history together
func (cb *ChatBot) openConversation(ctx context.Context, id int64) error {
	if !cb.enter(conversationPathFor(id)) {
		return nil
	}

	var conv conversation.Conversation
	var history []message.Message
	err := cb.busy("Loading conversation...", func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			conv, err = cb.directory.Get(gctx, id)
			return err
		})
		g.Go(func() error {
			var err error
			history, err = cb.channel.Load(gctx, id)
			return err
		})
		return g.Wait()
	})
	if err != nil {
		cb.channel.Close()
		cb.guard.Navigate(conversationPath)
		return err
	}

	cb.composer.SetInput("")
	fmt.Fprintf(cb.out, "--- %s ---\n", conv.Name)
	for _, m := range history {
		cb.printMessage(m)
	}
	if len(history) == 0 {
		fmt.Fprintln(cb.out, "Start by describing how you feel.")
	}
	return nil
}

func (cb *ChatBot) updateConversation(ctx context.Context, id int64, patch conversation.Patch) error {
	if !cb.enter(conversationPathFor(id)) {
		return nil
	}

	var conv conversation.Conversation
	err := cb.busy("Saving...", func() error {
		var err error
		conv, err = cb.directory.Update(ctx, id, patch)
		return err
	})
	if err != nil {
		return err
	}
	cb.notifier.Success(fmt.Sprintf("Conversation %d updated: %s", conv.ID, conv.Name))
	return nil
}

func (cb *ChatBot) deleteConversation(ctx context.Context, id int64) error {
	if !cb.enter(conversationPathFor(id)) {
		return nil
	}

	err := cb.busy("Deleting...", func() error {
		return cb.directory.Remove(ctx, id)
	})
	if err != nil {
		return err
	}
	if cb.channel.ConversationID() == id {
		cb.channel.Close()
	}
	cb.guard.Navigate(conversationPath)
	cb.notifier.Success(fmt.Sprintf("Conversation %d deleted", id))
	return nil
}

// send posts the composer's text to the open conversation
func (cb *ChatBot) send(ctx context.Context) error {
	id := cb.channel.ConversationID()
	if id == 0 {
		cb.notifier.Info("Open a conversation with /open <id> or start one with /new")
		cb.composer.SetInput("")
		return nil
	}
	if !cb.enter(conversationPathFor(id)) {
		return nil
	}

	var added []message.Message
	err := cb.busy("Doctor AI is thinking...", func() error {
		var err error
		added, err = cb.channel.Send(ctx, cb.composer)
		return err
	})
	if err != nil {
		if draft := cb.composer.Input(); draft != "" {
			return fmt.Errorf("%w (your message was kept, use /retry to send it again)", err)
		}
		return err
	}

	for _, m := range added {
		cb.printMessage(m)
	}
	return nil
}

func (cb *ChatBot) printMessage(m message.Message) {
	if m.Role() == backend.RoleUser {
		fmt.Fprintf(cb.out, "You: %s\n", m.Content)
		return
	}
	fmt.Fprintf(cb.out, "Doctor AI:\n%s\n\n", cb.render(m.Content))
}
