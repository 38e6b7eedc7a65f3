package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"filevault/internal/application/ports"
	"filevault/internal/domain/file"
)

// readPassword is a test seam so tests never touch the terminal.
var readPassword = term.ReadPassword

// App is the terminal dashboard: auth state plus one file-manager
// session, talking to the identity and object-store collaborators.
type App struct {
	logger  *zap.Logger
	auth    ports.Auth
	files   ports.FileManager
	apiBase string
	client  *http.Client

	in  *bufio.Reader
	out io.Writer
}

func NewApp(
	logger *zap.Logger,
	auth ports.Auth,
	files ports.FileManager,
	apiBase string,
) *App {
	return &App{
		logger:  logger,
		auth:    auth,
		files:   files,
		apiBase: strings.TrimRight(apiBase, "/"),
		client:  http.DefaultClient,
		in:      bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}
}

func (a *App) Run(ctx context.Context) error {
	fmt.Fprintln(a.out, "filevault - type 'help' for commands")

	for {
		fmt.Fprintf(a.out, "%s> ", a.prompt())
		line, err := a.in.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "help":
			a.printHelp()
		case "signup":
			a.signUp(ctx)
		case "login":
			a.login(ctx)
		case "logout":
			a.logout(ctx)
		case "reset":
			a.resetPassword(ctx)
		case "verify":
			a.report(a.auth.ResendVerification(ctx), "verification email sent")
		case "profile":
			a.profile(ctx)
		case "ls", "list":
			a.list(ctx)
		case "upload":
			a.upload(ctx, parts[1:])
		case "rm", "delete":
			a.delete(ctx, parts[1:])
		case "share":
			a.share(parts[1:])
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return nil
		default:
			fmt.Fprintln(a.out, "unknown command:", parts[0])
		}

		a.drainNotification()
	}
}

func (a *App) prompt() string {
	if id := a.auth.Current(); id != nil {
		return id.Label()
	}
	return "guest"
}

func (a *App) printHelp() {
	if a.auth.Current() == nil {
		fmt.Fprintln(a.out, "commands: signup, login, reset, exit")
		return
	}
	fmt.Fprintln(a.out, "commands: list, upload <path>, delete <#>, share <#>, profile, verify, logout, exit")
}

func (a *App) signUp(ctx context.Context) {
	email, err := a.readLine("email")
	if err != nil {
		return
	}
	name, err := a.readLine("display name")
	if err != nil {
		return
	}
	password, err := a.readSecret()
	if err != nil {
		return
	}

	if _, err = a.auth.SignUp(ctx, email, string(password), name); err != nil {
		fmt.Fprintln(a.out, "signup failed:", err)
		return
	}
	fmt.Fprintln(a.out, "account created, check your inbox for the verification email")
}

func (a *App) login(ctx context.Context) {
	email, err := a.readLine("email")
	if err != nil {
		return
	}
	password, err := a.readSecret()
	if err != nil {
		return
	}

	id, err := a.auth.Login(ctx, email, string(password))
	if err != nil {
		fmt.Fprintln(a.out, "login failed:", err)
		return
	}
	fmt.Fprintf(a.out, "welcome, %s\n", id.Label())

	if err = a.files.Activate(ctx, id.UID); err != nil {
		a.logger.Warn("initial file list failed", zap.Error(err))
	}
}

func (a *App) logout(ctx context.Context) {
	a.report(a.auth.Logout(ctx), "logged out")
}

func (a *App) resetPassword(ctx context.Context) {
	email, err := a.readLine("email")
	if err != nil {
		return
	}
	a.report(a.auth.ResetPassword(ctx, email), "password reset email sent")
}

func (a *App) list(ctx context.Context) {
	if !a.loggedIn() {
		return
	}
	if err := a.files.ListFiles(ctx); err != nil {
		a.logger.Warn("list failed", zap.Error(err))
	}

	st := a.files.State()
	if len(st.Files) == 0 {
		fmt.Fprintln(a.out, "no files yet")
		return
	}
	for i, f := range st.Files {
		fmt.Fprintf(a.out, "%3d  %-40s %10d  %s\n", i+1, f.Name, f.SizeBytes, f.UploadedAt.Format("2006-01-02 15:04"))
	}
}

func (a *App) upload(ctx context.Context, args []string) {
	if !a.loggedIn() {
		return
	}
	if len(args) != 1 {
		fmt.Fprintln(a.out, "usage: upload <path>")
		return
	}

	f, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintln(a.out, "cannot open file:", err)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		fmt.Fprintln(a.out, "cannot stat file:", err)
		return
	}

	mimeType := mime.TypeByExtension(filepath.Ext(fi.Name()))
	if err = a.files.UploadFile(ctx, f, fi.Name(), mimeType, fi.Size()); err != nil {
		a.logger.Warn("upload failed", zap.Error(err))
	}
}

func (a *App) delete(ctx context.Context, args []string) {
	rec, ok := a.pickRecord(args, "delete")
	if !ok {
		return
	}

	confirm, err := a.readLine(fmt.Sprintf("delete %q permanently? this cannot be undone (yes/no)", rec.Name))
	if err != nil || confirm != "yes" {
		fmt.Fprintln(a.out, "delete cancelled")
		return
	}

	if err = a.files.DeleteFile(ctx, rec); err != nil {
		a.logger.Warn("delete failed", zap.Error(err))
	}
}

func (a *App) share(args []string) {
	rec, ok := a.pickRecord(args, "share")
	if !ok {
		return
	}

	if err := a.files.CopyShareLink(rec); err != nil {
		fmt.Fprintln(a.out, "link:", rec.AccessURL)
	}
}

// profile calls the one protected backend endpoint with the session's
// bearer token.
func (a *App) profile(ctx context.Context) {
	if !a.loggedIn() {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiBase+"/api/profile", nil)
	if err != nil {
		fmt.Fprintln(a.out, "profile request failed:", err)
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.auth.Token())

	resp, err := a.client.Do(req)
	if err != nil {
		fmt.Fprintln(a.out, "profile request failed:", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintln(a.out, "profile request rejected:", resp.Status)
		return
	}

	var p struct {
		UID   string `json:"uid"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&p); err != nil {
		fmt.Fprintln(a.out, "unexpected profile response:", err)
		return
	}
	fmt.Fprintf(a.out, "uid: %s\nemail: %s\nname: %s\n", p.UID, p.Email, p.Name)
}

func (a *App) pickRecord(args []string, cmd string) (file.Record, bool) {
	if !a.loggedIn() {
		return file.Record{}, false
	}
	if len(args) != 1 {
		fmt.Fprintf(a.out, "usage: %s <#>\n", cmd)
		return file.Record{}, false
	}

	n, err := strconv.Atoi(args[0])
	st := a.files.State()
	if err != nil || n < 1 || n > len(st.Files) {
		fmt.Fprintln(a.out, "no such file number, run 'list' first")
		return file.Record{}, false
	}

	return st.Files[n-1], true
}

func (a *App) loggedIn() bool {
	if a.auth.Current() == nil {
		fmt.Fprintln(a.out, "log in first")
		return false
	}
	return true
}

func (a *App) drainNotification() {
	st := a.files.State()
	if st.Notification == nil {
		return
	}
	fmt.Fprintf(a.out, "[%s] %s\n", st.Notification.Kind, st.Notification.Message)
}

func (a *App) report(err error, okMsg string) {
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return
	}
	fmt.Fprintln(a.out, okMsg)
}

func (a *App) readLine(prompt string) (string, error) {
	fmt.Fprintf(a.out, "%s: ", prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *App) readSecret() ([]byte, error) {
	fmt.Fprint(a.out, "password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return nil, err
	}
	return pw, nil
}
