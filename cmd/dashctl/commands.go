package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/pyresume/dashclient/internal/apiclient"
	"github.com/pyresume/dashclient/internal/domain"
	"github.com/pyresume/dashclient/internal/errmap"
	"github.com/pyresume/dashclient/internal/runner"
)

// errHelp means -h was given; flag has already printed the command usage.
var errHelp = flag.ErrHelp

var errStaleAccess = errors.New("access token rejected; the next request will renew it")

type action = func(ctx context.Context, env *runner.Env) error

// command is one dashctl subcommand. prepare parses arguments before any
// config or network work happens.
type command struct {
	name    string
	summary string
	prepare func(args []string, stdin io.Reader) (action, error)
}

var commands = []command{
	{"login", "sign in with email and password", prepareLogin},
	{"login-code", "sign in with an emailed one-time code", prepareLoginCode},
	{"send-code", "email a one-time code", prepareSendCode},
	{"register", "create an account with an emailed code", prepareRegister},
	{"whoami", "show the stored session without calling the server", prepareWhoami},
	{"selfinfo", "show the signed-in account", prepareSelfInfo},
	{"overview", "show stats, companies and applications", prepareOverview},
	{"get", "GET an API path and print the JSON payload", prepareGet},
	{"verify", "ask the server whether the stored credential is valid", prepareVerify},
	{"health", "check a gRPC service with the session credential", prepareHealth},
	{"logout", "forget the stored session", prepareLogout},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet("dashctl "+name, flag.ContinueOnError)
}

// passwordFlags registers --password and --password-stdin.
type passwordFlags struct {
	value     string
	fromStdin bool
}

func (p *passwordFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&p.value, "password", "", "account password (prefer --password-stdin)")
	fs.BoolVar(&p.fromStdin, "password-stdin", false, "read the password from the first line of stdin")
}

func (p *passwordFlags) resolve(stdin io.Reader) (string, error) {
	if !p.fromStdin {
		if p.value == "" {
			return "", errors.New("--password or --password-stdin is required")
		}
		return p.value, nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}

func requireFlag(name, value string) error {
	if value == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func prepareLogin(args []string, stdin io.Reader) (action, error) {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	var pw passwordFlags
	pw.register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireFlag("email", *email); err != nil {
		return nil, err
	}
	password, err := pw.resolve(stdin)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, env *runner.Env) error {
		id, err := env.Client.Login(ctx, *email, password)
		if err != nil {
			return err
		}
		return printJSON(env.Out, id)
	}, nil
}

func prepareLoginCode(args []string, _ io.Reader) (action, error) {
	fs := newFlagSet("login-code")
	email := fs.String("email", "", "account email")
	code := fs.String("code", "", "one-time code from `dashctl send-code`")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := errors.Join(requireFlag("email", *email), requireFlag("code", *code)); err != nil {
		return nil, err
	}

	return func(ctx context.Context, env *runner.Env) error {
		id, err := env.Client.LoginWithCode(ctx, *email, *code)
		if err != nil {
			return err
		}
		return printJSON(env.Out, id)
	}, nil
}

func prepareSendCode(args []string, _ io.Reader) (action, error) {
	fs := newFlagSet("send-code")
	email := fs.String("email", "", "account email")
	purpose := fs.String("purpose", domain.CodePurposeLoginWithToken,
		"what the code is for: "+domain.CodePurposeLoginWithToken+" or "+domain.CodePurposeRegister)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireFlag("email", *email); err != nil {
		return nil, err
	}

	return func(ctx context.Context, env *runner.Env) error {
		if err := env.Client.SendVerificationEmail(ctx, *email, *purpose); err != nil {
			return err
		}
		_, err := fmt.Fprintf(env.Out, "code sent to %s\n", *email)
		return err
	}, nil
}

func prepareRegister(args []string, stdin io.Reader) (action, error) {
	fs := newFlagSet("register")
	email := fs.String("email", "", "account email")
	code := fs.String("code", "", "one-time code from `dashctl send-code --purpose register`")
	var pw passwordFlags
	pw.register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := errors.Join(requireFlag("email", *email), requireFlag("code", *code)); err != nil {
		return nil, err
	}
	password, err := pw.resolve(stdin)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, env *runner.Env) error {
		id, err := env.Client.Register(ctx, *email, password, *code)
		if err != nil {
			return err
		}
		if !id.Authenticated {
			_, err = fmt.Fprintf(env.Out, "registered %s; run `dashctl login` to sign in\n", *email)
			return err
		}
		return printJSON(env.Out, id)
	}, nil
}

// whoami is the one command that never touches the network.
func prepareWhoami(args []string, _ io.Reader) (action, error) {
	fs := newFlagSet("whoami")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return func(ctx context.Context, env *runner.Env) error {
		id := env.Client.Identity(ctx)
		if !id.Authenticated {
			_, err := fmt.Fprintln(env.Out, "not signed in")
			return err
		}
		now := env.Clock.Now()
		return printJSON(env.Out, map[string]any{
			"subject_id": id.SubjectID,
			"email":      id.Email,
			"expires_at": id.ExpiresAt.Format(time.RFC3339),
			"expires_in": domain.Until(env.Clock, id.ExpiresAt).Round(time.Second).String(),
			"expired":    id.Expired(now),
		})
	}, nil
}

func prepareSelfInfo(args []string, _ io.Reader) (action, error) {
	fs := newFlagSet("selfinfo")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return func(ctx context.Context, env *runner.Env) error {
		info, err := env.Client.SelfInfo(ctx)
		if err != nil {
			return err
		}
		return printJSON(env.Out, info)
	}, nil
}

func prepareOverview(args []string, _ io.Reader) (action, error) {
	fs := newFlagSet("overview")
	var opts apiclient.ListOptions
	fs.StringVar(&opts.Search, "search", "", "filter companies and applications")
	fs.IntVar(&opts.PageSize, "page-size", 10, "items per list")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return func(ctx context.Context, env *runner.Env) error {
		ov, err := env.Client.Overview(ctx, opts)
		if err != nil {
			return err
		}
		return printJSON(env.Out, ov)
	}, nil
}

func prepareGet(args []string, _ io.Reader) (action, error) {
	fs := newFlagSet("get")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, errors.New("expected exactly one API path, e.g. /api/companies/")
	}
	path := fs.Arg(0)

	return func(ctx context.Context, env *runner.Env) error {
		var payload json.RawMessage
		if err := env.Client.GetJSON(ctx, path, nil, &payload); err != nil {
			return err
		}
		return printJSON(env.Out, payload)
	}, nil
}

func prepareVerify(args []string, _ io.Reader) (action, error) {
	fs := newFlagSet("verify")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return func(ctx context.Context, env *runner.Env) error {
		access := env.Store.Access(ctx)
		if access == "" {
			_, err := fmt.Fprintln(env.Out, "not signed in")
			return err
		}
		if err := env.Client.VerifyToken(ctx, access); err != nil {
			// The session itself is intact; only the access token is stale.
			if errors.Is(err, domain.ErrInvalidCredentials) {
				return errStaleAccess
			}
			return err
		}
		_, err := fmt.Fprintln(env.Out, "access token valid")
		return err
	}, nil
}

func prepareHealth(args []string, _ io.Reader) (action, error) {
	fs := newFlagSet("health")
	target := fs.String("target", "", "gRPC target, e.g. dns:///api.example.com:443")
	service := fs.String("service", "", "service name; empty checks the whole server")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireFlag("target", *target); err != nil {
		return nil, err
	}

	return func(ctx context.Context, env *runner.Env) error {
		conn, err := env.DialGRPC(*target)
		if err != nil {
			return fmt.Errorf("dial %s: %w", *target, err)
		}
		defer conn.Close()

		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: *service})
		if err != nil {
			return errmap.FromGRPCStatus(err)
		}
		_, err = fmt.Fprintln(env.Out, resp.GetStatus().String())
		return err
	}, nil
}

func prepareLogout(args []string, _ io.Reader) (action, error) {
	fs := newFlagSet("logout")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return func(ctx context.Context, env *runner.Env) error {
		if err := env.Client.Logout(ctx); err != nil {
			return err
		}
		_, err := fmt.Fprintln(env.Out, "signed out")
		return err
	}, nil
}
