package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pyresume/dashclient/internal/auth"
	"github.com/pyresume/dashclient/internal/credential"
	"github.com/pyresume/dashclient/internal/domain"
)

// tokenResponse is returned by every endpoint that starts a session.
type tokenResponse struct {
	Access    string `json:"access"`
	Refresh   string `json:"refresh"`
	UserEmail string `json:"user_email"`
}

// Login starts a session with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (auth.Identity, error) {
	var tok tokenResponse
	err := c.do(ctx, c.bare, http.MethodPost, domain.PathLogin, nil, map[string]string{
		"email":    email,
		"password": password,
	}, &tok)
	if err != nil {
		return auth.Identity{}, err
	}
	return c.startSession(ctx, email, tok)
}

// Register creates an account using a verification code sent with
// SendVerificationEmail. If the server issues credentials with the new
// account the session starts immediately; otherwise the returned Identity is
// unauthenticated and the caller logs in.
func (c *Client) Register(ctx context.Context, email, password, code string) (auth.Identity, error) {
	var tok tokenResponse
	err := c.do(ctx, c.bare, http.MethodPost, domain.PathRegister, nil, map[string]string{
		"email":    email,
		"password": password,
		"token":    code,
	}, &tok)
	if err != nil {
		return auth.Identity{}, err
	}
	if tok.Access == "" {
		return auth.Identity{}, nil
	}
	return c.startSession(ctx, email, tok)
}

// SendVerificationEmail asks the server to mail a one-time code for purpose
// (domain.CodePurposeRegister or domain.CodePurposeLoginWithToken).
func (c *Client) SendVerificationEmail(ctx context.Context, email, purpose string) error {
	switch purpose {
	case domain.CodePurposeRegister, domain.CodePurposeLoginWithToken:
	default:
		return fmt.Errorf("%w: unknown verification purpose %q", domain.ErrInvalidInput, purpose)
	}
	return c.do(ctx, c.bare, http.MethodPost, domain.PathSendVerificationEmail, nil, map[string]string{
		"email":      email,
		"token_type": purpose,
	}, nil)
}

// LoginWithCode starts a session with an emailed one-time code.
func (c *Client) LoginWithCode(ctx context.Context, email, code string) (auth.Identity, error) {
	var tok tokenResponse
	err := c.do(ctx, c.bare, http.MethodPost, domain.PathLoginWithToken, nil, map[string]string{
		"email": email,
		"token": code,
	}, &tok)
	if err != nil {
		return auth.Identity{}, err
	}
	return c.startSession(ctx, email, tok)
}

// VerifyToken asks the server whether token is currently valid. A rejected
// token yields an error matching domain.ErrInvalidCredentials; the stored
// session is left alone.
func (c *Client) VerifyToken(ctx context.Context, token string) error {
	return c.do(ctx, c.bare, http.MethodPost, domain.PathTokenVerify, nil, map[string]string{
		"token": token,
	}, nil)
}

// Logout ends the stored session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	c.logger.InfoContext(ctx, "session.logout")
	return nil
}

// Identity reports who the stored session belongs to. It never calls the
// server.
func (c *Client) Identity(ctx context.Context) auth.Identity {
	return auth.CurrentIdentity(ctx, c.store)
}

// startSession replaces whatever session was stored with tok.
func (c *Client) startSession(ctx context.Context, email string, tok tokenResponse) (auth.Identity, error) {
	if tok.Access == "" {
		return auth.Identity{}, fmt.Errorf("%w: login response carried no access token", domain.ErrServer)
	}
	if _, err := auth.Decode(tok.Access); err != nil {
		return auth.Identity{}, fmt.Errorf("login response: %w", err)
	}
	identity := tok.UserEmail
	if identity == "" {
		identity = email
	}

	if err := c.store.Clear(ctx); err != nil {
		return auth.Identity{}, fmt.Errorf("clear previous session: %w", err)
	}
	if err := c.store.Set(ctx, credential.Pair{
		Access:   tok.Access,
		Refresh:  tok.Refresh,
		Identity: identity,
	}); err != nil {
		return auth.Identity{}, fmt.Errorf("store session: %w", err)
	}

	id := auth.CurrentIdentity(ctx, c.store)
	c.logger.InfoContext(ctx, "session.started", "subject_id", id.SubjectID)
	return id, nil
}
