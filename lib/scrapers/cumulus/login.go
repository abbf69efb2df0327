package cumulus

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cumulus-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// substring of the post-redirect URL that marks a rejected login
const authErrorUrlMarker = "authentication_error"

// the landing page of an authenticated cumulus account always mentions the
// program by name, its absence means the subsystem rejected the session
const cumulusMarker = "Cumulus"

// Login drives the login sequence: a warm-up visit of the site root, the
// credential submission against the login service and the cumulus account
// access check. Cookies accumulate in the jar step over step, which is why
// the order is fixed. A client that failed to log in stays unusable, there
// is no re-authentication.
func (c *Client) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	if c.state != stateUnauthenticated {
		span.SetStatus(codes.Error, "login already attempted")
		return &AuthError{
			Code:   CodeCouldNotAuthenticate,
			Reason: "login already attempted on this session",
		}
	}
	c.state = stateAuthenticating

	for _, step := range []func(context.Context) error{
		c.warmUp,
		c.submitCredentials,
		c.checkCumulusAccess,
	} {
		if err := step(ctx); err != nil {
			c.state = stateFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, "login failed")
			return err
		}
	}

	c.state = stateAuthenticated
	slog.InfoContext(ctx, "login succeeded", "username", c.username)
	return nil
}

// warmUp visits the site root to pick up the baseline cookies a browser
// would carry into the login page.
func (c *Client) warmUp(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:warmUp")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(c.siteRoot.String())
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch site root")
		return &AuthError{
			Code:   CodeCouldNotAuthenticate,
			Reason: fmt.Sprintf("network error during warm-up: %v", err),
		}
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "site root returned an error status")
		return &AuthError{
			Code:   CodeCouldNotAuthenticate,
			Reason: fmt.Sprintf("warm-up returned status %d", res.StatusCode()),
		}
	}

	c.sleep(ctx, c.pace)
	return nil
}

func (c *Client) submitCredentials(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:submitCredentials")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("Sec-Fetch-Site", "same-origin").
		SetHeader("Referer", c.siteRoot.String()).
		Get(c.loginUrl.String())
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return &AuthError{
			Code:   CodeCouldNotAuthenticate,
			Reason: fmt.Sprintf("network error fetching login page: %v", err),
		}
	}
	c.sleep(ctx, c.pace)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login page")
		return &AuthError{
			Code:   CodeCouldNotAuthenticate,
			Reason: fmt.Sprintf("unparsable login page: %v", err),
		}
	}

	// a missing token means the page shape changed, retrying won't help
	token := doc.Find(`meta[name="_csrf"]`).AttrOr("content", "")
	if token == "" {
		span.SetStatus(codes.Error, "csrf token not found")
		return &AuthError{
			Code:   CodeCouldNotAuthenticate,
			Reason: "CSRF token not found",
		}
	}
	slog.DebugContext(ctx, "csrf token retrieved")

	c.sleep(ctx, c.pace*2)

	res, err = c.Http.R().
		SetContext(ctx).
		SetHeader("Sec-Fetch-Site", "same-origin").
		SetHeader("Origin", c.loginUrl.Scheme+"://"+c.loginUrl.Host).
		SetHeader("Referer", c.loginUrl.String()).
		SetFormData(map[string]string{
			"_csrf":       token,
			"username":    c.username,
			"password":    c.password,
			"remember-me": "true",
		}).
		Post(c.loginUrl.String())
	if err != nil {
		span.SetStatus(codes.Error, "failed to post credentials")
		return &AuthError{
			Code:   CodeCouldNotAuthenticate,
			Reason: fmt.Sprintf("network error during credential submission: %v", err),
		}
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "credential submission returned an error status")
		return &AuthError{
			Code:   CodeCouldNotAuthenticate,
			Reason: fmt.Sprintf("credential submission returned status %d", res.StatusCode()),
		}
	}

	doc, err = goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login response")
		return &AuthError{
			Code:   CodeCouldNotAuthenticate,
			Reason: fmt.Sprintf("unparsable login response: %v", err),
		}
	}

	if msgs := loginErrorMessages(doc); len(msgs) > 0 {
		span.SetStatus(codes.Error, "login rejected")
		return &AuthError{
			Code:   CodeCouldNotAuthenticate,
			Reason: "login failed: " + strings.Join(msgs, " | "),
		}
	}

	finalUrl := res.RawResponse.Request.URL.String()
	if strings.Contains(strings.ToLower(finalUrl), authErrorUrlMarker) {
		span.SetStatus(codes.Error, "redirected to authentication error page")
		return NewAuthError(CodeCouldNotAuthenticate)
	}

	return nil
}

// error indicator regions the login service renders into its response
func loginErrorMessages(doc *goquery.Document) []string {
	var msgs []string
	doc.Find(".error, .error-message, .alert-danger").Each(func(_ int, sel *goquery.Selection) {
		text := htmlutil.CleanText(sel.Text())
		if text != "" {
			msgs = append(msgs, text)
		}
	})
	return msgs
}

// checkCumulusAccess verifies that the primary login actually unlocked the
// cumulus account area, which is a separate subsystem behind the same session.
func (c *Client) checkCumulusAccess(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:checkCumulusAccess")
	defer span.End()

	c.sleep(ctx, c.pace)

	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("Sec-Fetch-Site", "same-origin").
		SetHeader("Referer", strings.TrimSuffix(c.siteRoot.String(), "/")+"/de").
		SetQueryParams(map[string]string{
			"referrer":       c.loginReferrer,
			"referrerPolicy": "no-referrer-when-downgrade",
		}).
		Get(c.cumulusUrl)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch cumulus landing page")
		return &AuthError{
			Code:   CodeCumulusAccess,
			Reason: fmt.Sprintf("network error fetching cumulus account: %v", err),
		}
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "cumulus landing page returned an error status")
		return &AuthError{
			Code:   CodeCumulusAccess,
			Reason: fmt.Sprintf("cumulus account returned status %d", res.StatusCode()),
		}
	}

	if !strings.Contains(string(res.Body()), cumulusMarker) {
		span.SetStatus(codes.Error, "cumulus marker missing")
		return NewAuthError(CodeCumulusAccess)
	}

	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body())); err == nil {
		c.displayName = htmlutil.CleanText(doc.Find("span.user-name").First().Text())
	}

	return nil
}
