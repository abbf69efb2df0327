package cumulus

import (
	"context"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"cumulus-backend/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/cumulus")

const (
	defaultSiteRoot = "https://www.migros.ch/"
	defaultLoginUrl = "https://login.migros.ch/login"

	cumulusLandingPath = "/de/cumulus/konto~checkImmediate=true~.html"
	receiptListPath    = "/de/cumulus/konto/kassenbons.html"
	receiptExportPath  = "/service/avantaReceiptExport/"
	loginReferrerPath  = "/resources/loginPage~lang=de~.html"
)

// the portal rejects sessions that don't look like a browser
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
	"Accept-Language":           "en-US,en;q=0.9,de;q=0.8",
	"Connection":                "keep-alive",
	"Sec-Ch-Ua":                 `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
	"Sec-Ch-Ua-Mobile":          "?0",
	"Sec-Ch-Ua-Platform":        `"Windows"`,
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Upgrade-Insecure-Requests": "1",
}

type authState int

const (
	stateUnauthenticated authState = iota
	stateAuthenticating
	stateAuthenticated
	stateFailed
)

// Client owns one portal session: the cookie jar, the evolving header set and
// the credentials. It is not safe for concurrent use, login steps and page
// fetches depend on strict ordering.
type Client struct {
	Http *resty.Client

	siteRoot *url.URL
	loginUrl *url.URL

	cumulusUrl    string
	receiptsUrl   string
	exportUrl     string
	loginReferrer string

	username string
	password string

	// account display name scraped from the cumulus landing page, may stay
	// empty when the page doesn't expose it
	displayName string

	pace  time.Duration
	state authState
}

type ClientOptions struct {
	// SiteRoot and LoginUrl default to the production portal, tests point
	// them at a fake server.
	SiteRoot string
	LoginUrl string

	Username string
	Password string

	// Pace overrides the delay between successive requests, zero keeps the
	// default of one second. Pacing is load-bearing: the portal's bot
	// defense rejects sessions that fire requests back to back.
	Pace time.Duration
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.Username == "" {
		return nil, NewAuthError(CodeMissingUsername)
	}

	siteRootStr := opts.SiteRoot
	if siteRootStr == "" {
		siteRootStr = defaultSiteRoot
	}
	loginUrlStr := opts.LoginUrl
	if loginUrlStr == "" {
		loginUrlStr = defaultLoginUrl
	}

	siteRoot, err := url.Parse(siteRootStr)
	if err != nil {
		return nil, err
	}
	loginUrl, err := url.Parse(loginUrlStr)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeaders(browserHeaders)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(
		siteRoot.Hostname(),
		loginUrl.Hostname(),
	))
	client.SetTimeout(time.Second * 30)

	restyutil.ConfigureRetry(client)
	restyutil.InstrumentClient(client, tracer)

	pace := opts.Pace
	if pace == 0 {
		pace = time.Second
	}

	root := strings.TrimSuffix(siteRoot.String(), "/")
	c := &Client{
		Http:          client,
		siteRoot:      siteRoot,
		loginUrl:      loginUrl,
		cumulusUrl:    root + cumulusLandingPath,
		receiptsUrl:   root + receiptListPath,
		exportUrl:     root + receiptExportPath,
		loginReferrer: root + loginReferrerPath,
		username:      opts.Username,
		password:      opts.Password,
		pace:          pace,
	}
	return c, nil
}

// DisplayName returns the account holder's name as shown by the portal,
// empty until login succeeds.
func (c *Client) DisplayName() string {
	return c.displayName
}

func (c *Client) Username() string {
	return c.username
}

func (c *Client) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
