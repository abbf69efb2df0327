package cumulus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testCsrfToken = "tok-1f2e3d"

// fakePortal fakes just enough of the loyalty portal for the login sequence
// and the receipt listing: home page, login service, cumulus landing page,
// paginated listing and the export endpoints.
type fakePortal struct {
	mu     sync.Mutex
	server *httptest.Server

	loginPage     string
	loginResponse string
	landingPage   string
	listingPages  map[string]string
	exports       map[string]string

	warmupHits      int
	loginGets       int
	loginPosts      int
	listingRequests []string
	listingQueries  []url.Values
	lastLoginForm   url.Values
}

func newFakePortal(t *testing.T) *fakePortal {
	p := &fakePortal{
		loginPage:     `<html><head><meta name="_csrf" content="` + testCsrfToken + `"></head><body>login</body></html>`,
		loginResponse: `<html><body>welcome back</body></html>`,
		landingPage:   `<html><body><span class="user-name">Jane Doe</span> Ihr Cumulus Konto</body></html>`,
		listingPages:  map[string]string{},
		exports: map[string]string{
			"html": "<html><body>receipt detail</body></html>",
			"pdf":  "%PDF-1.4 fake",
		},
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePortal) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case r.URL.Path == "/":
		p.warmupHits++
		io.WriteString(w, "<html><body>home</body></html>")
	case r.URL.Path == "/login" && r.Method == http.MethodGet:
		p.loginGets++
		io.WriteString(w, p.loginPage)
	case r.URL.Path == "/login" && r.Method == http.MethodPost:
		p.loginPosts++
		r.ParseForm()
		p.lastLoginForm = r.PostForm
		io.WriteString(w, p.loginResponse)
	case r.URL.Path == "/de/cumulus/konto~checkImmediate=true~.html":
		io.WriteString(w, p.landingPage)
	case r.URL.Path == "/de/cumulus/konto/kassenbons.html":
		page := r.URL.Query().Get("p")
		p.listingRequests = append(p.listingRequests, page)
		p.listingQueries = append(p.listingQueries, r.URL.Query())
		io.WriteString(w, p.listingPages[page])
	case strings.HasPrefix(r.URL.Path, "/service/avantaReceiptExport/"):
		form := strings.TrimPrefix(r.URL.Path, "/service/avantaReceiptExport/")
		io.WriteString(w, p.exports[form])
	default:
		http.NotFound(w, r)
	}
}

// requestCount across every endpoint, used to assert that validation
// failures never reach the network
func (p *fakePortal) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.warmupHits + p.loginGets + p.loginPosts + len(p.listingRequests)
}

func (p *fakePortal) client(t *testing.T) *Client {
	c, err := NewClient(context.Background(), ClientOptions{
		SiteRoot: p.server.URL,
		LoginUrl: p.server.URL + "/login",
		Username: "jane@example.com",
		Password: "hunter2",
		Pace:     time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func (p *fakePortal) login(t *testing.T) *Client {
	c := p.client(t)
	require.NoError(t, c.Login(context.Background()))
	return c
}

func paginationControls(values ...int) string {
	var b strings.Builder
	for _, v := range values {
		fmt.Fprintf(&b, `<a aria-label="Seite" data-value="%d">%d</a>`, v, v)
	}
	return b.String()
}

func receiptRow(downloadId, receiptId, store, cost, points string) string {
	return fmt.Sprintf(`<tr>
		<td><input type="checkbox" value="%s"></td>
		<td><a class="ui-js-toggle-modal" href="/service/avantaReceiptExport/html?receiptId=%s">Kassenbon</a></td>
		<td>%s</td>
		<td>%s</td>
		<td>%s</td>
	</tr>`, downloadId, receiptId, store, cost, points)
}

func listingPage(pagination string, rows ...string) string {
	return `<html><body><table>
		<tr><th><input type="checkbox" value="all"></th></tr>
		` + strings.Join(rows, "\n") + `
	</table><nav>` + pagination + `</nav></body></html>`
}
