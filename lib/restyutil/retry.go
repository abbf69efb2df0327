package restyutil

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// statuses the portal returns when it is overloaded or rate limiting; anything
// else is not worth retrying at the transport level
var transientStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// ConfigureRetry installs a bounded retry policy for transient server and
// rate-limit responses. Retries back off exponentially; authentication and
// parse failures are not the transport's business and never trip it.
func ConfigureRetry(client *resty.Client) {
	client.
		SetRetryCount(3).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(time.Second * 8).
		AddRetryCondition(func(res *resty.Response, err error) bool {
			if err != nil || res == nil {
				return false
			}
			return transientStatuses[res.StatusCode()]
		})
}
