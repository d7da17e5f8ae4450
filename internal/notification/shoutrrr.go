package notification

import (
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/eegstream/eegstream-go/internal/errors"
)

// Sender delivers one message to every configured service. The shoutrrr
// service router implements it.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// NewShoutrrrSender builds a router for urls
func NewShoutrrrSender(urls []string, timeout time.Duration) (Sender, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(slices.Clone(urls)...)
	if err != nil {
		return nil, errors.New(fmt.Errorf("invalid notification URL: %s", scrubURLs(err.Error(), urls))).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("url_count", len(urls)).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return sender, nil
}

// scrubURLs replaces every configured service URL in msg since they carry credentials
func scrubURLs(msg string, urls []string) string {
	for _, u := range urls {
		if u != "" {
			msg = strings.ReplaceAll(msg, u, "[redacted-url]")
		}
	}
	return msg
}
