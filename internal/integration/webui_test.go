package integration_test

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/chromedp/chromedp"

	"pkt.systems/tether/httpapi"
)

func TestDashboardNeverExecutesHostileSessionID(t *testing.T) {
	requireLong(t)
	requireChrome(t)
	gw := startTestGateway(t, httpapi.RateLimitConfig{})

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := chromedp.Run(ctx); err != nil {
		t.Fatalf("chromedp failed to start: %v", err)
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "script-tag", path: "/session/" + url.PathEscape(`</script><script>window.__pwned=1</script>`), want: "null"},
		{name: "quote-break", path: "/session/" + url.PathEscape(`";window.__pwned=1;"`), want: "null"},
		{name: "hostile-tab", path: "/session/abc?tabId=" + url.QueryEscape(`<img src=x onerror="window.__pwned=1">`), want: "abc"},
		{name: "valid", path: "/session/abc-123_X", want: "abc-123_X"},
	}
	for _, tc := range tests {
		var rendered string
		var pwned bool
		err := chromedp.Run(ctx,
			chromedp.Navigate(gw.url(tc.path)),
			chromedp.WaitReady(`#session`, chromedp.ByID),
			chromedp.Text(`#session`, &rendered, chromedp.ByID),
			chromedp.Evaluate(`window.__pwned === 1`, &pwned),
		)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("%s: chromedp timed out: %v", tc.name, err)
			}
			t.Fatalf("%s: chromedp failed: %v", tc.name, err)
		}
		if pwned {
			t.Fatalf("%s: injected script executed", tc.name)
		}
		if rendered != tc.want {
			t.Fatalf("%s: rendered session id = %q, want %q", tc.name, rendered, tc.want)
		}
	}
}
