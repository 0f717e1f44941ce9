package scraper

import (
	"context"
	"time"
)

// fakeNav is the test double for the browser session: a scriptable
// page that serves static HTML instead of driving Playwright.
type fakeNav struct {
	url     string
	content string

	navigateFn func(url string) error
	fillFn     func(selector, value string) error
	clickFn    func(selector string) error
	waitFn     func() error

	navigations []string
	fills       map[string]string
	clicks      []string
}

func newFakeNav() *fakeNav {
	return &fakeNav{fills: make(map[string]string)}
}

func (f *fakeNav) Navigate(url string) error {
	f.navigations = append(f.navigations, url)
	if f.navigateFn != nil {
		return f.navigateFn(url)
	}
	f.url = url
	return nil
}

func (f *fakeNav) Fill(selector, value string) error {
	f.fills[selector] = value
	if f.fillFn != nil {
		return f.fillFn(selector, value)
	}
	return nil
}

func (f *fakeNav) Click(selector string) error {
	f.clicks = append(f.clicks, selector)
	if f.clickFn != nil {
		return f.clickFn(selector)
	}
	return nil
}

func (f *fakeNav) WaitForQuiescence() error {
	if f.waitFn != nil {
		return f.waitFn()
	}
	return nil
}

func (f *fakeNav) Content() (string, error) { return f.content, nil }

func (f *fakeNav) URL() string { return f.url }

// fakeValidator counts session validations and can simulate re-auth.
type fakeValidator struct {
	calls int
	err   error
}

func (v *fakeValidator) EnsureValid(ctx context.Context) error {
	v.calls++
	return v.err
}

// newTestRetrier returns a retrier with instant, recorded sleeps.
func newTestRetrier(maxAttempts int, v Validator) (*Retrier, *[]time.Duration) {
	delays := &[]time.Duration{}
	r := NewRetrier(Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
	}, v)
	r.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
	return r, delays
}
