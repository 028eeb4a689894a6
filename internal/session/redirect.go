package session

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// RedirectParam is the query parameter carrying the page to return to after
// signing in again.
const RedirectParam = "redirect"

// SignInURL returns the sign-in location that brings the user back to
// original afterwards. An empty original, or one that is itself the sign-in
// view, yields the bare sign-in path.
func SignInURL(signInPath, original string) string {
	if original == "" || onSignIn(original, signInPath) {
		return signInPath
	}
	return signInPath + "?" + url.Values{RedirectParam: {original}}.Encode()
}

// ShouldRedirect reports whether a 401 seen while on currentPath sends the
// user to sign in. The login call itself and the sign-in view are exempt.
func ShouldRedirect(currentPath, signInPath string, isLogin bool) bool {
	if isLogin {
		return false
	}
	return !onSignIn(currentPath, signInPath)
}

func onSignIn(p, signInPath string) bool {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSuffix(p, "/")
	base := strings.TrimSuffix(signInPath, "/")
	return p == base || strings.HasPrefix(p, base+"/")
}

// Redirector reacts to authentication failures in a client process: it
// clears the held identity at once and navigates to sign-in after a delay.
// Failures arriving while a navigation is pending are folded into it.
type Redirector struct {
	current    *Current
	signInPath string
	delay      time.Duration
	navigate   func(target string)

	mu      sync.Mutex
	pending *time.Timer
}

// NewRedirector returns a Redirector that calls navigate with the sign-in
// URL delay after the first failure.
func NewRedirector(current *Current, signInPath string, delay time.Duration, navigate func(target string)) *Redirector {
	return &Redirector{current: current, signInPath: signInPath, delay: delay, navigate: navigate}
}

// Unauthorized handles a 401 observed while on currentPath. It returns true
// when the identity was cleared and a navigation is scheduled or already
// pending.
func (r *Redirector) Unauthorized(currentPath string, isLogin bool) bool {
	if !ShouldRedirect(currentPath, r.signInPath, isLogin) {
		return false
	}
	r.current.Clear()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending != nil {
		return true
	}
	target := SignInURL(r.signInPath, currentPath)
	var timer *time.Timer
	timer = time.AfterFunc(r.delay, func() {
		r.mu.Lock()
		if r.pending != timer {
			// Cancelled after the timer fired.
			r.mu.Unlock()
			return
		}
		r.pending = nil
		r.mu.Unlock()
		r.navigate(target)
	})
	r.pending = timer
	return true
}

// Pending reports whether a navigation is waiting to fire.
func (r *Redirector) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

// Cancel drops a pending navigation.
func (r *Redirector) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked()
}

func (r *Redirector) cancelLocked() {
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
}
