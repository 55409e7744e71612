package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/hongminglow/dunes-blog/internal/models"
)

// CookieName is the name of the session cookie.
const CookieName = "atlantic-dunes-session"

var errNoSession = errors.New("no session cookie")

// CookieSettings controls the attributes of the session cookie.
type CookieSettings struct {
	Name   string
	Path   string
	Secure bool
	MaxAge time.Duration
}

// DefaultCookieSettings returns the production cookie attributes.
// Secure is dropped only for local development over plain HTTP.
func DefaultCookieSettings(secure bool) CookieSettings {
	return CookieSettings{
		Name:   CookieName,
		Path:   "/",
		Secure: secure,
		MaxAge: DefaultMaxAge,
	}
}

func (cs CookieSettings) withDefaults() CookieSettings {
	if cs.Name == "" {
		cs.Name = CookieName
	}
	if cs.Path == "" {
		cs.Path = "/"
	}
	if cs.MaxAge <= 0 {
		cs.MaxAge = DefaultMaxAge
	}
	return cs
}

// Accessor is the per-request view of the session cookie. It is not safe
// for concurrent use; create one per request.
type Accessor struct {
	codec    *Codec
	settings CookieSettings
	r        *http.Request
	w        http.ResponseWriter

	loaded  bool
	current models.Session
	err     error
}

// NewAccessor binds a codec and cookie settings to one request/response pair.
// Nothing is read or written until the session is used.
func NewAccessor(codec *Codec, settings CookieSettings, r *http.Request, w http.ResponseWriter) *Accessor {
	return &Accessor{codec: codec, settings: settings.withDefaults(), r: r, w: w}
}

// Session returns the inbound session, or the anonymous session when the
// cookie is missing or cannot be decoded.
func (a *Accessor) Session() models.Session {
	s, _ := a.lookup()
	return s
}

// lookup decodes the inbound cookie once and memoises the result.
// errNoSession means there was no cookie at all.
func (a *Accessor) lookup() (models.Session, error) {
	if !a.loaded {
		a.loaded = true
		a.current, a.err = a.decode()
	}
	return a.current, a.err
}

func (a *Accessor) decode() (models.Session, error) {
	cookie, err := a.r.Cookie(a.settings.Name)
	if err != nil || cookie.Value == "" {
		return models.Session{}, errNoSession
	}
	return a.codec.Decode(cookie.Value)
}

// Save encodes s and emits it as the session cookie.
func (a *Accessor) Save(s models.Session) error {
	value, err := a.codec.Encode(s)
	if err != nil {
		return err
	}
	http.SetCookie(a.w, &http.Cookie{
		Name:     a.settings.Name,
		Value:    value,
		Path:     a.settings.Path,
		MaxAge:   int(a.settings.MaxAge / time.Second),
		Expires:  a.codec.now().Add(a.settings.MaxAge),
		HttpOnly: true,
		Secure:   a.settings.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	a.loaded = true
	a.current = s
	a.err = nil
	return nil
}

// Destroy emits an expiring session cookie and resets the view to anonymous.
// Calling it more than once is harmless.
func (a *Accessor) Destroy() {
	http.SetCookie(a.w, &http.Cookie{
		Name:     a.settings.Name,
		Value:    "",
		Path:     a.settings.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   a.settings.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	a.loaded = true
	a.current = models.Session{}
	a.err = errNoSession
}
