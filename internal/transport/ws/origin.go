package ws

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy: allowlist для заголовка Origin при апгрейде.
type OriginPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

// NewOriginPolicy нормализует список в scheme://host. "*" разрешает всё,
// некорректные записи пропускаются с предупреждением.
func NewOriginPolicy(origins []string) *OriginPolicy {
	p := &OriginPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch {
		case o == "":
			continue
		case o == "*":
			p.allowAll = true
			continue
		}
		n, ok := normalizeOrigin(o)
		if !ok {
			slog.Warn("ws ignoring invalid allowed origin", "origin", o)
			continue
		}
		p.allowed[n] = struct{}{}
	}

	return p
}

// Check подходит для websocket.Upgrader.CheckOrigin. Без Origin (не браузер) пускаем.
// Пустой allowlist означает same-origin.
func (p *OriginPolicy) Check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || p.allowAll {
		return true
	}
	n, ok := normalizeOrigin(origin)
	if !ok {
		slog.Warn("ws blocked malformed origin", "origin", origin)
		return false
	}

	if len(p.allowed) == 0 {
		host := strings.ToLower(r.Host)
		if n == "http://"+host || n == "https://"+host {
			return true
		}
	} else if _, ok := p.allowed[n]; ok {
		return true
	}

	slog.Warn("ws blocked disallowed origin", "origin", origin)
	return false
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}
