package middleware

import (
	"strings"

	"video-converter/internal/session"
)

// routeKind groups request paths by the part of the service they reach.
type routeKind int

const (
	routeOther routeKind = iota
	routeUpload
	routeDownload
	routeHealth
	routeInfo
)

var fixedRoutes = map[string]routeKind{
	"/process-video": routeUpload,
	"/health":        routeHealth,
	"/healthz":       routeHealth,
	"/livez":         routeHealth,
	"/readyz":        routeHealth,
	"/version":       routeInfo,
	"/metrics":       routeInfo,
	"/":              routeInfo,
}

// route describes a request path: which kind of route it is, a bounded
// label for metrics, and the session it names, if any.
type route struct {
	kind    routeKind
	label   string
	session string
}

func classify(path string) route {
	if kind, ok := fixedRoutes[path]; ok {
		return route{kind: kind, label: path}
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	switch {
	case parts[0] == "Uploads":
		rt := route{kind: routeDownload, label: "/Uploads/{path}"}
		if len(parts) > 1 && session.ValidID(parts[1]) {
			rt.session = parts[1]
		}
		return rt
	case len(parts) == 2 && session.ValidID(parts[0]):
		return route{kind: routeDownload, label: "/{session}/{file}", session: parts[0]}
	default:
		return route{kind: routeOther, label: "/{other}"}
	}
}
