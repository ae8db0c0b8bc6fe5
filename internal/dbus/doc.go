// Package dbus exposes the daemon's host-application surface on the session
// bus. It provides a server exporting Display, Play, ClearDisplay, and
// Status methods plus TemplateRendered/TemplateCleared signals, a render
// target that mirrors render and clear events onto those signals, and a
// small client used by the CLI.
package dbus
