package dbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	// DBusInterface is the display-sync interface name.
	DBusInterface = "io.github.jmylchreest.Displaysync"
	// DBusPath is the display-sync object path.
	DBusPath = "/io/github/jmylchreest/Displaysync"
	// DefaultBusName is the bus name claimed when none is configured.
	DefaultBusName = "io.github.jmylchreest.displaysyncd"
)

// DisplayHandler is called when a Display request arrives on the bus.
type DisplayHandler func(meta map[string]any, messageID, dialogRequestID, serviceID string)

// PlayHandler is called when a Play request arrives on the bus.
type PlayHandler func(path string, meta map[string]any, messageID, dialogRequestID, serviceID string) error

// ClearHandler is called when ClearDisplay is requested.
type ClearHandler func()

// StatusHandler reports the current template for the Status method.
type StatusHandler func() (templateID, templateType string, rendering bool)

// Server exports the display-sync interface on the session bus.
type Server struct {
	conn    *dbus.Conn
	logger  *slog.Logger
	busName string

	displayHandler DisplayHandler
	playHandler    PlayHandler
	clearHandler   ClearHandler
	statusHandler  StatusHandler

	mu      sync.Mutex
	running bool
}

// NewServer creates a new Server claiming busName (DefaultBusName if empty).
func NewServer(busName string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if busName == "" {
		busName = DefaultBusName
	}
	return &Server{
		logger:  logger,
		busName: busName,
	}
}

// SetDisplayHandler sets the handler for Display requests.
func (s *Server) SetDisplayHandler(handler DisplayHandler) {
	s.displayHandler = handler
}

// SetPlayHandler sets the handler for Play requests.
func (s *Server) SetPlayHandler(handler PlayHandler) {
	s.playHandler = handler
}

// SetClearHandler sets the handler for ClearDisplay requests.
func (s *Server) SetClearHandler(handler ClearHandler) {
	s.clearHandler = handler
}

// SetStatusHandler sets the handler backing the Status method.
func (s *Server) SetStatusHandler(handler StatusHandler) {
	s.statusHandler = handler
}

// Start connects to the session bus and exports the display-sync service.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.mu.Unlock()

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	s.conn = conn

	if err := conn.Export(s, DBusPath, DBusInterface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: DBusPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    DBusInterface,
				Methods: displaySyncMethods(),
				Signals: displaySyncSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), DBusPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(s.busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", s.busName)
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.logger.Info("D-Bus display-sync server started", "bus_name", s.busName, "path", DBusPath)
	return nil
}

// Stop releases the bus name.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(s.busName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
		// Don't close the connection as it's shared (SessionBus)
	}

	s.logger.Info("D-Bus display-sync server stopped")
	return nil
}

// Display handles an inbound display request.
// D-Bus method: Display(ssss) -> nothing
func (s *Server) Display(metaJSON, messageID, dialogRequestID, serviceID string) *dbus.Error {
	s.logger.Debug("Display called",
		"message_id", messageID,
		"dialog_request_id", dialogRequestID,
	)

	meta, err := parseMetadata(metaJSON)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	if s.displayHandler != nil {
		s.displayHandler(meta, messageID, dialogRequestID, serviceID)
	}
	return nil
}

// Play handles a combined playback-plus-display request.
// D-Bus method: Play(sssss) -> nothing
func (s *Server) Play(path, metaJSON, messageID, dialogRequestID, serviceID string) *dbus.Error {
	s.logger.Debug("Play called",
		"path", path,
		"message_id", messageID,
		"dialog_request_id", dialogRequestID,
	)

	meta, err := parseMetadata(metaJSON)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	if s.playHandler != nil {
		if err := s.playHandler(path, meta, messageID, dialogRequestID, serviceID); err != nil {
			return dbus.MakeFailedError(err)
		}
	}
	return nil
}

// ClearDisplay handles an explicit teardown of the bus-facing surface.
// D-Bus method: ClearDisplay() -> nothing
func (s *Server) ClearDisplay() *dbus.Error {
	s.logger.Debug("ClearDisplay called")
	if s.clearHandler != nil {
		s.clearHandler()
	}
	return nil
}

// Status reports the template currently being synchronized.
// D-Bus method: Status() -> (ssb)
func (s *Server) Status() (string, string, bool, *dbus.Error) {
	s.logger.Debug("Status called")
	if s.statusHandler == nil {
		return "", "", false, nil
	}
	id, typ, rendering := s.statusHandler()
	return id, typ, rendering, nil
}

// EmitTemplateRendered emits the TemplateRendered signal.
func (s *Server) EmitTemplateRendered(templateID, templateType string) error {
	s.mu.Lock()
	conn := s.conn
	running := s.running
	s.mu.Unlock()

	if !running || conn == nil {
		return nil
	}
	return conn.Emit(DBusPath, DBusInterface+".TemplateRendered", templateID, templateType)
}

// EmitTemplateCleared emits the TemplateCleared signal.
func (s *Server) EmitTemplateCleared(templateID string) error {
	s.mu.Lock()
	conn := s.conn
	running := s.running
	s.mu.Unlock()

	if !running || conn == nil {
		return nil
	}
	return conn.Emit(DBusPath, DBusInterface+".TemplateCleared", templateID)
}

// parseMetadata decodes the JSON metadata argument into the loosely-typed
// mapping the coordinator consumes. An empty string means no metadata.
func parseMetadata(metaJSON string) (map[string]any, error) {
	if metaJSON == "" {
		return map[string]any{}, nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, fmt.Errorf("invalid metadata JSON: %w", err)
	}
	return meta, nil
}

// displaySyncMethods returns the D-Bus method introspection data.
func displaySyncMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "Display",
			Args: []introspect.Arg{
				{Name: "metadata", Type: "s", Direction: "in"},
				{Name: "message_id", Type: "s", Direction: "in"},
				{Name: "dialog_request_id", Type: "s", Direction: "in"},
				{Name: "service_id", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "Play",
			Args: []introspect.Arg{
				{Name: "path", Type: "s", Direction: "in"},
				{Name: "metadata", Type: "s", Direction: "in"},
				{Name: "message_id", Type: "s", Direction: "in"},
				{Name: "dialog_request_id", Type: "s", Direction: "in"},
				{Name: "service_id", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "ClearDisplay",
		},
		{
			Name: "Status",
			Args: []introspect.Arg{
				{Name: "template_id", Type: "s", Direction: "out"},
				{Name: "template_type", Type: "s", Direction: "out"},
				{Name: "rendering", Type: "b", Direction: "out"},
			},
		},
	}
}

// displaySyncSignals returns the D-Bus signal introspection data.
func displaySyncSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "TemplateRendered",
			Args: []introspect.Arg{
				{Name: "template_id", Type: "s"},
				{Name: "template_type", Type: "s"},
			},
		},
		{
			Name: "TemplateCleared",
			Args: []introspect.Arg{
				{Name: "template_id", Type: "s"},
			},
		},
	}
}
